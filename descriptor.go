package firebird

// ColumnDescriptor carries per-column metadata produced by the server when
// a statement is prepared. It is immutable after creation and owned by the
// statement; the codec consumes it on every row fetch.
type ColumnDescriptor struct {
	Name      string // alias as selected
	TypeCode  int
	SubType   int
	Scale     int
	Length    int
	Nullable  bool
	FieldName string // original field name
	TableName string
	OwnerName string
}

// TypeName returns the human-readable SQL type name.
func (d *ColumnDescriptor) TypeName() string {
	switch d.TypeCode {
	case sqlTypeText:
		return "CHAR"
	case sqlTypeVarying:
		return "VARCHAR"
	case sqlTypeShort:
		if d.Scale != 0 {
			return "NUMERIC"
		}

		return "SMALLINT"
	case sqlTypeLong:
		if d.Scale != 0 {
			return "NUMERIC"
		}

		return "INTEGER"
	case sqlTypeInt64:
		if d.Scale != 0 {
			return "NUMERIC"
		}

		return "BIGINT"
	case sqlTypeInt128:
		if d.Scale != 0 {
			return "NUMERIC"
		}

		return "INT128"
	case sqlTypeFloat:
		return "FLOAT"
	case sqlTypeDouble, sqlTypeDFloat:
		return "DOUBLE PRECISION"
	case sqlTypeDec16:
		return "DECFLOAT(16)"
	case sqlTypeDec34:
		return "DECFLOAT(34)"
	case sqlTypeDate:
		return "DATE"
	case sqlTypeTime:
		return "TIME"
	case sqlTypeTimestamp:
		return "TIMESTAMP"
	case sqlTypeTimeTZ:
		return "TIME WITH TIME ZONE"
	case sqlTypeTimestampTZ:
		return "TIMESTAMP WITH TIME ZONE"
	case sqlTypeBoolean:
		return "BOOLEAN"
	case sqlTypeBlob:
		if d.SubType == 1 {
			return "BLOB SUB_TYPE TEXT"
		}

		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// DisplaySize reports the display width for character types and zero for
// everything else.
func (d *ColumnDescriptor) DisplaySize() int {
	switch d.TypeCode {
	case sqlTypeText, sqlTypeVarying:
		return d.Length
	default:
		return 0
	}
}

// InternalSize reports the server-side storage size in bytes.
func (d *ColumnDescriptor) InternalSize() int {
	switch d.TypeCode {
	case sqlTypeText, sqlTypeVarying:
		return d.Length
	default:
		return d.ioLength()
	}
}

// Precision reports the numeric precision for exact numeric columns; ok is
// false for non-numeric types.
func (d *ColumnDescriptor) Precision() (precision int, ok bool) {
	switch d.TypeCode {
	case sqlTypeShort:
		return 4, true
	case sqlTypeLong:
		return 9, true
	case sqlTypeInt64:
		return 18, true
	case sqlTypeInt128:
		return 38, true
	case sqlTypeDec16:
		return 16, true
	case sqlTypeDec34:
		return 34, true
	default:
		return 0, false
	}
}

// ioLength is the wire field length for fixed-width types, or -1 for
// length-prefixed ones. Short columns travel as a full 4-byte field.
func (d *ColumnDescriptor) ioLength() int {
	switch d.TypeCode {
	case sqlTypeText:
		return d.Length
	case sqlTypeVarying:
		return -1
	case sqlTypeShort, sqlTypeLong, sqlTypeFloat, sqlTypeDate, sqlTypeTime:
		return 4
	case sqlTypeInt64, sqlTypeDouble, sqlTypeDFloat, sqlTypeTimestamp, sqlTypeDec16:
		return 8
	case sqlTypeInt128, sqlTypeDec34:
		return 16
	case sqlTypeTimeTZ:
		return 6
	case sqlTypeTimestampTZ:
		return 10
	case sqlTypeBlob, sqlTypeArray, sqlTypeQuad:
		return 8
	case sqlTypeBoolean:
		return 1
	default:
		return 0
	}
}
