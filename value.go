package firebird

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind tags the variant held by a Value. The set is closed: every
// supported SQL domain has exactly one kind, and conversions switch
// exhaustively over it.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt16
	KindInt32
	KindInt64
	KindInt128
	KindFloat32
	KindFloat64
	KindDecimal
	KindText
	KindBytes
	KindDate
	KindTime
	KindTimestamp
	KindTimeTZ
	KindTimestampTZ
	KindBool
	KindBlobID
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt16:
		return "SMALLINT"
	case KindInt32:
		return "INTEGER"
	case KindInt64:
		return "BIGINT"
	case KindInt128:
		return "INT128"
	case KindFloat32:
		return "FLOAT"
	case KindFloat64:
		return "DOUBLE"
	case KindDecimal:
		return "DECIMAL"
	case KindText:
		return "TEXT"
	case KindBytes:
		return "BYTES"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindTimeTZ:
		return "TIME WITH TIME ZONE"
	case KindTimestampTZ:
		return "TIMESTAMP WITH TIME ZONE"
	case KindBool:
		return "BOOLEAN"
	case KindBlobID:
		return "BLOB"
	}

	return "UNKNOWN"
}

// Value is the decoded form of one cell. Typed accessors narrow the variant
// to native Go types and fail explicitly on lossy or out-of-range
// conversions.
type Value struct {
	kind ValueKind

	i   int64
	big *big.Int
	f   float64
	dec decimal.Decimal
	s   string
	b   []byte
	t   time.Time
	bl  bool

	// zoned temporal variants
	zoneOffset int // minutes east of UTC
	zoneName   string
}

func NullValue() Value {
	return Value{kind: KindNull}
}

func Int16Value(v int16) Value {
	return Value{kind: KindInt16, i: int64(v)}
}

func Int32Value(v int32) Value {
	return Value{kind: KindInt32, i: int64(v)}
}

func Int64Value(v int64) Value {
	return Value{kind: KindInt64, i: v}
}

func Int128Value(v *big.Int) Value {
	return Value{kind: KindInt128, big: v}
}

func Float32Value(v float32) Value {
	return Value{kind: KindFloat32, f: float64(v)}
}

func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, f: v}
}

func DecimalValue(v decimal.Decimal) Value {
	return Value{kind: KindDecimal, dec: v}
}

func TextValue(v string) Value {
	return Value{kind: KindText, s: v}
}

func BytesValue(v []byte) Value {
	return Value{kind: KindBytes, b: v}
}

func DateValue(v time.Time) Value {
	return Value{kind: KindDate, t: v}
}

func TimeValue(v time.Time) Value {
	return Value{kind: KindTime, t: v}
}

func TimestampValue(v time.Time) Value {
	return Value{kind: KindTimestamp, t: v}
}

func TimeTZValue(v time.Time, offsetMinutes int, zoneName string) Value {
	return Value{kind: KindTimeTZ, t: v, zoneOffset: offsetMinutes, zoneName: zoneName}
}

func TimestampTZValue(v time.Time, offsetMinutes int, zoneName string) Value {
	return Value{kind: KindTimestampTZ, t: v, zoneOffset: offsetMinutes, zoneName: zoneName}
}

func BoolValue(v bool) Value {
	return Value{kind: KindBool, bl: v}
}

func blobIDValue(id []byte) Value {
	return Value{kind: KindBlobID, b: id}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Int64 narrows integer variants to int64. Huge-integer values outside the
// 64-bit range are an error, never wrapped.
func (v Value) Int64() (int64, error) {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64:
		return v.i, nil
	case KindInt128:
		if !v.big.IsInt64() {
			return 0, &CodecError{Message: fmt.Sprintf("INT128 value %s out of int64 range", v.big)}
		}

		return v.big.Int64(), nil
	case KindDecimal:
		if v.dec.Exponent() < 0 {
			return 0, &CodecError{Message: fmt.Sprintf("decimal value %s has a fractional part", v.dec)}
		}

		bi := v.dec.BigInt()

		if !bi.IsInt64() {
			return 0, &CodecError{Message: fmt.Sprintf("decimal value %s out of int64 range", v.dec)}
		}

		return bi.Int64(), nil
	default:
		return 0, &CodecError{Message: fmt.Sprintf("cannot convert %s to int64", v.kind)}
	}
}

func (v Value) Int32() (int32, error) {
	i, err := v.Int64()

	if err != nil {
		return 0, err
	}

	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, &CodecError{Message: fmt.Sprintf("value %d out of int32 range", i)}
	}

	return int32(i), nil
}

func (v Value) Int16() (int16, error) {
	i, err := v.Int64()

	if err != nil {
		return 0, err
	}

	if i < math.MinInt16 || i > math.MaxInt16 {
		return 0, &CodecError{Message: fmt.Sprintf("value %d out of int16 range", i)}
	}

	return int16(i), nil
}

// BigInt returns the value as an arbitrary-precision integer.
func (v Value) BigInt() (*big.Int, error) {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64:
		return big.NewInt(v.i), nil
	case KindInt128:
		return new(big.Int).Set(v.big), nil
	default:
		return nil, &CodecError{Message: fmt.Sprintf("cannot convert %s to big integer", v.kind)}
	}
}

// Float64 converts numeric variants to float64. Decimal values accept
// representational imprecision but true overflow is rejected.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindFloat32, KindFloat64:
		return v.f, nil
	case KindInt16, KindInt32, KindInt64:
		return float64(v.i), nil
	case KindDecimal:
		f, _ := v.dec.Float64()

		if math.IsInf(f, 0) {
			return 0, &CodecError{Message: fmt.Sprintf("decimal value %s overflows float64", v.dec)}
		}

		return f, nil
	case KindInt128:
		f, _ := new(big.Float).SetInt(v.big).Float64()

		if math.IsInf(f, 0) {
			return 0, &CodecError{Message: fmt.Sprintf("INT128 value %s overflows float64", v.big)}
		}

		return f, nil
	default:
		return 0, &CodecError{Message: fmt.Sprintf("cannot convert %s to float64", v.kind)}
	}
}

func (v Value) Float32() (float32, error) {
	f, err := v.Float64()

	if err != nil {
		return 0, err
	}

	if f > math.MaxFloat32 || f < -math.MaxFloat32 {
		return 0, &CodecError{Message: fmt.Sprintf("value %g out of float32 range", f)}
	}

	return float32(f), nil
}

func (v Value) Decimal() (decimal.Decimal, error) {
	switch v.kind {
	case KindDecimal:
		return v.dec, nil
	case KindInt16, KindInt32, KindInt64:
		return decimal.NewFromInt(v.i), nil
	case KindInt128:
		return decimal.NewFromBigInt(v.big, 0), nil
	default:
		return decimal.Decimal{}, &CodecError{Message: fmt.Sprintf("cannot convert %s to decimal", v.kind)}
	}
}

func (v Value) Text() (string, error) {
	switch v.kind {
	case KindText:
		return v.s, nil
	case KindBytes:
		return string(v.b), nil
	default:
		return "", &CodecError{Message: fmt.Sprintf("cannot convert %s to string", v.kind)}
	}
}

func (v Value) Bytes() ([]byte, error) {
	switch v.kind {
	case KindBytes, KindBlobID:
		return v.b, nil
	case KindText:
		return []byte(v.s), nil
	default:
		return nil, &CodecError{Message: fmt.Sprintf("cannot convert %s to bytes", v.kind)}
	}
}

func (v Value) Time() (time.Time, error) {
	switch v.kind {
	case KindDate, KindTime, KindTimestamp, KindTimeTZ, KindTimestampTZ:
		return v.t, nil
	default:
		return time.Time{}, &CodecError{Message: fmt.Sprintf("cannot convert %s to time", v.kind)}
	}
}

// Zone reports the zone offset in minutes east of UTC and the zone name for
// timezone-aware variants.
func (v Value) Zone() (offsetMinutes int, name string, err error) {
	switch v.kind {
	case KindTimeTZ, KindTimestampTZ:
		return v.zoneOffset, v.zoneName, nil
	default:
		return 0, "", &CodecError{Message: fmt.Sprintf("%s carries no zone", v.kind)}
	}
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, &CodecError{Message: fmt.Sprintf("cannot convert %s to bool", v.kind)}
	}

	return v.bl, nil
}

// Native returns the value as the natural Go representation, for callers
// that do not need typed access.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindInt128:
		return v.big
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindDecimal:
		return v.dec
	case KindText:
		return v.s
	case KindBytes, KindBlobID:
		return v.b
	case KindDate, KindTime, KindTimestamp, KindTimeTZ, KindTimestampTZ:
		return v.t
	case KindBool:
		return v.bl
	}

	return nil
}
