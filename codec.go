package firebird

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// The codec translates raw wire bytes to and from Values against a column
// descriptor. Every multi-byte field is big-endian regardless of host
// order.

// Day zero of the protocol's date encoding.
var dateEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

func decodeDateNum(n int32) time.Time {
	return dateEpoch.AddDate(0, 0, int(n))
}

func encodeDateNum(t time.Time) int32 {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	return int32(day.Sub(dateEpoch) / (24 * time.Hour))
}

// nanosToTimeUnits converts a sub-day nanosecond count to the protocol's
// 1/10,000 second unit. The unit is coarser than a nanosecond, so the
// conversion divides on the way out and multiplies on the way back in;
// inverting the direction overflows long before a full day.
func nanosToTimeUnits(ns int64) int64 {
	return ns / nsPerTimeUnit
}

func timeUnitsToNanos(units int64) int64 {
	return units * nsPerTimeUnit
}

func encodeTimeUnits(t time.Time) uint32 {
	secs := int64(t.Hour())*3600 + int64(t.Minute())*60 + int64(t.Second())

	return uint32(secs*timeUnitsPerSecond + nanosToTimeUnits(int64(t.Nanosecond())))
}

func decodeTimeUnits(units uint32) (hour, minute, sec, nsec int) {
	u := int64(units)

	secs := u / timeUnitsPerSecond
	nsec = int(timeUnitsToNanos(u % timeUnitsPerSecond))

	hour = int(secs / 3600)
	minute = int(secs % 3600 / 60)
	sec = int(secs % 60)

	return hour, minute, sec, nsec
}

// Offset-based zones occupy identifiers 0..2878, where 1439 is UTC. Named
// zones count down from 65535.
const tzOffsetBase = 1439

func zoneFromID(id uint16) (offsetMinutes int, name string) {
	if id <= 2*tzOffsetBase {
		return int(id) - tzOffsetBase, ""
	}

	if id == 65535 {
		return 0, "GMT"
	}

	return 0, fmt.Sprintf("timezone(%d)", id)
}

// decodeValue interprets the raw bytes of one cell against its descriptor.
// Types introduced by the fourth server generation are a codec error under
// an older negotiated version, never a silent default.
func decodeValue(raw []byte, d *ColumnDescriptor, protocolVersion int) (Value, error) {
	switch d.TypeCode {
	case sqlTypeText:
		return TextValue(string(raw)), nil

	case sqlTypeVarying:
		return TextValue(string(raw)), nil

	case sqlTypeShort:
		// Short columns travel as a full 4-byte field.
		if len(raw) != 4 {
			return Value{}, &CodecError{Message: fmt.Sprintf("SMALLINT field has %d bytes, want 4", len(raw))}
		}

		v := int32(binary.BigEndian.Uint32(raw))

		if d.Scale != 0 {
			return DecimalValue(decimal.New(int64(v), int32(d.Scale))), nil
		}

		return Int16Value(int16(v)), nil

	case sqlTypeLong:
		if len(raw) != 4 {
			return Value{}, &CodecError{Message: fmt.Sprintf("INTEGER field has %d bytes, want 4", len(raw))}
		}

		v := int32(binary.BigEndian.Uint32(raw))

		if d.Scale != 0 {
			return DecimalValue(decimal.New(int64(v), int32(d.Scale))), nil
		}

		return Int32Value(v), nil

	case sqlTypeInt64:
		if len(raw) != 8 {
			return Value{}, &CodecError{Message: fmt.Sprintf("BIGINT field has %d bytes, want 8", len(raw))}
		}

		v := int64(binary.BigEndian.Uint64(raw))

		if d.Scale != 0 {
			return DecimalValue(decimal.New(v, int32(d.Scale))), nil
		}

		return Int64Value(v), nil

	case sqlTypeInt128:
		if protocolVersion < protocolVersion16 {
			return Value{}, &CodecError{Message: "INT128 requires protocol version 16"}
		}

		if len(raw) != 16 {
			return Value{}, &CodecError{Message: fmt.Sprintf("INT128 field has %d bytes, want 16", len(raw))}
		}

		v := bigFromTwosComplement(raw)

		if d.Scale != 0 {
			return DecimalValue(decimal.NewFromBigInt(v, int32(d.Scale))), nil
		}

		return Int128Value(v), nil

	case sqlTypeFloat:
		if len(raw) != 4 {
			return Value{}, &CodecError{Message: fmt.Sprintf("FLOAT field has %d bytes, want 4", len(raw))}
		}

		return Float32Value(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil

	case sqlTypeDouble, sqlTypeDFloat:
		if len(raw) != 8 {
			return Value{}, &CodecError{Message: fmt.Sprintf("DOUBLE field has %d bytes, want 8", len(raw))}
		}

		return Float64Value(math.Float64frombits(binary.BigEndian.Uint64(raw))), nil

	case sqlTypeDec16:
		if protocolVersion < protocolVersion16 {
			return Value{}, &CodecError{Message: "DECFLOAT(16) requires protocol version 16"}
		}

		dec, err := decodeDecFloat16(raw)

		if err != nil {
			return Value{}, err
		}

		return DecimalValue(dec), nil

	case sqlTypeDec34:
		if protocolVersion < protocolVersion16 {
			return Value{}, &CodecError{Message: "DECFLOAT(34) requires protocol version 16"}
		}

		dec, err := decodeDecFloat34(raw)

		if err != nil {
			return Value{}, err
		}

		return DecimalValue(dec), nil

	case sqlTypeDate:
		if len(raw) != 4 {
			return Value{}, &CodecError{Message: fmt.Sprintf("DATE field has %d bytes, want 4", len(raw))}
		}

		return DateValue(decodeDateNum(int32(binary.BigEndian.Uint32(raw)))), nil

	case sqlTypeTime:
		if len(raw) != 4 {
			return Value{}, &CodecError{Message: fmt.Sprintf("TIME field has %d bytes, want 4", len(raw))}
		}

		h, m, s, ns := decodeTimeUnits(binary.BigEndian.Uint32(raw))

		return TimeValue(time.Date(0, time.January, 1, h, m, s, ns, time.UTC)), nil

	case sqlTypeTimestamp:
		if len(raw) != 8 {
			return Value{}, &CodecError{Message: fmt.Sprintf("TIMESTAMP field has %d bytes, want 8", len(raw))}
		}

		return TimestampValue(decodeTimestamp(raw)), nil

	case sqlTypeTimeTZ:
		if protocolVersion < protocolVersion16 {
			return Value{}, &CodecError{Message: "TIME WITH TIME ZONE requires protocol version 16"}
		}

		if len(raw) < 6 {
			return Value{}, &CodecError{Message: fmt.Sprintf("TIME WITH TIME ZONE field has %d bytes, want 6", len(raw))}
		}

		h, m, s, ns := decodeTimeUnits(binary.BigEndian.Uint32(raw[:4]))
		offset, name := zoneFromID(binary.BigEndian.Uint16(raw[4:6]))

		loc := time.FixedZone(name, offset*60)

		return TimeTZValue(time.Date(0, time.January, 1, h, m, s, ns, loc), offset, name), nil

	case sqlTypeTimestampTZ:
		if protocolVersion < protocolVersion16 {
			return Value{}, &CodecError{Message: "TIMESTAMP WITH TIME ZONE requires protocol version 16"}
		}

		if len(raw) < 10 {
			return Value{}, &CodecError{Message: fmt.Sprintf("TIMESTAMP WITH TIME ZONE field has %d bytes, want 10", len(raw))}
		}

		base := decodeTimestamp(raw[:8])
		offset, name := zoneFromID(binary.BigEndian.Uint16(raw[8:10]))

		loc := time.FixedZone(name, offset*60)

		return TimestampTZValue(base.In(loc), offset, name), nil

	case sqlTypeBoolean:
		if len(raw) < 1 {
			return Value{}, &CodecError{Message: "BOOLEAN field is empty"}
		}

		return BoolValue(raw[0] != 0), nil

	case sqlTypeBlob, sqlTypeQuad:
		if len(raw) != 8 {
			return Value{}, &CodecError{Message: fmt.Sprintf("BLOB id has %d bytes, want 8", len(raw))}
		}

		return blobIDValue(raw), nil

	case sqlTypeNull:
		return NullValue(), nil
	}

	return Value{}, &CodecError{Message: fmt.Sprintf("unsupported column type code %d", d.TypeCode)}
}

func decodeTimestamp(raw []byte) time.Time {
	date := decodeDateNum(int32(binary.BigEndian.Uint32(raw[:4])))
	h, m, s, ns := decodeTimeUnits(binary.BigEndian.Uint32(raw[4:8]))

	return time.Date(date.Year(), date.Month(), date.Day(), h, m, s, ns, time.UTC)
}

func bigFromTwosComplement(raw []byte) *big.Int {
	v := new(big.Int).SetBytes(raw)

	if raw[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(raw)*8)))
	}

	return v
}

// encodeValue produces the raw wire bytes for a Value against a descriptor
// hint. It is the inverse of decodeValue for every variant.
func encodeValue(v Value, d *ColumnDescriptor, protocolVersion int) ([]byte, error) {
	switch d.TypeCode {
	case sqlTypeText, sqlTypeVarying:
		s, err := v.Text()

		if err != nil {
			return nil, err
		}

		return []byte(s), nil

	case sqlTypeShort:
		i, err := scaledInt(v, d.Scale)

		if err != nil {
			return nil, err
		}

		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, &CodecError{Message: fmt.Sprintf("value %d out of SMALLINT range", i)}
		}

		return binary.BigEndian.AppendUint32(nil, uint32(int32(i))), nil

	case sqlTypeLong:
		i, err := scaledInt(v, d.Scale)

		if err != nil {
			return nil, err
		}

		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, &CodecError{Message: fmt.Sprintf("value %d out of INTEGER range", i)}
		}

		return binary.BigEndian.AppendUint32(nil, uint32(int32(i))), nil

	case sqlTypeInt64:
		i, err := scaledInt(v, d.Scale)

		if err != nil {
			return nil, err
		}

		return binary.BigEndian.AppendUint64(nil, uint64(i)), nil

	case sqlTypeInt128:
		if protocolVersion < protocolVersion16 {
			return nil, &CodecError{Message: "INT128 requires protocol version 16"}
		}

		bi, err := v.BigInt()

		if err != nil {
			return nil, err
		}

		return twosComplement(bi, 16)

	case sqlTypeFloat:
		f, err := v.Float32()

		if err != nil {
			return nil, err
		}

		return binary.BigEndian.AppendUint32(nil, math.Float32bits(f)), nil

	case sqlTypeDouble, sqlTypeDFloat:
		f, err := v.Float64()

		if err != nil {
			return nil, err
		}

		return binary.BigEndian.AppendUint64(nil, math.Float64bits(f)), nil

	case sqlTypeDate:
		t, err := v.Time()

		if err != nil {
			return nil, err
		}

		return binary.BigEndian.AppendUint32(nil, uint32(encodeDateNum(t))), nil

	case sqlTypeTime:
		t, err := v.Time()

		if err != nil {
			return nil, err
		}

		return binary.BigEndian.AppendUint32(nil, encodeTimeUnits(t)), nil

	case sqlTypeTimestamp:
		t, err := v.Time()

		if err != nil {
			return nil, err
		}

		buf := binary.BigEndian.AppendUint32(nil, uint32(encodeDateNum(t)))

		return binary.BigEndian.AppendUint32(buf, encodeTimeUnits(t)), nil

	case sqlTypeTimeTZ:
		if protocolVersion < protocolVersion16 {
			return nil, &CodecError{Message: "TIME WITH TIME ZONE requires protocol version 16"}
		}

		t, err := v.Time()

		if err != nil {
			return nil, err
		}

		offset, _, err := v.Zone()

		if err != nil {
			return nil, err
		}

		buf := binary.BigEndian.AppendUint32(nil, encodeTimeUnits(t))

		return binary.BigEndian.AppendUint16(buf, uint16(offset+tzOffsetBase)), nil

	case sqlTypeTimestampTZ:
		if protocolVersion < protocolVersion16 {
			return nil, &CodecError{Message: "TIMESTAMP WITH TIME ZONE requires protocol version 16"}
		}

		t, err := v.Time()

		if err != nil {
			return nil, err
		}

		offset, _, err := v.Zone()

		if err != nil {
			return nil, err
		}

		utc := t.UTC()
		buf := binary.BigEndian.AppendUint32(nil, uint32(encodeDateNum(utc)))
		buf = binary.BigEndian.AppendUint32(buf, encodeTimeUnits(utc))

		return binary.BigEndian.AppendUint16(buf, uint16(offset+tzOffsetBase)), nil

	case sqlTypeBoolean:
		b, err := v.Bool()

		if err != nil {
			return nil, err
		}

		if b {
			return []byte{1}, nil
		}

		return []byte{0}, nil

	case sqlTypeBlob, sqlTypeQuad:
		id, err := v.Bytes()

		if err != nil {
			return nil, err
		}

		if len(id) != 8 {
			return nil, &CodecError{Message: fmt.Sprintf("BLOB id has %d bytes, want 8", len(id))}
		}

		return id, nil
	}

	return nil, &CodecError{Message: fmt.Sprintf("unsupported column type code %d", d.TypeCode)}
}

// scaledInt returns the wire integer for an exact numeric column: the
// caller's value shifted by the descriptor scale.
func scaledInt(v Value, scale int) (int64, error) {
	if scale == 0 {
		return v.Int64()
	}

	dec, err := v.Decimal()

	if err != nil {
		return 0, err
	}

	shifted := dec.Shift(int32(-scale))

	if shifted.Exponent() < 0 && !shifted.IsInteger() {
		return 0, &CodecError{Message: fmt.Sprintf("value %s does not fit scale %d", dec, scale)}
	}

	bi := shifted.BigInt()

	if !bi.IsInt64() {
		return 0, &CodecError{Message: fmt.Sprintf("value %s out of range for scale %d", dec, scale)}
	}

	return bi.Int64(), nil
}

func twosComplement(v *big.Int, size int) ([]byte, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(size*8-1))

	if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, &CodecError{Message: fmt.Sprintf("value %s out of %d-byte integer range", v, size)}
	}

	u := new(big.Int).Set(v)

	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}

	return u.FillBytes(make([]byte, size)), nil
}
