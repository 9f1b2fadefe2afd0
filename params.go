package firebird

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const blrEoc = 76

// Query parameters travel as a BLR message description plus the packed
// values. The BLR body is little-endian; the value bytes are big-endian
// like every other wire field, each padded to a four-byte boundary, with a
// null bitmap in front.

type paramValue struct {
	blr  []byte
	data []byte
	null bool
}

func encodeParam(arg any) (paramValue, error) {
	switch v := arg.(type) {
	case nil:
		return paramValue{blr: blrTextOf(1), data: pad4([]byte{0}), null: true}, nil

	case string:
		return textParam([]byte(v)), nil

	case []byte:
		return textParam(v), nil

	case int:
		return int64Param(int64(v)), nil

	case int16:
		return int64Param(int64(v)), nil

	case int32:
		return int64Param(int64(v)), nil

	case int64:
		return int64Param(v), nil

	case float32:
		data := binary.BigEndian.AppendUint32(nil, math.Float32bits(v))

		return paramValue{blr: []byte{blrFloat}, data: data}, nil

	case float64:
		data := binary.BigEndian.AppendUint64(nil, math.Float64bits(v))

		return paramValue{blr: []byte{blrDouble}, data: data}, nil

	case bool:
		data := []byte{0}

		if v {
			data[0] = 1
		}

		return paramValue{blr: []byte{blrBool}, data: pad4(data)}, nil

	case time.Time:
		data := binary.BigEndian.AppendUint32(nil, uint32(encodeDateNum(v)))
		data = binary.BigEndian.AppendUint32(data, encodeTimeUnits(v))

		return paramValue{blr: []byte{blrTimestamp}, data: data}, nil

	case decimal.Decimal:
		// Exact numerics go over as text; the server casts against the
		// parameter's declared type without losing digits.
		return textParam([]byte(v.String())), nil

	case Value:
		if v.IsNull() {
			return encodeParam(nil)
		}

		return encodeParam(v.Native())

	default:
		return paramValue{}, &CodecError{Message: fmt.Sprintf("unsupported parameter type %T", arg)}
	}
}

func textParam(b []byte) paramValue {
	return paramValue{blr: blrTextOf(len(b)), data: pad4(b)}
}

func int64Param(v int64) paramValue {
	return paramValue{
		blr:  []byte{blrInt64, 0},
		data: binary.BigEndian.AppendUint64(nil, uint64(v)),
	}
}

func blrTextOf(n int) []byte {
	return []byte{blrText, byte(n), byte(n >> 8)}
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}

	return b
}

// paramsToBlr builds the BLR describing the parameter message and the
// packed value bytes for an execute request.
func paramsToBlr(args []any) (blr, values []byte, err error) {
	params := make([]paramValue, len(args))

	for i, arg := range args {
		params[i], err = encodeParam(arg)

		if err != nil {
			return nil, nil, err
		}
	}

	count := len(args) * 2

	blr = []byte{blrVersion5, blrBegin, blrMessage, 0, byte(count), byte(count >> 8)}

	for _, p := range params {
		blr = append(blr, p.blr...)
		blr = append(blr, blrShort, 0) // null indicator
	}

	blr = append(blr, blrEnd, blrEoc)

	// Null bitmap, then the values of non-null parameters only.
	bitmap := make([]byte, (len(args)+7)/8)

	for i, p := range params {
		if p.null {
			bitmap[i/8] |= 1 << (i % 8)
		}
	}

	values = pad4(bitmap)

	for _, p := range params {
		if !p.null {
			values = append(values, p.data...)
		}
	}

	return blr, values, nil
}
