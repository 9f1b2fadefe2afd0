package firebird

import (
	"encoding/binary"
	"math/big"

	"github.com/shopspring/decimal"
)

// DECFLOAT columns arrive as IEEE 754-2008 decimal64 / decimal128 with the
// coefficient in densely packed decimal.

const (
	dec16Bias = 398
	dec34Bias = 6176
)

// decodeDeclet expands one 10-bit DPD group to its three decimal digits.
func decodeDeclet(d uint16) int {
	b := func(i uint) int {
		return int(d>>i) & 1
	}

	// Indicator bits b3, b2, b1 select the layout; b6 b5 disambiguate the
	// all-large cases.
	switch {
	case b(3) == 0:
		return (b(9)<<2|b(8)<<1|b(7))*100 + (b(6)<<2|b(5)<<1|b(4))*10 + (b(2)<<2 | b(1)<<1 | b(0))
	case b(2) == 0 && b(1) == 0:
		return (b(9)<<2|b(8)<<1|b(7))*100 + (b(6)<<2|b(5)<<1|b(4))*10 + (8 + b(0))
	case b(2) == 0 && b(1) == 1:
		return (b(9)<<2|b(8)<<1|b(7))*100 + (8+b(4))*10 + (b(6)<<2 | b(5)<<1 | b(0))
	case b(2) == 1 && b(1) == 0:
		return (8+b(7))*100 + (b(6)<<2|b(5)<<1|b(4))*10 + (b(9)<<2 | b(8)<<1 | b(0))
	case b(6) == 1 && b(5) == 0:
		return (8+b(7))*100 + (8+b(4))*10 + (b(9)<<2 | b(8)<<1 | b(0))
	case b(6) == 0 && b(5) == 1:
		return (8+b(7))*100 + (b(9)<<2|b(8)<<1|b(4))*10 + (8 + b(0))
	case b(6) == 0 && b(5) == 0:
		return (b(9)<<2|b(8)<<1|b(7))*100 + (8+b(4))*10 + (8 + b(0))
	default:
		return (8+b(7))*100 + (8+b(4))*10 + (8 + b(0))
	}
}

// decodeCombination splits the 5-bit combination field into the leading
// coefficient digit and the two high exponent bits. special is true for
// infinities and NaNs, which have no decimal representation.
func decodeCombination(comb uint8) (msd, expHigh int, special bool) {
	if comb>>3 != 0x3 {
		return int(comb & 0x7), int(comb >> 3), false
	}

	if comb == 0x1E || comb == 0x1F {
		return 0, 0, true
	}

	return 8 + int(comb&1), int(comb>>1) & 0x3, false
}

func decodeDecFloat16(raw []byte) (decimal.Decimal, error) {
	if len(raw) != 8 {
		return decimal.Decimal{}, &CodecError{Message: "DECFLOAT(16) field must be 8 bytes"}
	}

	u := binary.BigEndian.Uint64(raw)

	msd, expHigh, special := decodeCombination(uint8(u >> 58 & 0x1F))

	if special {
		return decimal.Decimal{}, &CodecError{Message: "DECFLOAT(16) value is not finite"}
	}

	exp := expHigh<<8 | int(u>>50&0xFF)

	coef := big.NewInt(int64(msd))

	for shift := 40; shift >= 0; shift -= 10 {
		coef.Mul(coef, big.NewInt(1000))
		coef.Add(coef, big.NewInt(int64(decodeDeclet(uint16(u>>shift&0x3FF)))))
	}

	if u>>63 != 0 {
		coef.Neg(coef)
	}

	return decimal.NewFromBigInt(coef, int32(exp-dec16Bias)), nil
}

func decodeDecFloat34(raw []byte) (decimal.Decimal, error) {
	if len(raw) != 16 {
		return decimal.Decimal{}, &CodecError{Message: "DECFLOAT(34) field must be 16 bytes"}
	}

	hi := binary.BigEndian.Uint64(raw[:8])
	lo := binary.BigEndian.Uint64(raw[8:])

	msd, expHigh, special := decodeCombination(uint8(hi >> 58 & 0x1F))

	if special {
		return decimal.Decimal{}, &CodecError{Message: "DECFLOAT(34) value is not finite"}
	}

	exp := expHigh<<12 | int(hi>>46&0xFFF)

	// 110 coefficient continuation bits: 46 in the high word, 64 in the low.
	bits := new(big.Int).Lsh(new(big.Int).SetUint64(hi&(1<<46-1)), 64)
	bits.Or(bits, new(big.Int).SetUint64(lo))

	coef := big.NewInt(int64(msd))
	mask := big.NewInt(0x3FF)

	for shift := 100; shift >= 0; shift -= 10 {
		declet := new(big.Int).Rsh(bits, uint(shift))
		declet.And(declet, mask)

		coef.Mul(coef, big.NewInt(1000))
		coef.Add(coef, big.NewInt(int64(decodeDeclet(uint16(declet.Uint64())))))
	}

	if hi>>63 != 0 {
		coef.Neg(coef)
	}

	return decimal.NewFromBigInt(coef, int32(exp-dec34Bias)), nil
}
