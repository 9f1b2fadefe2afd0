package firebird

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEncodeFloat32BigEndian(t *testing.T) {
	d := &ColumnDescriptor{TypeCode: sqlTypeFloat}

	raw, err := encodeValue(Float32Value(3.14), d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	expected := []byte{0x40, 0x48, 0xF5, 0xC3}

	if !bytes.Equal(raw, expected) {
		t.Fatalf("Expected %x, got %x", expected, raw)
	}

	v, err := decodeValue(raw, d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	f, err := v.Float32()

	if err != nil {
		t.Fatal(err)
	}

	if f != 3.14 {
		t.Fatalf("Expected 3.14 back, got %v", f)
	}
}

func TestTimeUnitConversion(t *testing.T) {
	if units := nanosToTimeUnits(123_400_000); units != 1234 {
		t.Fatalf("Expected 1234 units, got %d", units)
	}

	if ns := timeUnitsToNanos(1234); ns != 123_400_000 {
		t.Fatalf("Expected 123400000 ns, got %d", ns)
	}

	moment := time.Date(0, time.January, 1, 13, 45, 30, 123_400_000, time.UTC)

	units := encodeTimeUnits(moment)

	h, m, s, ns := decodeTimeUnits(units)

	if h != 13 || m != 45 || s != 30 || ns != 123_400_000 {
		t.Fatalf("Round trip produced %02d:%02d:%02d.%09d", h, m, s, ns)
	}

	// Multiplying the nanosecond count instead of dividing lands far
	// outside a day's range of units and no longer fits the wire's
	// 32-bit field.
	dayUnits := int64(24 * 3600 * timeUnitsPerSecond)

	inverted := int64(123_400_000) * nsPerTimeUnit

	if inverted < dayUnits {
		t.Fatalf("Expected the inverted conversion to leave the day range, got %d", inverted)
	}

	if int64(uint32(inverted)) == inverted {
		t.Fatal("Expected the inverted value to overflow the 32-bit field")
	}

	if units := nanosToTimeUnits(123_400_000); units >= dayUnits {
		t.Fatalf("Expected the divide-down direction to stay in range, got %d", units)
	}
}

func TestSmallintFourByteField(t *testing.T) {
	d := &ColumnDescriptor{TypeCode: sqlTypeShort}

	v, err := decodeValue([]byte{0xFF, 0xFF, 0xFF, 0xFE}, d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	n, err := v.Int16()

	if err != nil {
		t.Fatal(err)
	}

	if n != -2 {
		t.Fatalf("Expected -2, got %d", n)
	}

	// A two-byte field is malformed even though the column is 16 bits wide.
	if _, err := decodeValue([]byte{0xFF, 0xFE}, d, protocolVersion13); err == nil {
		t.Fatal("Expected error for short field but got nil")
	}

	raw, err := encodeValue(Int16Value(-2), d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	if len(raw) != 4 {
		t.Fatalf("Expected a 4-byte wire field, got %d bytes", len(raw))
	}
}

func TestScaledIntegerDecoding(t *testing.T) {
	// NUMERIC(18,2) stored as BIGINT with scale -2.
	d := &ColumnDescriptor{TypeCode: sqlTypeInt64, Scale: -2}

	raw := []byte{0, 0, 0, 0, 0, 0, 0x30, 0x39} // 12345

	v, err := decodeValue(raw, d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	dec, err := v.Decimal()

	if err != nil {
		t.Fatal(err)
	}

	if dec.String() != "123.45" {
		t.Fatalf("Expected 123.45, got %s", dec)
	}

	encoded, err := encodeValue(DecimalValue(decimal.RequireFromString("123.45")), d, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(encoded, raw) {
		t.Fatalf("Expected %x, got %x", raw, encoded)
	}

	// Digits the scale cannot carry are an error, not a truncation.
	if _, err := encodeValue(DecimalValue(decimal.RequireFromString("123.456")), d, protocolVersion13); err == nil {
		t.Fatal("Expected error for excess precision but got nil")
	}
}

func TestDateRoundTrip(t *testing.T) {
	if n := encodeDateNum(dateEpoch); n != 0 {
		t.Fatalf("Expected epoch day 0, got %d", n)
	}

	day := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	back := decodeDateNum(encodeDateNum(day))

	if !back.Equal(day) {
		t.Fatalf("Expected %v back, got %v", day, back)
	}
}

func TestInt128TwosComplement(t *testing.T) {
	v := new(big.Int).Neg(big.NewInt(1))

	raw, err := twosComplement(v, 16)

	if err != nil {
		t.Fatal(err)
	}

	for _, b := range raw {
		if b != 0xFF {
			t.Fatalf("Expected all-ones encoding for -1, got %x", raw)
		}
	}

	if back := bigFromTwosComplement(raw); back.Cmp(v) != 0 {
		t.Fatalf("Expected -1 back, got %s", back)
	}

	// 2^127 does not fit.
	if _, err := twosComplement(new(big.Int).Lsh(big.NewInt(1), 127), 16); err == nil {
		t.Fatal("Expected range error but got nil")
	}
}

func TestVersionGatedTypes(t *testing.T) {
	gated := []int{sqlTypeInt128, sqlTypeDec16, sqlTypeDec34, sqlTypeTimeTZ, sqlTypeTimestampTZ}

	for _, code := range gated {
		d := &ColumnDescriptor{TypeCode: code}

		if _, err := decodeValue(make([]byte, 16), d, protocolVersion13); err == nil {
			t.Fatalf("Expected version gate error for type %d but got nil", code)
		}
	}

	d := &ColumnDescriptor{TypeCode: sqlTypeInt128}

	raw := make([]byte, 16)
	raw[15] = 7

	v, err := decodeValue(raw, d, protocolVersion16)

	if err != nil {
		t.Fatal(err)
	}

	bi, err := v.BigInt()

	if err != nil {
		t.Fatal(err)
	}

	if bi.Int64() != 7 {
		t.Fatalf("Expected 7, got %s", bi)
	}
}

func TestTimeZoneIDs(t *testing.T) {
	if offset, _ := zoneFromID(tzOffsetBase); offset != 0 {
		t.Fatalf("Expected UTC at the base identifier, got offset %d", offset)
	}

	if offset, _ := zoneFromID(tzOffsetBase + 60); offset != 60 {
		t.Fatalf("Expected +60 minutes, got %d", offset)
	}

	if offset, name := zoneFromID(65535); offset != 0 || name != "GMT" {
		t.Fatalf("Expected GMT, got %d/%q", offset, name)
	}
}

func TestTimestampTZDecode(t *testing.T) {
	d := &ColumnDescriptor{TypeCode: sqlTypeTimestampTZ}

	moment := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	raw, err := encodeValue(TimestampTZValue(moment, 120, ""), d, protocolVersion16)

	if err != nil {
		t.Fatal(err)
	}

	if len(raw) != 10 {
		t.Fatalf("Expected 10 wire bytes, got %d", len(raw))
	}

	v, err := decodeValue(raw, d, protocolVersion16)

	if err != nil {
		t.Fatal(err)
	}

	offset, _, err := v.Zone()

	if err != nil {
		t.Fatal(err)
	}

	if offset != 120 {
		t.Fatalf("Expected offset 120 minutes, got %d", offset)
	}

	back, err := v.Time()

	if err != nil {
		t.Fatal(err)
	}

	if !back.Equal(moment) {
		t.Fatalf("Expected the same instant, got %v", back)
	}
}

func TestNarrowingFailures(t *testing.T) {
	if _, err := Int32Value(70000).Int16(); err == nil {
		t.Fatal("Expected narrowing error but got nil")
	}

	if _, err := Int64Value(1 << 40).Int32(); err == nil {
		t.Fatal("Expected narrowing error but got nil")
	}

	big127 := new(big.Int).Lsh(big.NewInt(1), 100)

	if _, err := Int128Value(big127).Int64(); err == nil {
		t.Fatal("Expected narrowing error but got nil")
	}

	if _, err := DecimalValue(decimal.RequireFromString("1.5")).Int64(); err == nil {
		t.Fatal("Expected fractional-part error but got nil")
	}
}
