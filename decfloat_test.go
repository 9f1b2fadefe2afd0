package firebird

import "testing"

func TestDecodeDeclet(t *testing.T) {
	cases := []struct {
		declet uint16
		value  int
	}{
		{0, 0},
		{5, 5},
		{0x2A3, 523},    // all digits small
		{8, 8},          // large trailing digit
		{9, 9},
		{0x0A3, 123},
	}

	for _, c := range cases {
		if got := decodeDeclet(c.declet); got != c.value {
			t.Fatalf("declet %#x: expected %d, got %d", c.declet, c.value, got)
		}
	}
}

func TestDecodeDecFloat16One(t *testing.T) {
	// decimal64 encoding of 1: sign 0, combination 01000, exponent
	// continuation 0x8E (biased exponent 398), trailing declets ...001.
	u := uint64(8)<<58 | uint64(0x8E)<<50 | 1

	raw := make([]byte, 8)

	for i := 7; i >= 0; i-- {
		raw[i] = byte(u)
		u >>= 8
	}

	dec, err := decodeDecFloat16(raw)

	if err != nil {
		t.Fatal(err)
	}

	if dec.String() != "1" {
		t.Fatalf("Expected 1, got %s", dec)
	}
}

func TestDecodeDecFloatSpecials(t *testing.T) {
	// Combination 11110 is infinity.
	raw := make([]byte, 8)
	raw[0] = 0x1E << 2

	if _, err := decodeDecFloat16(raw); err == nil {
		t.Fatal("Expected error for infinity but got nil")
	}

	if _, err := decodeDecFloat16(make([]byte, 4)); err == nil {
		t.Fatal("Expected error for truncated field but got nil")
	}

	if _, err := decodeDecFloat34(make([]byte, 8)); err == nil {
		t.Fatal("Expected error for truncated field but got nil")
	}
}

func TestDecodeDecFloat34One(t *testing.T) {
	// decimal128 encoding of 1: combination 01000 with the 6176 bias in the
	// 12 continuation bits (0x820 after removing the two bits carried by the
	// combination field), coefficient ...001.
	hi := uint64(8)<<58 | uint64(0x820)<<46

	raw := make([]byte, 16)

	for i := 7; i >= 0; i-- {
		raw[i] = byte(hi)
		hi >>= 8
	}

	raw[15] = 1

	dec, err := decodeDecFloat34(raw)

	if err != nil {
		t.Fatal(err)
	}

	if dec.String() != "1" {
		t.Fatalf("Expected 1, got %s", dec)
	}
}
