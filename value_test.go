package firebird

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValueNative(t *testing.T) {
	if NullValue().Native() != nil {
		t.Fatal("Expected nil for NULL")
	}

	if v, ok := Int16Value(7).Native().(int16); !ok || v != 7 {
		t.Fatal("Expected the stored width to survive Native")
	}

	if v, ok := TextValue("x").Native().(string); !ok || v != "x" {
		t.Fatal("Expected a string for text values")
	}
}

func TestValueDecimalFloatConversion(t *testing.T) {
	v := DecimalValue(decimal.RequireFromString("123.45"))

	f, err := v.Float64()

	if err != nil {
		t.Fatal(err)
	}

	if f != 123.45 {
		t.Fatalf("Expected 123.45, got %v", f)
	}
}

func TestValueStrictTextConversion(t *testing.T) {
	// Numbers never stringify implicitly.
	if _, err := Int64Value(42).Text(); err == nil {
		t.Fatal("Expected error but got nil")
	}

	s, err := BytesValue([]byte("abc")).Text()

	if err != nil {
		t.Fatal(err)
	}

	if s != "abc" {
		t.Fatalf("Expected \"abc\", got %q", s)
	}
}

func TestValueKindNames(t *testing.T) {
	if KindInt16.String() != "SMALLINT" || KindTimestampTZ.String() != "TIMESTAMP WITH TIME ZONE" {
		t.Fatal("Unexpected kind names")
	}
}
