package abi

import (
	"math"
	"testing"
)

func TestCoerceToInt32(t *testing.T) {
	tests := []struct {
		input  any
		name   string
		want   int32
		wantOK bool
	}{
		{int32(-5), "int32", -5, true},
		{int8(-1), "int8", -1, true},
		{uint16(65535), "uint16", 65535, true},
		{float64(42), "float64 integral", 42, true},
		{float64(3.5), "float64 fractional", 0, false},
		{float64(math.MaxInt32 + 1), "float64 too large", 0, false},
		{int(math.MinInt32), "int min", math.MinInt32, true},
		{int64(math.MaxInt32 + 1), "int64 too large", 0, false},
		{uint32(math.MaxInt32 + 1), "uint32 too large", 0, false},
		{"7", "string", 0, false},
		{nil, "nil", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceToInt32(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceToInt32(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCoerceToUint16(t *testing.T) {
	tests := []struct {
		input  any
		want   uint16
		wantOK bool
	}{
		{0, 0, true},
		{65535, 65535, true},
		{65536, 0, false},
		{-1, 0, false},
		{float32(12), 12, true},
	}
	for _, tt := range tests {
		got, ok := CoerceToUint16(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("CoerceToUint16(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
