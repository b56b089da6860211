package render

import (
	"testing"
)

func TestUTF16Index(t *testing.T) {
	// a é 😀 b: bytes 0,1,3,7 and UTF-16 units 0,1,2,4
	text := "aé😀b"
	idx := newUTF16Index(text)

	tests := []struct {
		unit int
		want int
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{2, 3},
		{3, 3}, // inside surrogate pair
		{4, 7},
		{5, 8},
		{42, 8},
	}
	for _, tt := range tests {
		if got := idx.byteOffset(tt.unit); got != tt.want {
			t.Errorf("byteOffset(%d) = %d, want %d", tt.unit, got, tt.want)
		}
	}
}

func TestUTF16Index_ASCII(t *testing.T) {
	text := ".a{color:red}"
	idx := newUTF16Index(text)
	for i := 0; i <= len(text); i++ {
		if got := idx.byteOffset(i); got != i {
			t.Errorf("byteOffset(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestUTF16Index_Rule(t *testing.T) {
	text := `.q::before{content:"«"}.b{color:blue}`
	idx := newUTF16Index(text)

	// browser reports rule .b at UTF-16 offsets [23,37)
	start, end := idx.byteOffset(23), idx.byteOffset(37)
	if got := text[start:end]; got != ".b{color:blue}" {
		t.Errorf("rule text = %q", got)
	}
}
