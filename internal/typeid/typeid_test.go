package typeid

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{"A", "AB", "SYNP", "X9", "Z000", "1234"}
	for _, tag := range cases {
		t.Run(tag, func(t *testing.T) {
			id, err := Encode(tag)
			if err != nil {
				t.Fatalf("Encode(%q) error: %v", tag, err)
			}
			if got := Decode(id); got != tag {
				t.Fatalf("Decode(Encode(%q)) = %q, want %q", tag, got, tag)
			}
			if !IsValid(id) {
				t.Fatalf("IsValid(Encode(%q)) = false, want true", tag)
			}
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		tag  string
		err  error
	}{
		{"empty", "", ErrInvalidLength},
		{"too-long", "TOOLONG", ErrInvalidLength},
		{"lowercase", "abc", ErrInvalidChar},
		{"punctuation", "A-B", ErrInvalidChar},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Encode(c.tag); !errors.Is(err, c.err) {
				t.Fatalf("Encode(%q) error = %v, want %v", c.tag, err, c.err)
			}
		})
	}
}

func TestIsValidRejectsGap(t *testing.T) {
	// 'A' in byte0, zero in byte1, 'B' in byte2: a gap after the zero byte.
	id := ID(uint32('A') | uint32('B')<<16)
	if IsValid(id) {
		t.Fatalf("IsValid(%x) = true, want false (gap after zero byte)", uint32(id))
	}
}

func TestIsValidRejectsZero(t *testing.T) {
	if IsValid(ID(0)) {
		t.Fatalf("IsValid(0) = true, want false")
	}
}
