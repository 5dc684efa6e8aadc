package services

import (
	"errors"
	"testing"

	"device-tracker/internal/models"
)

func TestIdentifierFormats(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string, int) (string, error)
		base string
		seq  int
		want string
	}{
		{"batch first", BatchID, "AB123456", 1, "AB1234560001"},
		{"batch tenth", BatchID, "AB123456", 10, "AB1234560010"},
		{"batch max", BatchID, "AB123456", 9999, "AB1234569999"},
		{"carton first", CartonID, "AB1234560001", 1, "AB1234560001-001"},
		{"carton second", CartonID, "AB1234560001", 2, "AB1234560001-002"},
		{"serial", SerialID, "ABCDEF", 1, "ABCDEF0000000001"},
		{"serial long prefix", SerialID, "ABCDEFGHIJKLMN", 42, "ABCDEFGHIJKLMN42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.base, tt.seq)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentifierOverflowIsValidationError(t *testing.T) {
	cases := map[string]func() (string, error){
		"batch overflow":        func() (string, error) { return BatchID("AB123456", 10000) },
		"batch prefix too long": func() (string, error) { return BatchID("AB1234567890", 1) },
		"carton overflow":       func() (string, error) { return CartonID("AB1234560001", 1000) },
		"serial overflow":       func() (string, error) { return SerialID("ABCDEFGHIJKLMN", 100) },
		"zero sequence":         func() (string, error) { return BatchID("AB", 0) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			id, err := fn()
			if !errors.Is(err, models.ErrValidation) {
				t.Fatalf("got (%q, %v), want a validation error", id, err)
			}
		})
	}
}

func TestSequenceOf(t *testing.T) {
	if n, err := sequenceOf("", "AB"); err != nil || n != 0 {
		t.Errorf("empty id: got (%d, %v)", n, err)
	}
	if n, err := sequenceOf("AB1234560042", "AB123456"); err != nil || n != 42 {
		t.Errorf("got (%d, %v), want 42", n, err)
	}
	if _, err := sequenceOf("XY1234560042", "AB123456"); err == nil {
		t.Error("foreign prefix accepted")
	}
}

func TestCeilDiv(t *testing.T) {
	for _, c := range [][3]int{{3, 2, 2}, {4, 2, 2}, {1, 10, 1}, {100, 10, 10}, {101, 10, 11}} {
		if got := ceilDiv(c[0], c[1]); got != c[2] {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", c[0], c[1], got, c[2])
		}
	}
}
