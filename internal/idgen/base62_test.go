package idgen

import (
	"errors"
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{"zero", 0, "0"},
		{"negative", -5, "0"},
		{"one", 1, "1"},
		{"ten", 10, "A"},
		{"36", 36, "a"},
		{"61", 61, "z"},
		{"62", 62, "10"},
		{"3844", 3844, "100"},
		{"medium number", 1234567890, "1LY7VK"},
		{"large number", 9876543210, "AmOy42"},
		{"max int64", math.MaxInt64, "AzL8n0Y58m7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Encode(tt.input); result != tt.expected {
				t.Errorf("Encode(%d) = %s; want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		hasError bool
	}{
		{"zero", "0", 0, false},
		{"ten", "A", 10, false},
		{"lowercase z", "z", 61, false},
		{"medium", "1LY7VK", 1234567890, false},
		{"max int64", "AzL8n0Y58m7", math.MaxInt64, false},
		{"empty string", "", 0, true},
		{"invalid character !", "abc!", 0, true},
		{"invalid character -", "ab-c", 0, true},
		{"invalid character space", "ab c", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.input)

			if tt.hasError {
				if err == nil {
					t.Errorf("Decode(%s) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Decode(%s) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("Decode(%s) = %d; want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDecodeOverflow(t *testing.T) {
	_, err := Decode("zzzzzzzzzzzz")
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, num := range []int64{1, 61, 62, 63, 100000, math.MaxInt32, int64(math.MaxInt32) + 1, 1000000000000} {
		decoded, err := Decode(Encode(num))
		if err != nil {
			t.Errorf("Decode error for %d: %v", num, err)
		}
		if decoded != num {
			t.Errorf("Round trip failed: %d -> %d", num, decoded)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(1234567890)
	}
}

func BenchmarkDecode(b *testing.B) {
	encoded := Encode(1234567890)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decode(encoded)
	}
}
