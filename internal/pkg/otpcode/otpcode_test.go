package otpcode

import (
	"strings"
	"testing"
)

func TestCodeLengthAndCharset(t *testing.T) {
	gen := NewNumeric(6)

	for i := 0; i < 100; i++ {
		code, err := gen.Code()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(digits, c) {
				t.Fatalf("code %q contains non-digit %q", code, c)
			}
		}
	}
}

func TestCodeKeepsLeadingZeros(t *testing.T) {
	gen := NewNumeric(1)

	// With single-digit codes a zero must show up as "0", not "".
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		code, err := gen.Code()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != 1 {
			t.Fatalf("expected single character, got %q", code)
		}
		seen[code] = true
	}
	if !seen["0"] {
		t.Fatalf("expected at least one zero across 500 single-digit draws")
	}
}

func TestTokenLengthAndUniqueness(t *testing.T) {
	gen := NewNumeric(6)

	a, err := gen.Token()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	b, err := gen.Token()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
	if a == b {
		t.Fatalf("two generated tokens collided")
	}
}
