// Package otpcode generates one-time passcodes and reset tokens from a
// cryptographically secure random source.
package otpcode

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// Generator produces one-time passcodes and opaque reset tokens.
type Generator interface {
	// Code returns a fixed-length numeric passcode.
	Code() (string, error)
	// Token returns an opaque single-use token with at least 128 bits of
	// entropy.
	Token() (string, error)
}

// digits is the character set used for passcode generation.
const digits = "0123456789"

// tokenBytes is the number of random bytes backing a reset token.
//
// 32 bytes gives 256 bits of entropy, hex-encoded to 64 characters.
const tokenBytes = 32

// Numeric generates fixed-length numeric passcodes using crypto/rand.
//
// Every digit is selected uniformly at random, so leading zeros are as
// likely as any other digit and the code must be treated as a string.
type Numeric struct {
	length int
}

// NewNumeric returns a Numeric generator producing codes of the given length.
func NewNumeric(length int) *Numeric {
	return &Numeric{length: length}
}

// Code produces a numeric passcode of the configured length.
func (n *Numeric) Code() (string, error) {
	var sb strings.Builder
	sb.Grow(n.length)

	for i := 0; i < n.length; i++ {
		idx, err := randIntStrict(len(digits))
		if err != nil {
			return "", err
		}
		sb.WriteByte(digits[idx])
	}

	return sb.String(), nil
}

// Token produces a hex-encoded random token.
func (n *Numeric) Token() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func randIntStrict(max int) (int, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(num.Int64()), nil
}
