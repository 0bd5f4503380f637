package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

// Argon2id hashes credentials with Argon2id and encodes the result in the
// PHC string format ($argon2id$v=..$m=..,t=..,p=..$salt$key), so the
// parameters travel with the digest and can be tightened later without
// invalidating stored hashes.
type Argon2id struct {
	params argon2Params
	pepper string
}

// NewArgon2id returns an Argon2id hasher (32 MiB memory, 3 passes, 2 lanes).
func NewArgon2id(pepper string) *Argon2id {
	return &Argon2id{
		params: argon2Params{
			memory:      32 * 1024,
			iterations:  3,
			parallelism: 2,
			saltLen:     16,
			keyLen:      32,
		},
		pepper: pepper,
	}
}

// Hash derives a digest of the peppered plaintext under a fresh random salt.
func (a *Argon2id) Hash(plaintext string) ([]byte, error) {
	salt := make([]byte, a.params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plaintext+a.pepper),
		salt,
		a.params.iterations,
		a.params.memory,
		a.params.parallelism,
		a.params.keyLen,
	)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.memory,
		a.params.iterations,
		a.params.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return []byte(encoded), nil
}

// Verify recomputes the digest with the parameters embedded in the stored
// value and compares in constant time.
func (a *Argon2id) Verify(hashed, plaintext string) bool {
	if hashed == "" || plaintext == "" {
		return false
	}

	params, salt, want, ok := decodeArgon2(hashed)
	if !ok {
		return false
	}

	got := argon2.IDKey(
		[]byte(plaintext+a.pepper),
		salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(want)),
	)

	return subtle.ConstantTimeCompare(want, got) == 1
}

func decodeArgon2(encoded string) (argon2Params, []byte, []byte, bool) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, false
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, false
	}

	return p, salt, key, true
}
