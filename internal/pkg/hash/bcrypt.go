package hash

import (
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes credentials with bcrypt. A configured pepper is mixed into
// the plaintext before hashing so leaked database rows alone are not enough
// to mount an offline attack.
type Bcrypt struct {
	cost   int
	pepper string
}

// NewBcrypt returns a bcrypt hasher with the given work factor. A cost of 0
// falls through to bcrypt.DefaultCost inside the library.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	return &Bcrypt{cost: cost, pepper: pepper}
}

// Hash derives a bcrypt digest of the peppered plaintext.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext+h.pepper), h.cost)
}

// Verify reports whether plaintext produces the stored digest.
func (h *Bcrypt) Verify(hashed, plaintext string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext+h.pepper))
	return err == nil
}
