package hash

// Hash hashes plaintext secrets and verifies them against stored hashes.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}
