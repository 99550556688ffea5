package crypto

import (
	"crypto/rand"
	"crypto/subtle"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewKey returns a fresh random 32-byte symmetric key.
func NewKey() ([]byte, error) {
	return RandomBytes(KeySize)
}

// Equal compares two byte slices in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
