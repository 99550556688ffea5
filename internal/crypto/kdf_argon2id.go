package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the per-user salt length generated by NewSalt. Derive accepts
// any stored salt within [MinSaltSize, MaxSaltSize] so parameters can be
// tuned over time without breaking existing accounts.
const (
	SaltSize    = 32
	MinSaltSize = 16
	MaxSaltSize = 64
)

// KDFParams is the tunable Argon2id work factor, persisted in plaintext next
// to the salt. Old accounts keep old parameters until their password changes.
type KDFParams struct {
	Memory      uint32 `json:"m" bson:"m"` // KiB
	Time        uint32 `json:"t" bson:"t"` // iterations
	Parallelism uint8  `json:"p" bson:"p"`
}

// DefaultParams targets a few hundred milliseconds on commodity hardware
// while staying expensive for offline brute force.
func DefaultParams() KDFParams {
	return KDFParams{Memory: 64 * 1024, Time: 3, Parallelism: 4}
}

const (
	minMemory = 8 * 1024        // 8 MiB
	maxMemory = 4 * 1024 * 1024 // 4 GiB
	minTime   = 1
	maxTime   = 16
	maxPar    = 16
)

func (p KDFParams) validate() error {
	switch {
	case p.Memory < minMemory || p.Memory > maxMemory:
		return fmt.Errorf("%w: kdf memory %d KiB out of bounds", ErrValidation, p.Memory)
	case p.Time < minTime || p.Time > maxTime:
		return fmt.Errorf("%w: kdf time %d out of bounds", ErrValidation, p.Time)
	case p.Parallelism < 1 || p.Parallelism > maxPar:
		return fmt.Errorf("%w: kdf parallelism %d out of bounds", ErrValidation, p.Parallelism)
	default:
		return nil
	}
}

// Derive turns a password and salt into the 32-byte master key. Deterministic:
// the same three inputs always yield the same key, which is what makes trial
// decryption work as password verification. Intentionally CPU- and
// memory-bound; keep it off latency-sensitive paths.
func Derive(password, salt []byte, p KDFParams) ([]byte, error) {
	if len(salt) < MinSaltSize || len(salt) > MaxSaltSize {
		return nil, fmt.Errorf("%w: salt must be %d..%d bytes", ErrValidation, MinSaltSize, MaxSaltSize)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Parallelism, KeySize), nil
}

// NewSalt returns a fresh random per-user salt.
func NewSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}
