package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AlgChaCha20Poly1305 is the only cipher currently produced by Seal. The
// algorithm tag makes envelopes self-describing so the format can grow.
const AlgChaCha20Poly1305 = "chacha20poly1305"

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSize
	TagSize   = chacha20poly1305.Overhead
)

// Envelope is the shape every encrypted value in the system takes: secret
// values, wrapped vault keys, sealed private keys, and recovery wraps.
// Byte fields are base64 text on the wire (JSON) and binary in BSON.
type Envelope struct {
	Algorithm  string `json:"alg" bson:"alg"`
	Nonce      []byte `json:"nonce" bson:"nonce"`
	Ciphertext []byte `json:"ct" bson:"ct"`
	Tag        []byte `json:"tag" bson:"tag"`
}

// Validate checks the envelope shape without touching any key material.
func (e Envelope) Validate() error {
	if e.Algorithm != AlgChaCha20Poly1305 {
		return fmt.Errorf("%w: unknown algorithm %q", ErrValidation, e.Algorithm)
	}
	if len(e.Nonce) != NonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes", ErrValidation, NonceSize)
	}
	if len(e.Tag) != TagSize {
		return fmt.Errorf("%w: tag must be %d bytes", ErrValidation, TagSize)
	}
	return nil
}
