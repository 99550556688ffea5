package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Seal encrypts plaintext under a 32-byte key with ChaCha20-Poly1305 and a
// fresh random 96-bit nonce. The optional aad binds the ciphertext to its
// context (e.g. "vault-key", "secret:NAME") so envelopes of one class can
// never be opened as another.
func Seal(key, plaintext, aad []byte) (Envelope, error) {
	if len(key) != KeySize {
		return Envelope{}, fmt.Errorf("%w: key must be %d bytes", ErrValidation, KeySize)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Envelope{}, err
	}
	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return Envelope{}, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, aad)
	// Seal appends the 16-byte tag; keep it as a separate envelope field.
	split := len(sealed) - TagSize
	return Envelope{
		Algorithm:  AlgChaCha20Poly1305,
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Open authenticates and decrypts an envelope produced by Seal. It fails
// closed: any corruption of nonce, ciphertext, or tag, a wrong key, or a
// mismatched aad yields ErrAuthentication and no plaintext.
func Open(key []byte, env Envelope, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrValidation, KeySize)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	pt, err := aead.Open(nil, env.Nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}
