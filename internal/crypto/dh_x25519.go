package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// shareContext domain-separates shared keys from every other use of the raw
// exchange output. Bump the suffix if the derivation ever changes.
const shareContext = "zkvault/share/v1"

// KeyPair is an X25519 key-exchange identity. The public half is safe to
// publish; the private half must be sealed under a master key before it
// leaves memory.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// GenerateKeyPair produces a fresh X25519 key pair as raw 32-byte values.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Public:  priv.PublicKey().Bytes(),
		Private: priv.Bytes(),
	}, nil
}

// SharedKey derives the pairwise 32-byte key for (myPrivate, theirPublic):
// X25519 followed by HKDF-SHA256 under a fixed context string, so the result
// is uniform even though the raw exchange output is not. Symmetry holds:
// SharedKey(a.Private, b.Public) == SharedKey(b.Private, a.Public).
func SharedKey(myPrivate, theirPublic []byte) ([]byte, error) {
	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(myPrivate)
	if err != nil {
		return nil, fmt.Errorf("%w: bad private key: %v", ErrValidation, err)
	}
	pub, err := curve.NewPublicKey(theirPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: bad public key: %v", ErrValidation, err)
	}
	raw, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	defer Zero(raw)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, raw, nil, []byte(shareContext)), key); err != nil {
		return nil, err
	}
	return key, nil
}
