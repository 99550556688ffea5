package keyring

import (
	"fmt"

	"zkvault/internal/crypto"
)

// WrapVaultKeyForUser re-wraps a vault key for a specific recipient: the
// pairwise key derived from (senderPrivate, recipientPublic) seals the vault
// key without it ever touching the server in plaintext.
func WrapVaultKeyForUser(vaultKey, senderPrivate, recipientPublic []byte) (crypto.Envelope, error) {
	shared, err := crypto.SharedKey(senderPrivate, recipientPublic)
	if err != nil {
		return crypto.Envelope{}, err
	}
	defer crypto.Zero(shared)
	return crypto.Seal(shared, vaultKey, []byte(aadSharedKey))
}

// UnwrapSharedVaultKey derives the same pairwise key from the recipient's
// side and opens the wrap. Any mismatched pair fails with
// crypto.ErrAuthentication, never with wrong plaintext.
func UnwrapSharedVaultKey(env crypto.Envelope, recipientPrivate, senderPublic []byte) ([]byte, error) {
	shared, err := crypto.SharedKey(recipientPrivate, senderPublic)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(shared)
	return crypto.Open(shared, env, []byte(aadSharedKey))
}

// WrappedVaultKey is the tagged variant of the two wrap shapes: Direct for
// the vault creator (sealed under their master key), Shared for everyone else
// (sealed under a pairwise key, carrying the sender's public key so the
// recipient can re-derive it).
type WrappedVaultKey struct {
	Direct *crypto.Envelope `json:"direct,omitempty" bson:"direct,omitempty"`
	Shared *SharedWrap      `json:"shared,omitempty" bson:"shared,omitempty"`
}

// SharedWrap is a shared vault-key wrap plus the sender's public key.
type SharedWrap struct {
	Envelope        crypto.Envelope `json:"env" bson:"env"`
	SenderPublicKey []byte          `json:"sender_pub" bson:"sender_pub"`
}

// Validate ensures exactly one variant is set and well-formed.
func (w WrappedVaultKey) Validate() error {
	switch {
	case w.Direct != nil && w.Shared != nil:
		return fmt.Errorf("%w: wrapped vault key has both variants", crypto.ErrValidation)
	case w.Direct != nil:
		return w.Direct.Validate()
	case w.Shared != nil:
		if len(w.Shared.SenderPublicKey) != 32 {
			return fmt.Errorf("%w: sender public key must be 32 bytes", crypto.ErrValidation)
		}
		return w.Shared.Envelope.Validate()
	default:
		return fmt.Errorf("%w: wrapped vault key has no variant", crypto.ErrValidation)
	}
}

// Unwrap opens whichever variant is present. Direct wraps need the owner's
// master key; shared wraps need the recipient's private key.
func (w WrappedVaultKey) Unwrap(master, recipientPrivate []byte) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.Direct != nil {
		return UnwrapVaultKey(*w.Direct, master)
	}
	return UnwrapSharedVaultKey(w.Shared.Envelope, recipientPrivate, w.Shared.SenderPublicKey)
}

// DirectWrap and SharedVaultKeyWrap are the constructors callers should use
// so the two shapes are never confused.
func DirectWrap(env crypto.Envelope) WrappedVaultKey {
	return WrappedVaultKey{Direct: &env}
}

func SharedVaultKeyWrap(env crypto.Envelope, senderPublic []byte) WrappedVaultKey {
	pub := append([]byte(nil), senderPublic...)
	return WrappedVaultKey{Shared: &SharedWrap{Envelope: env, SenderPublicKey: pub}}
}
