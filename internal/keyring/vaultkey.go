// Package keyring implements the key hierarchy: a password-derived master key
// wraps per-vault keys, private key-exchange keys, and the recovery escape
// hatch. Only ciphertext leaves this package; plaintext keys are returned to
// the immediate caller and are the caller's responsibility to zero.
package keyring

import (
	"zkvault/internal/crypto"
)

// AAD context strings keep the ciphertext classes distinct: a wrapped vault
// key can never be opened as a sealed private key, a secret, or a recovery
// wrap, even under the same master key.
const (
	aadVaultKey   = "zkvault/vault-key"
	aadSharedKey  = "zkvault/shared-vault-key"
	aadPrivateKey = "zkvault/private-key"
	aadRecovery   = "zkvault/recovery"
	aadSecret     = "zkvault/secret:"
)

// NewVaultKey generates a fresh 32-byte vault key and wraps it under the
// master key. The vault key is generated exactly once per vault and is
// immutable for the vault's lifetime.
func NewVaultKey(master []byte) (vaultKey []byte, wrapped crypto.Envelope, err error) {
	vaultKey, err = crypto.NewKey()
	if err != nil {
		return nil, crypto.Envelope{}, err
	}
	wrapped, err = crypto.Seal(master, vaultKey, []byte(aadVaultKey))
	if err != nil {
		crypto.Zero(vaultKey)
		return nil, crypto.Envelope{}, err
	}
	return vaultKey, wrapped, nil
}

// WrapVaultKey seals an existing vault key under a (new) master key. Used
// when a password change re-roots the hierarchy; the vault key itself never
// changes.
func WrapVaultKey(vaultKey, master []byte) (crypto.Envelope, error) {
	return crypto.Seal(master, vaultKey, []byte(aadVaultKey))
}

// UnwrapVaultKey reverses NewVaultKey. A wrong master key fails with
// crypto.ErrAuthentication, which is also how a wrong password shows up on
// this call path.
func UnwrapVaultKey(wrapped crypto.Envelope, master []byte) ([]byte, error) {
	return crypto.Open(master, wrapped, []byte(aadVaultKey))
}

// EncryptSecret seals a secret value under a vault key, bound to the secret's
// name so envelopes cannot be swapped between secrets.
func EncryptSecret(value, vaultKey []byte, name string) (crypto.Envelope, error) {
	return crypto.Seal(vaultKey, value, []byte(aadSecret+name))
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(env crypto.Envelope, vaultKey []byte, name string) ([]byte, error) {
	return crypto.Open(vaultKey, env, []byte(aadSecret+name))
}
