// Package api holds the wire types shared by the HTTP server and client.
// Everything binary travels base64-encoded inside JSON; nothing in here can
// carry a plaintext key or secret value.
package api

import (
	"time"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
)

// SignupRequest carries a complete client-built enrollment. LoginKey is the
// one-way credential derived from the master key; the server argon2id-hashes
// it and never sees the password itself.
type SignupRequest struct {
	Username       string           `json:"username"`
	LoginKey       string           `json:"login_key"`
	Salt           []byte           `json:"salt"`
	KDF            crypto.KDFParams `json:"kdf"`
	PublicKey      []byte           `json:"public_key"`
	PrivateKeyWrap crypto.Envelope  `json:"private_key_wrap"`
	RecoveryWrap   crypto.Envelope  `json:"recovery_wrap"`
}

type PreloginRequest struct {
	Username string `json:"username"`
}

// PreloginResponse gives a client what it needs to derive the master key
// before it can authenticate: the KDF inputs, plus the recovery wrap so a
// recovery-key holder can reach the master without the password.
type PreloginResponse struct {
	Salt         []byte           `json:"salt"`
	KDF          crypto.KDFParams `json:"kdf"`
	RecoveryWrap crypto.Envelope  `json:"recovery_wrap"`
}

type LoginRequest struct {
	Username string `json:"username"`
	LoginKey string `json:"login_key"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MeResponse is the caller's full ciphertext-only credential record.
type MeResponse struct {
	Username       string           `json:"username"`
	Salt           []byte           `json:"salt"`
	KDF            crypto.KDFParams `json:"kdf"`
	PublicKey      []byte           `json:"public_key"`
	PrivateKeyWrap crypto.Envelope  `json:"private_key_wrap"`
	RecoveryWrap   crypto.Envelope  `json:"recovery_wrap"`
}

type PublicKeyResponse struct {
	Username  string `json:"username"`
	PublicKey []byte `json:"public_key"`
}

// UpdateCredentialsRequest replaces the caller's credential material in one
// request: password change and recovery both end here. VaultKeys carries the
// re-wrapped direct vault-key records. The server validates every entry
// before writing and stores the record and keys in a single batch, so a
// rejected or failed request leaves the old credentials fully usable.
type UpdateCredentialsRequest struct {
	LoginKey       string           `json:"login_key"`
	Salt           []byte           `json:"salt"`
	KDF            crypto.KDFParams `json:"kdf"`
	PrivateKeyWrap crypto.Envelope  `json:"private_key_wrap"`
	RecoveryWrap   crypto.Envelope  `json:"recovery_wrap"`
	VaultKeys      []VaultKeyGrant  `json:"vault_keys,omitempty"`
}

type CreateVaultRequest struct {
	Name    string                  `json:"name"`
	Wrapped keyring.WrappedVaultKey `json:"wrapped"`
}

type VaultResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// VaultKeyGrant is one member's wrapped copy of a vault key.
type VaultKeyGrant struct {
	VaultID  string                  `json:"vault_id"`
	Username string                  `json:"username"`
	Wrapped  keyring.WrappedVaultKey `json:"wrapped"`
}

// PutSecretRequest writes one version. Version must be exactly one past the
// current version (1 for a new secret) or the server answers 409.
type PutSecretRequest struct {
	Version  int             `json:"version"`
	Envelope crypto.Envelope `json:"envelope"`
}

type SecretResponse struct {
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Envelope  crypto.Envelope `json:"envelope"`
	UpdatedBy string          `json:"updated_by"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type SecretVersionResponse struct {
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Envelope  crypto.Envelope `json:"envelope"`
	Author    string          `json:"author"`
	CreatedAt time.Time       `json:"created_at"`
}
