// Package storage is the ciphertext/metadata boundary. Every record here
// holds only envelopes, public keys, salts, KDF parameters, and version
// metadata; no implementation ever sees a plaintext key or secret value.
package storage

import (
	"context"
	"errors"
	"time"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrExists          = errors.New("storage: already exists")
	ErrVersionConflict = errors.New("storage: secret version conflict")
)

// UserRecord is everything the server keeps for an account. PassHash is the
// argon2id login hash used only for HTTP authentication; it is unrelated to
// the encryption KDF and cannot unwrap anything.
type UserRecord struct {
	Username       string            `bson:"_id"`
	PassHash       string            `bson:"pass_hash"`
	Salt           []byte            `bson:"salt"`
	KDF            crypto.KDFParams  `bson:"kdf"`
	PublicKey      []byte            `bson:"public_key"`
	PrivateKeyWrap crypto.Envelope   `bson:"private_key_wrap"`
	RecoveryWrap   crypto.Envelope   `bson:"recovery_wrap"`
	CreatedAt      time.Time         `bson:"created_at"`
}

// Vault is vault metadata; its key exists only as wrapped records.
type Vault struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Owner     string    `bson:"owner"`
	CreatedAt time.Time `bson:"created_at"`
}

// VaultKeyRecord is one member's wrapped copy of a vault key: direct for the
// creator, shared for everyone else. Removing it revokes server-side access
// but cannot invalidate a copy the member already unwrapped.
type VaultKeyRecord struct {
	VaultID  string                  `bson:"vault_id"`
	Username string                  `bson:"username"`
	Wrapped  keyring.WrappedVaultKey `bson:"wrapped"`
}

// Secret is the current version of a named value in a vault.
type Secret struct {
	VaultID   string          `bson:"vault_id"`
	Name      string          `bson:"name"`
	Version   int             `bson:"version"`
	Envelope  crypto.Envelope `bson:"envelope"`
	UpdatedBy string          `bson:"updated_by"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// SecretVersion is a permanently retained historical snapshot.
type SecretVersion struct {
	VaultID   string          `bson:"vault_id"`
	Name      string          `bson:"name"`
	Version   int             `bson:"version"`
	Envelope  crypto.Envelope `bson:"envelope"`
	Author    string          `bson:"author"`
	CreatedAt time.Time       `bson:"created_at"`
}

type UserStore interface {
	AddUser(ctx context.Context, u UserRecord) error
	GetUser(ctx context.Context, username string) (UserRecord, error)
	// UpdateUserKeys replaces the credential material in one call: new salt,
	// params, login hash, re-sealed private key, and recovery wrap. Used by
	// password change and account recovery.
	UpdateUserKeys(ctx context.Context, u UserRecord) error
	// ReplaceCredentials lands a re-root: the new credential record and the
	// re-wrapped vault keys go in together or not at all. A record under the
	// new master with keys still wrapped under the old one would lock the
	// user out of their vaults, so partial application is never acceptable.
	ReplaceCredentials(ctx context.Context, u UserRecord, keys []VaultKeyRecord) error
}

type VaultStore interface {
	CreateVault(ctx context.Context, v Vault) error
	GetVault(ctx context.Context, id string) (Vault, error)
	ListVaults(ctx context.Context, username string) ([]Vault, error)

	PutVaultKey(ctx context.Context, rec VaultKeyRecord) error
	GetVaultKey(ctx context.Context, vaultID, username string) (VaultKeyRecord, error)
	// ListVaultKeys returns every wrapped copy held by one user, across
	// vaults. Password change re-wraps the direct ones.
	ListVaultKeys(ctx context.Context, username string) ([]VaultKeyRecord, error)
	DeleteVaultKey(ctx context.Context, vaultID, username string) error

	// PutSecret stores a new envelope at exactly version current+1 (1 for a
	// new secret) and retains it as a SecretVersion. Any other version is
	// ErrVersionConflict; resolution is the caller's policy.
	PutSecret(ctx context.Context, s Secret) error
	GetSecret(ctx context.Context, vaultID, name string) (Secret, error)
	ListSecrets(ctx context.Context, vaultID string) ([]Secret, error)
	ListSecretVersions(ctx context.Context, vaultID, name string) ([]SecretVersion, error)
	GetSecretVersion(ctx context.Context, vaultID, name string, version int) (SecretVersion, error)
}

// Store is the full boundary consumed by the server and account flows.
type Store interface {
	UserStore
	VaultStore
}
