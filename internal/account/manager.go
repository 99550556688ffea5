package account

import (
	"context"
	"errors"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
	"zkvault/internal/storage"
)

// Manager runs the account flows against a Store. It holds no key material
// between calls; every master key it derives is zeroed before return unless
// explicitly handed back to the caller.
type Manager struct {
	Store storage.Store
}

// Register enrolls a new account and persists its ciphertext-only record.
// The returned recovery key is shown to the user once; it is not derivable
// from anything stored.
func (m *Manager) Register(ctx context.Context, username string, password []byte) ([]byte, error) {
	enr, err := Enroll(username, password)
	if err != nil {
		return nil, err
	}
	crypto.Zero(enr.Master)
	if err := m.Store.AddUser(ctx, enr.Record); err != nil {
		crypto.Zero(enr.RecoveryKey)
		return nil, err
	}
	return enr.RecoveryKey, nil
}

// ChangePassword verifies the old password, then re-roots the account and
// replaces the recovery key. Returns the new recovery key.
func (m *Manager) ChangePassword(ctx context.Context, username string, oldPassword, newPassword []byte) ([]byte, error) {
	rec, err := m.Store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	master, err := VerifyPassword(rec, oldPassword)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)
	return m.rekey(ctx, rec, master, newPassword)
}

// Recover unwraps the master key with the recovery key, then re-roots the
// account under a new password. The used recovery key is invalidated because
// its wrap is replaced; the new one is returned.
func (m *Manager) Recover(ctx context.Context, username string, recoveryKey, newPassword []byte) ([]byte, error) {
	rec, err := m.Store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	master, err := keyring.RecoverMasterKey(recoveryKey, rec.RecoveryWrap)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)
	return m.rekey(ctx, rec, master, newPassword)
}

func (m *Manager) rekey(ctx context.Context, rec storage.UserRecord, master, newPassword []byte) ([]byte, error) {
	held, err := m.Store.ListVaultKeys(ctx, rec.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	rk, err := Rekey(rec, master, newPassword, held)
	if err != nil {
		return nil, err
	}
	crypto.Zero(rk.Master)

	// The record and the re-wrapped keys land together: a half-applied
	// re-root would strand the vault keys under a master no longer stored.
	if err := m.Store.ReplaceCredentials(ctx, rk.Record, rk.VaultKeys); err != nil {
		crypto.Zero(rk.RecoveryKey)
		return nil, err
	}
	return rk.RecoveryKey, nil
}
