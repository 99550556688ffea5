package keyring

import (
	"zkvault/internal/crypto"
)

// NewRecoveryKey generates a fresh random recovery key, independent of the
// password, and seals the master key under it. The recovery key is returned
// exactly once; the engine never retains it. Store only the wrap.
func NewRecoveryKey(master []byte) (recoveryKey []byte, wrapped crypto.Envelope, err error) {
	recoveryKey, err = crypto.NewKey()
	if err != nil {
		return nil, crypto.Envelope{}, err
	}
	wrapped, err = crypto.Seal(recoveryKey, master, []byte(aadRecovery))
	if err != nil {
		crypto.Zero(recoveryKey)
		return nil, crypto.Envelope{}, err
	}
	return recoveryKey, wrapped, nil
}

// RecoverMasterKey reverses NewRecoveryKey. A wrong or malformed recovery key
// fails with crypto.ErrAuthentication / crypto.ErrValidation; there is no
// master override. Losing both the password and the recovery key makes the
// account unrecoverable by design.
func RecoverMasterKey(recoveryKey []byte, wrapped crypto.Envelope) ([]byte, error) {
	return crypto.Open(recoveryKey, wrapped, []byte(aadRecovery))
}
