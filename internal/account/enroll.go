package account

import (
	"fmt"
	"time"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
	"zkvault/internal/storage"
)

// EnrollParams supplies the KDF work factor for new enrollments. Tests swap
// in cheaper parameters.
var EnrollParams = crypto.DefaultParams

// Enrollment is the output of Enroll: a ciphertext-only user record ready to
// persist, plus the two values that exist only in memory.
type Enrollment struct {
	Record storage.UserRecord

	// Master is the derived master key; the caller zeroes it when done.
	Master []byte

	// RecoveryKey is shown to the user once and never retained.
	RecoveryKey []byte
}

// Enroll builds the full key hierarchy for a new account: fresh salt and KDF
// params, derived master key, key-exchange pair with the private half sealed
// under the master, and a recovery key wrapping the master. Everything in the
// returned record is safe to hand to the server.
func Enroll(username string, password []byte) (Enrollment, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return Enrollment{}, err
	}
	params := EnrollParams()
	master, err := crypto.Derive(password, salt, params)
	if err != nil {
		return Enrollment{}, err
	}

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		crypto.Zero(master)
		return Enrollment{}, err
	}
	privWrap, err := keyring.SealPrivateKey(pair.Private, master)
	crypto.Zero(pair.Private)
	if err != nil {
		crypto.Zero(master)
		return Enrollment{}, err
	}

	recoveryKey, recoveryWrap, err := keyring.NewRecoveryKey(master)
	if err != nil {
		crypto.Zero(master)
		return Enrollment{}, err
	}

	return Enrollment{
		Record: storage.UserRecord{
			Username:       username,
			Salt:           salt,
			KDF:            params,
			PublicKey:      pair.Public,
			PrivateKeyWrap: privWrap,
			RecoveryWrap:   recoveryWrap,
			CreatedAt:      time.Now().UTC(),
		},
		Master:      master,
		RecoveryKey: recoveryKey,
	}, nil
}

// VerifyPassword derives the master key for a stored record and proves it by
// trial decryption of the sealed private key. Returns the master key on
// success; the caller zeroes it.
func VerifyPassword(rec storage.UserRecord, password []byte) ([]byte, error) {
	master, err := crypto.Derive(password, rec.Salt, rec.KDF)
	if err != nil {
		return nil, err
	}
	priv, err := keyring.OpenPrivateKey(rec.PrivateKeyWrap, master)
	if err != nil {
		crypto.Zero(master)
		return nil, err
	}
	crypto.Zero(priv)
	return master, nil
}

// Rekeyed is the result of Rekey: the updated record, the re-wrapped direct
// vault-key records, and the new in-memory-only values.
type Rekeyed struct {
	Record      storage.UserRecord
	VaultKeys   []storage.VaultKeyRecord // re-wrapped direct records only
	Master      []byte
	RecoveryKey []byte
}

// Rekey re-roots an account under a new password: new salt and params, new
// master key, private key re-sealed, every direct vault-key wrap re-wrapped,
// and a brand-new recovery key. The old recovery key stops unwrapping
// anything because its wrap is replaced. Shared wraps are untouched; they do
// not involve the master key.
func Rekey(rec storage.UserRecord, oldMaster, newPassword []byte, held []storage.VaultKeyRecord) (Rekeyed, error) {
	priv, err := keyring.OpenPrivateKey(rec.PrivateKeyWrap, oldMaster)
	if err != nil {
		return Rekeyed{}, err
	}
	defer crypto.Zero(priv)

	salt, err := crypto.NewSalt()
	if err != nil {
		return Rekeyed{}, err
	}
	params := EnrollParams()
	newMaster, err := crypto.Derive(newPassword, salt, params)
	if err != nil {
		return Rekeyed{}, err
	}

	privWrap, err := keyring.SealPrivateKey(priv, newMaster)
	if err != nil {
		crypto.Zero(newMaster)
		return Rekeyed{}, err
	}

	var rewrapped []storage.VaultKeyRecord
	for _, vk := range held {
		if vk.Wrapped.Direct == nil {
			continue
		}
		plain, err := keyring.UnwrapVaultKey(*vk.Wrapped.Direct, oldMaster)
		if err != nil {
			crypto.Zero(newMaster)
			return Rekeyed{}, fmt.Errorf("re-wrap vault %s: %w", vk.VaultID, err)
		}
		env, err := keyring.WrapVaultKey(plain, newMaster)
		crypto.Zero(plain)
		if err != nil {
			crypto.Zero(newMaster)
			return Rekeyed{}, fmt.Errorf("re-wrap vault %s: %w", vk.VaultID, err)
		}
		vk.Wrapped = keyring.DirectWrap(env)
		rewrapped = append(rewrapped, vk)
	}

	recoveryKey, recoveryWrap, err := keyring.NewRecoveryKey(newMaster)
	if err != nil {
		crypto.Zero(newMaster)
		return Rekeyed{}, err
	}

	rec.Salt = salt
	rec.KDF = params
	rec.PrivateKeyWrap = privWrap
	rec.RecoveryWrap = recoveryWrap

	return Rekeyed{
		Record:      rec,
		VaultKeys:   rewrapped,
		Master:      newMaster,
		RecoveryKey: recoveryKey,
	}, nil
}
