package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
	"zkvault/internal/storage"
)

func init() {
	EnrollParams = func() crypto.KDFParams {
		return crypto.KDFParams{Memory: 8 * 1024, Time: 1, Parallelism: 1}
	}
}

func TestRegisterProducesFullHierarchy(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}

	rk, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)
	require.Len(t, rk, crypto.KeySize)

	rec, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rec.Salt, crypto.SaltSize)
	require.Len(t, rec.PublicKey, 32)
	require.NoError(t, rec.PrivateKeyWrap.Validate())
	require.NoError(t, rec.RecoveryWrap.Validate())

	// The recovery key is not derivable from stored data: recovery with a
	// key derived from anything persisted must fail.
	master, err := crypto.Derive([]byte("Sup3rSecret1"), rec.Salt, rec.KDF)
	require.NoError(t, err)
	_, err = keyring.RecoverMasterKey(master, rec.RecoveryWrap)
	require.ErrorIs(t, err, crypto.ErrAuthentication)

	// But the returned recovery key unwraps the same master.
	got, err := keyring.RecoverMasterKey(rk, rec.RecoveryWrap)
	require.NoError(t, err)
	require.Equal(t, master, got)
}

func TestVerifyPassword(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}
	_, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)

	rec, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)

	master, err := VerifyPassword(rec, []byte("Sup3rSecret1"))
	require.NoError(t, err)
	require.Len(t, master, crypto.KeySize)

	_, err = VerifyPassword(rec, []byte("wrong"))
	require.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestSecretVersionsSurviveUpdates(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}
	_, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)
	rec, _ := st.GetUser(ctx, "alice")
	master, err := VerifyPassword(rec, []byte("Sup3rSecret1"))
	require.NoError(t, err)

	vk, wrap, err := keyring.NewVaultKey(master)
	require.NoError(t, err)
	require.NoError(t, st.CreateVault(ctx, storage.Vault{ID: "v1", Name: "prod", Owner: "alice"}))
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "alice", Wrapped: keyring.DirectWrap(wrap),
	}))

	put := func(version int, value string) {
		env, err := keyring.EncryptSecret([]byte(value), vk, "DATABASE_URL")
		require.NoError(t, err)
		require.NoError(t, st.PutSecret(ctx, storage.Secret{
			VaultID: "v1", Name: "DATABASE_URL", Version: version,
			Envelope: env, UpdatedBy: "alice", UpdatedAt: time.Now(),
		}))
	}
	put(1, "postgres://old")
	put(2, "postgres://new")

	cur, err := st.GetSecret(ctx, "v1", "DATABASE_URL")
	require.NoError(t, err)
	require.Equal(t, 2, cur.Version)

	v1, err := st.GetSecretVersion(ctx, "v1", "DATABASE_URL", 1)
	require.NoError(t, err)
	old, err := keyring.DecryptSecret(v1.Envelope, vk, "DATABASE_URL")
	require.NoError(t, err)
	require.Equal(t, "postgres://old", string(old))
}

func TestShareVaultWithSecondUser(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}
	_, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)
	_, err = m.Register(ctx, "bob", []byte("An0therSecret!"))
	require.NoError(t, err)

	aliceRec, _ := st.GetUser(ctx, "alice")
	bobRec, _ := st.GetUser(ctx, "bob")
	aliceMaster, err := VerifyPassword(aliceRec, []byte("Sup3rSecret1"))
	require.NoError(t, err)
	bobMaster, err := VerifyPassword(bobRec, []byte("An0therSecret!"))
	require.NoError(t, err)

	vk, wrap, err := keyring.NewVaultKey(aliceMaster)
	require.NoError(t, err)
	require.NoError(t, st.CreateVault(ctx, storage.Vault{ID: "v1", Name: "prod", Owner: "alice"}))
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "alice", Wrapped: keyring.DirectWrap(wrap),
	}))

	env1, err := keyring.EncryptSecret([]byte("postgres://v1"), vk, "DATABASE_URL")
	require.NoError(t, err)
	require.NoError(t, st.PutSecret(ctx, storage.Secret{VaultID: "v1", Name: "DATABASE_URL", Version: 1, Envelope: env1, UpdatedBy: "alice", UpdatedAt: time.Now()}))
	env2, err := keyring.EncryptSecret([]byte("postgres://v2"), vk, "DATABASE_URL")
	require.NoError(t, err)
	require.NoError(t, st.PutSecret(ctx, storage.Secret{VaultID: "v1", Name: "DATABASE_URL", Version: 2, Envelope: env2, UpdatedBy: "alice", UpdatedAt: time.Now()}))

	// Alice wraps the vault key for Bob using his public key.
	alicePriv, err := keyring.OpenPrivateKey(aliceRec.PrivateKeyWrap, aliceMaster)
	require.NoError(t, err)
	sharedEnv, err := keyring.WrapVaultKeyForUser(vk, alicePriv, bobRec.PublicKey)
	require.NoError(t, err)
	crypto.Zero(alicePriv)
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "bob",
		Wrapped: keyring.SharedVaultKeyWrap(sharedEnv, aliceRec.PublicKey),
	}))

	// Bob unwraps from his side and can read both versions.
	bobKeyRec, err := st.GetVaultKey(ctx, "v1", "bob")
	require.NoError(t, err)
	bobPriv, err := keyring.OpenPrivateKey(bobRec.PrivateKeyWrap, bobMaster)
	require.NoError(t, err)
	bobVK, err := bobKeyRec.Wrapped.Unwrap(nil, bobPriv)
	require.NoError(t, err)
	require.Equal(t, vk, bobVK)

	for v, want := range map[int]string{1: "postgres://v1", 2: "postgres://v2"} {
		sv, err := st.GetSecretVersion(ctx, "v1", "DATABASE_URL", v)
		require.NoError(t, err)
		pt, err := keyring.DecryptSecret(sv.Envelope, bobVK, "DATABASE_URL")
		require.NoError(t, err)
		require.Equal(t, want, string(pt))
	}

	// Removing Bob's membership deletes his record, but a cached copy of
	// the shared wrap still mathematically unwraps: revocation is not
	// cryptographic. Known limitation, asserted on purpose.
	require.NoError(t, st.DeleteVaultKey(ctx, "v1", "bob"))
	_, err = st.GetVaultKey(ctx, "v1", "bob")
	require.ErrorIs(t, err, storage.ErrNotFound)
	cached, err := keyring.UnwrapSharedVaultKey(sharedEnv, bobPriv, aliceRec.PublicKey)
	require.NoError(t, err)
	require.Equal(t, vk, cached)
}

func TestRecoverThenOldRecoveryKeyDead(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}

	r1, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)
	recBefore, _ := st.GetUser(ctx, "alice")
	masterBefore, err := VerifyPassword(recBefore, []byte("Sup3rSecret1"))
	require.NoError(t, err)

	// A vault wrapped under the old master must survive the recovery.
	vk, wrap, err := keyring.NewVaultKey(masterBefore)
	require.NoError(t, err)
	require.NoError(t, st.CreateVault(ctx, storage.Vault{ID: "v1", Name: "prod", Owner: "alice"}))
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "alice", Wrapped: keyring.DirectWrap(wrap),
	}))

	// Password lost: recover via R1 and set a new password.
	r2, err := m.Recover(ctx, "alice", r1, []byte("Bran0New&Better"))
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)

	recAfter, _ := st.GetUser(ctx, "alice")
	require.NotEqual(t, recBefore.Salt, recAfter.Salt)

	// New password derives a new master (M2 != M1) that opens everything.
	masterAfter, err := VerifyPassword(recAfter, []byte("Bran0New&Better"))
	require.NoError(t, err)
	require.NotEqual(t, masterBefore, masterAfter)

	keyRec, err := st.GetVaultKey(ctx, "v1", "alice")
	require.NoError(t, err)
	got, err := keyRec.Wrapped.Unwrap(masterAfter, nil)
	require.NoError(t, err)
	require.Equal(t, vk, got)

	// R1's wrap was replaced; it no longer unwraps anything.
	_, err = keyring.RecoverMasterKey(r1, recAfter.RecoveryWrap)
	require.ErrorIs(t, err, crypto.ErrAuthentication)
	// And the old password is gone too.
	_, err = VerifyPassword(recAfter, []byte("Sup3rSecret1"))
	require.ErrorIs(t, err, crypto.ErrAuthentication)

	// New recovery key works.
	_, err = keyring.RecoverMasterKey(r2, recAfter.RecoveryWrap)
	require.NoError(t, err)
}

func TestChangePasswordRewrapsDirectKeysOnly(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}
	_, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)
	_, err = m.Register(ctx, "bob", []byte("An0therSecret!"))
	require.NoError(t, err)

	aliceRec, _ := st.GetUser(ctx, "alice")
	bobRec, _ := st.GetUser(ctx, "bob")
	aliceMaster, err := VerifyPassword(aliceRec, []byte("Sup3rSecret1"))
	require.NoError(t, err)

	vk, wrap, err := keyring.NewVaultKey(aliceMaster)
	require.NoError(t, err)
	require.NoError(t, st.CreateVault(ctx, storage.Vault{ID: "v1", Name: "prod", Owner: "alice"}))
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "alice", Wrapped: keyring.DirectWrap(wrap),
	}))

	// Bob holds a shared wrap of a vault alice owns.
	alicePriv, err := keyring.OpenPrivateKey(aliceRec.PrivateKeyWrap, aliceMaster)
	require.NoError(t, err)
	sharedEnv, err := keyring.WrapVaultKeyForUser(vk, alicePriv, bobRec.PublicKey)
	require.NoError(t, err)
	require.NoError(t, st.PutVaultKey(ctx, storage.VaultKeyRecord{
		VaultID: "v1", Username: "bob",
		Wrapped: keyring.SharedVaultKeyWrap(sharedEnv, aliceRec.PublicKey),
	}))

	_, err = m.ChangePassword(ctx, "alice", []byte("Sup3rSecret1"), []byte("N3wPassword?!"))
	require.NoError(t, err)

	// Alice's direct wrap opens under the new master.
	recAfter, _ := st.GetUser(ctx, "alice")
	newMaster, err := VerifyPassword(recAfter, []byte("N3wPassword?!"))
	require.NoError(t, err)
	keyRec, err := st.GetVaultKey(ctx, "v1", "alice")
	require.NoError(t, err)
	got, err := keyRec.Wrapped.Unwrap(newMaster, nil)
	require.NoError(t, err)
	require.Equal(t, vk, got)

	// Bob's shared wrap is untouched and still works.
	bobMaster, err := VerifyPassword(bobRec, []byte("An0therSecret!"))
	require.NoError(t, err)
	bobPriv, err := keyring.OpenPrivateKey(bobRec.PrivateKeyWrap, bobMaster)
	require.NoError(t, err)
	bobKeyRec, err := st.GetVaultKey(ctx, "v1", "bob")
	require.NoError(t, err)
	bobVK, err := bobKeyRec.Wrapped.Unwrap(nil, bobPriv)
	require.NoError(t, err)
	require.Equal(t, vk, bobVK)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	m := &Manager{Store: st}
	_, err := m.Register(ctx, "alice", []byte("Sup3rSecret1"))
	require.NoError(t, err)

	_, err = m.ChangePassword(ctx, "alice", []byte("wrong"), []byte("whatever"))
	require.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestCorruptedTagRefusesPlaintext(t *testing.T) {
	master, err := crypto.NewKey()
	require.NoError(t, err)
	vk, _, err := keyring.NewVaultKey(master)
	require.NoError(t, err)
	env, err := keyring.EncryptSecret([]byte("postgres://prod"), vk, "DATABASE_URL")
	require.NoError(t, err)

	env.Tag = append([]byte(nil), env.Tag...)
	env.Tag[0] ^= 0x01
	pt, err := keyring.DecryptSecret(env, vk, "DATABASE_URL")
	require.ErrorIs(t, err, crypto.ErrAuthentication)
	require.Nil(t, pt)
}
