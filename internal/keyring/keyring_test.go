package keyring

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"zkvault/internal/crypto"
)

func randKey(t testing.TB) []byte {
	t.Helper()
	b := make([]byte, crypto.KeySize)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestVaultKeyWrapRoundTrip(t *testing.T) {
	master := randKey(t)
	vk, wrapped, err := NewVaultKey(master)
	if err != nil {
		t.Fatalf("new vault key: %v", err)
	}
	got, err := UnwrapVaultKey(wrapped, master)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(vk, got) {
		t.Fatal("vault key mismatch")
	}
}

func TestVaultKeyWrongMaster(t *testing.T) {
	master := randKey(t)
	_, wrapped, err := NewVaultKey(master)
	if err != nil {
		t.Fatalf("new vault key: %v", err)
	}
	if _, err := UnwrapVaultKey(wrapped, randKey(t)); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestSecretAndKeyWrapClassesDistinct(t *testing.T) {
	master := randKey(t)
	_, wrapped, err := NewVaultKey(master)
	if err != nil {
		t.Fatalf("new vault key: %v", err)
	}
	// A vault-key wrap must not open as a secret even under the right key.
	if _, err := DecryptSecret(wrapped, master, "DATABASE_URL"); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("expected class confusion to fail, got %v", err)
	}
}

func TestSecretRoundTripBoundToName(t *testing.T) {
	vk := randKey(t)
	env, err := EncryptSecret([]byte("postgres://u:p@db/app"), vk, "DATABASE_URL")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := DecryptSecret(env, vk, "DATABASE_URL")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(pt) != "postgres://u:p@db/app" {
		t.Fatal("plaintext mismatch")
	}
	if _, err := DecryptSecret(env, vk, "API_TOKEN"); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("expected rename to fail decryption, got %v", err)
	}
}

func TestSharedWrapRoundTrip(t *testing.T) {
	owner, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("owner keypair: %v", err)
	}
	member, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("member keypair: %v", err)
	}
	vk := randKey(t)

	env, err := WrapVaultKeyForUser(vk, owner.Private, member.Public)
	if err != nil {
		t.Fatalf("wrap for user: %v", err)
	}
	got, err := UnwrapSharedVaultKey(env, member.Private, owner.Public)
	if err != nil {
		t.Fatalf("unwrap shared: %v", err)
	}
	if !bytes.Equal(vk, got) {
		t.Fatal("vault key mismatch after sharing round trip")
	}
}

func TestSharedWrapExclusivity(t *testing.T) {
	owner, _ := crypto.GenerateKeyPair()
	member, _ := crypto.GenerateKeyPair()
	outsider, _ := crypto.GenerateKeyPair()
	vk := randKey(t)

	env, err := WrapVaultKeyForUser(vk, owner.Private, member.Public)
	if err != nil {
		t.Fatalf("wrap for user: %v", err)
	}
	if _, err := UnwrapSharedVaultKey(env, outsider.Private, owner.Public); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("outsider unwrap: expected ErrAuthentication, got %v", err)
	}
	// Right recipient, wrong claimed sender.
	if _, err := UnwrapSharedVaultKey(env, member.Private, outsider.Public); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("wrong sender: expected ErrAuthentication, got %v", err)
	}
}

func TestRecoveryRoundTrip(t *testing.T) {
	master := randKey(t)
	rk, wrapped, err := NewRecoveryKey(master)
	if err != nil {
		t.Fatalf("new recovery key: %v", err)
	}
	got, err := RecoverMasterKey(rk, wrapped)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(master, got) {
		t.Fatal("master key mismatch after recovery")
	}
	if _, err := RecoverMasterKey(randKey(t), wrapped); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("wrong recovery key: expected ErrAuthentication, got %v", err)
	}
}

func TestPrivateKeySealVerifiesMaster(t *testing.T) {
	master := randKey(t)
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	env, err := SealPrivateKey(pair.Private, master)
	if err != nil {
		t.Fatalf("seal private key: %v", err)
	}
	got, err := OpenPrivateKey(env, master)
	if err != nil {
		t.Fatalf("open private key: %v", err)
	}
	if !bytes.Equal(pair.Private, got) {
		t.Fatal("private key mismatch")
	}
	if _, err := OpenPrivateKey(env, randKey(t)); !errors.Is(err, crypto.ErrAuthentication) {
		t.Fatalf("wrong master: expected ErrAuthentication, got %v", err)
	}
}

func TestWrappedVaultKeyVariants(t *testing.T) {
	master := randKey(t)
	owner, _ := crypto.GenerateKeyPair()
	member, _ := crypto.GenerateKeyPair()

	vk, direct, err := NewVaultKey(master)
	if err != nil {
		t.Fatalf("new vault key: %v", err)
	}
	sharedEnv, err := WrapVaultKeyForUser(vk, owner.Private, member.Public)
	if err != nil {
		t.Fatalf("wrap for user: %v", err)
	}

	dw := DirectWrap(direct)
	if err := dw.Validate(); err != nil {
		t.Fatalf("direct validate: %v", err)
	}
	got, err := dw.Unwrap(master, nil)
	if err != nil {
		t.Fatalf("direct unwrap: %v", err)
	}
	if !bytes.Equal(vk, got) {
		t.Fatal("direct variant mismatch")
	}

	sw := SharedVaultKeyWrap(sharedEnv, owner.Public)
	if err := sw.Validate(); err != nil {
		t.Fatalf("shared validate: %v", err)
	}
	got, err = sw.Unwrap(nil, member.Private)
	if err != nil {
		t.Fatalf("shared unwrap: %v", err)
	}
	if !bytes.Equal(vk, got) {
		t.Fatal("shared variant mismatch")
	}

	var empty WrappedVaultKey
	if err := empty.Validate(); !errors.Is(err, crypto.ErrValidation) {
		t.Fatalf("empty variant: expected ErrValidation, got %v", err)
	}
	both := WrappedVaultKey{Direct: &direct, Shared: sw.Shared}
	if err := both.Validate(); !errors.Is(err, crypto.ErrValidation) {
		t.Fatalf("both variants: expected ErrValidation, got %v", err)
	}
}
