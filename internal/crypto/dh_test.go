package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSharedKeySymmetry(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair a: %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair b: %v", err)
	}

	ab, err := SharedKey(a.Private, b.Public)
	if err != nil {
		t.Fatalf("shared a->b: %v", err)
	}
	ba, err := SharedKey(b.Private, a.Public)
	if err != nil {
		t.Fatalf("shared b->a: %v", err)
	}
	if !bytes.Equal(ab, ba) {
		t.Fatal("shared keys must match from both sides")
	}
	if len(ab) != KeySize {
		t.Fatalf("expected %d-byte shared key, got %d", KeySize, len(ab))
	}
}

func TestSharedKeyPairwiseDistinct(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()
	c, _ := GenerateKeyPair()

	ab, err := SharedKey(a.Private, b.Public)
	if err != nil {
		t.Fatalf("shared a-b: %v", err)
	}
	ac, err := SharedKey(a.Private, c.Public)
	if err != nil {
		t.Fatalf("shared a-c: %v", err)
	}
	if bytes.Equal(ab, ac) {
		t.Fatal("different peers must yield different shared keys")
	}
}

func TestSharedKeyRejectsMalformedKeys(t *testing.T) {
	a, _ := GenerateKeyPair()
	if _, err := SharedKey(a.Private[:16], a.Public); !errors.Is(err, ErrValidation) {
		t.Fatalf("short private: expected ErrValidation, got %v", err)
	}
	if _, err := SharedKey(a.Private, []byte("not-a-key")); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad public: expected ErrValidation, got %v", err)
	}
}

func TestGenerateKeyPairFresh(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()
	if bytes.Equal(a.Private, b.Private) || bytes.Equal(a.Public, b.Public) {
		t.Fatal("key pairs must be unique")
	}
	if len(a.Public) != 32 || len(a.Private) != 32 {
		t.Fatalf("expected raw 32-byte halves, got %d/%d", len(a.Public), len(a.Private))
	}
}
