package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randBytes(t testing.TB, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := randBytes(t, KeySize)
	pt := randBytes(t, 4096)
	aad := []byte("context")
	env, err := Seal(key, pt, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if env.Algorithm != AlgChaCha20Poly1305 {
		t.Fatalf("unexpected algorithm %q", env.Algorithm)
	}
	out, err := Open(key, env, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch")
	}
}

func TestSealOpenEmptyPlaintext(t *testing.T) {
	key := randBytes(t, KeySize)
	env, err := Seal(key, nil, nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(key, env, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(out))
	}
}

func TestOpenWrongKey(t *testing.T) {
	k1 := randBytes(t, KeySize)
	k2 := randBytes(t, KeySize)
	env, err := Seal(k1, []byte("secret-data"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(k2, env, nil); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestOpenAADMismatch(t *testing.T) {
	key := randBytes(t, KeySize)
	env, err := Seal(key, []byte("secret-data"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, env, []byte("aad-2")); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication with mismatched AAD, got %v", err)
	}
}

func TestOpenBitFlips(t *testing.T) {
	key := randBytes(t, KeySize)
	env, err := Seal(key, []byte("hello world"), []byte("aad"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	flip := func(name string, mutate func(e *Envelope)) {
		mut := env
		mut.Nonce = append([]byte(nil), env.Nonce...)
		mut.Ciphertext = append([]byte(nil), env.Ciphertext...)
		mut.Tag = append([]byte(nil), env.Tag...)
		mutate(&mut)
		if _, err := Open(key, mut, []byte("aad")); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("%s: expected ErrAuthentication, got %v", name, err)
		}
	}
	flip("nonce", func(e *Envelope) { e.Nonce[0] ^= 0x01 })
	flip("ciphertext", func(e *Envelope) { e.Ciphertext[3] ^= 0x80 })
	flip("tag", func(e *Envelope) { e.Tag[TagSize-1] ^= 0xFF })
}

func TestOpenMalformedEnvelope(t *testing.T) {
	key := randBytes(t, KeySize)
	env, err := Seal(key, []byte("x"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	short := env
	short.Nonce = env.Nonce[:NonceSize-1]
	if _, err := Open(key, short, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("short nonce: expected ErrValidation, got %v", err)
	}

	alg := env
	alg.Algorithm = "rot13"
	if _, err := Open(key, alg, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown alg: expected ErrValidation, got %v", err)
	}

	trunc := env
	trunc.Tag = env.Tag[:TagSize-2]
	if _, err := Open(key, trunc, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("truncated tag: expected ErrValidation, got %v", err)
	}
}

func TestSealKeyLength(t *testing.T) {
	if _, err := Seal(randBytes(t, 16), []byte("x"), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short key, got %v", err)
	}
	if _, err := Open(randBytes(t, 31), Envelope{}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short key, got %v", err)
	}
}

func TestSealUniqueNonces(t *testing.T) {
	key := randBytes(t, KeySize)
	pt := []byte("data")
	e1, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal1: %v", err)
	}
	e2, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal2: %v", err)
	}
	if bytes.Equal(e1.Nonce, e2.Nonce) {
		t.Fatal("expected distinct nonces")
	}
	if bytes.Equal(e1.Ciphertext, e2.Ciphertext) {
		t.Fatal("expected distinct ciphertexts")
	}
}

func FuzzOpenRejectMutations(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"))
	f.Add([]byte(""), []byte(""))
	f.Fuzz(func(t *testing.T, pt, aad []byte) {
		key := randBytes(t, KeySize)
		env, err := Seal(key, pt, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := Open(key, env, aad); err != nil {
			t.Fatalf("open baseline: %v", err)
		}
		mut := env
		mut.Ciphertext = append([]byte(nil), env.Ciphertext...)
		mut.Tag = append([]byte(nil), env.Tag...)
		if len(mut.Ciphertext) > 0 {
			mut.Ciphertext[len(pt)%len(mut.Ciphertext)] ^= 0xFF
		} else {
			mut.Tag[0] ^= 0xFF
		}
		if _, err := Open(key, mut, aad); err == nil {
			t.Fatal("mutated envelope opened")
		}
	})
}

func BenchmarkSeal1K(b *testing.B) {
	key := randBytes(b, KeySize)
	pt := randBytes(b, 1024)
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Seal(key, pt, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpen1K(b *testing.B) {
	key := randBytes(b, KeySize)
	env, err := Seal(key, randBytes(b, 1024), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Open(key, env, nil); err != nil {
			b.Fatal(err)
		}
	}
}
