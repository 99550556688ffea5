package keyring

import (
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/hkdf"

	"zkvault/internal/crypto"
)

const loginContext = "zkvault/login/v1"

// LoginKey derives the HTTP login credential from the master key. The raw
// password never travels to the server; the server argon2id-hashes this value
// and a stolen copy cannot unwrap anything because the derivation is one-way.
func LoginKey(master []byte) (string, error) {
	key := make([]byte, crypto.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(loginContext)), key); err != nil {
		return "", err
	}
	defer crypto.Zero(key)
	return base64.RawURLEncoding.EncodeToString(key), nil
}
