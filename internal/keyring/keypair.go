package keyring

import (
	"zkvault/internal/crypto"
)

// SealPrivateKey wraps the private half of a key-exchange pair under the
// master key before it leaves memory. The public half is stored in plaintext.
func SealPrivateKey(private, master []byte) (crypto.Envelope, error) {
	return crypto.Seal(master, private, []byte(aadPrivateKey))
}

// OpenPrivateKey reverses SealPrivateKey. Besides yielding the private key,
// this is the system's password-verification oracle: a candidate master key
// that opens the sealed private key is the right one. There is no separate
// check-password step anywhere.
func OpenPrivateKey(env crypto.Envelope, master []byte) ([]byte, error) {
	return crypto.Open(master, env, []byte(aadPrivateKey))
}
