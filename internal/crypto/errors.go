package crypto

import "errors"

var (
	// ErrAuthentication is the universal wrong-key / tamper signal. Wrong
	// password, wrong recovery key, wrong sharing key pair, and corrupted
	// ciphertext are deliberately indistinguishable.
	ErrAuthentication = errors.New("crypto: message authentication failed")

	// ErrValidation covers malformed envelopes, wrong-length keys or salts,
	// and out-of-range KDF parameters.
	ErrValidation = errors.New("crypto: invalid input")
)
