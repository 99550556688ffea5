//go:build !linux && !darwin

package crypto

// No mlock on this platform; zeroization still applies.

func LockMemory(b []byte) error   { return nil }
func UnlockMemory(b []byte) error { return nil }
