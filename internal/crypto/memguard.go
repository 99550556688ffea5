//go:build linux || darwin

package crypto

import "golang.org/x/sys/unix"

// LockMemory pins a buffer so key material is not swapped to disk.
func LockMemory(b []byte) error { return unix.Mlock(b) }

// UnlockMemory releases a buffer pinned with LockMemory. Zero it first.
func UnlockMemory(b []byte) error { return unix.Munlock(b) }
