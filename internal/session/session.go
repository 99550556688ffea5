// Package session owns all plaintext key material for one client session. It
// is the only component allowed to hold a decrypted master key, and only
// while Unlocked; everything else borrows keys for the span of a single call.
// Sessions are constructed and injected explicitly, never reached through a
// global.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
)

type State int

const (
	Locked State = iota
	Unlocking
	Unlocked
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

var (
	// ErrLocked gates every vault-scoped operation: callers must unlock
	// first, never fall back to a cached or default key.
	ErrLocked = errors.New("session: locked")

	// ErrIncorrectCredential is deliberately generic: wrong password and
	// tampered stored data are indistinguishable, so no oracle is leaked.
	ErrIncorrectCredential = errors.New("session: incorrect credential")

	// ErrSuperseded is returned to an unlock attempt that lost to a newer
	// one; its derived key is zeroed and discarded, never committed.
	ErrSuperseded = errors.New("session: unlock superseded")
)

// DefaultIdleTimeout locks an inactive session. Matches the vault policy of
// five minutes.
const DefaultIdleTimeout = 5 * time.Minute

// Credentials is the stored (ciphertext-only) material a session needs to
// verify unlock attempts: the KDF inputs and the sealed private key used as
// the trial-decryption oracle.
type Credentials struct {
	Salt           []byte
	KDF            crypto.KDFParams
	PrivateKeyWrap crypto.Envelope
}

// Session is the key-lifecycle state machine. All methods are safe for
// concurrent use; the slow KDF runs outside the lock.
type Session struct {
	creds Credentials
	idle  time.Duration

	mu        sync.Mutex
	state     State
	gen       uint64 // bumped per unlock attempt; last request wins
	master    []byte
	vaultKeys map[string][]byte
	timer     *time.Timer
	deadline  time.Time // idle expiry; activity pushes it forward
}

func New(creds Credentials, idle time.Duration) *Session {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Session{
		creds:     creds,
		idle:      idle,
		state:     Locked,
		vaultKeys: map[string][]byte{},
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unlock derives a candidate master key from the password and verifies it by
// trial decryption of the sealed private key. On success the session holds
// the master key and arms the idle timer. On failure the candidate is zeroed
// immediately and the session returns to Locked. If the context is canceled
// or a newer Unlock supersedes this one while the derivation is in flight,
// the candidate is zeroed and discarded without touching session state.
func (s *Session) Unlock(ctx context.Context, password []byte) error {
	s.mu.Lock()
	if s.state == Locked {
		s.state = Unlocking
	}
	s.gen++
	myGen := s.gen
	creds := s.creds
	s.mu.Unlock()

	// CPU-bound by design; runs without the lock so Lock/State stay
	// responsive and the attempt stays cancellable.
	candidate, err := crypto.Derive(password, creds.Salt, creds.KDF)
	if err != nil {
		s.settle(myGen)
		return err
	}

	if ctx.Err() != nil {
		crypto.Zero(candidate)
		s.settle(myGen)
		return ctx.Err()
	}

	priv, err := keyring.OpenPrivateKey(creds.PrivateKeyWrap, candidate)
	if err != nil {
		crypto.Zero(candidate)
		s.settle(myGen)
		return ErrIncorrectCredential
	}
	crypto.Zero(priv)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != myGen {
		crypto.Zero(candidate)
		return ErrSuperseded
	}
	s.zeroLocked()
	_ = crypto.LockMemory(candidate)
	s.master = candidate
	s.state = Unlocked
	s.armTimerLocked()
	return nil
}

// WithMasterKey lends the master key to fn for the span of the call. The
// slice must not be retained or copied out. Counts as qualifying activity.
func (s *Session) WithMasterKey(fn func(master []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return ErrLocked
	}
	s.armTimerLocked()
	return fn(s.master)
}

// PrivateKey opens the sealed key-exchange private key under the session's
// master key. The caller owns the returned copy and must zero it after use.
func (s *Session) PrivateKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return nil, ErrLocked
	}
	s.armTimerLocked()
	return keyring.OpenPrivateKey(s.creds.PrivateKeyWrap, s.master)
}

// VaultKey unwraps and caches the key for one vault. Direct wraps open under
// the master key; shared wraps open under the private key, which is decrypted
// transiently and zeroed before return. The returned slice belongs to the
// session's cache: borrow it for one cipher call, do not retain a copy. The
// whole cache is zeroed together when the session locks.
func (s *Session) VaultKey(vaultID string, wrapped keyring.WrappedVaultKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return nil, ErrLocked
	}
	s.armTimerLocked()

	if vk, ok := s.vaultKeys[vaultID]; ok {
		return vk, nil
	}
	if err := wrapped.Validate(); err != nil {
		return nil, err
	}

	var vk []byte
	var err error
	if wrapped.Direct != nil {
		vk, err = keyring.UnwrapVaultKey(*wrapped.Direct, s.master)
	} else {
		var priv []byte
		priv, err = keyring.OpenPrivateKey(s.creds.PrivateKeyWrap, s.master)
		if err == nil {
			vk, err = keyring.UnwrapSharedVaultKey(wrapped.Shared.Envelope, priv, wrapped.Shared.SenderPublicKey)
			crypto.Zero(priv)
		}
	}
	if err != nil {
		return nil, err
	}
	s.vaultKeys[vaultID] = vk
	return vk, nil
}

// Touch marks qualifying user activity, re-arming the idle timer. Inert
// while Locked.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unlocked {
		s.armTimerLocked()
	}
}

// Lock zero-fills the master key and every cached vault key before releasing
// them, then returns the session to Locked. Idempotent.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++ // invalidate in-flight unlocks
	s.zeroLocked()
	s.state = Locked
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close is the process-exit path; identical zeroization to Lock.
func (s *Session) Close() {
	s.Lock()
}

// IdleTimeout reports the configured timeout.
func (s *Session) IdleTimeout() time.Duration { return s.idle }

func (s *Session) armTimerLocked() {
	s.deadline = time.Now().Add(s.idle)
	if s.timer != nil {
		s.timer.Reset(s.idle)
		return
	}
	s.timer = time.AfterFunc(s.idle, s.lockOnTimeout)
}

func (s *Session) lockOnTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return
	}
	// Activity may have pushed the deadline while this callback waited on
	// the mutex; a stale expiry must not lock past it.
	if remaining := time.Until(s.deadline); remaining > 0 {
		if s.timer != nil {
			s.timer.Reset(remaining)
		}
		return
	}
	s.gen++
	s.zeroLocked()
	s.state = Locked
	s.timer = nil
}

// settle returns an Unlocking session to Locked unless a newer attempt is
// still in flight or has already unlocked it.
func (s *Session) settle(myGen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == myGen && s.state == Unlocking {
		s.state = Locked
	}
}

func (s *Session) zeroLocked() {
	if s.master != nil {
		crypto.Zero(s.master)
		_ = crypto.UnlockMemory(s.master)
		s.master = nil
	}
	for id, vk := range s.vaultKeys {
		crypto.Zero(vk)
		delete(s.vaultKeys, id)
	}
}
