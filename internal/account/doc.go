// Package account implements the credential flows: enrollment, password
// change, and recovery-key recovery.
//
// The master key is derived from the password and never stored; the recovery
// key is shown exactly once at creation. There is no master override: an
// account that loses both the password and the recovery key is unrecoverable
// by design, not by accident.
package account
