package models

import (
	"errors"
	"fmt"
)

// Auth errors. Deterministic, returned synchronously; no retries in the core.
var (
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrRateLimited      = errors.New("rate limited by platform")
	ErrInvalidCode      = errors.New("invalid code")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrAuthBusy         = errors.New("another auth operation is in flight")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrInvalidState     = errors.New("operation not valid in current auth state")
)

// Registry errors.
var (
	ErrDuplicateName = errors.New("account name already exists")
	ErrNotFound      = errors.New("account not found")
)

// ErrFetchInProgress is returned when a balance fetch for the same account
// is already in flight. The caller retries once the in-flight one lands.
var ErrFetchInProgress = errors.New("balance fetch already in progress")

// BalanceReason classifies why a balance could not be fetched, so callers
// can tell "retry later" from "fix the credential".
type BalanceReason string

const (
	ReasonInvalidCredential BalanceReason = "invalid_credential"
	ReasonTransient         BalanceReason = "transient"
	ReasonTimeout           BalanceReason = "timeout"
)

// BalanceUnavailableError wraps a provider failure. The cached balance is
// left untouched when this is returned.
type BalanceUnavailableError struct {
	Reason BalanceReason
	Err    error
}

func (e *BalanceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("balance unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("balance unavailable (%s)", e.Reason)
}

func (e *BalanceUnavailableError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying as-is.
func (e *BalanceUnavailableError) Retryable() bool {
	return e.Reason == ReasonTransient || e.Reason == ReasonTimeout
}
