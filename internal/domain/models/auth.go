package models

import "time"

// AuthState is the login state of the single Telegram session.
type AuthState string

const (
	AuthNotAuthenticated AuthState = "not_authenticated"
	AuthAwaitingCode     AuthState = "awaiting_code"
	AuthAwaitingPassword AuthState = "awaiting_password"
	AuthAuthenticated    AuthState = "authenticated"
)

// AuthSnapshot is a read-only view of the auth session.
type AuthSnapshot struct {
	State        AuthState `json:"state"`
	Phone        string    `json:"phone,omitempty"`
	PendingSince time.Time `json:"pending_since,omitempty"`
	LoggedIn     bool      `json:"logged_in"`
}

// CodeResult is what the auth provider reports after a code submission.
type CodeResult string

const (
	CodeAccepted      CodeResult = "accepted"
	CodeNeedsPassword CodeResult = "needs_password"
)
