package domain

import "errors"

var (
	// ErrNotFound signals a missing row regardless of backing store.
	ErrNotFound = errors.New("domain: not found")
	// ErrDuplicateEmail indicates the email is already claimed by a user
	// or a verification record.
	ErrDuplicateEmail = errors.New("domain: email already in use")
	// ErrDuplicateUsername indicates the login handle is taken.
	ErrDuplicateUsername = errors.New("domain: username already in use")
	// ErrInvalidCredentials covers wrong username/email/password pairs.
	ErrInvalidCredentials = errors.New("domain: invalid credentials")
	// ErrInvalidRefreshToken covers unknown, revoked, or expired refresh tokens.
	ErrInvalidRefreshToken = errors.New("domain: invalid refresh token")
	// ErrValidation indicates request payload validation failures.
	ErrValidation = errors.New("domain: validation failed")
)
