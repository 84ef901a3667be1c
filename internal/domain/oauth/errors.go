package oauth

import "errors"

var (
	// ErrInvalidGrant indicates the provider rejected the authorization
	// code (expired, reused, or mismatched redirect URI).
	ErrInvalidGrant = errors.New("oauth: invalid grant")
	// ErrProviderUnavailable covers transport errors, timeouts, and
	// provider-side failures on outbound calls.
	ErrProviderUnavailable = errors.New("oauth: provider unavailable")
	// ErrIncompleteProfile indicates the provider omitted the email or
	// subject identifier from the profile payload.
	ErrIncompleteProfile = errors.New("oauth: incomplete profile")
	// ErrLinkConflict signals a concurrent reconciliation created the
	// identity link first. Recovered internally, never surfaced.
	ErrLinkConflict = errors.New("oauth: identity link conflict")
)
