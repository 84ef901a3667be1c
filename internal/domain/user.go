package domain

import "time"

// User is the root account entity. PasswordHash is empty for
// federation-only accounts that authenticate solely through a linked
// external identity.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can authenticate locally.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
