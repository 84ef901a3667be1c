package domain

import "time"

// ExternalIdentity binds a User to one (provider, subject_id) pair.
// SubjectID is the provider's stable account identifier and is the durable
// identity key; the provider email can change, the subject never does.
// At most one identity exists per (provider, subject_id).
type ExternalIdentity struct {
	ID          int64
	UserID      int64
	Provider    string
	SubjectID   string
	Profile     []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// EmailVerification records the claim that an email address belongs to a
// user. Verified is monotonic: a reconciliation pass may upgrade it to true
// but never back.
type EmailVerification struct {
	ID        int64
	UserID    int64
	Email     string
	Verified  bool
	Primary   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
