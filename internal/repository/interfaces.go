package repository

import (
	"context"
	"time"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
)

// UserRepository exposes persistence for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
}

// IdentityRepository persists external identity links. Create returns
// oauth.ErrLinkConflict when the (provider, subject_id) key already exists.
type IdentityRepository interface {
	GetBySubject(ctx context.Context, provider, subjectID string) (domain.ExternalIdentity, error)
	Create(ctx context.Context, identity domain.ExternalIdentity) (domain.ExternalIdentity, error)
	Refresh(ctx context.Context, identityID int64, profile []byte, at time.Time) error
}

// VerificationRepository persists email verification records.
type VerificationRepository interface {
	GetByUserEmail(ctx context.Context, userID int64, email string) (domain.EmailVerification, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, record domain.EmailVerification) (domain.EmailVerification, error)
	MarkVerified(ctx context.Context, recordID int64) error
}

// TokenRepository handles refresh token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	Rotate(ctx context.Context, tokenID int64, token string, expiresAt time.Time) error
	Revoke(ctx context.Context, tokenID int64) error
}

// KeyRepository stores JWT signing keys.
type KeyRepository interface {
	GetActive(ctx context.Context) (domain.SigningKey, error)
	Create(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}

// CodeGuard tracks authorization codes that were already redeemed.
// FirstUse returns false when the code was seen before.
type CodeGuard interface {
	FirstUse(ctx context.Context, code string) (bool, error)
}
