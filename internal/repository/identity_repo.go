package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
)

var (
	_ IdentityRepository     = (*PostgresIdentityRepo)(nil)
	_ VerificationRepository = (*PostgresVerificationRepo)(nil)
)

// PostgresIdentityRepo implements IdentityRepository.
type PostgresIdentityRepo struct {
	db DBTX
}

func NewPostgresIdentityRepo(db DBTX) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const selectIdentityColumns = `id, user_id, provider, subject_id, profile, created_at, updated_at, last_login_at`

func (r *PostgresIdentityRepo) GetBySubject(ctx context.Context, provider, subjectID string) (domain.ExternalIdentity, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectIdentityColumns+`
		 FROM external_identities WHERE provider = $1 AND subject_id = $2`,
		provider, subjectID)
	return scanIdentity(row, "get identity")
}

// Create inserts the link. A unique violation on (provider, subject_id)
// means a concurrent reconciliation won the insert; it is reported as
// oauth.ErrLinkConflict so the caller can retry as an update.
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity domain.ExternalIdentity) (domain.ExternalIdentity, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO external_identities (id, user_id, provider, subject_id, profile, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING `+selectIdentityColumns,
		identity.ID, identity.UserID, identity.Provider, identity.SubjectID, identity.Profile)
	created, err := scanIdentity(row, "create identity")
	if err != nil && isUniqueViolation(err) {
		return domain.ExternalIdentity{}, fmt.Errorf("create identity: %w", oauth.ErrLinkConflict)
	}
	return created, err
}

func (r *PostgresIdentityRepo) Refresh(ctx context.Context, identityID int64, profile []byte, at time.Time) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE external_identities
		 SET profile = $2, last_login_at = $3, updated_at = now()
		 WHERE id = $1`,
		identityID, profile, at); err != nil {
		return fmt.Errorf("refresh identity: %w", err)
	}
	return nil
}

func scanIdentity(row pgx.Row, op string) (domain.ExternalIdentity, error) {
	var id domain.ExternalIdentity
	err := row.Scan(&id.ID, &id.UserID, &id.Provider, &id.SubjectID, &id.Profile, &id.CreatedAt, &id.UpdatedAt, &id.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExternalIdentity{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.ExternalIdentity{}, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// PostgresVerificationRepo implements VerificationRepository.
type PostgresVerificationRepo struct {
	db DBTX
}

func NewPostgresVerificationRepo(db DBTX) *PostgresVerificationRepo {
	return &PostgresVerificationRepo{db: db}
}

const selectVerificationColumns = `id, user_id, email, verified, "primary", created_at, updated_at`

func (r *PostgresVerificationRepo) GetByUserEmail(ctx context.Context, userID int64, email string) (domain.EmailVerification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectVerificationColumns+`
		 FROM email_verifications WHERE user_id = $1 AND lower(email) = lower($2)`,
		userID, email)
	return scanVerification(row, "get verification")
}

func (r *PostgresVerificationRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_verifications WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verification email exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresVerificationRepo) Create(ctx context.Context, record domain.EmailVerification) (domain.EmailVerification, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO email_verifications (id, user_id, email, verified, "primary")
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+selectVerificationColumns,
		record.ID, record.UserID, record.Email, record.Verified, record.Primary)
	return scanVerification(row, "create verification")
}

func (r *PostgresVerificationRepo) MarkVerified(ctx context.Context, recordID int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE email_verifications SET verified = true, updated_at = now() WHERE id = $1`,
		recordID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func scanVerification(row pgx.Row, op string) (domain.EmailVerification, error) {
	var v domain.EmailVerification
	err := row.Scan(&v.ID, &v.UserID, &v.Email, &v.Verified, &v.Primary, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EmailVerification{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.EmailVerification{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}
