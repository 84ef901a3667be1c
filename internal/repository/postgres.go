package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository  = (*PostgresUserRepo)(nil)
	_ TokenRepository = (*PostgresTokenRepo)(nil)
	_ KeyRepository   = (*PostgresKeyRepo)(nil)
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db DBTX
}

func NewPostgresUserRepo(db DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const selectUserColumns = `id, username, email, first_name, last_name, password_hash, created_at, updated_at`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row, "get user by id")
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row, "get user by email")
}

func (r *PostgresUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	return scanUser(row, "get user by username")
}

func (r *PostgresUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("username exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+selectUserColumns,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash)
	created, err := scanUser(row, "create user")
	if err != nil && isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("create user: %w", domain.ErrDuplicateUsername)
	}
	return created, err
}

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users
		 SET username = $2, email = $3, first_name = $4, last_name = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+selectUserColumns,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName)
	updated, err := scanUser(row, "update user")
	if err != nil && isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("update user: %w", domain.ErrDuplicateUsername)
	}
	return updated, err
}

func scanUser(row pgx.Row, op string) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db DBTX
}

func NewPostgresTokenRepo(db DBTX) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

const selectTokenColumns = `id, user_id, token, expires_at, revoked, created_at`

func (r *PostgresTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+selectTokenColumns,
		token.ID, token.UserID, token.Token, token.ExpiresAt)
	return scanToken(row, "create refresh token")
}

func (r *PostgresTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectTokenColumns+` FROM refresh_tokens WHERE token = $1`, token)
	return scanToken(row, "get refresh token")
}

func (r *PostgresTokenRepo) Rotate(ctx context.Context, tokenID int64, token string, expiresAt time.Time) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET token = $2, expires_at = $3 WHERE id = $1`,
		tokenID, token, expiresAt); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (r *PostgresTokenRepo) Revoke(ctx context.Context, tokenID int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE id = $1`, tokenID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row, op string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshToken{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// PostgresKeyRepo implements KeyRepository.
type PostgresKeyRepo struct {
	db DBTX
}

func NewPostgresKeyRepo(db DBTX) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: db}
}

func (r *PostgresKeyRepo) GetActive(ctx context.Context) (domain.SigningKey, error) {
	var k domain.SigningKey
	err := r.db.QueryRow(ctx,
		`SELECT id, kid, secret, algorithm, is_active, created_at
		 FROM signing_keys WHERE is_active ORDER BY created_at DESC LIMIT 1`).
		Scan(&k.ID, &k.KID, &k.Secret, &k.Algorithm, &k.IsActive, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SigningKey{}, fmt.Errorf("get active key: %w", domain.ErrNotFound)
		}
		return domain.SigningKey{}, fmt.Errorf("get active key: %w", err)
	}
	return k, nil
}

func (r *PostgresKeyRepo) Create(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO signing_keys (id, kid, secret, algorithm, is_active)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING id, kid, secret, algorithm, is_active, created_at`,
		key.ID, key.KID, key.Secret, key.Algorithm).
		Scan(&key.ID, &key.KID, &key.Secret, &key.Algorithm, &key.IsActive, &key.CreatedAt)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("create signing key: %w", err)
	}
	return key, nil
}
