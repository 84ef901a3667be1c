package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/config"
	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/jwt"
	pw "github.com/DionathaGoulart/pets-auth/internal/password"
	"github.com/DionathaGoulart/pets-auth/internal/repository"
)

const minPasswordLength = 8

// AuthService encapsulates account flows: registration, password login,
// token refresh, logout, and profile access.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	tx        repository.TxRunner
	snowflake *snowflake.Node
	jwt       *jwt.Generator
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, tx repository.TxRunner, node *snowflake.Node, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		tx:        tx,
		snowflake: node,
		jwt:       generator,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/DionathaGoulart/pets-auth/internal/service"),
	}
}

// Register creates an account with a password credential and logs it in.
// The user row and its unverified primary email record commit together.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateRegistration(username, email, input.Password); err != nil {
		return nil, err
	}

	hash, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created domain.User
	err = s.tx.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := r.Users.GetByEmail(ctx, email); err == nil {
			return fmt.Errorf("register: %w", domain.ErrDuplicateEmail)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		taken, err := r.Verifications.EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("register: %w", domain.ErrDuplicateEmail)
		}
		exists, err := r.Users.UsernameExists(ctx, username)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("register: %w", domain.ErrDuplicateUsername)
		}

		created, err = r.Users.Create(ctx, domain.User{
			ID:           s.snowflake.Generate().Int64(),
			Username:     username,
			Email:        email,
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}

		_, err = r.Verifications.Create(ctx, domain.EmailVerification{
			ID:      s.snowflake.Generate().Int64(),
			UserID:  created.ID,
			Email:   email,
			Primary: true,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	session, err := s.IssueSession(ctx, created)
	if err == nil {
		s.audit("registration.success", "user_id", created.ID)
	} else {
		span.RecordError(err)
	}
	return session, err
}

// Login authenticates with a username or email plus password.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("login: missing credentials: %w", domain.ErrInvalidCredentials)
	}

	user, err := s.users.GetByUsername(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) && strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	// Federation-only accounts have no password credential.
	if !user.HasPassword() {
		return nil, fmt.Errorf("login: no password set: %w", domain.ErrInvalidCredentials)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	session, err := s.IssueSession(ctx, user)
	if err == nil {
		s.audit("password.login.success", "user_id", user.ID)
	} else {
		span.RecordError(err)
	}
	return session, err
}

// Refresh rotates the refresh token and issues a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}

	token, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil || token.Revoked || time.Now().After(token.ExpiresAt) {
		if err != nil {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh load user: %w", err)
	}

	next := randomString(s.cfg.RefreshTokenBytes)
	if err := s.tokens.Rotate(ctx, token.ID, next, time.Now().Add(s.cfg.RefreshTokenTTL)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh rotate: %w", err)
	}

	access, err := s.jwt.GenerateAccessToken(ctx, user, s.cfg.Issuer)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh generate access: %w", err)
	}

	s.audit("refresh_token.success", "user_id", user.ID)
	return &TokenPair{Access: access, Refresh: next}, nil
}

// Logout revokes the refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("logout: %w", domain.ErrInvalidRefreshToken)
	}
	token, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout: %w", domain.ErrInvalidRefreshToken)
	}
	if err := s.tokens.Revoke(ctx, token.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout revoke: %w", err)
	}
	s.audit("logout.success", "user_id", token.UserID)
	return nil
}

// Profile returns the account profile of the authenticated user.
func (s *AuthService) Profile(ctx context.Context, userID int64) (UserPayload, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Profile")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return UserPayload{}, fmt.Errorf("profile: %w", err)
	}
	return toPayload(user), nil
}

// UpdateProfile applies a partial update to the profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (UserPayload, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdateProfile")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return UserPayload{}, fmt.Errorf("update profile: %w", err)
	}

	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return UserPayload{}, fmt.Errorf("username must not be empty: %w", domain.ErrValidation)
		}
		if !strings.EqualFold(username, user.Username) {
			exists, err := s.users.UsernameExists(ctx, username)
			if err != nil {
				return UserPayload{}, fmt.Errorf("update profile: %w", err)
			}
			if exists {
				return UserPayload{}, fmt.Errorf("update profile: %w", domain.ErrDuplicateUsername)
			}
		}
		user.Username = username
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if !looksLikeEmail(email) {
			return UserPayload{}, fmt.Errorf("invalid email: %w", domain.ErrValidation)
		}
		if !strings.EqualFold(email, user.Email) {
			if _, err := s.users.GetByEmail(ctx, email); err == nil {
				return UserPayload{}, fmt.Errorf("update profile: %w", domain.ErrDuplicateEmail)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return UserPayload{}, fmt.Errorf("update profile: %w", err)
			}
		}
		user.Email = email
	}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		span.RecordError(err)
		return UserPayload{}, fmt.Errorf("update profile: %w", err)
	}
	s.audit("profile.updated", "user_id", updated.ID)
	return toPayload(updated), nil
}

// Dashboard returns the user plus the greeting for the dashboard view.
func (s *AuthService) Dashboard(ctx context.Context, userID int64) (DashboardPayload, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return DashboardPayload{}, fmt.Errorf("dashboard: %w", err)
	}
	return DashboardPayload{
		User:    toPayload(user),
		Message: fmt.Sprintf("Welcome to the dashboard, %s!", user.Username),
	}, nil
}

// IssueSession mints an access token and a fresh persisted refresh token.
func (s *AuthService) IssueSession(ctx context.Context, user domain.User) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.IssueSession")
	defer span.End()

	access, err := s.jwt.GenerateAccessToken(ctx, user, s.cfg.Issuer)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refresh := randomString(s.cfg.RefreshTokenBytes)
	if _, err := s.tokens.Create(ctx, domain.RefreshToken{
		ID:        s.snowflake.Generate().Int64(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &Session{Access: access, Refresh: refresh, User: toPayload(user)}, nil
}

func validateRegistration(username, email, password string) error {
	if username == "" {
		return fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	if !looksLikeEmail(email) {
		return fmt.Errorf("invalid email: %w", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrValidation)
	}
	return nil
}

func looksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func toPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func randomString(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
