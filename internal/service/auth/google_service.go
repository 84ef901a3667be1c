package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/adapter/google"
	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
	"github.com/DionathaGoulart/pets-auth/internal/repository"
	"github.com/DionathaGoulart/pets-auth/internal/service"
)

// GoogleService orchestrates the Google federated login callback.
type GoogleService interface {
	Callback(ctx context.Context, in CallbackInput) (*service.Session, error)
}

// CallbackInput captures the callback request body.
type CallbackInput struct {
	Code        string
	RedirectURI string
}

// SessionIssuer mints the local session after reconciliation.
type SessionIssuer interface {
	IssueSession(ctx context.Context, user domain.User) (*service.Session, error)
}

type googleService struct {
	client     google.Client
	codes      repository.CodeGuard
	reconciler *Reconciler
	sessions   SessionIssuer
	logger     *zap.Logger
}

// NewGoogleService wires the Google login flow.
func NewGoogleService(client google.Client, codes repository.CodeGuard, reconciler *Reconciler, sessions SessionIssuer, logger *zap.Logger) GoogleService {
	return &googleService{
		client:     client,
		codes:      codes,
		reconciler: reconciler,
		sessions:   sessions,
		logger:     logger,
	}
}

// Callback redeems the authorization code, reconciles the Google profile
// against local accounts, and issues a session.
func (s *googleService) Callback(ctx context.Context, in CallbackInput) (*service.Session, error) {
	code := strings.TrimSpace(in.Code)
	redirect := strings.TrimSpace(in.RedirectURI)
	if code == "" || redirect == "" {
		return nil, fmt.Errorf("callback missing code or redirect_uri: %w", oauth.ErrInvalidGrant)
	}

	// The guard is advisory: the provider rejects replayed codes anyway,
	// so a guard outage must not take the login flow down with it.
	if s.codes != nil {
		first, err := s.codes.FirstUse(ctx, code)
		if err != nil {
			s.log().Warn("code guard unavailable", zap.Error(err))
		} else if !first {
			return nil, fmt.Errorf("authorization code replayed: %w", oauth.ErrInvalidGrant)
		}
	}

	token, err := s.client.ExchangeCode(ctx, code, redirect)
	if err != nil {
		return nil, err
	}

	profile, err := s.client.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.Reconcile(ctx, google.Provider, profile, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("reconcile identity: %w", err)
	}

	session, err := s.sessions.IssueSession(ctx, outcome.User)
	if err != nil {
		return nil, err
	}

	s.log().Info("federated login",
		zap.String("provider", google.Provider),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int64("user_id", outcome.User.ID))
	return session, nil
}

func (s *googleService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
