package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
	"github.com/DionathaGoulart/pets-auth/internal/repository"
)

// OutcomeKind describes how a federated login was resolved.
type OutcomeKind string

const (
	// OutcomeRelogin means the identity link already existed.
	OutcomeRelogin OutcomeKind = "relogin"
	// OutcomeMerged means the identity was linked to an account that
	// already owned the email.
	OutcomeMerged OutcomeKind = "merged"
	// OutcomeCreated means a new federation-only account was created.
	OutcomeCreated OutcomeKind = "created"
)

// Outcome is the result of reconciling a provider profile.
type Outcome struct {
	User domain.User
	Kind OutcomeKind
}

const maxHandleSuffix = 1000

// Reconciler resolves a provider profile to a local account. Each
// resolution runs in a single transaction: the link, the account, and the
// email verification record commit together or not at all.
type Reconciler struct {
	tx        repository.TxRunner
	snowflake *snowflake.Node
	logger    *zap.Logger
}

// NewReconciler wires the reconciler.
func NewReconciler(tx repository.TxRunner, node *snowflake.Node, logger *zap.Logger) *Reconciler {
	return &Reconciler{tx: tx, snowflake: node, logger: logger}
}

// Reconcile resolves the profile to a user, creating or linking accounts
// as needed. When a concurrent login commits first, this attempt loses a
// unique-index race; the second attempt then lands on the committed rows,
// so the whole resolution is retried once in a fresh transaction.
func (r *Reconciler) Reconcile(ctx context.Context, provider string, profile *oauth.Profile, now time.Time) (Outcome, error) {
	out, err := r.reconcileOnce(ctx, provider, profile, now)
	if isConcurrentLoginRace(err) {
		r.log().Warn("concurrent federated login, retrying",
			zap.String("provider", provider), zap.String("subject", profile.Subject))
		out, err = r.reconcileOnce(ctx, provider, profile, now)
	}
	return out, err
}

// isConcurrentLoginRace reports whether the attempt lost an insert race
// to a concurrent reconciliation: either the link insert hit the
// (provider, subject) unique index, or the user insert hit the username
// index after both requests derived the same free handle.
func isConcurrentLoginRace(err error) bool {
	return errors.Is(err, oauth.ErrLinkConflict) || errors.Is(err, domain.ErrDuplicateUsername)
}

func (r *Reconciler) reconcileOnce(ctx context.Context, provider string, profile *oauth.Profile, now time.Time) (Outcome, error) {
	var out Outcome
	err := r.tx.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		snapshot, err := json.Marshal(profile.Raw)
		if err != nil {
			return fmt.Errorf("marshal profile snapshot: %w", err)
		}

		identity, err := repos.Identities.GetBySubject(ctx, provider, profile.Subject)
		switch {
		case err == nil:
			out, err = r.relogin(ctx, repos, identity, profile, snapshot, now)
			return err
		case errors.Is(err, domain.ErrNotFound):
			// fall through to email matching
		default:
			return err
		}

		email := strings.ToLower(strings.TrimSpace(profile.Email))
		user, err := repos.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			out, err = r.merge(ctx, repos, user, provider, profile, snapshot)
			return err
		case errors.Is(err, domain.ErrNotFound):
			out, err = r.create(ctx, repos, provider, profile, email, snapshot)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// relogin refreshes an existing link: the profile snapshot and login time
// always move forward, names only when the provider sent non-empty ones.
func (r *Reconciler) relogin(ctx context.Context, repos repository.Repos, identity domain.ExternalIdentity, profile *oauth.Profile, snapshot []byte, now time.Time) (Outcome, error) {
	user, err := repos.Users.GetByID(ctx, identity.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load linked user: %w", err)
	}

	changed := false
	if given := strings.TrimSpace(profile.GivenName); given != "" && given != user.FirstName {
		user.FirstName = given
		changed = true
	}
	if family := strings.TrimSpace(profile.FamilyName); family != "" && family != user.LastName {
		user.LastName = family
		changed = true
	}
	if changed {
		if user, err = repos.Users.Update(ctx, user); err != nil {
			return Outcome{}, fmt.Errorf("refresh user names: %w", err)
		}
	}

	if err := repos.Identities.Refresh(ctx, identity.ID, snapshot, now); err != nil {
		return Outcome{}, err
	}
	if err := r.ensureVerified(ctx, repos, user.ID, profile.Email); err != nil {
		return Outcome{}, err
	}
	return Outcome{User: user, Kind: OutcomeRelogin}, nil
}

// merge links the identity to the account that already owns the email.
// The password credential of the existing account is never touched.
func (r *Reconciler) merge(ctx context.Context, repos repository.Repos, user domain.User, provider string, profile *oauth.Profile, snapshot []byte) (Outcome, error) {
	if _, err := repos.Identities.Create(ctx, domain.ExternalIdentity{
		ID:        r.snowflake.Generate().Int64(),
		UserID:    user.ID,
		Provider:  provider,
		SubjectID: profile.Subject,
		Profile:   snapshot,
	}); err != nil {
		return Outcome{}, err
	}

	// Fill in names the account never had; keep what the user chose.
	changed := false
	if user.FirstName == "" && strings.TrimSpace(profile.GivenName) != "" {
		user.FirstName = strings.TrimSpace(profile.GivenName)
		changed = true
	}
	if user.LastName == "" && strings.TrimSpace(profile.FamilyName) != "" {
		user.LastName = strings.TrimSpace(profile.FamilyName)
		changed = true
	}
	if changed {
		var err error
		if user, err = repos.Users.Update(ctx, user); err != nil {
			return Outcome{}, fmt.Errorf("fill user names: %w", err)
		}
	}

	if err := r.ensureVerified(ctx, repos, user.ID, profile.Email); err != nil {
		return Outcome{}, err
	}
	return Outcome{User: user, Kind: OutcomeMerged}, nil
}

// create provisions a federation-only account plus its link. The account
// has no password credential until the user sets one.
func (r *Reconciler) create(ctx context.Context, repos repository.Repos, provider string, profile *oauth.Profile, email string, snapshot []byte) (Outcome, error) {
	handle, err := r.deriveHandle(ctx, repos, email)
	if err != nil {
		return Outcome{}, err
	}

	user, err := repos.Users.Create(ctx, domain.User{
		ID:        r.snowflake.Generate().Int64(),
		Username:  handle,
		Email:     email,
		FirstName: strings.TrimSpace(profile.GivenName),
		LastName:  strings.TrimSpace(profile.FamilyName),
	})
	if err != nil {
		return Outcome{}, err
	}

	if _, err := repos.Identities.Create(ctx, domain.ExternalIdentity{
		ID:        r.snowflake.Generate().Int64(),
		UserID:    user.ID,
		Provider:  provider,
		SubjectID: profile.Subject,
		Profile:   snapshot,
	}); err != nil {
		return Outcome{}, err
	}

	if err := r.ensureVerified(ctx, repos, user.ID, email); err != nil {
		return Outcome{}, err
	}
	return Outcome{User: user, Kind: OutcomeCreated}, nil
}

// ensureVerified finds or creates the verification record for the email.
// Verified only ever moves from false to true.
func (r *Reconciler) ensureVerified(ctx context.Context, repos repository.Repos, userID int64, email string) error {
	record, err := repos.Verifications.GetByUserEmail(ctx, userID, email)
	switch {
	case err == nil:
		if record.Verified {
			return nil
		}
		return repos.Verifications.MarkVerified(ctx, record.ID)
	case errors.Is(err, domain.ErrNotFound):
		_, err = repos.Verifications.Create(ctx, domain.EmailVerification{
			ID:       r.snowflake.Generate().Int64(),
			UserID:   userID,
			Email:    strings.ToLower(strings.TrimSpace(email)),
			Verified: true,
			Primary:  true,
		})
		return err
	default:
		return err
	}
}

// deriveHandle turns the email local part into a free username, probing
// numeric suffixes in order and falling back to a random suffix if the
// namespace around the local part is exhausted.
func (r *Reconciler) deriveHandle(ctx context.Context, repos repository.Repos, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; i <= maxHandleSuffix; i++ {
		exists, err := repos.Users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe handle: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("random handle suffix: %w", err)
	}
	return base + hex.EncodeToString(suffix), nil
}

func (r *Reconciler) log() *zap.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return zap.L()
}
