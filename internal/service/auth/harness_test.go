package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
	"github.com/DionathaGoulart/pets-auth/internal/repository"
	"github.com/DionathaGoulart/pets-auth/internal/service"
)

// memStore backs all fake repositories so a harness shares one dataset.
type memStore struct {
	mu            sync.Mutex
	users         map[int64]domain.User
	identities    map[int64]domain.ExternalIdentity
	verifications map[int64]domain.EmailVerification
	tokens        map[int64]domain.RefreshToken

	// When set, the next identity insert fails with a link conflict and
	// the winner link materializes, as if a concurrent login committed
	// first.
	conflictWinner *domain.ExternalIdentity

	// When set, the next user insert fails on the username index and the
	// winner account plus its link materialize, as if a concurrent login
	// committed between the handle probe and the insert.
	createRaceWinner *raceCommit
}

// raceCommit is the state a concurrent winner left behind.
type raceCommit struct {
	user     domain.User
	identity domain.ExternalIdentity
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]domain.User),
		identities:    make(map[int64]domain.ExternalIdentity),
		verifications: make(map[int64]domain.EmailVerification),
		tokens:        make(map[int64]domain.RefreshToken),
	}
}

type memUserRepo struct{ store *memStore }

func (r *memUserRepo) GetByID(_ context.Context, userID int64) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if u, ok := r.store.users[userID]; ok {
		return u, nil
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if winner := r.store.createRaceWinner; winner != nil {
		r.store.createRaceWinner = nil
		r.store.users[winner.user.ID] = winner.user
		r.store.identities[winner.identity.ID] = winner.identity
		return domain.User{}, fmt.Errorf("create user: %w", domain.ErrDuplicateUsername)
	}
	for _, u := range r.store.users {
		if strings.EqualFold(u.Username, user.Username) {
			return domain.User{}, domain.ErrDuplicateUsername
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.store.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user domain.User) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return domain.User{}, domain.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.store.users[user.ID] = user
	return user, nil
}

type memIdentityRepo struct{ store *memStore }

func (r *memIdentityRepo) GetBySubject(_ context.Context, provider, subjectID string) (domain.ExternalIdentity, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.identities {
		if id.Provider == provider && id.SubjectID == subjectID {
			return id, nil
		}
	}
	return domain.ExternalIdentity{}, domain.ErrNotFound
}

func (r *memIdentityRepo) Create(_ context.Context, identity domain.ExternalIdentity) (domain.ExternalIdentity, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if winner := r.store.conflictWinner; winner != nil {
		r.store.conflictWinner = nil
		r.store.identities[winner.ID] = *winner
		return domain.ExternalIdentity{}, fmt.Errorf("create identity: %w", oauth.ErrLinkConflict)
	}
	for _, id := range r.store.identities {
		if id.Provider == identity.Provider && id.SubjectID == identity.SubjectID {
			return domain.ExternalIdentity{}, fmt.Errorf("create identity: %w", oauth.ErrLinkConflict)
		}
	}
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = identity.CreatedAt
	identity.LastLoginAt = identity.CreatedAt
	r.store.identities[identity.ID] = identity
	return identity, nil
}

func (r *memIdentityRepo) Refresh(_ context.Context, identityID int64, profile []byte, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.identities[identityID]
	if !ok {
		return domain.ErrNotFound
	}
	id.Profile = profile
	id.LastLoginAt = at
	id.UpdatedAt = time.Now()
	r.store.identities[identityID] = id
	return nil
}

type memVerificationRepo struct{ store *memStore }

func (r *memVerificationRepo) GetByUserEmail(_ context.Context, userID int64, email string) (domain.EmailVerification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, v := range r.store.verifications {
		if v.UserID == userID && strings.EqualFold(v.Email, email) {
			return v, nil
		}
	}
	return domain.EmailVerification{}, domain.ErrNotFound
}

func (r *memVerificationRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, v := range r.store.verifications {
		if strings.EqualFold(v.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memVerificationRepo) Create(_ context.Context, record domain.EmailVerification) (domain.EmailVerification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	r.store.verifications[record.ID] = record
	return record, nil
}

func (r *memVerificationRepo) MarkVerified(_ context.Context, recordID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.store.verifications[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	v.Verified = true
	v.UpdatedAt = time.Now()
	r.store.verifications[recordID] = v
	return nil
}

type memTokenRepo struct{ store *memStore }

func (r *memTokenRepo) Create(_ context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	token.CreatedAt = time.Now()
	r.store.tokens[token.ID] = token
	return token, nil
}

func (r *memTokenRepo) GetByToken(_ context.Context, token string) (domain.RefreshToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, t := range r.store.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return domain.RefreshToken{}, domain.ErrNotFound
}

func (r *memTokenRepo) Rotate(_ context.Context, tokenID int64, token string, expiresAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Token = token
	t.ExpiresAt = expiresAt
	r.store.tokens[tokenID] = t
	return nil
}

func (r *memTokenRepo) Revoke(_ context.Context, tokenID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Revoked = true
	r.store.tokens[tokenID] = t
	return nil
}

// memTxRunner hands out repositories over the shared store. It does not
// simulate rollback; tests assert on end states that do not depend on it.
type memTxRunner struct{ store *memStore }

func (t *memTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	return fn(ctx, repository.Repos{
		Users:         &memUserRepo{store: t.store},
		Identities:    &memIdentityRepo{store: t.store},
		Verifications: &memVerificationRepo{store: t.store},
		Tokens:        &memTokenRepo{store: t.store},
	})
}

type reconcilerHarness struct {
	store      *memStore
	reconciler *Reconciler
	node       *snowflake.Node
}

func newReconcilerHarness() *reconcilerHarness {
	store := newMemStore()
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return &reconcilerHarness{
		store:      store,
		reconciler: NewReconciler(&memTxRunner{store: store}, node, zap.NewNop()),
		node:       node,
	}
}

func (h *reconcilerHarness) addUser(username, email, passwordHash string) domain.User {
	user := domain.User{
		ID:           h.node.Generate().Int64(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	h.store.mu.Lock()
	h.store.users[user.ID] = user
	h.store.mu.Unlock()
	return user
}

func (h *reconcilerHarness) addIdentity(userID int64, provider, subject string) domain.ExternalIdentity {
	identity := domain.ExternalIdentity{
		ID:        h.node.Generate().Int64(),
		UserID:    userID,
		Provider:  provider,
		SubjectID: subject,
		Profile:   []byte(`{}`),
	}
	h.store.mu.Lock()
	h.store.identities[identity.ID] = identity
	h.store.mu.Unlock()
	return identity
}

func (h *reconcilerHarness) addVerification(userID int64, email string, verified, primary bool) domain.EmailVerification {
	record := domain.EmailVerification{
		ID:       h.node.Generate().Int64(),
		UserID:   userID,
		Email:    email,
		Verified: verified,
		Primary:  primary,
	}
	h.store.mu.Lock()
	h.store.verifications[record.ID] = record
	h.store.mu.Unlock()
	return record
}

func (h *reconcilerHarness) verificationFor(userID int64, email string) (domain.EmailVerification, bool) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	for _, v := range h.store.verifications {
		if v.UserID == userID && strings.EqualFold(v.Email, email) {
			return v, true
		}
	}
	return domain.EmailVerification{}, false
}

func (h *reconcilerHarness) identityFor(provider, subject string) (domain.ExternalIdentity, bool) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	for _, id := range h.store.identities {
		if id.Provider == provider && id.SubjectID == subject {
			return id, true
		}
	}
	return domain.ExternalIdentity{}, false
}

func (h *reconcilerHarness) userByID(id int64) (domain.User, bool) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	u, ok := h.store.users[id]
	return u, ok
}

// fakeSessionIssuer records the user a session was minted for.
type fakeSessionIssuer struct {
	lastUser domain.User
	err      error
}

func (f *fakeSessionIssuer) IssueSession(_ context.Context, user domain.User) (*service.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUser = user
	return &service.Session{
		Access:  "access-token",
		Refresh: "refresh-token",
		User: service.UserPayload{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	}, nil
}
