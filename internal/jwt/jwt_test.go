package jwt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"

	"github.com/DionathaGoulart/pets-auth/internal/domain"
)

type memKeyRepo struct {
	mu  sync.Mutex
	key *domain.SigningKey
}

func (r *memKeyRepo) GetActive(_ context.Context) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key == nil {
		return domain.SigningKey{}, domain.ErrNotFound
	}
	return *r.key, nil
}

func (r *memKeyRepo) Create(_ context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.CreatedAt = time.Now()
	r.key = &key
	return key, nil
}

func newTestGenerator(t *testing.T, ttl time.Duration) *Generator {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return NewGenerator(NewKeyManager(&memKeyRepo{}, node), ttl)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	g := newTestGenerator(t, time.Minute)
	user := domain.User{ID: 42, Username: "ana", Email: "ana@example.com"}

	token, err := g.GenerateAccessToken(context.Background(), user, "pets-auth")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	std, custom, err := g.ValidateAccessToken(context.Background(), token, "pets-auth")
	require.NoError(t, err)
	require.Equal(t, "42", std.Subject)
	require.Equal(t, "ana", custom.Username)
	require.Equal(t, "ana@example.com", custom.Email)
}

func TestValidateAccessToken_WrongIssuer(t *testing.T) {
	g := newTestGenerator(t, time.Minute)
	token, err := g.GenerateAccessToken(context.Background(), domain.User{ID: 1, Username: "u"}, "pets-auth")
	require.NoError(t, err)

	_, _, err = g.ValidateAccessToken(context.Background(), token, "someone-else")
	require.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	g := newTestGenerator(t, -time.Minute)
	token, err := g.GenerateAccessToken(context.Background(), domain.User{ID: 1, Username: "u"}, "pets-auth")
	require.NoError(t, err)

	_, _, err = g.ValidateAccessToken(context.Background(), token, "pets-auth")
	require.Error(t, err)
}

func TestValidateAccessToken_Tampered(t *testing.T) {
	g := newTestGenerator(t, time.Minute)
	token, err := g.GenerateAccessToken(context.Background(), domain.User{ID: 1, Username: "u"}, "pets-auth")
	require.NoError(t, err)

	_, _, err = g.ValidateAccessToken(context.Background(), token+"x", "pets-auth")
	require.Error(t, err)
}

func TestEnsureSigningKey_ReusesActiveKey(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	manager := NewKeyManager(&memKeyRepo{}, node)

	first, err := manager.EnsureSigningKey(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first.KID)
	require.Len(t, first.Secret, 64)

	second, err := manager.EnsureSigningKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.KID, second.KID)
}
