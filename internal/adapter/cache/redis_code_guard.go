package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DionathaGoulart/pets-auth/internal/repository"
)

const (
	codeGuardPrefix = "oauth:code:"
	codeGuardTTL    = 10 * time.Minute
)

// RedisCodeGuard remembers redeemed authorization codes so a replayed code
// is rejected before a round-trip to the provider.
type RedisCodeGuard struct {
	client redis.UniversalClient
}

var _ repository.CodeGuard = (*RedisCodeGuard)(nil)

// NewRedisCodeGuard constructs a Redis-backed guard.
func NewRedisCodeGuard(client redis.UniversalClient) *RedisCodeGuard {
	return &RedisCodeGuard{client: client}
}

// FirstUse marks the code as seen and reports whether this was the first
// sighting. Codes are stored hashed; the raw value never reaches Redis.
func (g *RedisCodeGuard) FirstUse(ctx context.Context, code string) (bool, error) {
	sum := sha256.Sum256([]byte(code))
	key := codeGuardPrefix + hex.EncodeToString(sum[:])
	first, err := g.client.SetNX(ctx, key, 1, codeGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark code used: %w", err)
	}
	return first, nil
}
