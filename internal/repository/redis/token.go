package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:access:"

// AccessTokenStore implements repository.AccessTokenStore using Redis.
// Access tokens are stateless JWTs; this denylist is the persisted mirror
// that lets a logout take effect before the token expires. Entries are
// keyed by token digest and expire on their own.
type AccessTokenStore struct {
	client *redis.Client
}

// NewAccessTokenStore creates a new Redis-backed access token denylist.
func NewAccessTokenStore(client *redis.Client) *AccessTokenStore {
	return &AccessTokenStore{client: client}
}

// Revoke denylists the token for ttl. Reports whether the entry was newly
// created; revoking an already-revoked token is not an error.
func (s *AccessTokenStore) Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// Already past its own expiry, nothing to mirror.
		return false, nil
	}

	created, err := s.client.SetNX(ctx, keyPrefix+digest(token), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis revoke access token: %w", err)
	}

	return created, nil
}

// IsRevoked reports whether the token has been denylisted.
func (s *AccessTokenStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+digest(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check access token: %w", err)
	}

	return n > 0, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
