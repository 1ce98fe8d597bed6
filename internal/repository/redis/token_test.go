package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*AccessTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewAccessTokenStore(client), mr
}

func TestAccessTokenStore_RevokeAndCheck(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	created, err := store.Revoke(ctx, "token-a", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	revoked, err = store.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Other tokens are unaffected.
	revoked, err = store.IsRevoked(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAccessTokenStore_Revoke_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Revoke(ctx, "token-a", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Revoke(ctx, "token-a", 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAccessTokenStore_Revoke_NonPositiveTTL(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Revoke(ctx, "token-a", 0)
	require.NoError(t, err)
	assert.False(t, created)

	revoked, err := store.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAccessTokenStore_EntryExpires(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Revoke(ctx, "token-a", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)
}
