package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestSubscriptionStore_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	err := store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1")
	require.NoError(t, err)

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/ep1", subs[0].Endpoint)
	assert.Equal(t, "u1", subs[0].UserID)
	assert.Equal(t, "key1", subs[0].P256dh)
	assert.Equal(t, "auth1", subs[0].Auth)
	assert.False(t, subs[0].CreatedAt.IsZero())
}

func TestSubscriptionStore_UpsertIsIdempotentOnEndpoint(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))

	first, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key2", "auth2"))

	second, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second, 1, "re-subscribe must update, not duplicate")
	assert.Equal(t, "key2", second[0].P256dh)
	assert.Equal(t, first[0].CreatedAt, second[0].CreatedAt)
	assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt))
}

func TestSubscriptionStore_UpsertMovesEndpointBetweenUsers(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))
	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u2", "key1", "auth1"))

	oldOwner, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, oldOwner)

	newOwner, err := store.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, newOwner, 1)
}

func TestSubscriptionStore_RemoveByEndpoint(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))
	require.NoError(t, store.RemoveByEndpoint(ctx, "https://push.example.com/ep1"))

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionStore_RemoveByEndpointMissingIsNoError(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))
	assert.NoError(t, store.RemoveByEndpoint(ctx, "https://push.example.com/never-registered"))

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1, "removing an unknown endpoint must not alter the registry")
}

func TestSubscriptionStore_RemoveByUserAndEndpointIsScoped(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))

	// another user cannot tear down u1's registration
	require.NoError(t, store.RemoveByUserAndEndpoint(ctx, "u2", "https://push.example.com/ep1"))
	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	// the owner can
	require.NoError(t, store.RemoveByUserAndEndpoint(ctx, "u1", "https://push.example.com/ep1"))
	subs, err = store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionStore_MultipleDevicesPerUser(t *testing.T) {
	ctx := context.Background()
	store := NewSubscriptionStore(setupRedis(t))

	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep1", "u1", "key1", "auth1"))
	require.NoError(t, store.Upsert(ctx, "https://push.example.com/ep2", "u1", "key2", "auth2"))

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}
