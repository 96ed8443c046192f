package nonce

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_CheckAndConsume(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStore(client, "test:nonce:")

	ctx := context.Background()

	ok, err := store.CheckAndConsume(ctx, Incoming, "abc")
	require.NoError(t, err)
	require.True(t, ok, "first use should be accepted")

	ok, err = store.CheckAndConsume(ctx, Incoming, "abc")
	require.NoError(t, err)
	require.False(t, ok, "replay within the window should be rejected")
}

func TestRedisStore_NamespacesAreIndependent(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStore(client, "test:nonce:")

	ctx := context.Background()

	ok, err := store.CheckAndConsume(ctx, Outgoing, "shared-value")
	require.NoError(t, err)
	require.True(t, ok)

	// same value in the incoming namespace is still fresh
	ok, err = store.CheckAndConsume(ctx, Incoming, "shared-value")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStore_WindowExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStore(client, "test:nonce:")

	ctx := context.Background()

	ok, err := store.CheckAndConsume(ctx, Incoming, "abc")
	require.NoError(t, err)
	require.True(t, ok)

	// advance miniredis clock past the 12h window
	m.FastForward(Window + time.Hour)

	ok, err = store.CheckAndConsume(ctx, Incoming, "abc")
	require.NoError(t, err)
	require.True(t, ok, "nonce should be valid again after the window elapses")
}

func TestRedisStore_EmptyValueRejected(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStore(client, "")

	ok, err := store.CheckAndConsume(context.Background(), Incoming, "")
	require.NoError(t, err)
	require.False(t, ok)
}
