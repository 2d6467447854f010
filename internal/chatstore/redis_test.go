package chatstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

func newTestRedis(t *testing.T, session string) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), session)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_AppendKeepsOrderPerMatch(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, "s1")

	require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "a", Message: "hi", Timestamp: 1}))
	require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "b", Message: "yo", Timestamp: 2}))
	require.NoError(t, r.Append(ctx, "m2", types.ChatMessage{User: "c", Message: "other", Timestamp: 3}))

	got, err := r.List(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []types.ChatMessage{
		{User: "a", Message: "hi", Timestamp: 1},
		{User: "b", Message: "yo", Timestamp: 2},
	}, got)

	assert.True(t, mr.Exists("quoridor:chat:s1:m1"))
	assert.True(t, mr.Exists("quoridor:chat:s1:m2"))
}

func TestRedis_SessionsDoNotShareHistory(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	a := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "a")
	b := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "b")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Append(ctx, "m1", types.ChatMessage{User: "a", Message: "mine"}))
	got, err := b.List(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedis_TrimsToMaxKeep(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedis(t, "s1")

	total := DefaultMaxKeep + 5
	for i := 0; i < total; i++ {
		require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "a", Message: fmt.Sprint(i), Timestamp: int64(i)}))
	}

	got, err := r.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, DefaultMaxKeep)
	assert.Equal(t, "5", got[0].Message)
	assert.Equal(t, fmt.Sprint(total-1), got[len(got)-1].Message)
}

func TestRedis_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, "s1")

	require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "a", Message: "hi"}))
	assert.Equal(t, DefaultTTL, mr.TTL("quoridor:chat:s1:m1"))

	mr.FastForward(DefaultTTL / 2)
	require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "a", Message: "again"}))
	// each append pushes expiry out again
	assert.Equal(t, DefaultTTL, mr.TTL("quoridor:chat:s1:m1"))

	mr.FastForward(DefaultTTL)
	got, err := r.List(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedis_Clear(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, "s1")

	require.NoError(t, r.Append(ctx, "m1", types.ChatMessage{User: "a", Message: "hi"}))
	require.NoError(t, r.Append(ctx, "m2", types.ChatMessage{User: "a", Message: "keep"}))
	require.NoError(t, r.Clear(ctx, "m1"))

	assert.False(t, mr.Exists("quoridor:chat:s1:m1"))
	got, err := r.List(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := r.List(ctx, "m2")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	// clearing an unknown match is not an error
	assert.NoError(t, r.Clear(ctx, "nope"))
}

func TestNewRedis_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+mr.Addr(), "s1")
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Append(context.Background(), "m1", types.ChatMessage{User: "a", Message: "hi"}))
	assert.True(t, mr.Exists("quoridor:chat:s1:m1"))
}
