package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// backends runs fn once per UserStore implementation.
func backends(t *testing.T, fn func(t *testing.T, s UserStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("gorm", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		g, err := NewGorm(db)
		require.NoError(t, err)
		t.Cleanup(func() { _ = g.Close() })
		fn(t, g)
	})
}

func TestStore_CreateAndAuthenticate(t *testing.T) {
	backends(t, testCreateAndAuthenticate)
}

func TestStore_Leaderboard(t *testing.T) {
	backends(t, testLeaderboard)
}

func testCreateAndAuthenticate(t *testing.T, s UserStore) {
	ctx := context.Background()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, User{Email: "a@x.io", Username: "alice", PasswordHash: hash}))

	assert.ErrorIs(t, s.Create(ctx, User{Email: "a@x.io", Username: "other"}), ErrEmailTaken)
	assert.ErrorIs(t, s.Create(ctx, User{Email: "b@x.io", Username: "ALICE"}), ErrUsernameTaken)

	u, err := Authenticate(ctx, s, "a@x.io", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = Authenticate(ctx, s, "a@x.io", "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)
	_, err = Authenticate(ctx, s, "nobody@x.io", "hunter2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, User{Email: "guest-1", Username: "g", Guest: true}))
	_, err = Authenticate(ctx, s, "guest-1", "")
	assert.ErrorIs(t, err, ErrBadPassword, "guests never log in with a password")
}

func testLeaderboard(t *testing.T, s UserStore) {
	ctx := context.Background()
	for _, u := range []User{
		{Email: "a", Username: "alice"},
		{Email: "b", Username: "bob"},
		{Email: "c", Username: "carol"},
	} {
		require.NoError(t, s.Create(ctx, u))
	}

	// alice 3-0, bob 1-2, carol 1-0; the CPU has no account
	require.NoError(t, s.RecordResult(ctx, "a", "b"))
	require.NoError(t, s.RecordResult(ctx, "a", "b"))
	require.NoError(t, s.RecordResult(ctx, "a", "|CPU|"))
	require.NoError(t, s.RecordResult(ctx, "b", "|CPU|"))
	require.NoError(t, s.RecordResult(ctx, "c", "|CPU|"))

	board, err := s.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].Username)
	assert.Equal(t, 3, board[0].Wins)
	assert.Equal(t, "carol", board[1].Username)

	top, err := s.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	b, err := s.ByEmail(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Wins)
	assert.Equal(t, 2, b.Loses)
}

func TestStore_ByEmailMissing(t *testing.T) {
	backends(t, func(t *testing.T, s UserStore) {
		_, err := s.ByEmail(context.Background(), "ghost@x.io")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
