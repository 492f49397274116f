package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
)

func newStore(t *testing.T) *SQLite {
	t.Helper()
	s := New(config.DatabaseConfig{Provider: "sqlite", URI: filepath.Join(t.TempDir(), "nested", "credits.db")})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Disconnect(context.Background()) })
	return s
}

func TestEnsureAccountGrantsOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	b, err := s.EnsureAccount(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, b)

	b, err = s.EnsureAccount(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, b)

	entries, err := s.Ledger(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "initial grant", entries[0].Reason)
}

func TestDebitAndGrant(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.EnsureAccount(ctx, "u1", 2)
	require.NoError(t, err)

	b, err := s.Debit(ctx, "u1", 1.5, "query")
	require.NoError(t, err)
	assert.Equal(t, 0.5, b)

	_, err = s.Debit(ctx, "u1", 1, "query")
	assert.ErrorIs(t, err, db.ErrInsufficientCredits)

	b, err = s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, b)

	b, err = s.Grant(ctx, "u1", 5, "top-up")
	require.NoError(t, err)
	assert.Equal(t, 5.5, b)

	entries, err := s.Ledger(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "top-up", entries[0].Reason)
	assert.Equal(t, -1.5, entries[1].Amount)
	assert.Equal(t, 0.5, entries[1].Balance)
}

func TestUnknownAccount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.Debit(ctx, "ghost", 1, "query")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.Grant(ctx, "ghost", -1, "bad")
	assert.Error(t, err)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.EnsureAccount(ctx, "u1", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Debit(ctx, "u1", 1, "query"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	b, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credits.db")
	for i := 0; i < 2; i++ {
		s := New(config.DatabaseConfig{URI: path})
		require.NoError(t, s.Connect(context.Background()))
		require.NoError(t, s.Ping(context.Background()))

		version, dirty, err := s.SchemaVersion()
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
		assert.False(t, dirty)

		require.NoError(t, s.Disconnect(context.Background()))
	}
}
