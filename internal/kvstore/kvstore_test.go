package kvstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/invoice-desk/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "kv.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())
	return db
}

func TestSQLiteStore(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLiteStore(db, LocalNamespace, zap.NewNop())

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := store.Get("invoices")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set("invoices", "[]"))
		v, ok, err := store.Get("invoices")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "[]", v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set("attempts", "1"))
		require.NoError(t, store.Set("attempts", "2"))
		v, _, err := store.Get("attempts")
		require.NoError(t, err)
		assert.Equal(t, "2", v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete("attempts"))
		require.NoError(t, store.Delete("attempts"))
		_, ok, err := store.Get("attempts")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		other := NewSQLiteStore(db, "other", zap.NewNop())
		_, ok, err := other.Get("invoices")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSessions(t *testing.T) {
	t.Run("one store per id", func(t *testing.T) {
		sessions := NewSessions(0)
		a := sessions.Lookup("a")
		require.NoError(t, a.Set("auth", "true"))

		v, ok, _ := sessions.Lookup("a").Get("auth")
		assert.True(t, ok)
		assert.Equal(t, "true", v)

		_, ok, _ = sessions.Lookup("b").Get("auth")
		assert.False(t, ok)
	})

	t.Run("end discards state", func(t *testing.T) {
		sessions := NewSessions(0)
		require.NoError(t, sessions.Lookup("a").Set("auth", "true"))
		sessions.End("a")

		_, ok, _ := sessions.Lookup("a").Get("auth")
		assert.False(t, ok)
	})

	t.Run("idle sessions expire", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		sessions := NewSessions(time.Hour)
		sessions.now = func() time.Time { return now }

		require.NoError(t, sessions.Lookup("a").Set("auth", "true"))
		assert.Equal(t, 1, sessions.Len())

		now = now.Add(2 * time.Hour)
		assert.Equal(t, 0, sessions.Len())
	})

	t.Run("ids are unique", func(t *testing.T) {
		sessions := NewSessions(0)
		assert.NotEqual(t, sessions.NewID(), sessions.NewID())
	})
}
