package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmcleod/stopit/storage"
	"github.com/jmcleod/stopit/storage/storagetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewRepositoryFromFile(t.Context(), filepath.Join(t.TempDir(), "stopit.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return newTestStore(t)
	})
}

func TestSQLiteStorage_EnsureSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, EnsureSchema(t.Context(), s.db))
	require.NoError(t, EnsureSchema(t.Context(), s.db))
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, EnsureSchema(t.Context(), db))

	s := NewRepository(db)
	rec, err := s.Create(t.Context(), &storage.Record{Collection: storage.CollectionPlans, Username: "alice", Data: "p"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.ID)

	got, err := s.Get(t.Context(), "alice", storage.CollectionPlans, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, storage.CollectionPlans, got.Collection)
	assert.True(t, got.Timestamp.Equal(rec.Timestamp))
}
