package memory

import (
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

func TestMemoryRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return NewRepository()
	})
}

func TestMemoryRepository_Isolation(t *testing.T) {
	repo := NewRepository()
	ctx := t.Context()

	rec := &storage.Record{Collection: storage.CollectionProfile, Key: "alice", Username: "alice", Data: "one"}
	require.NoError(t, repo.Put(ctx, rec))
	rec.Data = "mutated"

	got, err := repo.Get(ctx, "alice", storage.CollectionProfile, "alice")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Data)

	got.Data = "mutated again"
	again, err := repo.Get(ctx, "alice", storage.CollectionProfile, "alice")
	require.NoError(t, err)
	assert.Equal(t, "one", again.Data)
}
