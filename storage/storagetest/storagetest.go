// Package storagetest holds the behavioural checks every storage.Repository
// backend must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/stopit/storage"
)

// Factory returns an empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Repository

func credential(username string) *storage.Credential {
	return &storage.Credential{
		Username:     username,
		PasswordHash: "0011aabb",
		Salt:         "c2FsdHNhbHRzYWx0c2FsdA==",
		Iterations:   100_000,
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// Run exercises newRepo against the Repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newRepo(t)) })
	t.Run("KeyedRecords", func(t *testing.T) { testKeyedRecords(t, newRepo(t)) })
	t.Run("SequencedRecords", func(t *testing.T) { testSequencedRecords(t, newRepo(t)) })
	t.Run("Badges", func(t *testing.T) { testBadges(t, newRepo(t)) })
	t.Run("UserIsolation", func(t *testing.T) { testUserIsolation(t, newRepo(t)) })
	t.Run("DeleteAllForUser", func(t *testing.T) { testDeleteAll(t, newRepo(t)) })
	t.Run("InvalidRecords", func(t *testing.T) { testInvalid(t, newRepo(t)) })
	t.Run("ConcurrentCredentialCreate", func(t *testing.T) { testConcurrentCreate(t, newRepo(t)) })
}

func testCredentials(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	_, err := repo.GetCredential(ctx, "alice")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.CreateCredential(ctx, credential("alice")))
	got, err := repo.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "0011aabb", got.PasswordHash)
	assert.Equal(t, 100_000, got.Iterations)
	assert.True(t, got.CreatedAt.Equal(credential("alice").CreatedAt))

	err = repo.CreateCredential(ctx, credential("alice"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	// usernames are case-sensitive
	require.NoError(t, repo.CreateCredential(ctx, credential("Alice")))
}

func testKeyedRecords(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "alice", storage.CollectionProfile, "alice")
	require.ErrorIs(t, err, storage.ErrNotFound)

	rec := &storage.Record{Collection: storage.CollectionProfile, Key: "alice", Username: "alice", Data: "blob-1", Timestamp: ts}
	created, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Key)

	_, err = repo.Create(ctx, rec)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	rec.Data = "blob-2"
	rec.Timestamp = ts.Add(time.Hour)
	require.NoError(t, repo.Put(ctx, rec))

	got, err := repo.Get(ctx, "alice", storage.CollectionProfile, "alice")
	require.NoError(t, err)
	assert.Equal(t, "blob-2", got.Data)
	assert.True(t, got.Timestamp.Equal(ts.Add(time.Hour)))

	// upsert creates when absent
	pref := &storage.Record{Collection: storage.CollectionPreferences, Key: "alice", Username: "alice", Data: "prefs"}
	require.NoError(t, repo.Put(ctx, pref))
	list, err := repo.ListByUsername(ctx, "alice", storage.CollectionPreferences)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "prefs", list[0].Data)

	require.NoError(t, repo.Delete(ctx, "alice", storage.CollectionProfile, "alice"))
	err = repo.Delete(ctx, "alice", storage.CollectionProfile, "alice")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testSequencedRecords(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	var ids []uint64
	for i := range 3 {
		created, err := repo.Create(ctx, &storage.Record{
			Collection: storage.CollectionLogs,
			Username:   "alice",
			Data:       fmt.Sprintf("log-%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, storage.SequenceKey(created.ID), created.Key)
		assert.False(t, created.Timestamp.IsZero(), "store assigns a timestamp")
		ids = append(ids, created.ID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	list, err := repo.ListByUsername(ctx, "alice", storage.CollectionLogs)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, rec := range list {
		assert.Equal(t, ids[i], rec.ID)
		assert.Equal(t, fmt.Sprintf("log-%d", i), rec.Data)
	}

	require.NoError(t, repo.Delete(ctx, "alice", storage.CollectionLogs, storage.SequenceKey(ids[1])))
	created, err := repo.Create(ctx, &storage.Record{Collection: storage.CollectionLogs, Username: "alice", Data: "log-3"})
	require.NoError(t, err)
	assert.Greater(t, created.ID, ids[2], "ids are never reused")

	// plans have their own sequence
	plan, err := repo.Create(ctx, &storage.Record{Collection: storage.CollectionPlans, Username: "alice", Data: "plan"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), plan.ID)
}

func testBadges(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	unlocked := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, &storage.Record{
			Collection: storage.CollectionBadges,
			Key:        storage.BadgeKey("alice", id),
			Username:   "alice",
			BadgeID:    id,
			Data:       "badge-" + id,
			Timestamp:  unlocked,
		})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &storage.Record{
		Collection: storage.CollectionBadges,
		Key:        storage.BadgeKey("alice", "a"),
		Username:   "alice",
		BadgeID:    "a",
		Data:       "dup",
	})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	require.NoError(t, repo.Delete(ctx, "alice", storage.CollectionBadges, storage.BadgeKey("alice", "a")))
	list, err := repo.ListByUsername(ctx, "alice", storage.CollectionBadges)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].BadgeID)
	assert.Equal(t, "c", list[1].BadgeID)
	assert.True(t, list[0].Timestamp.Equal(unlocked))
}

func testUserIsolation(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	for _, u := range []string{"alice", "bob"} {
		_, err := repo.Create(ctx, &storage.Record{Collection: storage.CollectionLogs, Username: u, Data: u})
		require.NoError(t, err)
	}
	list, err := repo.ListByUsername(ctx, "bob", storage.CollectionLogs)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].Data)
	assert.Equal(t, uint64(1), list[0].ID, "sequences are per user")

	empty, err := repo.ListByUsername(ctx, "carol", storage.CollectionLogs)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDeleteAll(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	for _, u := range []string{"alice", "bob"} {
		require.NoError(t, repo.CreateCredential(ctx, credential(u)))
		for _, c := range storage.Collections {
			rec := &storage.Record{Collection: c, Username: u, Data: "x"}
			if !c.Sequenced() {
				rec.Key = u
			}
			if c == storage.CollectionBadges {
				rec.Key = storage.BadgeKey(u, "b1")
				rec.BadgeID = "b1"
			}
			_, err := repo.Create(ctx, rec)
			require.NoError(t, err)
		}
	}

	require.NoError(t, repo.DeleteAllForUser(ctx, "alice"))

	_, err := repo.GetCredential(ctx, "alice")
	require.ErrorIs(t, err, storage.ErrNotFound)
	for _, c := range storage.Collections {
		list, err := repo.ListByUsername(ctx, "alice", c)
		require.NoError(t, err)
		assert.Empty(t, list, "collection %s", c)

		other, err := repo.ListByUsername(ctx, "bob", c)
		require.NoError(t, err)
		assert.Len(t, other, 1, "collection %s", c)
	}
	_, err = repo.GetCredential(ctx, "bob")
	require.NoError(t, err)

	// the username can be registered again
	require.NoError(t, repo.CreateCredential(ctx, credential("alice")))
}

func testInvalid(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	cases := []*storage.Record{
		nil,
		{Collection: "nope", Key: "k", Username: "alice"},
		{Collection: storage.CollectionProfile, Key: "alice"},
		{Collection: storage.CollectionProfile, Username: "alice"},
	}
	for i, rec := range cases {
		_, err := repo.Create(ctx, rec)
		assert.ErrorIs(t, err, storage.ErrInvalidRecord, "case %d", i)
	}
	err := repo.Put(ctx, &storage.Record{Collection: storage.CollectionLogs, Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)
	err = repo.CreateCredential(ctx, &storage.Credential{})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.GetCredential(canceled, "alice")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func testConcurrentCreate(t *testing.T, repo storage.Repository) {
	ctx := t.Context()
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.CreateCredential(ctx, credential("racer")); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, storage.ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}
