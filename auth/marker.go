package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// MarkerEntry records that a session existed. It carries no key material and
// cannot be used to resume decryption.
type MarkerEntry struct {
	Username string    `json:"username"`
	SetAt    time.Time `json:"set_at"`
}

// Marker persists the session marker. Load returns false when no marker is set.
type Marker interface {
	Set(ctx context.Context, entry MarkerEntry) error
	Load(ctx context.Context) (MarkerEntry, bool, error)
	Clear(ctx context.Context) error
}

// MemoryMarker is a process-local marker suitable for tests and the library
// default.
type MemoryMarker struct {
	mu    sync.RWMutex
	entry *MarkerEntry
}

// NewMemoryMarker returns an empty in-memory marker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{}
}

func (m *MemoryMarker) Set(_ context.Context, entry MarkerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = &entry
	return nil
}

func (m *MemoryMarker) Load(_ context.Context) (MarkerEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		return MarkerEntry{}, false, nil
	}
	return *m.entry, true, nil
}

func (m *MemoryMarker) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
	return nil
}

var (
	markerBucket = []byte("__session_marker")
	markerKey    = []byte("current")
)

// BoltMarker keeps the marker in a dedicated bucket so that a later process
// sharing the database can see that a session existed.
type BoltMarker struct {
	db *bbolt.DB
}

// NewBoltMarker returns a marker stored in db, creating its bucket.
func NewBoltMarker(db *bbolt.DB) (*BoltMarker, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(markerBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating marker bucket: %w", err)
	}
	return &BoltMarker{db: db}, nil
}

func (m *BoltMarker) Set(ctx context.Context, entry MarkerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return m.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(markerBucket)
		if err != nil {
			return err
		}
		return b.Put(markerKey, data)
	})
}

func (m *BoltMarker) Load(ctx context.Context) (MarkerEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return MarkerEntry{}, false, err
	}
	var (
		entry MarkerEntry
		found bool
	)
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(markerBucket)
		if b == nil {
			return nil
		}
		data := b.Get(markerKey)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return MarkerEntry{}, false, err
	}
	return entry, found, nil
}

func (m *BoltMarker) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(markerBucket)
		if b == nil {
			return nil
		}
		return b.Delete(markerKey)
	})
}
