// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmcleod/stopit/storage"
)

type userData struct {
	records map[storage.Collection]map[string]*storage.Record
	seq     map[storage.Collection]uint64
}

func newUserData() *userData {
	return &userData{
		records: make(map[storage.Collection]map[string]*storage.Record),
		seq:     make(map[storage.Collection]uint64),
	}
}

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu    sync.RWMutex
	creds map[string]*storage.Credential
	users map[string]*userData
	now   func() time.Time
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		creds: make(map[string]*storage.Credential),
		users: make(map[string]*userData),
		now:   time.Now,
	}
}

func cloneCredential(c *storage.Credential) *storage.Credential {
	cp := *c
	return &cp
}

func (r *Repository) CreateCredential(ctx context.Context, cred *storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateCredential(cred); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creds[cred.Username]; ok {
		return fmt.Errorf("credential %s: %w", cred.Username, storage.ErrAlreadyExists)
	}
	r.creds[cred.Username] = cloneCredential(cred)
	return nil
}

func (r *Repository) GetCredential(ctx context.Context, username string) (*storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[username]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", username, storage.ErrNotFound)
	}
	return cloneCredential(c), nil
}

func (r *Repository) userLocked(username string) *userData {
	u, ok := r.users[username]
	if !ok {
		u = newUserData()
		r.users[username] = u
	}
	return u
}

func (r *Repository) Create(ctx context.Context, rec *storage.Record) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := storage.PrepareCreate(rec, r.now())
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.userLocked(out.Username)
	if u.records[out.Collection] == nil {
		u.records[out.Collection] = make(map[string]*storage.Record)
	}
	bucket := u.records[out.Collection]
	if out.Collection.Sequenced() {
		u.seq[out.Collection]++
		out.ID = u.seq[out.Collection]
		out.Key = storage.SequenceKey(out.ID)
	} else if _, ok := bucket[out.Key]; ok {
		return nil, fmt.Errorf("%s/%s: %w", out.Collection, out.Key, storage.ErrAlreadyExists)
	}
	bucket[out.Key] = out.Clone()
	return out, nil
}

func (r *Repository) Get(ctx context.Context, username string, c storage.Collection, key string) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	rec, ok := u.records[c][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (r *Repository) ListByUsername(ctx context.Context, username string, c storage.Collection) ([]*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	bucket := u.records[c]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*storage.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, bucket[k].Clone())
	}
	return out, nil
}

func (r *Repository) Put(ctx context.Context, rec *storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateKeyed(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.userLocked(rec.Username)
	if u.records[rec.Collection] == nil {
		u.records[rec.Collection] = make(map[string]*storage.Record)
	}
	cp := rec.Clone()
	cp.Key = rec.StoreKey()
	u.records[rec.Collection][cp.Key] = cp
	return nil
}

func (r *Repository) Delete(ctx context.Context, username string, c storage.Collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	if _, ok := u.records[c][key]; !ok {
		return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	delete(u.records[c], key)
	return nil
}

// DeleteAllForUser drops the user's records and credential together. Deleting
// an unknown user is a no-op.
func (r *Repository) DeleteAllForUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, username)
	delete(r.creds, username)
	return nil
}

func (r *Repository) Close() error { return nil }
