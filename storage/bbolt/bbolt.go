// Package bbolt provides a BBolt-backed storage repository.
//
// Layout: one top-level bucket holds every credential keyed by username. Each
// user gets a top-level bucket "user:<name>" with one nested bucket per
// collection; sequenced collections draw IDs from their nested bucket's
// sequence, so IDs are monotonic per user per collection.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/stopit/storage"
)

var credentialsBucket = []byte("__credentials")

func userBucket(username string) []byte {
	return []byte("user:" + username)
}

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, storage.Wrap("opening bbolt db", err)
	}
	return NewRepository(db), nil
}

// DB returns the underlying database so other components, such as the
// session marker, can share the file.
func (s *Store) DB() *bbolt.DB {
	return s.db
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return storage.Wrap("closing bbolt db", s.db.Close())
}

func (s *Store) CreateCredential(ctx context.Context, cred *storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateCredential(cred); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(credentialsBucket)
		if err != nil {
			return err
		}
		if b.Get([]byte(cred.Username)) != nil {
			return fmt.Errorf("credential %s: %w", cred.Username, storage.ErrAlreadyExists)
		}
		return b.Put([]byte(cred.Username), data)
	})
	return storage.Wrap("create credential", err)
}

func (s *Store) GetCredential(ctx context.Context, username string) (*storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cred storage.Credential
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		if b == nil {
			return fmt.Errorf("credential %s: %w", username, storage.ErrNotFound)
		}
		data := b.Get([]byte(username))
		if data == nil {
			return fmt.Errorf("credential %s: %w", username, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &cred)
	})
	if err != nil {
		return nil, storage.Wrap("get credential", err)
	}
	return &cred, nil
}

func (s *Store) collectionBucket(tx *bbolt.Tx, username string, c storage.Collection) (*bbolt.Bucket, error) {
	ub, err := tx.CreateBucketIfNotExists(userBucket(username))
	if err != nil {
		return nil, err
	}
	return ub.CreateBucketIfNotExists([]byte(c))
}

func lookupBucket(tx *bbolt.Tx, username string, c storage.Collection) *bbolt.Bucket {
	ub := tx.Bucket(userBucket(username))
	if ub == nil {
		return nil
	}
	return ub.Bucket([]byte(c))
}

func (s *Store) Create(ctx context.Context, rec *storage.Record) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := storage.PrepareCreate(rec, s.now())
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.collectionBucket(tx, out.Username, out.Collection)
		if err != nil {
			return err
		}
		if out.Collection.Sequenced() {
			id, err := b.NextSequence()
			if err != nil {
				return err
			}
			out.ID = id
			out.Key = storage.SequenceKey(id)
		} else if b.Get([]byte(out.Key)) != nil {
			return fmt.Errorf("%s/%s: %w", out.Collection, out.Key, storage.ErrAlreadyExists)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return b.Put([]byte(out.Key), data)
	})
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, username string, c storage.Collection, key string) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := lookupBucket(tx, username, c)
		if b == nil {
			return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, storage.Wrap("get record", err)
	}
	return &rec, nil
}

func (s *Store) ListByUsername(ctx context.Context, username string, c storage.Collection) ([]*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := lookupBucket(tx, username, c)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec storage.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, storage.Wrap("list records", err)
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateKeyed(rec); err != nil {
		return err
	}
	cp := rec.Clone()
	cp.Key = rec.StoreKey()
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.collectionBucket(tx, cp.Username, cp.Collection)
		if err != nil {
			return err
		}
		return b.Put([]byte(cp.Key), data)
	})
	return storage.Wrap("put record", err)
}

func (s *Store) Delete(ctx context.Context, username string, c storage.Collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := lookupBucket(tx, username, c)
		if b == nil || b.Get([]byte(key)) == nil {
			return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
		}
		return b.Delete([]byte(key))
	})
	return storage.Wrap("delete record", err)
}

// DeleteAllForUser removes the user's bucket and credential in one
// transaction. Deleting an unknown user is a no-op.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(userBucket(username)) != nil {
			if err := tx.DeleteBucket(userBucket(username)); err != nil {
				return err
			}
		}
		if b := tx.Bucket(credentialsBucket); b != nil {
			return b.Delete([]byte(username))
		}
		return nil
	})
	return storage.Wrap("delete user", err)
}
