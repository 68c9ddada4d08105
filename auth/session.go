package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmcleod/stopit/crypto"
	"github.com/jmcleod/stopit/internal/util"
	"github.com/jmcleod/stopit/internal/uuid"
	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/storage"
)

// Session is the explicit context of one logged-in user. It holds the
// derived encryption key in a memguard enclave; the password itself is not
// retained. Close destroys the key and cannot be undone.
type Session struct {
	id        string
	username  string
	salt      []byte
	createdAt time.Time

	mu     sync.RWMutex
	key    *crypto.Key
	closed bool
}

func newSession(username string, salt []byte, key *crypto.Key, now time.Time) *Session {
	return &Session{
		id:        uuid.New(),
		username:  username,
		salt:      util.CopyBytes(salt),
		createdAt: now,
		key:       key,
	}
}

// ID returns the random identifier of this session.
func (s *Session) ID() string { return s.id }

// Username returns the authenticated user.
func (s *Session) Username() string { return s.username }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Close destroys the key material. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.key.Destroy()
	util.WipeBytes(s.salt)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) liveKey() (*crypto.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrAuth
	}
	return s.key, nil
}

func mapKeyErr(err error) error {
	if errors.Is(err, crypto.ErrKeyDestroyed) {
		return ErrAuth
	}
	return err
}

// Encrypt seals value under the session key.
func (s *Session) Encrypt(value any) (string, error) {
	key, err := s.liveKey()
	if err != nil {
		return "", err
	}
	blob, err := key.Seal(value)
	return blob, mapKeyErr(err)
}

// Decrypt opens blob and returns the plaintext bytes.
func (s *Session) Decrypt(blob string) ([]byte, error) {
	key, err := s.liveKey()
	if err != nil {
		return nil, err
	}
	plain, err := key.Open(blob)
	return plain, mapKeyErr(err)
}

// DecryptValue opens blob into out.
func (s *Session) DecryptValue(blob string, out any) error {
	key, err := s.liveKey()
	if err != nil {
		return err
	}
	return mapKeyErr(key.OpenValue(blob, out))
}

func (s *Session) open(rec *storage.Record, out any) error {
	if rec.Username != s.username {
		return fmt.Errorf("%w: record belongs to another user", ErrAuth)
	}
	if err := s.DecryptValue(rec.Data, out); err != nil {
		return fmt.Errorf("%s/%s: %w", rec.Collection, rec.StoreKey(), err)
	}
	return nil
}

// OpenProfile decrypts a profile record.
func (s *Session) OpenProfile(rec *storage.Record) (models.Profile, error) {
	p := models.DefaultProfile()
	if err := s.open(rec, &p); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// OpenPreferences decrypts a preferences record.
func (s *Session) OpenPreferences(rec *storage.Record) (models.Preferences, error) {
	p := models.DefaultPreferences()
	if err := s.open(rec, &p); err != nil {
		return models.Preferences{}, err
	}
	return p, nil
}

// OpenLog decrypts a log record and stamps it with the record's ID and
// timestamp.
func (s *Session) OpenLog(rec *storage.Record) (models.LogEntry, error) {
	var l models.LogEntry
	if err := s.open(rec, &l); err != nil {
		return models.LogEntry{}, err
	}
	l.ID = rec.ID
	l.Timestamp = rec.Timestamp
	l.Normalize()
	return l, nil
}

// OpenBadge decrypts a badge record. The record's badge ID and timestamp win
// over the snapshot.
func (s *Session) OpenBadge(rec *storage.Record) (models.Badge, error) {
	var b models.Badge
	if err := s.open(rec, &b); err != nil {
		return models.Badge{}, err
	}
	if rec.BadgeID != "" {
		b.ID = rec.BadgeID
	}
	if !rec.Timestamp.IsZero() {
		b.UnlockedAt = rec.Timestamp
	}
	return b, nil
}

// OpenPlan decrypts a plan record and stamps it with the record's ID and
// creation time.
func (s *Session) OpenPlan(rec *storage.Record) (models.PlanEntry, error) {
	var p models.PlanEntry
	if err := s.open(rec, &p); err != nil {
		return models.PlanEntry{}, err
	}
	p.ID = rec.ID
	p.CreatedAt = rec.Timestamp
	return p, nil
}

// OpenAll lists coll for username and decrypts every record with open. It
// returns nil when the collection is empty.
func OpenAll[T any](ctx context.Context, repo storage.Repository, username string, coll storage.Collection, open func(*storage.Record) (T, error)) ([]T, error) {
	recs, err := repo.ListByUsername(ctx, username, coll)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", coll, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := open(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
