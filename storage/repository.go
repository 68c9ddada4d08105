// Package storage defines the persistent store for credentials and encrypted
// user records. Backends live in the subpackages; the store never sees
// plaintext, only ciphertext blobs produced by package crypto.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStorage wraps every failure of the underlying storage engine.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when a record or credential does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid record")
)

// Collection names one of the per-user record collections.
type Collection string

const (
	CollectionProfile     Collection = "profile"
	CollectionLogs        Collection = "logs"
	CollectionBadges      Collection = "badges"
	CollectionPlans       Collection = "plans"
	CollectionPreferences Collection = "preferences"
)

// Collections lists every record collection in a stable order.
var Collections = []Collection{
	CollectionProfile,
	CollectionLogs,
	CollectionBadges,
	CollectionPlans,
	CollectionPreferences,
}

// Sequenced reports whether records in c receive a store-assigned ID.
func (c Collection) Sequenced() bool {
	return c == CollectionLogs || c == CollectionPlans
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Credential is the login record for a user. It holds no key material: the
// password hash is an independent derivation from the encryption key.
type Credential struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Salt         string    `json:"salt"`
	Iterations   int       `json:"iterations"`
	CreatedAt    time.Time `json:"created_at"`
}

// Record is a stored row in one of the record collections. Data is an opaque
// ciphertext blob.
//
// Key is the primary key within (Username, Collection): the username for
// profile and preferences, BadgeKey for badges and SequenceKey(ID) for logs and
// plans. Timestamp is the log timestamp, badge unlock time, plan creation time
// or profile/preferences update time.
type Record struct {
	Collection Collection `json:"collection"`
	Key        string     `json:"key"`
	ID         uint64     `json:"id,omitempty"`
	Username   string     `json:"username"`
	BadgeID    string     `json:"badge_id,omitempty"`
	Data       string     `json:"data"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Clone returns a copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// StoreKey returns the record key, falling back to SequenceKey(ID) for
// sequenced records that only carry an ID.
func (r *Record) StoreKey() string {
	if r.Key == "" && r.Collection.Sequenced() && r.ID != 0 {
		return SequenceKey(r.ID)
	}
	return r.Key
}

// SequenceKey is the record key for a store-assigned ID. Keys sort in ID order.
func SequenceKey(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// BadgeKey is the composite record key for a user's badge.
func BadgeKey(username, badgeID string) string {
	return username + "_" + badgeID
}

// Repository is the persistent store. Every write to a single record is atomic;
// no cross-record transactions are offered except DeleteAllForUser.
type Repository interface {
	// CreateCredential stores cred, failing with ErrAlreadyExists if the
	// username is taken (exact, case-sensitive match).
	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, username string) (*Credential, error)

	// Create inserts rec. For sequenced collections the store assigns ID and Key
	// and returns the stored record; otherwise an existing Key is ErrAlreadyExists.
	Create(ctx context.Context, rec *Record) (*Record, error)
	Get(ctx context.Context, username string, c Collection, key string) (*Record, error)
	// ListByUsername returns every record of c owned by username, in key order.
	ListByUsername(ctx context.Context, username string, c Collection) ([]*Record, error)
	// Put upserts rec by (Username, Collection, Key).
	Put(ctx context.Context, rec *Record) error
	// Delete removes one record, returning ErrNotFound if absent.
	Delete(ctx context.Context, username string, c Collection, key string) error

	// DeleteAllForUser removes every record in every collection plus the
	// credential for username.
	DeleteAllForUser(ctx context.Context, username string) error

	Close() error
}

// Wrap marks err as a storage engine failure. Sentinels defined in this
// package pass through so callers can still match them.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrInvalidRecord) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// ValidateRecord checks the fields every backend requires before a write.
func ValidateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	}
	if !rec.Collection.Valid() {
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidRecord, rec.Collection)
	}
	if rec.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidRecord)
	}
	return nil
}

// ValidateKeyed is ValidateRecord plus a non-empty StoreKey, required by Put.
func ValidateKeyed(rec *Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	if rec.StoreKey() == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	return nil
}

// PrepareCreate validates rec for Create and returns the copy a backend should
// store. keyed collections must carry a key; a zero Timestamp is set to now.
func PrepareCreate(rec *Record, now time.Time) (*Record, error) {
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}
	out := rec.Clone()
	if !out.Collection.Sequenced() && out.Key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = now.UTC()
	}
	return out, nil
}

// ValidateCredential checks a credential before it is stored.
func ValidateCredential(cred *Credential) error {
	if cred == nil || cred.Username == "" {
		return fmt.Errorf("%w: credential username must not be empty", ErrInvalidRecord)
	}
	if cred.PasswordHash == "" || cred.Salt == "" {
		return fmt.Errorf("%w: credential %q is missing hash or salt", ErrInvalidRecord, cred.Username)
	}
	return nil
}
