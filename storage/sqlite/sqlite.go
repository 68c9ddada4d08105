// Package sqlite implements storage.Repository on SQLite through the pure-Go
// modernc.org/sqlite driver.
//
// Each collection has its own table keyed by (username, key). Per-user
// sequences for logs and plans live in the sequences table and advance inside
// the inserting transaction. Timestamps are stored as Unix nanoseconds.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmcleod/stopit/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store implements storage.Repository backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// NewRepository returns a Repository over an open database whose schema has
// already been ensured.
func NewRepository(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewRepositoryFromFile opens (creating if needed) the database at path and
// ensures the schema.
func NewRepositoryFromFile(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, storage.Wrap("opening sqlite db", err)
	}
	// a single writer connection keeps sequence allocation serialized
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, storage.Wrap("ensuring schema", err)
	}
	return NewRepository(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return storage.Wrap("closing sqlite db", s.db.Close())
}

func table(c storage.Collection) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown collection %q", storage.ErrInvalidRecord, c)
	}
	return string(c), nil
}

func (s *Store) CreateCredential(ctx context.Context, cred *storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateCredential(cred); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (username, password_hash, salt, iterations, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO NOTHING`,
		cred.Username, cred.PasswordHash, cred.Salt, cred.Iterations, cred.CreatedAt.UnixNano())
	if err != nil {
		return storage.Wrap("create credential", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("create credential", err)
	}
	if n == 0 {
		return fmt.Errorf("credential %s: %w", cred.Username, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, username string) (*storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		cred    storage.Credential
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, salt, iterations, created_at
		FROM credentials WHERE username = ?`, username).
		Scan(&cred.Username, &cred.PasswordHash, &cred.Salt, &cred.Iterations, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", username, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Wrap("get credential", err)
	}
	cred.CreatedAt = time.Unix(0, created).UTC()
	return &cred, nil
}

func (s *Store) Create(ctx context.Context, rec *storage.Record) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := storage.PrepareCreate(rec, s.now())
	if err != nil {
		return nil, err
	}
	tbl, err := table(out.Collection)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if out.Collection.Sequenced() {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO sequences (username, collection, next_id) VALUES (?, ?, 1)
			ON CONFLICT(username, collection) DO UPDATE SET next_id = sequences.next_id + 1
			RETURNING next_id`, out.Username, string(out.Collection)).Scan(&id)
		if err != nil {
			return nil, storage.Wrap("create record: next id", err)
		}
		out.ID = uint64(id)
		out.Key = storage.SequenceKey(out.ID)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO `+tbl+` (username, key, id, badge_id, data, ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username, key) DO NOTHING`,
		out.Username, out.Key, int64(out.ID), out.BadgeID, out.Data, out.Timestamp.UnixNano())
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s/%s: %w", out.Collection, out.Key, storage.ErrAlreadyExists)
	}
	if err := tx.Commit(); err != nil {
		return nil, storage.Wrap("create record", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, c storage.Collection) (*storage.Record, error) {
	var (
		rec storage.Record
		id  int64
		ts  int64
	)
	if err := row.Scan(&rec.Username, &rec.Key, &id, &rec.BadgeID, &rec.Data, &ts); err != nil {
		return nil, err
	}
	rec.Collection = c
	rec.ID = uint64(id)
	rec.Timestamp = time.Unix(0, ts).UTC()
	return &rec, nil
}

func (s *Store) Get(ctx context.Context, username string, c storage.Collection, key string) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := table(c)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT username, key, id, badge_id, data, ts
		FROM `+tbl+` WHERE username = ? AND key = ?`, username, key)
	rec, err := scanRecord(row, c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Wrap("get record", err)
	}
	return rec, nil
}

func (s *Store) ListByUsername(ctx context.Context, username string, c storage.Collection) ([]*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := table(c)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, key, id, badge_id, data, ts
		FROM `+tbl+` WHERE username = ? ORDER BY key`, username)
	if err != nil {
		return nil, storage.Wrap("list records", err)
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows, c)
		if err != nil {
			return nil, storage.Wrap("scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
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
	tbl, err := table(rec.Collection)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+tbl+` (username, key, id, badge_id, data, ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username, key) DO UPDATE SET
			id = excluded.id, badge_id = excluded.badge_id, data = excluded.data, ts = excluded.ts`,
		rec.Username, rec.StoreKey(), int64(rec.ID), rec.BadgeID, rec.Data, rec.Timestamp.UnixNano())
	return storage.Wrap("put record", err)
}

func (s *Store) Delete(ctx context.Context, username string, c storage.Collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tbl, err := table(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE username = ? AND key = ?`, username, key)
	if err != nil {
		return storage.Wrap("delete record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("delete record", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	return nil
}

// DeleteAllForUser removes every row owned by username in one transaction.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("delete user", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range storage.Collections {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(c)+` WHERE username = ?`, username); err != nil {
			return storage.Wrap("delete user: "+string(c), err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sequences WHERE username = ?`, username); err != nil {
		return storage.Wrap("delete user: sequences", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE username = ?`, username); err != nil {
		return storage.Wrap("delete user: credential", err)
	}
	return storage.Wrap("delete user", tx.Commit())
}
