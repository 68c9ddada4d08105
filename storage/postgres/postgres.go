// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The table layout matches the SQLite backend: one table per collection with
// a composite primary key (username, key), a credentials table and a
// sequences table that hands out per-user IDs for logs and plans inside the
// inserting transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/stopit/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storage.Wrap("connecting to postgres", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}

// Pool returns the underlying connection pool, shared with the session marker.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
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
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (username, password_hash, salt, iterations, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (username) DO NOTHING`,
		cred.Username, cred.PasswordHash, cred.Salt, cred.Iterations, cred.CreatedAt)
	if err != nil {
		return storage.Wrap("create credential", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential %s: %w", cred.Username, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, username string) (*storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cred storage.Credential
	err := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, salt, iterations, created_at
		 FROM credentials WHERE username = $1`, username).
		Scan(&cred.Username, &cred.PasswordHash, &cred.Salt, &cred.Iterations, &cred.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", username, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Wrap("get credential", err)
	}
	cred.CreatedAt = cred.CreatedAt.UTC()
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if out.Collection.Sequenced() {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO sequences (username, collection, next_id) VALUES ($1, $2, 1)
			 ON CONFLICT (username, collection) DO UPDATE SET next_id = sequences.next_id + 1
			 RETURNING next_id`, out.Username, string(out.Collection)).Scan(&id)
		if err != nil {
			return nil, storage.Wrap("create record: next id", err)
		}
		out.ID = uint64(id)
		out.Key = storage.SequenceKey(out.ID)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO `+tbl+` (username, key, id, badge_id, data, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username, key) DO NOTHING`,
		out.Username, out.Key, int64(out.ID), out.BadgeID, out.Data, out.Timestamp)
	if err != nil {
		return nil, storage.Wrap("create record", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s/%s: %w", out.Collection, out.Key, storage.ErrAlreadyExists)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storage.Wrap("create record", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row, c storage.Collection) (*storage.Record, error) {
	var (
		rec storage.Record
		id  int64
	)
	if err := row.Scan(&rec.Username, &rec.Key, &id, &rec.BadgeID, &rec.Data, &rec.Timestamp); err != nil {
		return nil, err
	}
	rec.Collection = c
	rec.ID = uint64(id)
	rec.Timestamp = rec.Timestamp.UTC()
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
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT username, key, id, badge_id, data, ts
		 FROM `+tbl+` WHERE username = $1 AND key = $2`, username, key), c)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT username, key, id, badge_id, data, ts
		 FROM `+tbl+` WHERE username = $1 ORDER BY key`, username)
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+tbl+` (username, key, id, badge_id, data, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username, key)
		 DO UPDATE SET id = $3, badge_id = $4, data = $5, ts = $6`,
		rec.Username, rec.StoreKey(), int64(rec.ID), rec.BadgeID, rec.Data, rec.Timestamp)
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
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+tbl+` WHERE username = $1 AND key = $2`, username, key)
	if err != nil {
		return storage.Wrap("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", c, key, storage.ErrNotFound)
	}
	return nil
}

// DeleteAllForUser removes every row owned by username in one transaction.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Wrap("delete user", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range storage.Collections {
		if _, err := tx.Exec(ctx, `DELETE FROM `+string(c)+` WHERE username = $1`, username); err != nil {
			return storage.Wrap("delete user: "+string(c), err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sequences WHERE username = $1`, username); err != nil {
		return storage.Wrap("delete user: sequences", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM credentials WHERE username = $1`, username); err != nil {
		return storage.Wrap("delete user: credential", err)
	}
	return storage.Wrap("delete user", tx.Commit(ctx))
}
