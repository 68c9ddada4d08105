package postgres

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/stopit/storage"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the credential, sequence, collection and session marker
// tables. Every statement uses IF NOT EXISTS.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return storage.Wrap("ensuring schema", err)
}
