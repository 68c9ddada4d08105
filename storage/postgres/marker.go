package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/storage"
)

// DefaultMarkerSlot names the marker row when the caller does not pick one.
const DefaultMarkerSlot = "default"

// Marker implements auth.Marker as one row of the session_marker table.
// Separate installations sharing a database use distinct slots.
type Marker struct {
	pool *pgxpool.Pool
	slot string
}

var _ auth.Marker = (*Marker)(nil)

// NewMarker returns a marker stored under slot.
func NewMarker(pool *pgxpool.Pool, slot string) *Marker {
	if slot == "" {
		slot = DefaultMarkerSlot
	}
	return &Marker{pool: pool, slot: slot}
}

func (m *Marker) Set(ctx context.Context, entry auth.MarkerEntry) error {
	_, err := m.pool.Exec(ctx,
		`INSERT INTO session_marker (slot, username, set_at) VALUES ($1, $2, $3)
		 ON CONFLICT (slot) DO UPDATE SET username = $2, set_at = $3`,
		m.slot, entry.Username, entry.SetAt)
	return storage.Wrap("set session marker", err)
}

func (m *Marker) Load(ctx context.Context) (auth.MarkerEntry, bool, error) {
	var entry auth.MarkerEntry
	err := m.pool.QueryRow(ctx,
		`SELECT username, set_at FROM session_marker WHERE slot = $1`, m.slot).
		Scan(&entry.Username, &entry.SetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.MarkerEntry{}, false, nil
	}
	if err != nil {
		return auth.MarkerEntry{}, false, storage.Wrap("load session marker", err)
	}
	entry.SetAt = entry.SetAt.UTC()
	return entry, true, nil
}

func (m *Marker) Clear(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM session_marker WHERE slot = $1`, m.slot)
	return storage.Wrap("clear session marker", err)
}
