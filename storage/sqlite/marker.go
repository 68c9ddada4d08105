package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/storage"
)

// DefaultMarkerSlot names the marker row when the caller does not pick one.
const DefaultMarkerSlot = "default"

// Marker implements auth.Marker as one row of the session_marker table.
type Marker struct {
	db   *sql.DB
	slot string
}

var _ auth.Marker = (*Marker)(nil)

// NewMarker returns a marker over the store's database.
func (s *Store) NewMarker(slot string) *Marker {
	if slot == "" {
		slot = DefaultMarkerSlot
	}
	return &Marker{db: s.db, slot: slot}
}

func (m *Marker) Set(ctx context.Context, entry auth.MarkerEntry) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO session_marker (slot, username, set_at) VALUES (?, ?, ?)
		 ON CONFLICT (slot) DO UPDATE SET username = excluded.username, set_at = excluded.set_at`,
		m.slot, entry.Username, entry.SetAt.UnixNano())
	return storage.Wrap("set session marker", err)
}

func (m *Marker) Load(ctx context.Context) (auth.MarkerEntry, bool, error) {
	var (
		entry auth.MarkerEntry
		setAt int64
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT username, set_at FROM session_marker WHERE slot = ?`, m.slot).
		Scan(&entry.Username, &setAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.MarkerEntry{}, false, nil
	}
	if err != nil {
		return auth.MarkerEntry{}, false, storage.Wrap("load session marker", err)
	}
	entry.SetAt = time.Unix(0, setAt).UTC()
	return entry, true, nil
}

func (m *Marker) Clear(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM session_marker WHERE slot = ?`, m.slot)
	return storage.Wrap("clear session marker", err)
}
