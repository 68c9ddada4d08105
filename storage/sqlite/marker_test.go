package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/stopit/auth"
)

func TestSQLiteMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	m := s.NewMarker("")
	other := s.NewMarker("other")

	_, ok, err := m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	setAt := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.Set(ctx, auth.MarkerEntry{Username: "alice", SetAt: setAt}))
	got, ok, err := m.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.SetAt.Equal(setAt))

	_, ok, err = other.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "slots are independent")

	require.NoError(t, m.Set(ctx, auth.MarkerEntry{Username: "bob", SetAt: setAt.Add(time.Hour)}))
	got, _, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)

	require.NoError(t, m.Clear(ctx))
	_, ok, err = m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
