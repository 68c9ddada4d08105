package auth

import (
	"log/slog"
	"time"

	"github.com/jmcleod/stopit/crypto"
)

// Option configures a Manager.
type Option func(*Manager)

// WithMarker sets where the session marker is kept. Defaults to a MemoryMarker.
func WithMarker(marker Marker) Option {
	return func(m *Manager) {
		m.marker = marker
	}
}

// WithMarkerTTL makes markers older than ttl read as absent. Zero disables
// expiry.
func WithMarkerTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.markerTTL = ttl
	}
}

// WithParams sets the PBKDF2 parameters for new registrations. Existing
// credentials keep the iteration count they were created with.
func WithParams(p crypto.Params) Option {
	return func(m *Manager) {
		m.params = p
	}
}

// WithLogger sets the logger. Records carry component=auth.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}
