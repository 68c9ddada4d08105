// Package auth registers users, verifies passwords and owns the single live
// Session through which every encrypt and decrypt call is made.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/stopit/crypto"
	"github.com/jmcleod/stopit/internal/util"
	"github.com/jmcleod/stopit/storage"
)

// State is the login state of a Manager.
type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager is the credential and session manager. It allows one live session
// at a time.
type Manager struct {
	repo      storage.Repository
	marker    Marker
	markerTTL time.Duration
	params    crypto.Params
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   State
	session *Session
}

// NewManager returns a logged-out Manager over repo.
func NewManager(repo storage.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:   repo,
		marker: NewMemoryMarker(),
		params: crypto.DefaultParams(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "auth"))
	return m
}

// State returns the current login state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Register creates a credential for username and logs in. The username is
// trimmed; duplicates are rejected with a ValidationError.
func (m *Manager) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := crypto.ValidateParams(m.params); err != nil {
		return nil, err
	}
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err := m.repo.GetCredential(ctx, username)
	switch {
	case err == nil:
		return nil, validationErrorf("username", "already exists")
	case !errors.Is(err, storage.ErrNotFound):
		m.logger.Error("register: credential lookup failed", slog.Any("error", err))
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(salt)
	hash, err := crypto.HashPassword(password, salt, crypto.WithParams(m.params))
	if err != nil {
		return nil, err
	}
	cred := &storage.Credential{
		Username:     username,
		PasswordHash: crypto.EncodeHex(hash),
		Salt:         crypto.EncodeSalt(salt),
		Iterations:   m.params.Iterations,
		CreatedAt:    m.now().UTC(),
	}
	util.WipeBytes(hash)

	if err := m.repo.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, validationErrorf("username", "already exists")
		}
		m.logger.Error("register: storing credential failed", slog.Any("error", err))
		return nil, err
	}
	m.logger.Info("user registered", slog.String("username", username))

	return m.Login(ctx, username, password)
}

// Login verifies the password and opens a new session, closing any live one
// first. Unknown users and wrong passwords both return ErrAuth.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	username = NormalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		_ = m.closeLocked(ctx)
	}
	m.state = StateAuthenticating

	sess, err := m.authenticate(ctx, username, password)
	if err != nil {
		m.state = StateLoggedOut
		if errors.Is(err, ErrAuth) {
			m.logger.Warn("login failed", slog.String("username", username))
		} else {
			m.logger.Error("login error", slog.String("username", username), slog.Any("error", err))
		}
		return nil, err
	}

	if err := m.marker.Set(ctx, MarkerEntry{Username: username, SetAt: m.now().UTC()}); err != nil {
		sess.Close()
		m.state = StateLoggedOut
		m.logger.Error("login: setting session marker failed", slog.Any("error", err))
		return nil, fmt.Errorf("setting session marker: %w", err)
	}
	m.session = sess
	m.state = StateLoggedIn
	m.logger.Info("login succeeded", slog.String("username", username), slog.String("session_id", sess.ID()))
	return sess, nil
}

func (m *Manager) authenticate(ctx context.Context, username, password string) (*Session, error) {
	cred, err := m.repo.GetCredential(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAuth
	}
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrAuth
	}
	salt, err := crypto.DecodeSalt(cred.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding stored salt: %w", err)
	}
	expected, err := crypto.DecodeHex(cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("decoding stored hash: %w", err)
	}

	params := m.params
	if cred.Iterations > 0 {
		params.Iterations = cred.Iterations
	}
	key, hash, err := crypto.DeriveKeys(password, salt, crypto.WithParams(params))
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(hash)
	if !util.ConstantTimeEqual(hash, expected) {
		key.Destroy()
		return nil, ErrAuth
	}
	return newSession(cred.Username, salt, key, m.now()), nil
}

// Logout destroys the live session and clears the marker. Logging out while
// logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked(ctx)
}

func (m *Manager) closeLocked(ctx context.Context) error {
	if m.session != nil {
		m.logger.Info("logout", slog.String("username", m.session.Username()), slog.String("session_id", m.session.ID()))
		m.session.Close()
		m.session = nil
	}
	m.state = StateLoggedOut
	if err := m.marker.Clear(ctx); err != nil {
		m.logger.Error("clearing session marker failed", slog.Any("error", err))
		return fmt.Errorf("clearing session marker: %w", err)
	}
	return nil
}

// Session returns the live session, or ErrAuth when logged out.
func (m *Manager) Session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.Closed() {
		return nil, ErrAuth
	}
	return m.session, nil
}

// SessionUsername reads the session marker. An expired or unreadable marker
// reads as absent.
func (m *Manager) SessionUsername(ctx context.Context) (string, bool) {
	entry, ok, err := m.marker.Load(ctx)
	if err != nil {
		m.logger.Warn("reading session marker failed", slog.Any("error", err))
		return "", false
	}
	if !ok {
		return "", false
	}
	if m.markerTTL > 0 && m.now().Sub(entry.SetAt) > m.markerTTL {
		return "", false
	}
	return entry.Username, true
}

// HasSession reports whether a session marker is present.
func (m *Manager) HasSession(ctx context.Context) bool {
	_, ok := m.SessionUsername(ctx)
	return ok
}

// EncryptData seals value with the live session.
func (m *Manager) EncryptData(value any) (string, error) {
	sess, err := m.Session()
	if err != nil {
		return "", err
	}
	return sess.Encrypt(value)
}

// DecryptData opens blob into out with the live session.
func (m *Manager) DecryptData(blob string, out any) error {
	sess, err := m.Session()
	if err != nil {
		return err
	}
	return sess.DecryptValue(blob, out)
}

// DeleteAccount removes every record and the credential of the live user,
// then logs out.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	sess, err := m.Session()
	if err != nil {
		return err
	}
	username := sess.Username()
	if err := m.repo.DeleteAllForUser(ctx, username); err != nil {
		m.logger.Error("delete account failed", slog.String("username", username), slog.Any("error", err))
		return err
	}
	m.logger.Info("account deleted", slog.String("username", username))
	return m.Logout(ctx)
}
