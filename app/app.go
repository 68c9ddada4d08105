// Package app wires the session manager, the state cache and the badge engine
// into the operations a front end calls.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/badges"
	"github.com/jmcleod/stopit/crypto"
	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/progress"
	"github.com/jmcleod/stopit/state"
	"github.com/jmcleod/stopit/storage"
)

// BackupInterval is how long after the last export a backup is due again.
const BackupInterval = 7 * 24 * time.Hour

// ErrRelapseTrigger is returned when a relapse is logged without a trigger.
var ErrRelapseTrigger = errors.New("a relapse needs at least one trigger")

type options struct {
	logger    *slog.Logger
	now       func() time.Time
	marker    auth.Marker
	markerTTL time.Duration
	params    *crypto.Params
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMarker sets where the session marker is kept.
func WithMarker(m auth.Marker) Option {
	return func(o *options) { o.marker = m }
}

// WithMarkerTTL bounds how long a session marker is honored.
func WithMarkerTTL(ttl time.Duration) Option {
	return func(o *options) { o.markerTTL = ttl }
}

// WithParams sets the key derivation parameters for new credentials.
func WithParams(p crypto.Params) Option {
	return func(o *options) { o.params = &p }
}

// App is one user-facing StopIt instance.
type App struct {
	auth   *auth.Manager
	cache  *state.Cache
	engine *badges.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New builds an App over repo.
func New(repo storage.Repository, opts ...Option) *App {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	authOpts := []auth.Option{auth.WithLogger(o.logger), auth.WithClock(o.now)}
	if o.marker != nil {
		authOpts = append(authOpts, auth.WithMarker(o.marker))
	}
	if o.markerTTL > 0 {
		authOpts = append(authOpts, auth.WithMarkerTTL(o.markerTTL))
	}
	if o.params != nil {
		authOpts = append(authOpts, auth.WithParams(*o.params))
	}
	return &App{
		auth:   auth.NewManager(repo, authOpts...),
		cache:  state.New(repo, state.WithLogger(o.logger), state.WithClock(o.now)),
		engine: badges.NewEngine(badges.WithLogger(o.logger), badges.WithClock(o.now)),
		logger: o.logger.With("component", "app"),
		now:    o.now,
	}
}

// Auth returns the session manager.
func (a *App) Auth() *auth.Manager { return a.auth }

// State returns the working-set cache.
func (a *App) State() *state.Cache { return a.cache }

// Badges returns the badge engine.
func (a *App) Badges() *badges.Engine { return a.engine }

// Now returns the current time of the App's clock.
func (a *App) Now() time.Time { return a.now() }

// Register creates the account, logs in and loads the empty working set.
func (a *App) Register(ctx context.Context, username, password string) error {
	sess, err := a.auth.Register(ctx, username, password)
	if err != nil {
		return err
	}
	return a.load(ctx, sess)
}

// Login authenticates and loads the user's data. A load failure logs the
// user out again.
func (a *App) Login(ctx context.Context, username, password string) error {
	a.cache.Clear()
	sess, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return a.load(ctx, sess)
}

func (a *App) load(ctx context.Context, sess *auth.Session) error {
	if err := a.cache.LoadAll(ctx, sess); err != nil {
		a.cache.Clear()
		return errors.Join(err, a.auth.Logout(ctx))
	}
	return nil
}

// Logout drops the working set and closes the session.
func (a *App) Logout(ctx context.Context) error {
	a.cache.Clear()
	return a.auth.Logout(ctx)
}

// CompleteOnboarding applies fn to the profile and marks onboarding done.
// A profile without a quit date starts counting now.
func (a *App) CompleteOnboarding(ctx context.Context, fn func(*models.Profile)) (models.Profile, error) {
	now := a.now().UTC()
	return a.cache.MutateProfile(ctx, func(p *models.Profile) {
		if fn != nil {
			fn(p)
		}
		if p.QuitDate == nil {
			p.QuitDate = &now
		}
		p.OnboardingCompleted = true
	})
}

// LogCraving records entry. A relapse moves the quit date to the moment of
// the relapse. Badges are synced afterwards; a sync failure is returned with
// the stored entry.
func (a *App) LogCraving(ctx context.Context, entry models.LogEntry) (models.LogEntry, badges.Result, error) {
	if entry.IsRelapse() && len(entry.Triggers) == 0 {
		return models.LogEntry{}, badges.Result{}, fmt.Errorf("%w: %w", models.ErrInvalid, ErrRelapseTrigger)
	}
	if entry.Date.IsZero() {
		entry.Date = a.now().UTC()
	}
	stored, err := a.cache.AppendLog(ctx, entry)
	if err != nil {
		return models.LogEntry{}, badges.Result{}, err
	}
	if stored.IsRelapse() {
		quit := stored.When().UTC()
		if _, err := a.cache.MutateProfile(ctx, func(p *models.Profile) { p.QuitDate = &quit }); err != nil {
			return stored, badges.Result{}, err
		}
		a.logger.Info("quit date reset", slog.Time("quit_date", quit))
	}
	res, err := a.SyncBadges(ctx)
	return stored, res, err
}

// SyncBadges revokes and unlocks badges against the current working set. Each
// change is persisted on its own, so a partial failure can be retried.
func (a *App) SyncBadges(ctx context.Context) (badges.Result, error) {
	snap := a.cache.Snapshot()
	res := regranted(a.engine.Evaluate(snap.Profile, snap.Logs, snap.Plans, snap.Badges))

	var errs []error
	applied := badges.Result{}
	if len(res.ToRevoke) > 0 {
		target := slices.DeleteFunc(slices.Clone(snap.Badges), func(b models.Badge) bool {
			return slices.Contains(res.ToRevoke, b.ID)
		})
		if err := a.cache.OverwriteBadges(ctx, target); err != nil {
			errs = append(errs, err)
		} else {
			applied.ToRevoke = res.ToRevoke
		}
	}
	for _, b := range res.ToUnlock {
		ok, err := a.cache.UnlockBadge(ctx, b)
		if err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", b.ID, err))
			continue
		}
		if ok {
			applied.ToUnlock = append(applied.ToUnlock, b)
		}
	}
	if !applied.Empty() {
		a.logger.Info("badges synced",
			slog.Int("unlocked", len(applied.ToUnlock)),
			slog.Int("revoked", len(applied.ToRevoke)))
	}
	return applied, errors.Join(errs...)
}

// regranted drops badges that are revoked and unlocked in the same
// evaluation. The held badge already satisfies its condition, so it is kept
// with its first unlock time.
func regranted(res badges.Result) badges.Result {
	var out badges.Result
	for _, id := range res.ToRevoke {
		if !slices.ContainsFunc(res.ToUnlock, func(b models.Badge) bool { return b.ID == id }) {
			out.ToRevoke = append(out.ToRevoke, id)
		}
	}
	for _, b := range res.ToUnlock {
		if !slices.Contains(res.ToRevoke, b.ID) {
			out.ToUnlock = append(out.ToUnlock, b)
		}
	}
	return out
}

// AddPlan stores a coping plan and syncs badges.
func (a *App) AddPlan(ctx context.Context, triggerID, action string) (models.PlanEntry, error) {
	plan, err := a.cache.AddPlan(ctx, models.PlanEntry{TriggerID: triggerID, Action: action})
	if err != nil {
		return models.PlanEntry{}, err
	}
	_, err = a.SyncBadges(ctx)
	return plan, err
}

// PlanForTrigger returns the most recent coping plan for triggerID.
func (a *App) PlanForTrigger(triggerID string) (models.PlanEntry, bool) {
	plans := a.cache.Plans()
	for i := len(plans) - 1; i >= 0; i-- {
		if plans[i].TriggerID == triggerID {
			return plans[i], true
		}
	}
	return models.PlanEntry{}, false
}

// Summary computes the progress metrics of the working set.
func (a *App) Summary() progress.Summary {
	return progress.Summarize(a.cache.Profile(), a.cache.Logs(), a.now())
}

// Export decrypts every stored record and records the backup time on the
// profile.
func (a *App) Export(ctx context.Context) (*auth.ExportDocument, error) {
	doc, err := a.auth.ExportData(ctx)
	if err != nil {
		return nil, err
	}
	at := doc.ExportedAt
	if _, err := a.cache.MutateProfile(ctx, func(p *models.Profile) { p.LastBackupDate = &at }); err != nil {
		return doc, err
	}
	return doc, nil
}

// BackupDue reports whether the last export is older than BackupInterval or
// never happened. It is false when the user turned the reminder off.
func (a *App) BackupDue() bool {
	if !a.cache.Preferences().ReminderBackup {
		return false
	}
	last := a.cache.Profile().LastBackupDate
	if last == nil {
		return true
	}
	return a.now().Sub(*last) > BackupInterval
}

// DeleteAccount removes every record of the user and logs out.
func (a *App) DeleteAccount(ctx context.Context) error {
	if err := a.auth.DeleteAccount(ctx); err != nil {
		return err
	}
	a.cache.Clear()
	return nil
}
