// Package state holds the decrypted working set of the logged-in user and
// persists every mutation through the session's key and the repository.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/storage"
)

// ErrBadgeAdded is returned by OverwriteBadges when the target names a badge
// that is not currently unlocked. Badges are only added through UnlockBadge.
var ErrBadgeAdded = errors.New("overwrite cannot add badges")

// Snapshot is a copy of the full working set.
type Snapshot struct {
	Username    string
	Profile     models.Profile
	Logs        []models.LogEntry
	Badges      []models.Badge
	Plans       []models.PlanEntry
	Preferences models.Preferences
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. A component attribute is added.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is the in-memory copy of one user's data. Mutations are serialized
// and memory is only replaced after the write succeeds.
type Cache struct {
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	sess    *auth.Session
	profile models.Profile
	logs    []models.LogEntry // newest first
	badges  []models.Badge
	plans   []models.PlanEntry
	prefs   models.Preferences

	bus *registry
}

// New returns an empty cache over repo.
func New(repo storage.Repository, opts ...Option) *Cache {
	c := &Cache{
		repo:    repo,
		logger:  slog.Default(),
		now:     time.Now,
		profile: models.DefaultProfile(),
		prefs:   models.DefaultPreferences(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "state")
	c.bus = &registry{logger: c.logger}
	return c
}

// event is a notification queued during a mutation and published after the
// lock is released.
type event struct {
	name    Event
	payload any
}

// mutate runs fn under the write lock with a live session and publishes the
// returned events afterwards. The lock is released even if fn panics.
func (c *Cache) mutate(fn func(sess *auth.Session) ([]event, error)) error {
	events, err := func() ([]event, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sess == nil || c.sess.Closed() {
			return nil, auth.ErrAuth
		}
		return fn(c.sess)
	}()
	for _, ev := range events {
		c.bus.publish(ev.name, ev.payload)
	}
	return err
}

func (c *Cache) fail(op string, err error) error {
	c.logger.Error(op+" failed", slog.String("error", err.Error()))
	return fmt.Errorf("%s: %w", op, err)
}

// LoadAll binds sess and reads every collection of its user. A missing
// profile or preferences record yields the defaults. On error the previous
// working set is kept.
func (c *Cache) LoadAll(ctx context.Context, sess *auth.Session) error {
	if sess == nil || sess.Closed() {
		return auth.ErrAuth
	}
	snap, err := c.load(ctx, sess)
	if err != nil {
		return c.fail("load", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.profile = snap.Profile
	c.logs = snap.Logs
	c.badges = snap.Badges
	c.plans = snap.Plans
	c.prefs = snap.Preferences
	c.mu.Unlock()

	c.logger.Info("data loaded",
		slog.String("username", sess.Username()),
		slog.Int("logs", len(snap.Logs)),
		slog.Int("badges", len(snap.Badges)),
		slog.Int("plans", len(snap.Plans)))
	c.bus.publish(EventDataLoaded, cloneSnapshot(snap))
	return nil
}

func (c *Cache) load(ctx context.Context, sess *auth.Session) (Snapshot, error) {
	username := sess.Username()
	snap := Snapshot{
		Username:    username,
		Profile:     models.DefaultProfile(),
		Preferences: models.DefaultPreferences(),
	}

	rec, err := c.repo.Get(ctx, username, storage.CollectionProfile, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Snapshot{}, err
	default:
		if snap.Profile, err = sess.OpenProfile(rec); err != nil {
			return Snapshot{}, err
		}
	}

	rec, err = c.repo.Get(ctx, username, storage.CollectionPreferences, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Snapshot{}, err
	default:
		if snap.Preferences, err = sess.OpenPreferences(rec); err != nil {
			return Snapshot{}, err
		}
	}

	if snap.Logs, err = auth.OpenAll(ctx, c.repo, username, storage.CollectionLogs, sess.OpenLog); err != nil {
		return Snapshot{}, err
	}
	snap.Logs = models.SortLogs(snap.Logs)
	if snap.Badges, err = auth.OpenAll(ctx, c.repo, username, storage.CollectionBadges, sess.OpenBadge); err != nil {
		return Snapshot{}, err
	}
	if snap.Plans, err = auth.OpenAll(ctx, c.repo, username, storage.CollectionPlans, sess.OpenPlan); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// MutateProfile applies fn to a copy of the profile, validates it and
// upserts the whole object.
func (c *Cache) MutateProfile(ctx context.Context, fn func(*models.Profile)) (models.Profile, error) {
	var out models.Profile
	err := c.mutate(func(sess *auth.Session) ([]event, error) {
		next := c.profile.Clone()
		fn(&next)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		if err := c.putSingleton(ctx, sess, storage.CollectionProfile, next); err != nil {
			return nil, c.fail("update profile", err)
		}
		c.profile = next
		out = next.Clone()
		return []event{{EventProfileUpdated, next.Clone()}}, nil
	})
	return out, err
}

// SavePreferences applies fn to a copy of the preferences and upserts them.
func (c *Cache) SavePreferences(ctx context.Context, fn func(*models.Preferences)) (models.Preferences, error) {
	var out models.Preferences
	err := c.mutate(func(sess *auth.Session) ([]event, error) {
		next := c.prefs
		fn(&next)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		if err := c.putSingleton(ctx, sess, storage.CollectionPreferences, next); err != nil {
			return nil, c.fail("save preferences", err)
		}
		c.prefs = next
		out = next
		return []event{{EventPreferencesUpdated, next}}, nil
	})
	return out, err
}

func (c *Cache) putSingleton(ctx context.Context, sess *auth.Session, coll storage.Collection, value any) error {
	blob, err := sess.Encrypt(value)
	if err != nil {
		return err
	}
	return c.repo.Put(ctx, &storage.Record{
		Collection: coll,
		Key:        sess.Username(),
		Username:   sess.Username(),
		Data:       blob,
		Timestamp:  c.now(),
	})
}

// AppendLog normalizes, validates and stores entry. The returned entry
// carries the assigned ID and timestamp.
func (c *Cache) AppendLog(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	var out models.LogEntry
	err := c.mutate(func(sess *auth.Session) ([]event, error) {
		e := entry.Clone()
		e.ID = 0
		e.Timestamp = c.now()
		e.Normalize()
		if err := e.Validate(); err != nil {
			return nil, err
		}
		rec, err := c.createSequenced(ctx, sess, storage.CollectionLogs, e, e.Timestamp)
		if err != nil {
			return nil, c.fail("append log", err)
		}
		e.ID = rec.ID
		e.Timestamp = rec.Timestamp
		c.logs = models.SortLogs(append(slices.Clone(c.logs), e))
		out = e.Clone()
		return []event{{EventLogAdded, e.Clone()}}, nil
	})
	return out, err
}

// AddPlan validates and stores a coping plan.
func (c *Cache) AddPlan(ctx context.Context, plan models.PlanEntry) (models.PlanEntry, error) {
	var out models.PlanEntry
	err := c.mutate(func(sess *auth.Session) ([]event, error) {
		p := plan
		p.ID = 0
		p.CreatedAt = c.now()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		rec, err := c.createSequenced(ctx, sess, storage.CollectionPlans, p, p.CreatedAt)
		if err != nil {
			return nil, c.fail("add plan", err)
		}
		p.ID = rec.ID
		p.CreatedAt = rec.Timestamp
		c.plans = append(slices.Clone(c.plans), p)
		out = p
		return []event{{EventPlanAdded, p}}, nil
	})
	return out, err
}

func (c *Cache) createSequenced(ctx context.Context, sess *auth.Session, coll storage.Collection, value any, ts time.Time) (*storage.Record, error) {
	blob, err := sess.Encrypt(value)
	if err != nil {
		return nil, err
	}
	return c.repo.Create(ctx, &storage.Record{
		Collection: coll,
		Username:   sess.Username(),
		Data:       blob,
		Timestamp:  ts,
	})
}

// RemoveLog deletes the log with the given ID.
func (c *Cache) RemoveLog(ctx context.Context, id uint64) error {
	return c.mutate(func(sess *auth.Session) ([]event, error) {
		if err := c.repo.Delete(ctx, sess.Username(), storage.CollectionLogs, storage.SequenceKey(id)); err != nil {
			return nil, c.fail("remove log", err)
		}
		c.logs = slices.DeleteFunc(slices.Clone(c.logs), func(l models.LogEntry) bool { return l.ID == id })
		return []event{{EventLogDeleted, id}}, nil
	})
}

// RemovePlan deletes the plan with the given ID.
func (c *Cache) RemovePlan(ctx context.Context, id uint64) error {
	return c.mutate(func(sess *auth.Session) ([]event, error) {
		if err := c.repo.Delete(ctx, sess.Username(), storage.CollectionPlans, storage.SequenceKey(id)); err != nil {
			return nil, c.fail("remove plan", err)
		}
		c.plans = slices.DeleteFunc(slices.Clone(c.plans), func(p models.PlanEntry) bool { return p.ID == id })
		return []event{{EventPlanDeleted, id}}, nil
	})
}

// UnlockBadge stores badge unless the user already has it. It reports
// whether the badge was newly unlocked.
func (c *Cache) UnlockBadge(ctx context.Context, badge models.Badge) (bool, error) {
	var unlocked bool
	err := c.mutate(func(sess *auth.Session) ([]event, error) {
		if c.hasBadgeLocked(badge.ID) {
			return nil, nil
		}
		if badge.UnlockedAt.IsZero() {
			badge.UnlockedAt = c.now()
		}
		blob, err := sess.Encrypt(badge)
		if err != nil {
			return nil, c.fail("unlock badge", err)
		}
		_, err = c.repo.Create(ctx, &storage.Record{
			Collection: storage.CollectionBadges,
			Key:        storage.BadgeKey(sess.Username(), badge.ID),
			Username:   sess.Username(),
			BadgeID:    badge.ID,
			Data:       blob,
			Timestamp:  badge.UnlockedAt,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			c.logger.Warn("badge already stored", slog.String("badge", badge.ID))
			return nil, nil
		}
		if err != nil {
			return nil, c.fail("unlock badge", err)
		}
		c.badges = append(slices.Clone(c.badges), badge)
		unlocked = true
		return []event{{EventBadgeUnlocked, badge}}, nil
	})
	return unlocked, err
}

// OverwriteBadges makes target the unlocked set by deleting every badge whose
// ID is missing from it. Target must be a subset of the current badges; an
// unknown ID fails with ErrBadgeAdded before anything is deleted. Surviving
// badges keep their current order (unlock order), not the order of target.
// If a delete fails, badges already deleted are dropped from memory and the
// error is returned.
func (c *Cache) OverwriteBadges(ctx context.Context, target []models.Badge) error {
	return c.mutate(func(sess *auth.Session) ([]event, error) {
		keep := make(map[string]bool, len(target))
		for _, b := range target {
			if !c.hasBadgeLocked(b.ID) {
				return nil, fmt.Errorf("%w: %s", ErrBadgeAdded, b.ID)
			}
			keep[b.ID] = true
		}

		var removed []string
		var err error
		for _, b := range c.badges {
			if keep[b.ID] {
				continue
			}
			if err = c.repo.Delete(ctx, sess.Username(), storage.CollectionBadges, storage.BadgeKey(sess.Username(), b.ID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
				err = c.fail("overwrite badges", err)
				break
			}
			err = nil
			removed = append(removed, b.ID)
		}
		if len(removed) == 0 {
			return nil, err
		}
		c.badges = slices.DeleteFunc(slices.Clone(c.badges), func(b models.Badge) bool {
			return slices.Contains(removed, b.ID)
		})
		c.logger.Info("badges revoked", slog.Any("badges", removed))
		return []event{{EventBadgesUpdated, slices.Clone(c.badges)}}, err
	})
}

func (c *Cache) hasBadgeLocked(id string) bool {
	return slices.ContainsFunc(c.badges, func(b models.Badge) bool { return b.ID == id })
}

// Username returns the bound user, or "" when no session is bound.
func (c *Cache) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.Username()
}

// Profile returns a copy of the profile.
func (c *Cache) Profile() models.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile.Clone()
}

// Preferences returns the preferences.
func (c *Cache) Preferences() models.Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// Logs returns a copy of the logs, newest first.
func (c *Cache) Logs() []models.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.LogEntry, len(c.logs))
	for i, l := range c.logs {
		out[i] = l.Clone()
	}
	return out
}

// Badges returns a copy of the unlocked badges.
func (c *Cache) Badges() []models.Badge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.badges)
}

// Plans returns a copy of the coping plans.
func (c *Cache) Plans() []models.PlanEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.plans)
}

// IsBadgeUnlocked reports whether the user holds badge id.
func (c *Cache) IsBadgeUnlocked(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasBadgeLocked(id)
}

// Snapshot returns a copy of the working set.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	username := ""
	if c.sess != nil {
		username = c.sess.Username()
	}
	return cloneSnapshot(Snapshot{
		Username:    username,
		Profile:     c.profile,
		Logs:        c.logs,
		Badges:      c.badges,
		Plans:       c.plans,
		Preferences: c.prefs,
	})
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := s
	out.Profile = s.Profile.Clone()
	out.Logs = make([]models.LogEntry, len(s.Logs))
	for i, l := range s.Logs {
		out.Logs[i] = l.Clone()
	}
	out.Badges = slices.Clone(s.Badges)
	out.Plans = slices.Clone(s.Plans)
	return out
}

// Subscribe registers handler for one event. The returned function removes
// it and is safe to call more than once.
func (c *Cache) Subscribe(name Event, handler Handler) func() {
	return c.bus.add(subscription{event: name, handler: handler})
}

// SubscribeAll registers handler for every event.
func (c *Cache) SubscribeAll(handler Handler) func() {
	return c.bus.add(subscription{all: true, handler: handler})
}

// Clear unbinds the session and drops the working set and every
// subscription. The session itself is not closed.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.sess = nil
	c.profile = models.DefaultProfile()
	c.prefs = models.DefaultPreferences()
	c.logs = nil
	c.badges = nil
	c.plans = nil
	c.mu.Unlock()
	c.bus.clear()
}
