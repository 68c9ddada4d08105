// Package badges evaluates the achievement catalog against a user's profile,
// logs and plans. Evaluation is pure: it returns what to unlock and what to
// revoke and leaves persistence to the caller.
package badges

import (
	"log/slog"
	"slices"
	"time"

	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/progress"
)

// Facts is the input every predicate sees. Logs are sorted newest first by
// timestamp.
type Facts struct {
	Profile models.Profile
	Logs    []models.LogEntry
	Plans   []models.PlanEntry
	Now     time.Time
}

// MoneySaved is the floor-to-cent savings at Now.
func (f Facts) MoneySaved() float64 {
	return progress.MoneySaved(f.Profile, f.Now)
}

// Result lists the badge changes one evaluation produced.
type Result struct {
	ToUnlock []models.Badge
	ToRevoke []string
}

// Empty reports whether there is nothing to apply.
func (r Result) Empty() bool {
	return len(r.ToUnlock) == 0 && len(r.ToRevoke) == 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger. Records carry component=badges.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCatalog replaces the built-in catalog.
func WithCatalog(defs []Definition) Option {
	return func(e *Engine) {
		e.catalog = slices.Clone(defs)
	}
}

// Engine evaluates a badge catalog.
type Engine struct {
	catalog []Definition
	now     func() time.Time
	logger  *slog.Logger
}

// NewEngine returns an engine over the built-in catalog.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "badges"))
	return e
}

// ByID looks up a badge in the engine's catalog.
func (e *Engine) ByID(id string) (Definition, bool) {
	i := slices.IndexFunc(e.catalog, func(d Definition) bool { return d.ID == id })
	if i < 0 {
		return Definition{}, false
	}
	return e.catalog[i], true
}

// All returns the engine's catalog in declaration order.
func (e *Engine) All() []Definition {
	return slices.Clone(e.catalog)
}

// Evaluate runs the revoke pass over unlocked, then the unlock pass over
// what survives it. A badge revoked here can unlock again in the same call
// when its predicate still holds.
func (e *Engine) Evaluate(profile models.Profile, logs []models.LogEntry, plans []models.PlanEntry, unlocked []models.Badge) Result {
	now := e.now()
	facts := Facts{
		Profile: profile,
		Logs:    models.SortLogs(logs),
		Plans:   plans,
		Now:     now,
	}

	var res Result
	res.ToRevoke = e.revocations(facts.Logs, unlocked)
	revoked := make(map[string]bool, len(res.ToRevoke))
	for _, id := range res.ToRevoke {
		revoked[id] = true
	}

	held := make(map[string]bool, len(unlocked))
	for _, b := range unlocked {
		if !revoked[b.ID] {
			held[b.ID] = true
		}
	}
	for _, d := range e.catalog {
		if held[d.ID] {
			continue
		}
		if e.check(d, facts) {
			res.ToUnlock = append(res.ToUnlock, d.Snapshot(now.UTC()))
		}
	}
	return res
}

// check runs one predicate, treating a panic as "not earned".
func (e *Engine) check(d Definition, f Facts) (ok bool) {
	if d.Unlock == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("badge predicate failed", slog.String("badge", d.ID), slog.Any("panic", r))
			ok = false
		}
	}()
	return d.Unlock(f)
}

// Revocation returns the revocable IDs in unlocked when the latest log is a
// relapse, or nil otherwise. Unlock conditions are not consulted.
func (e *Engine) Revocation(logs []models.LogEntry, unlocked []models.Badge) []string {
	return e.revocations(models.SortLogs(logs), unlocked)
}

func (e *Engine) revocations(sorted []models.LogEntry, unlocked []models.Badge) []string {
	if len(sorted) == 0 || !sorted[0].IsRelapse() {
		return nil
	}
	var ids []string
	for _, b := range unlocked {
		if d, ok := e.ByID(b.ID); ok && d.Revocable && !slices.Contains(ids, b.ID) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
