package badges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/stopit/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
}

func quitAgo(d time.Duration) models.Profile {
	p := models.DefaultProfile()
	q := now.Add(-d)
	p.QuitDate = &q
	return p
}

func ids(badges []models.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.ID)
	}
	return out
}

func held(idList ...string) []models.Badge {
	out := make([]models.Badge, 0, len(idList))
	for _, id := range idList {
		out = append(out, models.Badge{ID: id})
	}
	return out
}

func TestCatalog(t *testing.T) {
	all := All()
	require.Len(t, all, 17)
	assert.Equal(t, "24h_freedom", all[0].ID)
	assert.Equal(t, "plan_ready", all[len(all)-1].ID)

	var revocable []string
	seen := map[string]bool{}
	for _, d := range all {
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.NotNil(t, d.Unlock, d.ID)
		if d.Revocable {
			revocable = append(revocable, d.ID)
		}
	}
	assert.Equal(t, []string{"24h_freedom", "3d_fire", "week_clean", "month_master", "breath_deep", "taste_back", "heart_light"}, revocable)

	d, ok := ByID("honesty")
	require.True(t, ok)
	assert.Equal(t, CategoryResilience, d.Category)
	_, ok = ByID("nope")
	assert.False(t, ok)
	assert.True(t, IsRevocable("week_clean"))
	assert.False(t, IsRevocable("honesty"))

	cats := Categories()
	require.Len(t, cats, 8)
	assert.Equal(t, CategoryAll, cats[0].ID)
	assert.Len(t, ByCategory(CategoryAll), 17)
	assert.Len(t, ByCategory(CategoryHealth), 3)
}

func TestRevocation_LatestRelapse(t *testing.T) {
	e := newTestEngine()
	logs := []models.LogEntry{
		{ID: 1, Outcome: models.OutcomeResisted, Timestamp: now.Add(-3 * time.Hour)},
		{ID: 2, Outcome: models.OutcomeRelapse, Timestamp: now.Add(-time.Hour)},
	}
	got := e.Revocation(logs, held("week_clean", "honesty"))
	assert.Equal(t, []string{"week_clean"}, got)
}

func TestRevocation_SortsByTimestamp(t *testing.T) {
	e := newTestEngine()
	// caller order is oldest first; the relapse is older than the resisted log
	logs := []models.LogEntry{
		{ID: 1, Outcome: models.OutcomeRelapse, Timestamp: now.Add(-5 * time.Hour)},
		{ID: 2, Outcome: models.OutcomeResisted, Timestamp: now.Add(-time.Hour)},
	}
	assert.Empty(t, e.Revocation(logs, held("week_clean")))

	// the relapse is newest even though it is listed last
	logs[0].Outcome, logs[1].Outcome = models.OutcomeResisted, models.OutcomeRelapse
	assert.Equal(t, []string{"week_clean"}, e.Revocation(logs, held("week_clean")))
}

func TestRevocation_IgnoresUnlockTime(t *testing.T) {
	e := newTestEngine()
	logs := []models.LogEntry{{ID: 1, Outcome: models.OutcomeRelapse, Timestamp: now.Add(-48 * time.Hour)}}
	unlocked := []models.Badge{
		{ID: "24h_freedom", UnlockedAt: now.Add(-time.Hour)},
		{ID: "week_clean", UnlockedAt: now.Add(-72 * time.Hour)},
		{ID: "honesty", UnlockedAt: now.Add(-time.Hour)},
	}
	assert.Equal(t, []string{"24h_freedom", "week_clean"}, e.Revocation(logs, unlocked))
}

func TestEvaluate_RevokedBadgeUnlocksAgainWhenEarned(t *testing.T) {
	e := newTestEngine()
	p := quitAgo(30 * time.Hour)
	logs := []models.LogEntry{{ID: 1, Outcome: models.OutcomeRelapse, Triggers: []string{"stress"}, Timestamp: now.Add(-30 * time.Hour)}}

	res := e.Evaluate(p, logs, nil, held("24h_freedom", "week_clean", "honesty"))
	assert.Equal(t, []string{"24h_freedom", "week_clean"}, res.ToRevoke)
	assert.Contains(t, ids(res.ToUnlock), "24h_freedom")
	assert.NotContains(t, ids(res.ToUnlock), "week_clean")
	assert.NotContains(t, ids(res.ToUnlock), "honesty")
}

func TestRevocation_NoLogs(t *testing.T) {
	assert.Empty(t, newTestEngine().Revocation(nil, held("week_clean")))
}

func TestEvaluate_UnlockStreakAndHealth(t *testing.T) {
	e := newTestEngine()
	res := e.Evaluate(quitAgo(8*24*time.Hour), nil, nil, nil)
	assert.Equal(t, []string{"24h_freedom", "3d_fire", "week_clean", "breath_deep", "taste_back"}, ids(res.ToUnlock))
	assert.Empty(t, res.ToRevoke)
	for _, b := range res.ToUnlock {
		assert.Equal(t, now, b.UnlockedAt)
		assert.NotEmpty(t, b.Name)
		assert.NotEmpty(t, b.Category)
	}
}

func TestEvaluate_SkipsAlreadyUnlocked(t *testing.T) {
	e := newTestEngine()
	res := e.Evaluate(quitAgo(8*24*time.Hour), nil, nil, held("24h_freedom", "3d_fire", "week_clean", "breath_deep"))
	assert.Equal(t, []string{"taste_back"}, ids(res.ToUnlock))
}

func TestEvaluate_NoQuitDate(t *testing.T) {
	res := newTestEngine().Evaluate(models.DefaultProfile(), nil, nil, nil)
	assert.True(t, res.Empty())
}

func TestEvaluate_Savings(t *testing.T) {
	p := quitAgo(10 * 24 * time.Hour)
	p.CigarettesPerDay = 10
	p.CigarettesPerPack = 20
	p.CostPerPack = 8

	res := newTestEngine().Evaluate(p, nil, nil, nil)
	got := ids(res.ToUnlock)
	assert.Contains(t, got, "piggy_starter")
	assert.NotContains(t, got, "shopping_therapy", "40.00 saved is below 50")
	assert.NotContains(t, got, "romantic_dinner")
}

func TestEvaluate_RevokeThenReunlock(t *testing.T) {
	e := newTestEngine()
	// quit date already moved to the relapse, three days ago
	p := quitAgo(3 * 24 * time.Hour)
	logs := []models.LogEntry{{ID: 1, Outcome: models.OutcomeRelapse, Timestamp: now.Add(-3 * 24 * time.Hour)}}

	res := e.Evaluate(p, logs, nil, held("24h_freedom", "week_clean", "honesty"))
	assert.Equal(t, []string{"24h_freedom", "week_clean"}, res.ToRevoke)
	got := ids(res.ToUnlock)
	assert.Contains(t, got, "24h_freedom", "re-satisfied badge unlocks again")
	assert.Contains(t, got, "3d_fire")
	assert.NotContains(t, got, "week_clean")
	assert.NotContains(t, got, "honesty", "still held")
	assert.Contains(t, got, "phoenix")
}

func TestEvaluate_BehaviourBadges(t *testing.T) {
	e := newTestEngine()
	var logs []models.LogEntry
	for i := range 10 {
		logs = append(logs, models.LogEntry{
			ID:        uint64(i + 1),
			Outcome:   models.OutcomeResisted,
			Triggers:  []string{"coffee"},
			Timestamp: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	logs[3].Strategies = []string{models.StrategyPartner}

	res := e.Evaluate(models.DefaultProfile(), logs, []models.PlanEntry{{TriggerID: "coffee", Action: "walk"}}, nil)
	assert.ElementsMatch(t, []string{"partner_sos", "trigger_hunter", "plan_ready"}, ids(res.ToUnlock))
}

func TestEvaluate_PartnerRequiresResisted(t *testing.T) {
	logs := []models.LogEntry{{Outcome: models.OutcomeRelapse, Strategies: []string{models.StrategyPartner}, Timestamp: now.Add(-time.Minute)}}
	res := newTestEngine().Evaluate(models.DefaultProfile(), logs, nil, nil)
	assert.NotContains(t, ids(res.ToUnlock), "partner_sos")
	assert.Contains(t, ids(res.ToUnlock), "honesty")
	assert.NotContains(t, ids(res.ToUnlock), "phoenix", "relapse was under 24h ago")
}

func TestEvaluate_PhoenixUsesUserDate(t *testing.T) {
	logs := []models.LogEntry{{Outcome: models.OutcomeRelapse, Date: now.Add(-25 * time.Hour), Timestamp: now.Add(-time.Minute)}}
	res := newTestEngine().Evaluate(models.DefaultProfile(), logs, nil, nil)
	assert.Contains(t, ids(res.ToUnlock), "phoenix")
}

func TestEvaluate_PanickingPredicateIsSkipped(t *testing.T) {
	defs := []Definition{
		{ID: "first", Unlock: func(Facts) bool { return true }},
		{ID: "boom", Unlock: func(f Facts) bool { panic("bad predicate") }},
		{ID: "nil"},
		{ID: "last", Unlock: func(Facts) bool { return true }},
	}
	e := newTestEngine(WithCatalog(defs))
	res := e.Evaluate(models.DefaultProfile(), nil, nil, nil)
	assert.Equal(t, []string{"first", "last"}, ids(res.ToUnlock))
}
