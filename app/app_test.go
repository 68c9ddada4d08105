package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/state"
	"github.com/jmcleod/stopit/storage/memory"
)

const testPassword = "correct horse battery"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestApp(t *testing.T) (*App, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)}
	a := New(memory.NewRepository(), WithClock(clk.Now))
	require.NoError(t, a.Register(t.Context(), "alice", testPassword))
	t.Cleanup(func() { _ = a.Logout(context.Background()) })
	return a, clk
}

func onboard(t *testing.T, a *App, clk *clock, days int) {
	t.Helper()
	quit := clk.Now().Add(-time.Duration(days) * 24 * time.Hour)
	_, err := a.CompleteOnboarding(t.Context(), func(p *models.Profile) {
		p.QuitDate = &quit
		p.CigarettesPerDay = 10
		p.CigarettesPerPack = 20
		p.CostPerPack = 8
	})
	require.NoError(t, err)
}

func ids(badges []models.Badge) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = b.ID
	}
	return out
}

func TestCompleteOnboarding_DefaultsQuitDate(t *testing.T) {
	a, clk := newTestApp(t)
	p, err := a.CompleteOnboarding(t.Context(), nil)
	require.NoError(t, err)
	assert.True(t, p.OnboardingCompleted)
	require.NotNil(t, p.QuitDate)
	assert.True(t, clk.Now().Equal(*p.QuitDate))
}

func TestSummary_MoneySaved(t *testing.T) {
	a, clk := newTestApp(t)
	onboard(t, a, clk, 10)

	s := a.Summary()
	assert.Equal(t, 10, s.DaysSmokeFree)
	assert.Equal(t, 100, s.CigarettesAvoided)
	assert.InDelta(t, 40.00, s.MoneySaved, 1e-9)
}

func TestSyncBadges_UnlockThenIdempotent(t *testing.T) {
	a, clk := newTestApp(t)
	onboard(t, a, clk, 10)

	res, err := a.SyncBadges(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"24h_freedom", "3d_fire", "week_clean", "piggy_starter", "breath_deep", "taste_back"},
		ids(res.ToUnlock))
	assert.Empty(t, res.ToRevoke)

	res, err = a.SyncBadges(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Len(t, a.State().Badges(), 6)
}

func TestLogCraving_RelapseResetsQuitDateAndRevokes(t *testing.T) {
	a, clk := newTestApp(t)
	ctx := t.Context()
	onboard(t, a, clk, 10)
	_, err := a.SyncBadges(ctx)
	require.NoError(t, err)

	var updates []state.Event
	a.State().SubscribeAll(func(ev state.Event, _ any) { updates = append(updates, ev) })

	clk.Advance(time.Minute)
	entry, res, err := a.LogCraving(ctx, models.LogEntry{Outcome: models.OutcomeRelapse, Triggers: []string{"stress"}})
	require.NoError(t, err)
	assert.Equal(t, models.LogTypeRelapse, entry.Type)

	p := a.State().Profile()
	require.NotNil(t, p.QuitDate)
	assert.True(t, clk.Now().Equal(*p.QuitDate))

	assert.ElementsMatch(t,
		[]string{"24h_freedom", "3d_fire", "week_clean", "breath_deep", "taste_back"},
		res.ToRevoke)
	assert.Equal(t, []string{"honesty"}, ids(res.ToUnlock))
	assert.ElementsMatch(t, []string{"piggy_starter", "honesty"}, ids(a.State().Badges()))
	assert.Equal(t, []state.Event{
		state.EventLogAdded,
		state.EventProfileUpdated,
		state.EventBadgesUpdated,
		state.EventBadgeUnlocked,
	}, updates)

	// A day later the streak and phoenix badges come back and stay.
	clk.Advance(25 * time.Hour)
	res, err = a.SyncBadges(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"24h_freedom", "breath_deep", "phoenix"}, ids(res.ToUnlock))
	assert.Empty(t, res.ToRevoke)

	res, err = a.SyncBadges(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	// Moving the quit date forward while the relapse is still the latest log
	// withdraws the streak badges again.
	_, err = a.State().MutateProfile(ctx, func(p *models.Profile) {
		q := clk.Now()
		p.QuitDate = &q
	})
	require.NoError(t, err)
	res, err = a.SyncBadges(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"24h_freedom", "breath_deep"}, res.ToRevoke)
	assert.Empty(t, res.ToUnlock)
	assert.False(t, a.State().IsBadgeUnlocked("24h_freedom"))
	assert.True(t, a.State().IsBadgeUnlocked("phoenix"))
}

func TestLogCraving_RelapseNeedsTrigger(t *testing.T) {
	a, _ := newTestApp(t)
	_, _, err := a.LogCraving(t.Context(), models.LogEntry{Outcome: models.OutcomeRelapse})
	require.ErrorIs(t, err, ErrRelapseTrigger)
	require.ErrorIs(t, err, models.ErrInvalid)
	assert.Empty(t, a.State().Logs())
}

func TestLogCraving_ResistedKeepsQuitDate(t *testing.T) {
	a, clk := newTestApp(t)
	onboard(t, a, clk, 2)
	before := a.State().Profile().QuitDate

	entry, _, err := a.LogCraving(t.Context(), models.LogEntry{
		Outcome:    models.OutcomeResisted,
		Strategies: []string{models.StrategyPartner},
	})
	require.NoError(t, err)
	assert.True(t, clk.Now().Equal(entry.Date))
	assert.Equal(t, before, a.State().Profile().QuitDate)
	assert.True(t, a.State().IsBadgeUnlocked("partner_sos"))
}

func TestAddPlan_AndLookup(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := t.Context()

	_, ok := a.PlanForTrigger("coffee")
	assert.False(t, ok)

	_, err := a.AddPlan(ctx, "coffee", "drink tea")
	require.NoError(t, err)
	_, err = a.AddPlan(ctx, "coffee", "go for a walk")
	require.NoError(t, err)

	plan, ok := a.PlanForTrigger("coffee")
	require.True(t, ok)
	assert.Equal(t, "go for a walk", plan.Action)
	assert.True(t, a.State().IsBadgeUnlocked("plan_ready"))

	_, err = a.AddPlan(ctx, "nope", "anything")
	require.ErrorIs(t, err, models.ErrInvalid)
}

func TestExport_TwoLogsNoPlans(t *testing.T) {
	a, clk := newTestApp(t)
	ctx := t.Context()
	onboard(t, a, clk, 1)

	first, _, err := a.LogCraving(ctx, models.LogEntry{Outcome: models.OutcomeResisted})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, _, err := a.LogCraving(ctx, models.LogEntry{Outcome: models.OutcomeResisted, Triggers: []string{"coffee"}})
	require.NoError(t, err)

	assert.True(t, a.BackupDue())
	doc, err := a.Export(ctx)
	require.NoError(t, err)
	assert.False(t, a.BackupDue())

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	data := generic["data"].(map[string]any)
	assert.NotContains(t, data, "plans")
	assert.Contains(t, data, "profile")

	require.Len(t, doc.Data.Logs, 2)
	byID := map[uint64]models.LogEntry{}
	for _, l := range doc.Data.Logs {
		byID[l.ID] = l
	}
	require.Contains(t, byID, first.ID)
	require.Contains(t, byID, second.ID)
	assert.True(t, first.Timestamp.Equal(byID[first.ID].Timestamp))
	assert.True(t, second.Timestamp.Equal(byID[second.ID].Timestamp))

	clk.Advance(BackupInterval + time.Second)
	assert.True(t, a.BackupDue())
}

func TestBackupDue_ReminderOff(t *testing.T) {
	a, _ := newTestApp(t)
	_, err := a.State().SavePreferences(t.Context(), func(p *models.Preferences) { p.ReminderBackup = false })
	require.NoError(t, err)
	assert.False(t, a.BackupDue())
}

func TestLoginLogout(t *testing.T) {
	a, clk := newTestApp(t)
	ctx := t.Context()
	onboard(t, a, clk, 3)
	_, _, err := a.LogCraving(ctx, models.LogEntry{Outcome: models.OutcomeResisted})
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx))
	assert.Empty(t, a.State().Logs())
	_, _, err = a.LogCraving(ctx, models.LogEntry{Outcome: models.OutcomeResisted})
	require.ErrorIs(t, err, auth.ErrAuth)

	require.ErrorIs(t, a.Login(ctx, "alice", "wrong password"), auth.ErrAuth)
	require.NoError(t, a.Login(ctx, "alice", testPassword))
	assert.Len(t, a.State().Logs(), 1)
	assert.True(t, a.State().Profile().OnboardingCompleted)
}

func TestDeleteAccount(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := t.Context()
	_, err := a.AddPlan(ctx, "stress", "breathe")
	require.NoError(t, err)

	require.NoError(t, a.DeleteAccount(ctx))
	assert.Empty(t, a.State().Plans())
	require.ErrorIs(t, a.Login(ctx, "alice", testPassword), auth.ErrAuth)
}
