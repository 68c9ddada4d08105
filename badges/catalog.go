package badges

import (
	"slices"
	"time"

	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/progress"
)

// Category groups badges for display.
type Category string

const (
	CategoryAll          Category = "all"
	CategoryStreak       Category = "streak"
	CategorySavings      Category = "savings"
	CategoryRelationship Category = "relationship"
	CategoryHealth       Category = "health"
	CategoryResilience   Category = "resilience"
	CategoryAwareness    Category = "awareness"
	CategoryAction       Category = "action"
)

// CategoryInfo describes a category tab.
type CategoryInfo struct {
	ID   Category `json:"id"`
	Name string   `json:"name"`
	Icon string   `json:"icon"`
}

var categories = []CategoryInfo{
	{ID: CategoryAll, Name: "All", Icon: "⭐"},
	{ID: CategoryStreak, Name: "Streak", Icon: "🔥"},
	{ID: CategorySavings, Name: "Savings", Icon: "💰"},
	{ID: CategoryRelationship, Name: "Couple", Icon: "💕"},
	{ID: CategoryHealth, Name: "Health", Icon: "❤️"},
	{ID: CategoryResilience, Name: "Resilience", Icon: "💪"},
	{ID: CategoryAwareness, Name: "Awareness", Icon: "🧠"},
	{ID: CategoryAction, Name: "Action", Icon: "⚡"},
}

// Categories returns the display categories, "all" first.
func Categories() []CategoryInfo {
	return slices.Clone(categories)
}

// Predicate decides whether a badge is earned.
type Predicate func(f Facts) bool

// Definition is one catalog badge.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Category    Category
	// Revocable badges are withdrawn when the latest log is a relapse.
	Revocable bool
	Unlock    Predicate
}

// Snapshot is the record stored when def unlocks.
func (d Definition) Snapshot(unlockedAt time.Time) models.Badge {
	return models.Badge{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Category:    string(d.Category),
		UnlockedAt:  unlockedAt,
	}
}

func daysAtLeast(n int) Predicate {
	return func(f Facts) bool {
		return progress.DaysSmokeFree(f.Profile.QuitDate, f.Now) >= n
	}
}

func hoursAtLeast(n float64) Predicate {
	return func(f Facts) bool {
		if f.Profile.QuitDate == nil {
			return false
		}
		return progress.HoursSmokeFree(f.Profile.QuitDate, f.Now) >= n
	}
}

func savedAtLeast(amount float64) Predicate {
	return func(f Facts) bool {
		return f.MoneySaved() >= amount
	}
}

var catalog = []Definition{
	{
		ID: "24h_freedom", Name: "24 Hours of Freedom", Icon: "🌅",
		Description: "You completed your first full day without smoking!",
		Category:    CategoryStreak, Revocable: true,
		Unlock: daysAtLeast(1),
	},
	{
		ID: "3d_fire", Name: "3 Days of Fire", Icon: "🔥",
		Description: "You made it past the peak of physical withdrawal.",
		Category:    CategoryStreak, Revocable: true,
		Unlock: daysAtLeast(3),
	},
	{
		ID: "week_clean", Name: "One Clean Week", Icon: "📅",
		Description: "A whole week! The worst is behind you.",
		Category:    CategoryStreak, Revocable: true,
		Unlock: daysAtLeast(7),
	},
	{
		ID: "month_master", Name: "Master of the Month", Icon: "👑",
		Description: "30 days of a new life.",
		Category:    CategoryStreak, Revocable: true,
		Unlock: daysAtLeast(30),
	},
	{
		ID: "piggy_starter", Name: "Piggy Bank Starter", Icon: "🐷",
		Description: "You saved your first 10.",
		Category:    CategorySavings,
		Unlock:      savedAtLeast(10),
	},
	{
		ID: "shopping_therapy", Name: "Shopping Therapy", Icon: "🛍️",
		Description: "You saved enough for a new outfit (50+).",
		Category:    CategorySavings,
		Unlock:      savedAtLeast(50),
	},
	{
		ID: "investor", Name: "Investor", Icon: "📈",
		Description: "You saved a serious amount (200+).",
		Category:    CategorySavings,
		Unlock:      savedAtLeast(200),
	},
	{
		ID: "romantic_dinner", Name: "Romantic Dinner", Icon: "🥂",
		Description: "You saved enough for dinner for two (80+).",
		Category:    CategoryRelationship,
		Unlock:      savedAtLeast(80),
	},
	{
		ID: "weekend_love", Name: "Weekend Getaway", Icon: "✈️",
		Description: "Enough saved for a weekend away (300+).",
		Category:    CategoryRelationship,
		Unlock:      savedAtLeast(300),
	},
	{
		ID: "partner_sos", Name: "Proud Partner", Icon: "🤝",
		Description: "You resisted a craving with your partner's help.",
		Category:    CategoryRelationship,
		Unlock: func(f Facts) bool {
			return slices.ContainsFunc(f.Logs, func(l models.LogEntry) bool {
				return l.Outcome == models.OutcomeResisted && l.HasStrategy(models.StrategyPartner)
			})
		},
	},
	{
		ID: "breath_deep", Name: "Deep Breath", Icon: "🫁",
		Description: "12 hours smoke-free: blood carbon monoxide is back to normal.",
		Category:    CategoryHealth, Revocable: true,
		Unlock: hoursAtLeast(12),
	},
	{
		ID: "taste_back", Name: "Taste Is Back", Icon: "👃",
		Description: "48 hours: taste and smell have improved.",
		Category:    CategoryHealth, Revocable: true,
		Unlock: hoursAtLeast(48),
	},
	{
		ID: "heart_light", Name: "Light Heart", Icon: "❤️",
		Description: "2 weeks: circulation has improved.",
		Category:    CategoryHealth, Revocable: true,
		Unlock: daysAtLeast(14),
	},
	{
		ID: "phoenix", Name: "Phoenix", Icon: "🦅",
		Description: "You relapsed but got straight back on track (24h clean after a relapse).",
		Category:    CategoryResilience,
		Unlock: func(f Facts) bool {
			last, ok := progress.LastRelapse(f.Logs)
			if !ok {
				return false
			}
			return f.Now.Sub(last.When()).Hours() >= 24
		},
	},
	{
		ID: "honesty", Name: "Brutal Honesty", Icon: "⚖️",
		Description: "You had the courage to log a cigarette you smoked.",
		Category:    CategoryResilience,
		Unlock: func(f Facts) bool {
			return slices.ContainsFunc(f.Logs, models.LogEntry.IsRelapse)
		},
	},
	{
		ID: "trigger_hunter", Name: "Trigger Hunter", Icon: "⚡",
		Description: "You logged 10 cravings and named the trigger.",
		Category:    CategoryAwareness,
		Unlock: func(f Facts) bool {
			n := 0
			for _, l := range f.Logs {
				if len(l.Triggers) > 0 {
					n++
				}
			}
			return n >= 10
		},
	},
	{
		ID: "plan_ready", Name: "Emergency Plan", Icon: "🛡️",
		Description: "You prepared an if-then coping plan.",
		Category:    CategoryAction,
		Unlock: func(f Facts) bool {
			return len(f.Plans) > 0
		},
	},
}

// All returns the catalog in declaration order.
func All() []Definition {
	return slices.Clone(catalog)
}

// ByID looks up a catalog badge.
func ByID(id string) (Definition, bool) {
	i := slices.IndexFunc(catalog, func(d Definition) bool { return d.ID == id })
	if i < 0 {
		return Definition{}, false
	}
	return catalog[i], true
}

// IsRevocable reports whether id names a revocable catalog badge.
func IsRevocable(id string) bool {
	d, ok := ByID(id)
	return ok && d.Revocable
}

// ByCategory returns the catalog badges in c; CategoryAll returns every badge.
func ByCategory(c Category) []Definition {
	if c == CategoryAll {
		return All()
	}
	var out []Definition
	for _, d := range catalog {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}
