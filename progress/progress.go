// Package progress derives the numbers shown to a quitter from their profile
// and craving log: days smoke-free, cigarettes avoided, money saved, life
// regained and the current streak. Every function takes the reference time
// explicitly.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/jmcleod/stopit/models"
)

// Day is the unit every day count is floored to.
const Day = 24 * time.Hour

// MinutesPerCigarette is the life expectancy regained per cigarette avoided.
const MinutesPerCigarette = 11

// DefaultCurrency is appended by FormatCurrency when none is given.
const DefaultCurrency = "CHF"

// DaysSmokeFree returns whole days between quit and now. An unset quit date
// counts as zero, as does a quit date in the future.
func DaysSmokeFree(quit *time.Time, now time.Time) int {
	if quit == nil || quit.IsZero() {
		return 0
	}
	return wholeDays(now.Sub(*quit))
}

// HoursSmokeFree returns fractional hours since quit, zero when unset or in
// the future.
func HoursSmokeFree(quit *time.Time, now time.Time) float64 {
	if quit == nil || quit.IsZero() {
		return 0
	}
	h := now.Sub(*quit).Hours()
	if h < 0 {
		return 0
	}
	return h
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / Day)
}

// CigarettesAvoided is DaysSmokeFree times the daily consumption.
func CigarettesAvoided(p models.Profile, now time.Time) int {
	return DaysSmokeFree(p.QuitDate, now) * p.CigarettesPerDay
}

// MoneySaved is floor(floor(days*perDay)/perPack*costPerPack*100)/100. The
// stages and their order are fixed so every display agrees to the cent.
func MoneySaved(p models.Profile, now time.Time) float64 {
	avoided := CigarettesAvoided(p, now)
	packs := float64(avoided) / float64(p.PackSize())
	return math.Floor(packs*p.CostPerPack*100) / 100
}

// LifeTime is the life expectancy regained by not smoking.
type LifeTime struct {
	Minutes   int    `json:"minutes"`
	Hours     int    `json:"hours"`
	Days      int    `json:"days"`
	Formatted string `json:"formatted"`
}

// LifeGained returns the time regained at MinutesPerCigarette per cigarette.
func LifeGained(p models.Profile, now time.Time) LifeTime {
	minutes := CigarettesAvoided(p, now) * MinutesPerCigarette
	return LifeTime{
		Minutes:   minutes,
		Hours:     minutes / 60,
		Days:      minutes / (60 * 24),
		Formatted: FormatLifeTime(minutes),
	}
}

// FormatLifeTime renders minutes as "2d 3h", "3h 15m" or "15m".
func FormatLifeTime(minutes int) string {
	days := minutes / (60 * 24)
	hours := (minutes % (60 * 24)) / 60
	mins := minutes % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// LastRelapse returns the relapse with the latest date, if any.
func LastRelapse(logs []models.LogEntry) (models.LogEntry, bool) {
	var (
		last  models.LogEntry
		found bool
	)
	for _, l := range logs {
		if !l.IsRelapse() {
			continue
		}
		if !found || l.When().After(last.When()) {
			last, found = l, true
		}
	}
	return last, found
}

// Streak is whole days since the most recent relapse, or DaysSmokeFree when
// there has been none. An unset quit date is always zero.
func Streak(p models.Profile, logs []models.LogEntry, now time.Time) int {
	if p.QuitDate == nil || p.QuitDate.IsZero() {
		return 0
	}
	if last, ok := LastRelapse(logs); ok {
		return wholeDays(now.Sub(last.When()))
	}
	return DaysSmokeFree(p.QuitDate, now)
}

// Projection is money that will be saved over future periods.
type Projection struct {
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
	Yearly  float64 `json:"yearly"`
}

// ProjectSavings projects the daily spend forward. Missing consumption or
// price yields zero.
func ProjectSavings(p models.Profile) Projection {
	if p.CigarettesPerDay <= 0 || p.CostPerPack <= 0 {
		return Projection{}
	}
	daily := float64(p.CigarettesPerDay) / float64(p.PackSize()) * p.CostPerPack
	return Projection{
		Weekly:  daily * 7,
		Monthly: daily * 30,
		Yearly:  daily * 365,
	}
}

// FormatCurrency renders amount with two decimals followed by the currency
// code. NaN and infinities render as zero.
func FormatCurrency(amount float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// GoalProgress returns the fraction (0..1) of the savings goal reached, and
// false when no goal is set.
func GoalProgress(p models.Profile, now time.Time) (float64, bool) {
	if p.SavingsGoal == nil || p.SavingsGoal.Amount <= 0 {
		return 0, false
	}
	return math.Min(MoneySaved(p, now)/p.SavingsGoal.Amount, 1), true
}

// Summary bundles the metrics a dashboard shows.
type Summary struct {
	DaysSmokeFree     int        `json:"daysSmokeFree"`
	Streak            int        `json:"streak"`
	CigarettesAvoided int        `json:"cigarettesAvoided"`
	MoneySaved        float64    `json:"moneySaved"`
	LifeGained        LifeTime   `json:"lifeGained"`
	Projection        Projection `json:"projection"`
}

// Summarize computes every metric at now.
func Summarize(p models.Profile, logs []models.LogEntry, now time.Time) Summary {
	return Summary{
		DaysSmokeFree:     DaysSmokeFree(p.QuitDate, now),
		Streak:            Streak(p, logs, now),
		CigarettesAvoided: CigarettesAvoided(p, now),
		MoneySaved:        MoneySaved(p, now),
		LifeGained:        LifeGained(p, now),
		Projection:        ProjectSavings(p),
	}
}
