package progress

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/jmcleod/stopit/models"
)

// Week is the window WeeklyReport looks back over.
const Week = 7 * Day

// TriggerScore is the weighted risk of one trigger across the log.
type TriggerScore struct {
	Trigger string  `json:"trigger"`
	Score   float64 `json:"score"`
	Count   int     `json:"count"`
}

// IntensityWeight maps an intensity of 1-4 to 0.25-1.0. An unset intensity
// weighs as a medium craving (0.5).
func IntensityWeight(intensity int) float64 {
	switch {
	case intensity <= 0:
		return 0.5
	case intensity >= models.MaxIntensity:
		return 1
	default:
		return float64(intensity) / float64(models.MaxIntensity)
	}
}

// TriggerRisk ranks triggers by the sum of IntensityWeight over every log
// naming them. Each trigger on a log gets the full weight. Ties are broken
// by trigger ID.
func TriggerRisk(logs []models.LogEntry) []TriggerScore {
	idx := map[string]int{}
	var out []TriggerScore
	for _, l := range logs {
		w := IntensityWeight(l.Intensity)
		for _, t := range l.Triggers {
			i, ok := idx[t]
			if !ok {
				i = len(out)
				idx[t] = i
				out = append(out, TriggerScore{Trigger: t})
			}
			out[i].Score += w
			out[i].Count++
		}
	}
	slices.SortFunc(out, func(a, b TriggerScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Trigger, b.Trigger)
	})
	return out
}

// WeekReport summarizes the logs of the last seven days.
type WeekReport struct {
	Total      int    `json:"total"`
	Resisted   int    `json:"resisted"`
	Relapses   int    `json:"relapses"`
	TopTrigger string `json:"topTrigger,omitempty"`
}

// Clean reports whether the week had no relapse.
func (r WeekReport) Clean() bool {
	return r.Relapses == 0
}

// WeeklyReport counts the logs whose date (or timestamp) falls within Week
// of now. TopTrigger is the most frequent trigger, ties broken by ID.
func WeeklyReport(logs []models.LogEntry, now time.Time) WeekReport {
	since := now.Add(-Week)
	var r WeekReport
	counts := map[string]int{}
	for _, l := range logs {
		if l.When().Before(since) {
			continue
		}
		r.Total++
		switch l.Outcome {
		case models.OutcomeResisted:
			r.Resisted++
		case models.OutcomeRelapse:
			r.Relapses++
		}
		for _, t := range l.Triggers {
			counts[t]++
		}
	}
	best := 0
	for t, n := range counts {
		if n > best || (n == best && t < r.TopTrigger) {
			r.TopTrigger, best = t, n
		}
	}
	return r
}

// Milestone is a point in physical recovery after quitting.
type Milestone struct {
	Hours    int    `json:"hours"`
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	Achieved bool   `json:"achieved"`
	DaysLeft int    `json:"daysLeft,omitempty"`
}

var milestones = []Milestone{
	{Hours: 12, Label: "Blood carbon monoxide back to normal", Icon: "🫁"},
	{Hours: 48, Label: "Taste and smell improved", Icon: "👃"},
	{Hours: 72, Label: "Breathing is easier", Icon: "💨"},
	{Hours: 336, Label: "Circulation improved (2 weeks)", Icon: "❤️"},
	{Hours: 2160, Label: "Lung function up 10% (3 months)", Icon: "🏃"},
}

// HealthMilestones reports each milestone against whole days smoke-free.
// Pending milestones carry the days left, rounded up.
func HealthMilestones(quit *time.Time, now time.Time) []Milestone {
	hours := DaysSmokeFree(quit, now) * 24
	out := make([]Milestone, len(milestones))
	for i, m := range milestones {
		m.Achieved = hours >= m.Hours
		if !m.Achieved {
			m.DaysLeft = int(math.Ceil(float64(m.Hours-hours) / 24))
		}
		out[i] = m
	}
	return out
}
