package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/models"
)

var (
	logRelapse    bool
	logIntensity  int
	logTriggers   []string
	logStrategies []string
	logNotes      string
	logDate       string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a craving you resisted, or a cigarette you smoked",
	Example: `  stopit log --trigger coffee --strategy water
  stopit log --relapse --trigger stress --date "2025-03-01 21:30"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := models.LogEntry{
			Outcome:    models.OutcomeResisted,
			Intensity:  logIntensity,
			Triggers:   logTriggers,
			Strategies: logStrategies,
			Notes:      logNotes,
		}
		if logRelapse {
			entry.Outcome = models.OutcomeRelapse
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			if logDate != "" {
				d, err := parseDate(logDate, a.Now())
				if err != nil {
					return err
				}
				entry.Date = d
			}
			stored, res, err := a.LogCraving(cmd.Context(), entry)
			if err != nil && stored.ID == 0 {
				return err
			}
			if stored.IsRelapse() {
				printf(cmd, "Relapse #%d recorded. Your counter restarts now; tomorrow is another day.\n", stored.ID)
			} else {
				printf(cmd, "Craving #%d resisted. Well done!\n", stored.ID)
				for _, t := range stored.Triggers {
					if plan, ok := a.PlanForTrigger(t); ok {
						printf(cmd, "Your plan for %s: %s\n", models.TriggerLabel(t), plan.Action)
					}
				}
			}
			printBadgeChanges(cmd, res)
			return err
		})
	},
}

// parseDate accepts "now", RFC 3339, "2006-01-02 15:04" and "2006-01-02" in
// local time. Future dates are rejected.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "now") {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return checkPast(t.UTC(), now)
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return checkPast(t.UTC(), now)
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

func checkPast(t, now time.Time) (time.Time, error) {
	if t.After(now) {
		return time.Time{}, fmt.Errorf("date %s is in the future", t.Format(time.RFC3339))
	}
	return t, nil
}

func init() {
	rootCmd.AddCommand(logCmd)
	f := logCmd.Flags()
	f.BoolVar(&logRelapse, "relapse", false, "Record a smoked cigarette instead of a resisted craving")
	f.IntVarP(&logIntensity, "intensity", "i", models.DefaultIntensity, "Craving intensity, 1 to 4")
	f.StringSliceVarP(&logTriggers, "trigger", "t", nil, "Trigger id (repeatable); see \"stopit plan triggers\"")
	f.StringSliceVarP(&logStrategies, "strategy", "s", nil, "Coping strategy id (repeatable)")
	f.StringVar(&logNotes, "notes", "", "Free-text notes")
	f.StringVar(&logDate, "date", "", `When it happened: "now", RFC 3339 or "2006-01-02 15:04" (default now)`)
}
