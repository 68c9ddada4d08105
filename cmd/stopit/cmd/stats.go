package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/progress"
)

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show trigger risk, the weekly report and health milestones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			logs := a.State().Logs()

			printf(cmd, "Riskiest triggers:\n")
			risk := progress.TriggerRisk(logs)
			if len(risk) == 0 {
				printf(cmd, "  none logged yet\n")
			}
			for i, r := range risk {
				if i == statsTop {
					break
				}
				printf(cmd, "  %d. %-16s score %.2f (%d cravings)\n", i+1, models.TriggerLabel(r.Trigger), r.Score, r.Count)
			}

			week := progress.WeeklyReport(logs, a.Now())
			printf(cmd, "\nLast 7 days: %d cravings, %d resisted, %d relapses\n", week.Total, week.Resisted, week.Relapses)
			if week.TopTrigger != "" {
				printf(cmd, "Main trigger: %s\n", models.TriggerLabel(week.TopTrigger))
			}
			if week.Total > 0 {
				if week.Clean() {
					printf(cmd, "A clean week. Keep going.\n")
				} else {
					printf(cmd, "Look at your main trigger and prepare a plan for it.\n")
				}
			}

			printf(cmd, "\nHealth milestones:\n")
			for _, m := range progress.HealthMilestones(a.State().Profile().QuitDate, a.Now()) {
				if m.Achieved {
					printf(cmd, "  [x] %s %s\n", m.Icon, m.Label)
				} else {
					printf(cmd, "  [ ] %s %s (in %d days)\n", m.Icon, m.Label, m.DaysLeft)
				}
			}
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsTop, "top", 3, "number of triggers to rank")
	rootCmd.AddCommand(statsCmd)
}
