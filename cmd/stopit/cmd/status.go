package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/badges"
	"github.com/jmcleod/stopit/progress"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show your progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.SyncBadges(cmd.Context())
			if err != nil {
				return err
			}
			profile := a.State().Profile()
			if profile.QuitDate == nil {
				printf(cmd, "No quit date yet. Start with `stopit profile --quit-date now`.\n")
				return nil
			}

			s := a.Summary()
			printf(cmd, "Smoke-free:         %d days (streak %d)\n", s.DaysSmokeFree, s.Streak)
			printf(cmd, "Cigarettes avoided: %d\n", s.CigarettesAvoided)
			printf(cmd, "Money saved:        %s\n", progress.FormatCurrency(s.MoneySaved, progress.DefaultCurrency))
			printf(cmd, "Life regained:      %s\n", s.LifeGained.Formatted)
			printf(cmd, "Yearly projection:  %s\n", progress.FormatCurrency(s.Projection.Yearly, progress.DefaultCurrency))
			if frac, ok := progress.GoalProgress(profile, a.Now()); ok {
				printf(cmd, "Goal %q:  %.0f%%\n", profile.SavingsGoal.Name, frac*100)
			}
			printf(cmd, "Badges:             %d of %d\n", len(a.State().Badges()), len(badges.All()))
			printBadgeChanges(cmd, res)
			if a.BackupDue() {
				printf(cmd, "\nIt has been a while since your last backup. Run `stopit export`.\n")
			}
			return nil
		})
	},
}

func printBadgeChanges(cmd *cobra.Command, res badges.Result) {
	for _, b := range res.ToUnlock {
		printf(cmd, "New badge: %s %s\n", b.Icon, b.Name)
	}
	for _, id := range res.ToRevoke {
		if d, ok := badges.ByID(id); ok {
			printf(cmd, "Badge lost: %s %s\n", d.Icon, d.Name)
		}
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
