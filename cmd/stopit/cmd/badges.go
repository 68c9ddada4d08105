package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/badges"
)

var badgesCategory string

var badgesCmd = &cobra.Command{
	Use:   "badges [id]",
	Short: "List badges, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.SyncBadges(cmd.Context())
			if err != nil {
				return err
			}
			printBadgeChanges(cmd, res)

			if len(args) == 1 {
				d, ok := a.Badges().ByID(args[0])
				if !ok {
					return fmt.Errorf("unknown badge %q", args[0])
				}
				printf(cmd, "%s %s (%s)\n%s\n", d.Icon, d.Name, d.Category, d.Description)
				for _, b := range a.State().Badges() {
					if b.ID == d.ID {
						printf(cmd, "Unlocked %s\n", b.UnlockedAt.Local().Format("2006-01-02 15:04"))
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, " \tID\tBADGE\tCATEGORY")
			for _, d := range badges.ByCategory(badges.Category(badgesCategory)) {
				mark := "·"
				if a.State().IsBadgeUnlocked(d.ID) {
					mark = "✔"
				}
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n", mark, d.ID, d.Icon, d.Name, d.Category)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(badgesCmd)
	badgesCmd.Flags().StringVar(&badgesCategory, "category", string(badges.CategoryAll), "Only show one category")
}
