package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/models"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage if-then coping plans",
}

var planAddCmd = &cobra.Command{
	Use:     "add <trigger> <action...>",
	Short:   "Add a plan: when <trigger> happens, do <action>",
	Example: `  stopit plan add coffee drink a glass of water first`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			plan, err := a.AddPlan(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil && plan.ID == 0 {
				return err
			}
			printf(cmd, "Plan #%d: when %s, %s\n", plan.ID, models.TriggerLabel(plan.TriggerID), plan.Action)
			return err
		})
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your plans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			plans := a.State().Plans()
			if len(plans) == 0 {
				printf(cmd, "No plans yet.\n")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRIGGER\tACTION")
			for _, p := range plans {
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, models.TriggerLabel(p.TriggerID), p.Action)
			}
			return w.Flush()
		})
	},
}

var planRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.State().RemovePlan(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd, "Plan #%d removed.\n", id)
			return nil
		})
	},
}

var planTriggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List trigger and strategy ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRIGGER\tLABEL")
		for _, t := range models.Triggers() {
			fmt.Fprintf(w, "%s\t%s %s\n", t.ID, t.Icon, t.Label)
		}
		fmt.Fprintln(w, "\nSTRATEGY\tLABEL")
		for _, s := range models.Strategies() {
			fmt.Fprintf(w, "%s\t%s %s\n", s.ID, s.Icon, s.Label)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planAddCmd, planListCmd, planRmCmd, planTriggersCmd)
}
