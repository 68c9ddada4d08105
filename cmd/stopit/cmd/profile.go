package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/models"
)

var (
	profQuitDate   string
	profPerDay     int
	profCost       float64
	profPackSize   int
	profMotivation string
	profPartner    string
	profGoalName   string
	profGoalAmount float64
	profTriggers   []string
	profTheme      string
	profReminder   bool
)

// profileView is what `stopit profile` prints.
type profileView struct {
	Username    string             `yaml:"username"`
	Profile     models.Profile     `yaml:"profile"`
	Preferences models.Preferences `yaml:"preferences"`
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	Long: `Without flags, prints your profile as YAML. Any flag updates the profile and
completes onboarding; a profile without a quit date starts counting now.`,
	Example: `  stopit profile --quit-date "2025-03-01" --per-day 15 --cost 8.50
  stopit profile --goal-name "Bike" --goal-amount 400`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		return withApp(cmd.Context(), func(a *app.App) error {
			ctx := cmd.Context()
			if f.Changed("quit-date") || f.Changed("per-day") || f.Changed("cost") || f.Changed("pack-size") ||
				f.Changed("motivation") || f.Changed("partner-phone") || f.Changed("goal-name") ||
				f.Changed("goal-amount") || f.Changed("trigger") {
				var quit *time.Time
				if f.Changed("quit-date") {
					d, err := parseDate(profQuitDate, a.Now())
					if err != nil {
						return err
					}
					quit = &d
				}
				_, err := a.CompleteOnboarding(ctx, func(p *models.Profile) {
					if quit != nil {
						p.QuitDate = quit
					}
					if f.Changed("per-day") {
						p.CigarettesPerDay = profPerDay
					}
					if f.Changed("cost") {
						p.CostPerPack = profCost
					}
					if f.Changed("pack-size") {
						p.CigarettesPerPack = profPackSize
					}
					if f.Changed("motivation") {
						p.Motivation = profMotivation
					}
					if f.Changed("partner-phone") {
						p.PartnerPhone = profPartner
					}
					if f.Changed("trigger") {
						p.Triggers = profTriggers
					}
					if f.Changed("goal-name") || f.Changed("goal-amount") {
						goal := models.SavingsGoal{}
						if p.SavingsGoal != nil {
							goal = *p.SavingsGoal
						}
						if f.Changed("goal-name") {
							goal.Name = profGoalName
						}
						if f.Changed("goal-amount") {
							goal.Amount = profGoalAmount
						}
						p.SavingsGoal = &goal
					}
				})
				if err != nil {
					return err
				}
				res, err := a.SyncBadges(ctx)
				if err != nil {
					return err
				}
				printBadgeChanges(cmd, res)
			}
			if f.Changed("theme") || f.Changed("backup-reminder") {
				_, err := a.State().SavePreferences(ctx, func(p *models.Preferences) {
					if f.Changed("theme") {
						p.Theme = profTheme
					}
					if f.Changed("backup-reminder") {
						p.ReminderBackup = profReminder
					}
				})
				if err != nil {
					return err
				}
			}

			out := yaml.NewEncoder(cmd.OutOrStdout())
			out.SetIndent(2)
			if err := out.Encode(profileView{
				Username:    a.State().Username(),
				Profile:     a.State().Profile(),
				Preferences: a.State().Preferences(),
			}); err != nil {
				return err
			}
			return out.Close()
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	f := profileCmd.Flags()
	f.StringVar(&profQuitDate, "quit-date", "", `Quit date: "now", RFC 3339, "2006-01-02 15:04" or "2006-01-02"`)
	f.IntVar(&profPerDay, "per-day", 0, "Cigarettes you smoked per day")
	f.Float64Var(&profCost, "cost", 0, "Cost of one pack")
	f.IntVar(&profPackSize, "pack-size", models.DefaultCigarettesPerPack, "Cigarettes per pack")
	f.StringVar(&profMotivation, "motivation", "", "Why you are quitting")
	f.StringVar(&profPartner, "partner-phone", "", "Phone number of your support partner")
	f.StringVar(&profGoalName, "goal-name", "", "Savings goal name")
	f.Float64Var(&profGoalAmount, "goal-amount", 0, "Savings goal amount")
	f.StringSliceVar(&profTriggers, "trigger", nil, "Your usual triggers (repeatable)")
	f.StringVar(&profTheme, "theme", models.ThemeLight, "Theme: light or dark")
	f.BoolVar(&profReminder, "backup-reminder", true, "Remind me to export a backup")
}
