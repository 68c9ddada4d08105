package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
)

var deleteYes bool

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account",
	Short: "Permanently delete your account and every record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteYes {
			return errors.New("this cannot be undone; pass --yes to confirm")
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.DeleteAccount(cmd.Context()); err != nil {
				return err
			}
			printf(cmd, "Account deleted.\n")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteAccountCmd)
	deleteAccountCmd.Flags().BoolVar(&deleteYes, "yes", false, "Confirm the deletion")
}
