package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/crypto"
)

var registerGenerate bool

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		a, err := newApp(s)
		if err != nil {
			return err
		}

		var password, confirm string
		if registerGenerate {
			if password, err = crypto.GeneratePassword(0); err != nil {
				return err
			}
			confirm = password
			printf(cmd, "Your password: %s\nWrite it down; it cannot be recovered.\n", password)
		} else {
			if password, err = readPassword("Choose a password: "); err != nil {
				return err
			}
			if confirm, err = readPassword("Repeat the password: "); err != nil {
				return err
			}
		}
		if err := auth.ValidateRegistration(args[0], password, confirm); err != nil {
			return err
		}
		if err := a.Register(ctx, args[0], password); err != nil {
			return err
		}
		defer func() {
			if sess, err := a.Auth().Session(); err == nil {
				sess.Close()
			}
		}()

		printBanner(cmd.OutOrStdout())
		printf(cmd, "Account %q created. Set up your profile with `stopit profile --quit-date ...`.\n", auth.NormalizeUsername(args[0]))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the last logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		a, err := newApp(s)
		if err != nil {
			return err
		}
		return a.Logout(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().BoolVar(&registerGenerate, "generate-password", false, "Generate a random password instead of prompting")
	rootCmd.AddCommand(logoutCmd)
}
