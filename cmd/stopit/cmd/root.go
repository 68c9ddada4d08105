package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/internal/config"
	"github.com/jmcleod/stopit/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile  string
	username string

	cfg    *config.Config
	logger *slog.Logger
	input  *bufio.Reader
)

var rootCmd = &cobra.Command{
	Use:   "stopit",
	Short: "StopIt keeps an encrypted diary of your quit-smoking journey",
	Long: `StopIt records cravings, relapses and coping plans, tracks money saved and
awards badges. Every record is encrypted with a key derived from your password.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default <data-dir>/config.yaml)")
	pf.StringVarP(&username, "user", "u", "", "Username (default: the last user to log in)")
	config.BindFlags(pf)
}

func setup(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.Default().DataDir, "config.yaml")
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := c.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	l, err := logging.New(cmd.ErrOrStderr(), c.Logging)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	input = bufio.NewReader(cmd.InOrStdin())
	logger.Debug("configuration loaded", slog.String("backend", cfg.Backend), slog.String("data_dir", cfg.DataDir))
	return nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
