package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/stopit/app"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a decrypted JSON backup of all your data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			doc, err := a.Export(cmd.Context())
			if doc == nil {
				return err
			}
			data, merr := json.MarshalIndent(doc, "", "  ")
			if merr != nil {
				return fmt.Errorf("failed to encode export: %w", merr)
			}
			data = append(data, '\n')
			if exportOut == "" || exportOut == "-" {
				if _, werr := cmd.OutOrStdout().Write(data); werr != nil {
					return werr
				}
				return err
			}
			if werr := os.WriteFile(exportOut, data, 0o600); werr != nil {
				return fmt.Errorf("failed to write export: %w", werr)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s. It is not encrypted; keep it safe.\n", exportOut)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
}
