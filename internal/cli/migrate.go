package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/civica-api/migrations"
	"github.com/noah-isme/civica-api/pkg/database"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			applied, err := database.Migrate(cmd.Context(), e.db, migrations.FS)
			out := cmd.OutOrStdout()
			for _, version := range applied {
				fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("APPLIED"), version)
			}
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Schema is up to date.")
			}
			return nil
		},
	}
}
