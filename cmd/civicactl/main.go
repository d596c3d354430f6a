package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/civica-api/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicactl",
		Short: "Operator tooling for the Civica inspection API",
		Long: `civicactl applies database migrations, prints and exports office compliance
rankings, bulk-imports inspection templates and tails live notifications.
It reads the same environment (.env, DB_*, REDIS_*) as the API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ComplianceCmd())
	rootCmd.AddCommand(cli.TemplatesCmd())
	rootCmd.AddCommand(cli.NotificationsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
