package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/repository"
	"github.com/noah-isme/civica-api/internal/service"
	"github.com/noah-isme/civica-api/pkg/export"
)

// ComplianceCmd returns the compliance command group.
func ComplianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Office compliance scoring",
	}
	cmd.AddCommand(complianceRankingCmd())
	cmd.AddCommand(complianceExportCmd())
	return cmd
}

func complianceRankingCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Print active offices ordered by compliance score",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			scores, err := analyticsFor(e).AllOfficesCompliance(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(scores) > limit {
				scores = scores[:limit]
			}
			return printRanking(cmd.OutOrStdout(), scores)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Only print the top N offices")
	return cmd
}

func complianceExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the compliance ranking as CSV or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			body, filename, err := analyticsFor(e).ExportCompliance(cmd.Context(), parsed)
			if err != nil {
				return err
			}
			if output == "" {
				output = filename
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%d bytes)\n", color.New(color.FgGreen).Sprint("WROTE"), output, len(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout (default: generated filename)")
	return cmd
}

func analyticsFor(e *env) *service.AnalyticsService {
	return service.NewAnalyticsService(
		repository.NewInspectionRepository(e.db),
		repository.NewOfficeRepository(e.db),
		repository.NewEscalationRepository(e.db),
		nil,
		e.cfg.Compliance.OnTimeDays,
		e.logger,
	)
}

func printRanking(out io.Writer, scores []models.ComplianceScore) error {
	if len(scores) == 0 {
		fmt.Fprintln(out, "No active offices.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tOFFICE\tTYPE\tSCORE\tINSPECTIONS\tVIOLATIONS")
	for i, s := range scores {
		var total, violations int
		if s.Metrics != nil {
			total, violations = s.Metrics.TotalInspections, s.Metrics.ViolationCount
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
			i+1,
			s.OfficeName,
			s.OfficeType,
			scoreColor(s.Score).Sprintf("%.1f", s.Score),
			total,
			violations,
		)
	}
	return w.Flush()
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen)
	case score >= 50:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
