package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/repository"
	"github.com/noah-isme/civica-api/internal/service"
)

// TemplatesCmd returns the templates command group.
func TemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspection template maintenance",
	}
	cmd.AddCommand(templatesImportCmd())
	return cmd
}

func templatesImportCmd() *cobra.Command {
	var (
		actorID string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create templates from a YAML document, skipping names already in use",
		Long: `Reads a document of the form

  templates:
    - name: Hospital visit
      office_types: [hospital]
      form_fields:
        - field_name: Cleanliness
          field_type: rating
          is_required: true

and creates every template whose name is not taken by an active template.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if dryRun {
				requests, err := service.ParseTemplatesYAML(document)
				if err != nil {
					return err
				}
				for _, req := range requests {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d fields)\n", color.New(color.FgBlue).Sprint("PARSED "), req.Name, len(req.FormFields))
				}
				return nil
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			svc := service.NewTemplateService(repository.NewTemplateRepository(e.db), repository.NewInspectionRepository(e.db), nil, e.logger)
			created, skipped, err := svc.Import(cmd.Context(), models.Actor{UserID: actorID, Role: models.RoleAdmin}, document)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), created, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "User id recorded as creator of the imported templates")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and validate the document without writing")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func readDocument(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

func printImport(out io.Writer, created []models.Template, skipped []string) {
	for _, tpl := range created {
		fmt.Fprintf(out, "%s %s (%s)\n", color.New(color.FgGreen).Sprint("CREATE "), tpl.Name, tpl.ID)
	}
	for _, name := range skipped {
		fmt.Fprintf(out, "%s %s (name in use)\n", color.New(color.FgYellow).Sprint("SKIP   "), name)
	}
	fmt.Fprintf(out, "%d created, %d skipped\n", len(created), len(skipped))
}
