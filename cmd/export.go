// File: cmd/export.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/internal/observability"
)

// completionMessage is printed once every invoice has been written.
const completionMessage = "Finished downloading invoices"

func newExportCmd() *cobra.Command {
	var year int

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Download one PDF invoice per order placed in a year",
		Long: `Opens the order history for the given year, waits for you to sign in if
the saved session is missing or stale, walks every listing page and saves the
printable invoice of each order as <output>/invoice_<n>.pdf.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if year <= 0 {
				return fmt.Errorf("invalid year %d", year)
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}

			result, err := components.Orchestrator.Run(ctx, year)
			if err != nil {
				if result != nil && len(result.Artifacts) > 0 {
					logger.Warn("Export incomplete; earlier invoices were kept.",
						zap.Int("written", len(result.Artifacts)),
						zap.Int("collected", len(result.RecordIDs)))
				}
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Artifacts) > 0 {
				renderArtifacts(out, result.Artifacts)
			}
			fmt.Fprintf(out, "%d invoices written to %s\n", len(result.Artifacts), cfg.Exporter().OutputDir)
			if result.MergedPath != "" {
				fmt.Fprintf(out, "Merged into %s\n", result.MergedPath)
			}
			fmt.Fprintln(out, completionMessage)
			return nil
		},
	}

	exportCmd.Flags().IntVarP(&year, "year", "y", time.Now().Year(), "year of the orders to export")
	exportCmd.Flags().StringP("output", "o", "invoices", "directory the invoices are written to")
	exportCmd.Flags().Bool("verify", false, "check every rendered PDF with pdfcpu")
	exportCmd.Flags().Bool("merge", false, "also merge all invoices into a single PDF")
	exportCmd.Flags().Int("max-pages", 0, "stop after this many listing pages (0 = all)")
	return exportCmd
}
