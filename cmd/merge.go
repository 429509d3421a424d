// File: cmd/merge.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ledger-cli/internal/exporter"
	"github.com/xkilldash9x/ledger-cli/internal/observability"
)

func newMergeCmd() *cobra.Command {
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the invoices of the last export into a single PDF",
		Long: `Reads the manifest written by the last export in the output directory and
merges its invoices, in order, into one document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			manifest, err := exporter.ReadManifest(appFs, cfg.Exporter().OutputDir)
			if err != nil {
				return err
			}
			if len(manifest.Artifacts) == 0 {
				return fmt.Errorf("the manifest in %s lists no invoices", cfg.Exporter().OutputDir)
			}

			out, err := newExporter(cfg, observability.GetLogger()).MergeArtifacts(manifest.Artifacts)
			if err != nil {
				return err
			}
			renderArtifacts(cmd.OutOrStdout(), manifest.Artifacts)
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d invoices into %s\n", len(manifest.Artifacts), out)
			return nil
		},
	}
	mergeCmd.Flags().StringP("output", "o", "invoices", "directory holding the exported invoices")
	return mergeCmd
}
