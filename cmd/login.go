// File: cmd/login.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ledger-cli/internal/observability"
)

func newLoginCmd() *cobra.Command {
	var year int

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in once in the browser window and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := initializeComponents(ctx, cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			if err := components.Orchestrator.Login(ctx, year); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", components.Store.Path())
			return nil
		},
	}
	loginCmd.Flags().IntVarP(&year, "year", "y", time.Now().Year(), "year whose order listing is opened")
	return loginCmd
}
