// File: cmd/session.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ledger-cli/internal/observability"
	"github.com/xkilldash9x/ledger-cli/internal/session"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or remove the saved sign-in session",
	}
	sessionCmd.AddCommand(newSessionShowCmd())
	sessionCmd.AddCommand(newSessionClearCmd())
	return sessionCmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Describe the saved session without printing its secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			summary, err := newStore(cfg, observability.GetLogger()).Summary()
			if errors.Is(err, session.ErrNoSession) {
				fmt.Fprintf(out, "No saved session at %s\n", cfg.Session().Path())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Path:     %s\n", summary.Path)
			fmt.Fprintf(out, "Saved:    %s\n", summary.ModTime.Format(time.RFC3339))
			fmt.Fprintf(out, "Cookies:  %d\n", summary.Cookies)
			fmt.Fprintf(out, "Origins:  %d\n", summary.Origins)
			if !summary.EarliestExpiry.IsZero() {
				fmt.Fprintf(out, "Expires:  %s\n", summary.EarliestExpiry.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved session so the next run signs in again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := newStore(cfg, observability.GetLogger()).Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session cleared: %s\n", cfg.Session().Path())
			return nil
		},
	}
}
