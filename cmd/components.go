// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/internal/auth"
	"github.com/xkilldash9x/ledger-cli/internal/browser"
	"github.com/xkilldash9x/ledger-cli/internal/collector"
	"github.com/xkilldash9x/ledger-cli/internal/config"
	"github.com/xkilldash9x/ledger-cli/internal/exporter"
	"github.com/xkilldash9x/ledger-cli/internal/orchestrator"
	"github.com/xkilldash9x/ledger-cli/internal/session"
)

// Overridable in tests.
var (
	appFs         = afero.NewOsFs()
	launchBrowser browser.Launcher = browser.Launch
)

// Components holds the fully wired pieces of a run.
type Components struct {
	Store        *session.Store
	Exporter     *exporter.Exporter
	Orchestrator *orchestrator.Orchestrator
}

func newStore(cfg config.Interface, logger *zap.Logger) *session.Store {
	return session.NewStore(appFs, cfg.Session().Path(), logger)
}

func newExporter(cfg config.Interface, logger *zap.Logger) *exporter.Exporter {
	return exporter.New(appFs, cfg.Exporter(), cfg.Timeouts().PageLoad, logger)
}

// initializeComponents launches the browser and wires it into an
// orchestrator, which then owns it.
func initializeComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	b, err := launchBrowser(ctx, cfg.Browser(), cfg.Timeouts().PageLoad, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	c := &Components{
		Store:    newStore(cfg, logger),
		Exporter: newExporter(cfg, logger),
	}
	c.Orchestrator, err = orchestrator.New(cfg, logger, b,
		c.Store,
		auth.NewGate(cfg.Storefront(), cfg.Auth(), logger),
		collector.New(cfg.Collector(), cfg.Timeouts().PageLoad, logger),
		c.Exporter,
	)
	if err != nil {
		_ = b.Shutdown(ctx)
		return nil, err
	}
	return c, nil
}
