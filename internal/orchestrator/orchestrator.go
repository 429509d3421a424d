// File: internal/orchestrator/orchestrator.go
// Description: Runs one export end to end. It is injected with the session
// store, auth gate, collector and exporter via interfaces and owns the browser
// for the duration of the run.

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/auth"
	"github.com/xkilldash9x/ledger-cli/internal/browser"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// SessionStore opens the run's page and saves its session.
type SessionStore interface {
	auth.Persister
	Restore(ctx context.Context, browser schemas.Browser) (schemas.Page, error)
}

// AuthGate blocks until the page is signed in.
type AuthGate interface {
	Await(ctx context.Context, page schemas.Page, target string, persist auth.Persister) error
}

// RecordCollector reads every record id from the listing.
type RecordCollector interface {
	Collect(ctx context.Context, page schemas.Page) ([]schemas.RecordID, error)
}

// ArtifactExporter renders one document per record id.
type ArtifactExporter interface {
	Export(ctx context.Context, page schemas.Page, ids []schemas.RecordID) ([]schemas.Artifact, error)
	MergeArtifacts(artifacts []schemas.Artifact) (string, error)
}

// Result summarizes a run. On failure it holds whatever was produced before
// the error.
type Result struct {
	RunID      string
	Year       int
	RecordIDs  []schemas.RecordID
	Artifacts  []schemas.Artifact
	MergedPath string
	Duration   time.Duration
}

// Orchestrator composes the components of a run.
type Orchestrator struct {
	cfg       config.Interface
	logger    *zap.Logger
	browser   schemas.Browser
	store     SessionStore
	gate      AuthGate
	collector RecordCollector
	exporter  ArtifactExporter
}

// New creates a new Orchestrator. The browser is shut down at the end of
// every Run or Login.
func New(
	cfg config.Interface,
	logger *zap.Logger,
	b schemas.Browser,
	store SessionStore,
	gate AuthGate,
	collector RecordCollector,
	exporter ArtifactExporter,
) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		b == nil ||
		store == nil ||
		gate == nil ||
		collector == nil ||
		exporter == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		browser:   b,
		store:     store,
		gate:      gate,
		collector: collector,
		exporter:  exporter,
	}, nil
}

// Run restores the session, waits for sign-in, collects the year's record ids
// and exports one document per id. Any failure aborts the run; files already
// written stay on disk.
func (o *Orchestrator) Run(ctx context.Context, year int) (*Result, error) {
	started := time.Now()
	result := &Result{RunID: uuid.NewString(), Year: year}
	logger := o.logger.With(zap.String("run_id", result.RunID), zap.Int("year", year))
	defer func() { result.Duration = time.Since(started) }()

	logger.Info("Starting export run.")

	page, err := o.store.Restore(ctx, o.browser)
	defer func() { o.teardown(ctx, page, logger) }()
	if err != nil {
		return result, err
	}

	listing := o.cfg.Storefront().ListingURLFor(year)
	if err := o.gate.Await(ctx, page, listing, o.store); err != nil {
		return result, fmt.Errorf("authentication failed: %w", err)
	}

	ids, err := o.collector.Collect(ctx, page)
	if err != nil {
		return result, fmt.Errorf("record collection failed: %w", err)
	}
	result.RecordIDs = ids
	logger.Info("Record ids collected.", zap.Int("count", len(ids)))

	artifacts, err := o.exporter.Export(ctx, page, ids)
	result.Artifacts = artifacts
	if err != nil {
		return result, fmt.Errorf("export failed after %d of %d documents: %w", len(artifacts), len(ids), err)
	}

	if o.cfg.Exporter().Merge && len(artifacts) > 0 {
		merged, err := o.exporter.MergeArtifacts(artifacts)
		if err != nil {
			return result, fmt.Errorf("merge failed: %w", err)
		}
		result.MergedPath = merged
	}

	logger.Info("Export run finished.",
		zap.Int("artifacts", len(artifacts)),
		zap.Duration("elapsed", time.Since(started)))
	return result, nil
}

// Login only establishes and saves a session for the year's listing.
func (o *Orchestrator) Login(ctx context.Context, year int) error {
	logger := o.logger.With(zap.Int("year", year))

	page, err := o.store.Restore(ctx, o.browser)
	defer func() { o.teardown(ctx, page, logger) }()
	if err != nil {
		return err
	}
	if err := o.gate.Await(ctx, page, o.cfg.Storefront().ListingURLFor(year), o.store); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return nil
}

// teardown closes the page and the browser. It runs on a context detached
// from ctx so an interrupted run still releases the browser.
func (o *Orchestrator) teardown(ctx context.Context, page schemas.Page, logger *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(session.Detach(ctx), browser.ShutdownGracePeriod)
	defer cancel()

	if page != nil {
		if err := page.Close(shutdownCtx); err != nil {
			logger.Warn("Failed to close page.", zap.Error(err))
		}
	}
	if err := o.browser.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
		return
	}
	logger.Debug("Browser shut down.")
}
