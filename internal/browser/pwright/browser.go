// Package pwright implements the browser capability on top of playwright-go.
package pwright

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

const navigationBuffer = 32

// Browser owns the playwright driver and one Chromium instance.
type Browser struct {
	logger        *zap.Logger
	cfg           config.BrowserConfig
	actionTimeout time.Duration

	pw      *playwright.Playwright
	browser playwright.Browser

	mu       sync.Mutex
	pages    []*Page
	shutdown bool
}

var _ schemas.Browser = (*Browser)(nil)

// New starts the playwright driver and launches Chromium. When
// cfg.InstallDriver is set the driver and browsers are installed first.
func New(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (*Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if cfg.InstallDriver {
		logger.Info("Installing playwright driver and browsers.")
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
	}
	if cfg.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	logger.Info("Playwright chromium launched.", zap.Bool("headless", cfg.Headless))
	return &Browser{
		logger:        logger,
		cfg:           cfg,
		actionTimeout: actionTimeout,
		pw:            pw,
		browser:       browser,
	}, nil
}

// NewPage creates a browser context, initialized from state when given, and
// opens a single page in it.
func (b *Browser) NewPage(ctx context.Context, state *schemas.StorageState) (schemas.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if b.shutdown {
		b.mu.Unlock()
		return nil, errors.New("browser is shut down")
	}
	b.mu.Unlock()

	opts := playwright.BrowserNewContextOptions{}
	if b.cfg.Viewport.Width > 0 && b.cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: b.cfg.Viewport.Width, Height: b.cfg.Viewport.Height}
	}
	if state != nil {
		path, err := writeStateFile("", state)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		opts.StorageStatePath = playwright.String(path)
	}

	bctx, err := b.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	pg.SetDefaultTimeout(float64(b.actionTimeout.Milliseconds()))
	// Navigations of the login flow are driven by a human and unbounded.
	pg.SetDefaultNavigationTimeout(0)

	p := &Page{
		logger:  b.logger,
		bctx:    bctx,
		page:    pg,
		nav:     session.NewNavigationQueue(navigationBuffer),
		timeout: b.actionTimeout,
	}
	pg.OnFrameNavigated(func(f playwright.Frame) {
		if f.ParentFrame() != nil {
			return
		}
		p.nav.Push(f.URL())
	})

	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// Shutdown closes every context, the browser, and stops the driver.
func (b *Browser) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.shutdown {
		b.mu.Unlock()
		return nil
	}
	b.shutdown = true
	pages := b.pages
	b.pages = nil
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close(ctx)
	}

	var errs []error
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		b.logger.Warn("Playwright did not shut down cleanly.", zap.Error(err))
		return err
	}
	b.logger.Info("Playwright closed.")
	return nil
}
