// Package chromium drives a local Chrome or Chromium through the DevTools
// protocol using chromedp.
package chromium

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// navigationBuffer is the number of main-frame navigations a page remembers
// while nobody is waiting for them.
const navigationBuffer = 32

// Browser owns the browser process. Pages are opened as tabs in it.
type Browser struct {
	logger        *zap.Logger
	actionTimeout time.Duration

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	pages    []*Page
	shutdown bool
}

var _ schemas.Browser = (*Browser)(nil)

// New launches the browser process. actionTimeout bounds element
// interactions such as clicks.
func New(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (*Browser, error) {
	// The process must survive cancellation of the run context until
	// Shutdown, so the allocator only inherits values from ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(session.Detach(ctx), ExecAllocatorOptions(cfg)...)

	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run starts the process and ties it to browserCtx.
	if err := firstRun(ctx, browserCtx, browserCancel); err != nil {
		allocCancel()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	logger.Info("Chromium started.", zap.Bool("headless", cfg.Headless))
	return &Browser{
		logger:        logger,
		actionTimeout: actionTimeout,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a tab and, when state is given, seeds it with the saved
// cookies and local storage before any navigation happens.
func (b *Browser) NewPage(ctx context.Context, state *schemas.StorageState) (schemas.Page, error) {
	b.mu.Lock()
	if b.shutdown {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser is shut down")
	}
	tab := len(b.pages)
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	p := &Page{
		ctx:           tabCtx,
		cancel:        tabCancel,
		logger:        b.logger.With(zap.Int("tab", tab)),
		nav:           session.NewNavigationQueue(navigationBuffer),
		actionTimeout: b.actionTimeout,
	}
	p.listen()

	actions := chromedp.Tasks{}
	if state != nil {
		actions = append(actions, restoreAction(state))
	}
	if err := firstRun(ctx, tabCtx, tabCancel, actions...); err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	if state != nil {
		p.logger.Debug("Restored storage state into tab.",
			zap.Int("cookies", len(state.Cookies)),
			zap.Int("origins", len(state.Origins)),
			zap.Time("earliest_expiry", state.EarliestExpiry()))
	}

	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// firstRun performs the first chromedp.Run on chromeCtx. chromedp binds the
// browser process, or the tab's event loop, to the context of that first Run,
// so it must be the long-lived context and never one derived from ctx. ctx can
// still abort the start; chromeCtx is cancelled on any failure.
func firstRun(ctx, chromeCtx context.Context, cancel context.CancelFunc, actions ...chromedp.Action) error {
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(chromeCtx, actions...)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return err
	}
	return nil
}

// restoreAction seeds cookies through the storage domain and registers the
// local storage script for every new document.
func restoreAction(state *schemas.StorageState) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(state.Cookies) > 0 {
			if err := storage.SetCookies(toCookieParams(state.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("failed to restore cookies: %w", err)
			}
		}
		script, err := restoreLocalStorageScript(state.Origins)
		if err != nil {
			return err
		}
		if script == "" {
			return nil
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("failed to register local storage restore: %w", err)
		}
		return nil
	})
}

// Shutdown closes every tab and terminates the browser process.
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

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	b.browserCancel()
	b.allocCancel()

	if err != nil {
		b.logger.Warn("Chromium did not close cleanly.", zap.Error(err))
		return fmt.Errorf("failed to close chromium: %w", err)
	}
	b.logger.Info("Chromium closed.")
	return nil
}
