package pwright

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
)

// Page wraps a playwright page and the context that owns it.
type Page struct {
	logger  *zap.Logger
	bctx    playwright.BrowserContext
	page    playwright.Page
	nav     *session.NavigationQueue
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Page = (*Page)(nil)

// mapTimeout translates playwright's timeout error into schemas.ErrTimeout.
func mapTimeout(op string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, schemas.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Goto ignores ctx, so its deadline is handed to playwright as a timeout.
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = playwright.Float(float64(max(time.Until(deadline).Milliseconds(), 1)))
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return mapTimeout("failed to navigate to "+url, err)
	}
	p.nav.Drain()
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) WaitForNavigation(ctx context.Context) (string, error) {
	return p.nav.Next(ctx)
}

func (p *Page) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return mapTimeout(fmt.Sprintf("wait for page load after %s", timeout), err)
	}
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Click(selector); err != nil {
		return mapTimeout("failed to click "+selector, err)
	}
	return nil
}

func (p *Page) EmulatePrintMedia(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.EmulateMedia(playwright.PageEmulateMediaOptions{Media: playwright.MediaPrint}); err != nil {
		return fmt.Errorf("failed to emulate print media: %w", err)
	}
	return nil
}

func (p *Page) PrintToPDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.PDF(playwright.PagePdfOptions{PrintBackground: playwright.Bool(true)})
	if err != nil {
		return nil, mapTimeout("failed to print page", err)
	}
	return data, nil
}

func (p *Page) StorageState(ctx context.Context) (*schemas.StorageState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := p.bctx.StorageState()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot storage state: %w", err)
	}
	return fromPlaywrightState(st)
}

// Close closes the page and its browser context once.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		if err := p.page.Close(); err != nil {
			p.logger.Debug("Page close failed.", zap.Error(err))
		}
		p.closeErr = p.bctx.Close()
	})
	return p.closeErr
}
