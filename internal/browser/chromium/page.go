package chromium

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
)

const readyPollInterval = 100 * time.Millisecond

// navigationGrace is how long WaitForLoad waits for a click to start a
// navigation. A click that starts none updated the document in place.
const navigationGrace = time.Second

// Page is a single chromedp tab.
type Page struct {
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	nav           *session.NavigationQueue
	actionTimeout time.Duration

	mu     sync.Mutex
	click  clickWait
	closed bool
}

// clickWait records the last click that WaitForLoad has not yet seen settle.
type clickWait struct {
	pending bool
	// seq is the navigation count at the click.
	seq uint64
	at  time.Time
}

// navigationDone reports whether the click's navigation has committed, or
// whether the grace period passed without one starting.
func (w clickWait) navigationDone(seq uint64, now time.Time) bool {
	return !w.pending || seq > w.seq || now.Sub(w.at) >= navigationGrace
}

func documentReady(readyState string) bool {
	return readyState == "interactive" || readyState == "complete"
}

var _ schemas.Page = (*Page)(nil)

// listen feeds main-frame navigations into the page's queue.
func (p *Page) listen() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventFrameNavigated)
		if !ok || e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		p.logger.Debug("Main frame navigated.", zap.String("url", e.Frame.URL))
		p.nav.Push(e.Frame.URL)
	})
}

// run executes actions bound to both the tab lifetime and the caller's ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := session.CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	// Only navigations after this one are of interest to WaitForNavigation.
	p.nav.Drain()
	p.mu.Lock()
	p.click = clickWait{}
	p.mu.Unlock()
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

// WaitForNavigation blocks until the next main-frame navigation. It has no
// bound of its own.
func (p *Page) WaitForNavigation(ctx context.Context) (string, error) {
	waitCtx, cancel := session.CombineContext(ctx, p.ctx)
	defer cancel()
	return p.nav.Next(waitCtx)
}

// WaitForLoad waits for a navigation started by the last Click to commit,
// and then for the document to leave the "loading" state. A click that starts
// no navigation within navigationGrace is treated as an in-place update.
func (p *Page) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	click := p.click
	p.mu.Unlock()

	err := session.WithBound(ctx, timeout, "wait for page load", func(c context.Context) error {
		return poll(c, readyPollInterval, func() bool {
			if !click.navigationDone(p.nav.Seq(), time.Now()) {
				return false
			}
			var state string
			// Evaluation fails while the old document is being torn down; keep polling.
			if err := p.run(c, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
				return false
			}
			return documentReady(state)
		})
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.click = clickWait{}
	p.mu.Unlock()
	return nil
}

// poll checks cond every interval until it holds or ctx is done.
func poll(ctx context.Context, interval time.Duration, cond func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.click = clickWait{pending: true, seq: p.nav.Seq(), at: time.Now()}
	p.mu.Unlock()

	return session.WithBound(ctx, p.actionTimeout, "click "+selector, func(c context.Context) error {
		if err := p.run(c, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
			return fmt.Errorf("failed to click %s: %w", selector, err)
		}
		return nil
	})
}

func (p *Page) EmulatePrintMedia(ctx context.Context) error {
	if err := p.run(ctx, emulation.SetEmulatedMedia().WithMedia("print")); err != nil {
		return fmt.Errorf("failed to emulate print media: %w", err)
	}
	return nil
}

func (p *Page) PrintToPDF(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		data, _, err = page.PrintToPDF().WithPrintBackground(true).Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to print page: %w", err)
	}
	return data, nil
}

// StorageState snapshots every cookie of the browser context and the local
// storage of the current origin.
func (p *Page) StorageState(ctx context.Context) (*schemas.StorageState, error) {
	state := &schemas.StorageState{Cookies: []schemas.Cookie{}, Origins: []schemas.OriginState{}}
	var local schemas.OriginState

	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := storage.GetCookies().Do(c)
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
		state.Cookies = fromCDPCookies(cookies)
		return nil
	}))
	if err != nil {
		return nil, err
	}

	if err := p.run(ctx, chromedp.Evaluate(captureLocalStorageJS, &local)); err != nil {
		p.logger.Warn("Could not capture local storage.", zap.Error(err))
	} else if local.Origin != "" && local.Origin != "null" && len(local.LocalStorage) > 0 {
		state.Origins = append(state.Origins, local)
	}
	return state, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	return nil
}
