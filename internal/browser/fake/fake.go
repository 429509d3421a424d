// Package fake provides a scripted, in-memory storefront that implements the
// browser capability interfaces. Tests use it to drive the export core
// without launching a browser.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

const blankDocument = "<html><head></head><body></body></html>"

// Page is a scripted page. Documents are served by URL; a listing is a
// sequence of documents advanced by clicks; navigations that a human would
// drive (login, MFA) are injected with Emit or CompleteLogin.
type Page struct {
	mu sync.Mutex

	url       string
	documents map[string]string
	redirects map[string]string
	loadErrs  map[string]error
	pdf       func(url string) ([]byte, error)

	listingURL string
	listing    []string
	listingIdx int

	loginCookie string
	signinURL   string

	state       *schemas.StorageState
	navigations chan string
	printMedia  bool
	closed      bool

	visited   []string
	clicks    []string
	printed   []string
	loadWaits int
}

var _ schemas.Page = (*Page)(nil)

// NewPage returns an empty page positioned on about:blank.
func NewPage() *Page {
	return &Page{
		url:         "about:blank",
		documents:   map[string]string{},
		redirects:   map[string]string{},
		loadErrs:    map[string]error{},
		navigations: make(chan string, 64),
		state:       &schemas.StorageState{Cookies: []schemas.Cookie{}, Origins: []schemas.OriginState{}},
	}
}

// WithDocument serves html at url.
func (p *Page) WithDocument(url, html string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents[url] = html
	return p
}

// WithRedirect makes navigations to from land on to.
func (p *Page) WithRedirect(from, to string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redirects[from] = to
	return p
}

// WithListing serves pages at url. Each click while on the listing moves to
// the next page, whose URL is url with a page suffix.
func (p *Page) WithListing(url string, pages ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listingURL = url
	p.listing = pages
	return p
}

// WithLogin makes every navigation land on signinURL until the storage state
// holds a cookie named cookie.
func (p *Page) WithLogin(cookie, signinURL string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginCookie = cookie
	p.signinURL = signinURL
	return p
}

// WithPDF replaces the renderer used by PrintToPDF.
func (p *Page) WithPDF(render func(url string) ([]byte, error)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pdf = render
	return p
}

// FailLoad makes WaitForLoad return err while the page is on url.
func (p *Page) FailLoad(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErrs[url] = err
	return p
}

// Emit injects a main-frame navigation to url, as if the user had followed a link.
func (p *Page) Emit(url string) {
	p.navigations <- url
}

// CompleteLogin sets the login cookie and navigates to landing, the way a
// successful sign-in does.
func (p *Page) CompleteLogin(landing string) {
	p.mu.Lock()
	p.state.Cookies = append(p.state.Cookies, schemas.Cookie{
		Name: p.loginCookie, Value: "signed-in", Domain: ".example.test", Path: "/", Expires: -1, Secure: true,
	})
	p.mu.Unlock()
	p.Emit(landing)
}

// SetStorageState replaces the context state, as a restore does.
func (p *Page) SetStorageState(state *schemas.StorageState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = cloneState(state)
}

func (p *Page) loggedIn() bool {
	if p.loginCookie == "" {
		return true
	}
	for _, c := range p.state.Cookies {
		if c.Name == p.loginCookie {
			return true
		}
	}
	return false
}

// land moves the page to url after redirects and the login check. mu must be held.
func (p *Page) land(url string) {
	if to, ok := p.redirects[url]; ok {
		url = to
	}
	if !p.loggedIn() && url != p.signinURL {
		url = p.signinURL
	}
	p.url = url
	if url == p.listingURL {
		p.listingIdx = 0
	}
	p.printMedia = false
	p.visited = append(p.visited, url)
}

func (p *Page) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return errors.New("fake: page is closed")
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.land(url)
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return "", err
	}
	return p.url, nil
}

// WaitForNavigation blocks until Emit or CompleteLogin injects a navigation.
func (p *Page) WaitForNavigation(ctx context.Context) (string, error) {
	select {
	case url := <-p.navigations:
		p.mu.Lock()
		defer p.mu.Unlock()
		p.land(url)
		return p.url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Page) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.loadWaits++
	if err, ok := p.loadErrs[p.url]; ok {
		return err
	}
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return "", err
	}
	if p.onListing() {
		return p.listing[p.listingIdx], nil
	}
	if html, ok := p.documents[p.url]; ok {
		return html, nil
	}
	return blankDocument, nil
}

func (p *Page) onListing() bool {
	return p.listingURL != "" && len(p.listing) > 0 &&
		(p.url == p.listingURL || p.url == listingPageURL(p.listingURL, p.listingIdx))
}

func listingPageURL(base string, idx int) string {
	if idx == 0 {
		return base
	}
	return fmt.Sprintf("%s&page=%d", base, idx+1)
}

// Click advances the listing. Clicking anywhere else, or past the last
// listing page, fails the way a missing element would.
func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	if !p.onListing() || p.listingIdx+1 >= len(p.listing) {
		return fmt.Errorf("fake: nothing to click for %q on %s", selector, p.url)
	}
	p.listingIdx++
	p.url = listingPageURL(p.listingURL, p.listingIdx)
	p.visited = append(p.visited, p.url)
	return nil
}

func (p *Page) EmulatePrintMedia(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.printMedia = true
	return nil
}

// PrintToPDF renders the current URL. It fails unless print media is
// emulated for the current document.
func (p *Page) PrintToPDF(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return nil, err
	}
	if !p.printMedia {
		return nil, fmt.Errorf("fake: %s printed without print media", p.url)
	}
	p.printed = append(p.printed, p.url)
	if p.pdf != nil {
		return p.pdf(p.url)
	}
	return MinimalPDF(1, "rendering of "+p.url), nil
}

func (p *Page) StorageState(ctx context.Context) (*schemas.StorageState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(ctx); err != nil {
		return nil, err
	}
	return cloneState(p.state), nil
}

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// -- Inspection --

// Visited returns every URL the page landed on, in order.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Clicks returns the selectors clicked, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Printed returns the URL of every rendered document, in order.
func (p *Page) Printed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.printed...)
}

func (p *Page) LoadWaits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadWaits
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func cloneState(s *schemas.StorageState) *schemas.StorageState {
	out := &schemas.StorageState{Cookies: []schemas.Cookie{}, Origins: []schemas.OriginState{}}
	if s == nil {
		return out
	}
	out.Cookies = append(out.Cookies, s.Cookies...)
	for _, o := range s.Origins {
		out.Origins = append(out.Origins, schemas.OriginState{
			Origin:       o.Origin,
			LocalStorage: append([]schemas.NameValue{}, o.LocalStorage...),
		})
	}
	return out
}

// Browser hands out a single scripted page.
type Browser struct {
	mu         sync.Mutex
	page       *Page
	newPageErr error
	restored   []*schemas.StorageState
	shutdowns  int
}

var _ schemas.Browser = (*Browser)(nil)

func NewBrowser(page *Page) *Browser {
	return &Browser{page: page}
}

// FailNewPage makes NewPage return err.
func (b *Browser) FailNewPage(err error) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newPageErr = err
	return b
}

func (b *Browser) NewPage(ctx context.Context, state *schemas.StorageState) (schemas.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.restored = append(b.restored, state)
	if state != nil {
		b.page.SetStorageState(state)
	}
	return b.page, nil
}

func (b *Browser) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdowns++
	return nil
}

// Restored returns the state passed to each NewPage call; nil entries are fresh contexts.
func (b *Browser) Restored() []*schemas.StorageState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*schemas.StorageState(nil), b.restored...)
}

func (b *Browser) Shutdowns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdowns
}
