// File: internal/auth/gate.go
// Description: Blocks a run until the live page is signed in. The gate never
// enters credentials; it watches main-frame navigations while a human completes
// sign-in and multi-factor verification in the browser window.

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// ErrAuthenticationAbandoned is returned when a bounded login wait expires
// while the page is still on a logged-out page.
var ErrAuthenticationAbandoned = errors.New("authentication abandoned")

// Persister stores the session of an authenticated page.
type Persister interface {
	Persist(ctx context.Context, page schemas.Page) error
}

// Gate decides whether a page is logged out by substring matching its URL
// against a fixed set of patterns.
type Gate struct {
	patterns     []string
	loginTimeout time.Duration
	logger       *zap.Logger
}

// NewGate builds a gate from the storefront's logged-out patterns. A zero
// login timeout waits for as long as ctx allows.
func NewGate(storefront config.StorefrontConfig, auth config.AuthConfig, logger *zap.Logger) *Gate {
	patterns := make([]string, 0, len(storefront.LoggedOutPatterns))
	for _, p := range storefront.LoggedOutPatterns {
		// An empty pattern is a substring of every URL.
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Gate{
		patterns:     patterns,
		loginTimeout: auth.LoginTimeout,
		logger:       logger.Named("auth_gate"),
	}
}

// LoggedOut reports whether url contains any logged-out pattern.
func (g *Gate) LoggedOut(url string) bool {
	for _, p := range g.patterns {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// Await navigates page to target and returns once the page sits on a URL
// matching no logged-out pattern. Each logged-out URL suspends the gate until
// the next main-frame navigation. When persist is non-nil the session is
// stored before Await returns; a failure to store it is returned.
func (g *Gate) Await(ctx context.Context, page schemas.Page, target string, persist Persister) error {
	if err := page.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	url, err := page.URL(ctx)
	if err != nil {
		return err
	}

	if g.LoggedOut(url) {
		if url, err = g.awaitLogin(ctx, page, url); err != nil {
			return err
		}
	}
	g.logger.Info("Session is authenticated.", zap.String("url", url))

	if persist == nil {
		return nil
	}
	if err := persist.Persist(ctx, page); err != nil {
		return fmt.Errorf("authenticated but could not save the session: %w", err)
	}
	return nil
}

func (g *Gate) awaitLogin(ctx context.Context, page schemas.Page, url string) (string, error) {
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if g.loginTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, g.loginTimeout)
	}
	defer cancel()

	g.logger.Info("Waiting for sign-in to complete in the browser window.",
		zap.Duration("login_timeout", g.loginTimeout))

	for g.LoggedOut(url) {
		g.logger.Info("Logged out page detected", zap.String("url", url))

		next, err := page.WaitForNavigation(waitCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: still on %s after %s", ErrAuthenticationAbandoned, url, g.loginTimeout)
			}
			return "", fmt.Errorf("waiting for sign-in: %w", err)
		}
		url = next
	}
	return url, nil
}
