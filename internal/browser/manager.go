// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/chromium"
	"github.com/xkilldash9x/ledger-cli/internal/browser/pwright"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// ShutdownGracePeriod bounds browser teardown once a run is over.
const ShutdownGracePeriod = 15 * time.Second

// Launcher starts a browser for the configured engine. The command layer
// holds one so tests can substitute a fake engine.
type Launcher func(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (schemas.Browser, error)

// Launch starts the engine named by cfg.Engine. actionTimeout bounds clicks
// and other element interactions.
func Launch(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (schemas.Browser, error) {
	switch cfg.Engine {
	case config.EngineChromium, "":
		b, err := chromium.New(ctx, cfg, actionTimeout, logger.Named("chromium"))
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.EnginePlaywright:
		b, err := pwright.New(ctx, cfg, actionTimeout, logger.Named("playwright"))
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}

var _ Launcher = Launch
