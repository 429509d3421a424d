// internal/browser/session/context_utils.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

// CombineContext derives a context from ctx1 that is also canceled when ctx2
// is done. Values and deadline come from ctx1, which for chromedp carries the
// CDP target; ctx2 carries the caller's cancellation.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(ctx1)
	stop := context.AfterFunc(ctx2, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// Detach returns a context that keeps the values of ctx but is never canceled
// by it. Teardown uses it so the browser can still be closed after the run
// context is gone.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// WithBound runs fn under a context bounded by timeout. When the bound (and
// not the parent) expires, the returned error wraps schemas.ErrTimeout.
func WithBound(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	boundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(boundCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || boundCtx.Err() != nil) {
		return fmt.Errorf("%s after %s: %w", op, timeout, schemas.ErrTimeout)
	}
	return err
}
