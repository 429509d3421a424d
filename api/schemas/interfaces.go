package schemas

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is wrapped by every engine when a bounded wait expires.
// Callers check it with errors.Is.
var ErrTimeout = errors.New("browser operation timed out")

// -- Browser Capability Interfaces --

// Browser is responsible for the lifecycle of the browser process. A run
// creates exactly one page from it.
//
//go:generate mockery --name Browser --output ../../internal/mocks --outpkg mocks
type Browser interface {
	// NewPage creates a fresh browsing context with a single page. When state
	// is non-nil the context is initialized from it before the first navigation.
	NewPage(ctx context.Context, state *StorageState) (Page, error)
	// Shutdown closes every context and terminates the browser process.
	Shutdown(ctx context.Context) error
}

// Page is the narrow capability the export core needs from a live browser
// tab. Everything the core does to a storefront goes through this interface,
// so the core can be exercised against an in-memory implementation.
//
// WaitForLoad after a Click covers both listings that navigate to the next
// page and listings that update the document in place.
//
//go:generate mockery --name Page --output ../../internal/mocks --outpkg mocks
type Page interface {
	Navigate(ctx context.Context, url string) error                // Full-page navigation to url.
	URL(ctx context.Context) (string, error)                       // Current main-frame URL.
	WaitForNavigation(ctx context.Context) (string, error)         // Blocks until the next main-frame navigation; returns the new URL.
	WaitForLoad(ctx context.Context, timeout time.Duration) error  // Waits for the document to finish loading; wraps ErrTimeout.
	Content(ctx context.Context) (string, error)                   // Serialized HTML of the current document.
	Click(ctx context.Context, selector string) error              // Clicks the first element matching the CSS selector.
	EmulatePrintMedia(ctx context.Context) error                   // Switches CSS media emulation to print.
	PrintToPDF(ctx context.Context) ([]byte, error)                // Renders the current page as a PDF document.
	StorageState(ctx context.Context) (*StorageState, error)       // Snapshot of cookies and local storage.
	Close(ctx context.Context) error                               // Closes the page and its browsing context.
}
