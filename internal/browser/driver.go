// internal/browser/driver.go
package browser

import (
	"context"
	"time"
)

// Driver is the surface the orchestrators program against. The production
// implementation is Handle (a Chrome tab); tests substitute fakes.
type Driver interface {
	// Navigate loads the URL and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error
	// NavigateBack goes one step back in the tab history.
	NavigateBack(ctx context.Context) error
	// WaitVisible blocks until the selector matches a visible element, or the
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Text returns the text content of the first visible element matching the
	// selector, waiting up to timeout for it to appear.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// SendKeys types text into the element matching the selector.
	SendKeys(ctx context.Context, selector, text string) error
	// Submit sends an Enter keypress to the element matching the selector.
	Submit(ctx context.Context, selector string) error
	// Evaluate runs a JavaScript expression in the page and unmarshals the
	// result into out. Pass nil to discard the result.
	Evaluate(ctx context.Context, expression string, out any) error
	// PageSource returns the current document's outer HTML.
	PageSource(ctx context.Context) (string, error)
	// Close tears the tab down. Safe to call more than once.
	Close() error
}

// Factory creates fresh tabs. Implemented by Manager.
type Factory interface {
	NewHandle(ctx context.Context) (Driver, error)
}
