// internal/browser/handle.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle is one isolated browser tab. It stays open across requests so the
// login flow can park it mid-way and a later request can resume on the same
// authenticated page.
type Handle struct {
	id     string
	logger *zap.Logger

	// tabCtx drives the chromedp tab; it lives until Close.
	tabCtx context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func newHandle(allocatorCtx context.Context, logger *zap.Logger) (*Handle, error) {
	id := uuid.NewString()
	tabCtx, cancel := chromedp.NewContext(allocatorCtx)

	h := &Handle{
		id:     id,
		logger: logger.Named("handle").With(zap.String("handle_id", id[:8])),
		tabCtx: tabCtx,
		cancel: cancel,
	}

	// Running an empty task materializes the tab immediately so failures
	// surface here rather than on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	h.logger.Debug("Tab created.")
	return h, nil
}

// run executes chromedp actions on the tab, honouring the caller's context.
func (h *Handle) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("handle %s is closed", h.id[:8])
	}
	h.mu.Unlock()

	runCtx := h.tabCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the document body to become ready.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	h.logger.Debug("Navigating.", zap.String("url", url))
	err := h.run(ctx, 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// NavigateBack goes one step back in the tab history.
func (h *Handle) NavigateBack(ctx context.Context) error {
	if err := h.run(ctx, 0, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("back navigation failed: %w", err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element or the
// timeout elapses.
func (h *Handle) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := h.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %q not visible: %w", selector, err)
	}
	return nil
}

// Text returns the text content of the first visible element matching the
// selector, waiting up to timeout for it to appear.
func (h *Handle) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := h.run(ctx, timeout, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return "", fmt.Errorf("reading text of %q failed: %w", selector, err)
	}
	return text, nil
}

// Click clicks the first element matching the selector.
func (h *Handle) Click(ctx context.Context, selector string) error {
	if err := h.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// SendKeys types text into the element matching the selector.
func (h *Handle) SendKeys(ctx context.Context, selector, text string) error {
	if err := h.run(ctx, 0, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// Submit sends an Enter keypress to the element matching the selector.
func (h *Handle) Submit(ctx context.Context, selector string) error {
	if err := h.run(ctx, 0, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit on %q failed: %w", selector, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression in the page and unmarshals the result
// into out. Promises are awaited so async page helpers work too.
func (h *Handle) Evaluate(ctx context.Context, expression string, out any) error {
	err := h.run(ctx, 0, chromedp.Evaluate(expression, out,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// PageSource returns the current document's outer HTML.
func (h *Handle) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := h.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page source failed: %w", err)
	}
	return html, nil
}

// Close tears the tab down exactly once and signals the manager.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	h.cancel()
	if h.onClose != nil {
		h.onClose()
	}
	h.logger.Debug("Tab closed.")
	return nil
}
