// internal/scrape/fake_driver_test.go
package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
)

// fakeDriver simulates just enough of the portal DOM for the orchestrator and
// extractor tests: a list view with rows, per-request notes, and the login
// form elements addressed by selector.
type fakeDriver struct {
	// list view state
	rows         []row
	counterText  string
	counterErr   error
	hasContainer bool

	// per-request detail state
	notesByID      map[string][]note
	sourceByID     map[string]string
	detailFailsFor map[string]bool
	openDetail     string

	// selector-addressed element text, e.g. the OTP display
	textBySelector map[string]string
	// selectors WaitVisible should report as present
	visible map[string]bool

	// recorded interactions
	navigations []string
	typed       map[string]string
	clicked     []string
	submitted   []string
	backs       int
	scrolls     int
	closed      bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		hasContainer:   true,
		notesByID:      map[string][]note{},
		sourceByID:     map[string]string{},
		detailFailsFor: map[string]bool{},
		textBySelector: map[string]string{},
		visible:        map[string]bool{},
		typed:          map[string]string{},
	}
}

var clickRowIDRe = regexp.MustCompile(`includes\("([^"]+)"\)`)

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeDriver) NavigateBack(context.Context) error {
	f.backs++
	f.openDetail = ""
	return nil
}

func (f *fakeDriver) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	if selector == detailMarkerSelector {
		if f.openDetail == "" || f.detailFailsFor[f.openDetail] {
			return fmt.Errorf("element %q not visible", selector)
		}
		return nil
	}
	if f.visible[selector] {
		return nil
	}
	return fmt.Errorf("element %q not visible", selector)
}

func (f *fakeDriver) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	if selector == counterSelector {
		return f.counterText, f.counterErr
	}
	if text, ok := f.textBySelector[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("element %q not found", selector)
}

func (f *fakeDriver) Click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeDriver) SendKeys(_ context.Context, selector, text string) error {
	f.typed[selector] = text
	return nil
}

func (f *fakeDriver) Submit(_ context.Context, selector string) error {
	f.submitted = append(f.submitted, selector)
	return nil
}

func (f *fakeDriver) Evaluate(_ context.Context, expression string, out any) error {
	switch {
	case strings.HasPrefix(expression, "!!"):
		*out.(*bool) = f.hasContainer
	case strings.Contains(expression, "scrollTop"):
		f.scrolls++
		*out.(*bool) = f.hasContainer
	case strings.Contains(expression, "row.click()"):
		m := clickRowIDRe.FindStringSubmatch(expression)
		found := false
		if m != nil {
			for _, r := range f.rows {
				if r.ID == m[1] {
					f.openDetail = r.ID
					found = true
					break
				}
			}
		}
		*out.(*bool) = found
	case strings.Contains(expression, "note-content"):
		*out.(*[]note) = f.notesByID[f.openDetail]
	case strings.Contains(expression, "grid-row"):
		*out.(*[]row) = f.rows
	default:
		return fmt.Errorf("unexpected script: %s", expression)
	}
	return nil
}

func (f *fakeDriver) PageSource(context.Context) (string, error) {
	return f.sourceByID[f.openDetail], nil
}

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

// fakeFactory hands out a pre-built driver once.
type fakeFactory struct {
	driver *fakeDriver
	err    error
}

func (f *fakeFactory) NewHandle(context.Context) (browser.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.driver, nil
}
