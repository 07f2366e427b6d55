// internal/scrape/inbox.go
package scrape

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/config"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// Inbox DOM contract.
const (
	counterSelector      = "#view_counter"
	listContainerID      = "view_list_container"
	detailMarkerSelector = ".header_bar_inner"

	// counterSuffix trails the item count, e.g. "42 öğe".
	counterSuffix = " öğe"
	// totalItemsSentinel is assumed when the counter cannot be read; the
	// stall bound then terminates the loop instead of the count.
	totalItemsSentinel = 1000
	// maxStalledIterations ends the loop after this many passes without a
	// single new row.
	maxStalledIterations = 5
	// scrollStep is how far the list container is scrolled per pass, in px.
	scrollStep = 150
)

// Page scripts. Each returns plain JSON-serializable data so one round trip
// reads a whole batch.
const (
	hasListContainerJS = `!!document.getElementById('` + listContainerID + `')`

	readRowsJS = `(() => {
	return Array.from(document.querySelectorAll('div.grid-row')).map(row => {
		const pathEl = row.querySelector('div.cell-path');
		const idMatch = pathEl ? pathEl.textContent.match(/\d+/) : null;
		const subjSpan = row.querySelector('div.cell-subject span');
		let subject = subjSpan ? (subjSpan.getAttribute('title') || subjSpan.textContent || '') : '';
		if (!subject.trim()) {
			const subjCell = row.querySelector('div.cell-subject');
			subject = subjCell ? subjCell.textContent : '';
		}
		const reqSpan = row.querySelector('div.cell-requester span');
		const requester = reqSpan ? (reqSpan.getAttribute('title') || '') : '';
		return {
			id: idMatch ? idMatch[0] : '',
			subject: subject.trim(),
			requester: requester.trim(),
		};
	});
})()`

	readNotesJS = `(() => {
	return Array.from(document.querySelectorAll('li div.note')).map(n => {
		const content = n.querySelector('div.note-content');
		const at = n.querySelector('span.note_at.datetime');
		return {
			text: content ? content.innerText : '',
			at: at ? (at.getAttribute('data-datetime') || '') : '',
		};
	});
})()`
)

// row is one inbox line as read from the list view.
type row struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Requester string `json:"requester"`
}

// Extractor walks the inbox list on an authenticated handle and records every
// new tracking number it finds.
type Extractor struct {
	tracks *track.Store
	cfg    config.PortalConfig
	logger *zap.Logger
}

func NewExtractor(tracks *track.Store, cfg config.PortalConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		tracks: tracks,
		cfg:    cfg,
		logger: logger.Named("extractor"),
	}
}

// Run scrapes the whole inbox. report receives human-readable progress lines.
// Per-row faults are swallowed and the row skipped; only loop-level failures
// return an error.
func (e *Extractor) Run(ctx context.Context, d browser.Driver, report func(string)) ([]track.Record, error) {
	var exists bool
	if err := d.Evaluate(ctx, hasListContainerJS, &exists); err != nil {
		return nil, fmt.Errorf("%w: inbox page probe failed: %v", ErrExtraction, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: inbox list container missing, page layout changed or login incomplete", ErrExtraction)
	}

	total := e.totalItemCount(ctx, d)
	e.logger.Info("Starting inbox extraction.", zap.Int("total_items", total))

	processed := make(map[string]bool)
	seenNumbers := make(map[string]bool)
	var added []track.Record
	stalled := 0

	for len(processed) < total {
		if err := ctx.Err(); err != nil {
			return added, fmt.Errorf("%w: %v", ErrExtraction, err)
		}

		rows, err := e.readRows(ctx, d)
		if err != nil {
			return added, fmt.Errorf("%w: reading inbox rows: %v", ErrExtraction, err)
		}

		progressed := false
		for _, r := range rows {
			if r.ID == "" {
				continue
			}
			key := "TALEP_" + r.ID
			if processed[key] {
				continue
			}
			processed[key] = true
			progressed = true

			if rec, ok := e.processRow(ctx, d, r, seenNumbers); ok {
				added = append(added, rec)
			}
			report(fmt.Sprintf("%d/%d talep incelendi, %d yeni kargo bulundu...", len(processed), total, len(added)))

			if len(processed) >= total {
				break
			}
		}

		if progressed {
			stalled = 0
		} else {
			stalled++
			if stalled >= maxStalledIterations {
				e.logger.Warn("Inbox list stopped yielding new rows, ending early.",
					zap.Int("processed", len(processed)), zap.Int("total", total))
				break
			}
		}

		if err := e.scrollList(ctx, d); err != nil {
			return added, fmt.Errorf("%w: scrolling inbox list: %v", ErrExtraction, err)
		}
	}

	e.logger.Info("Inbox extraction finished.",
		zap.Int("processed", len(processed)), zap.Int("added", len(added)))
	return added, nil
}

// totalItemCount reads the "#view_counter" label. Unreadable counters fall
// back to a high sentinel so the stall bound ends the loop instead.
func (e *Extractor) totalItemCount(ctx context.Context, d browser.Driver) int {
	raw, err := d.Text(ctx, counterSelector, e.cfg.DetailWait)
	if err != nil {
		e.logger.Warn("Could not read item counter.", zap.Error(err))
		return totalItemsSentinel
	}
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), counterSuffix))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		e.logger.Warn("Item counter not a number.", zap.String("raw", raw))
		return totalItemsSentinel
	}
	return n
}

func (e *Extractor) readRows(ctx context.Context, d browser.Driver) ([]row, error) {
	var rows []row
	if err := d.Evaluate(ctx, readRowsJS, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// processRow opens one request, hunts its notes for a tracking number and
// stores a new record when one turns up. All faults are logged and swallowed;
// the row counts as processed either way.
func (e *Extractor) processRow(ctx context.Context, d browser.Driver, r row, seenNumbers map[string]bool) (track.Record, bool) {
	logger := e.logger.With(zap.String("request_id", r.ID))

	clicked, err := e.clickRow(ctx, d, r.ID)
	if err != nil || !clicked {
		logger.Warn("Could not open request row.", zap.Error(err))
		return track.Record{}, false
	}
	sleep(ctx, e.cfg.ClickSettle)

	if err := d.WaitVisible(ctx, detailMarkerSelector, e.cfg.DetailWait); err != nil {
		logger.Warn("Request detail did not render, skipping.", zap.Error(err))
		e.goBack(ctx, d)
		return track.Record{}, false
	}

	storeID := requesterStoreID(r.Requester)
	if storeID == "" {
		logger.Debug("Row has no requester store id, skipping.")
		e.goBack(ctx, d)
		return track.Record{}, false
	}

	number := e.findNumberInDetail(ctx, d, logger)
	e.goBack(ctx, d)

	if number == "" || seenNumbers[number] {
		return track.Record{}, false
	}
	seenNumbers[number] = true

	rec := track.Record{
		TrackingNumber: track.NormalizeTrackingNumber(number),
		StoreID:        storeID,
		RequestID:      r.ID,
		RequestTitle:   r.Subject,
		Status:         track.StatusPending,
		LastUpdated:    time.Now(),
	}
	inserted, err := e.tracks.InsertIfAbsent(rec)
	if err != nil {
		logger.Warn("Could not persist record.", zap.Error(err))
		return track.Record{}, false
	}
	if !inserted {
		logger.Debug("Tracking number already stored.", zap.String("tracking_number", rec.TrackingNumber))
		return track.Record{}, false
	}
	logger.Info("New shipment recorded.", zap.String("tracking_number", rec.TrackingNumber))
	return rec, true
}

// findNumberInDetail prefers the conversation notes and falls back to a
// pattern sweep over the whole page source.
func (e *Extractor) findNumberInDetail(ctx context.Context, d browser.Driver, logger *zap.Logger) string {
	var notes []note
	if err := d.Evaluate(ctx, readNotesJS, &notes); err != nil {
		logger.Warn("Could not read notes.", zap.Error(err))
	} else if number := bestTrackingNumber(notes); number != "" {
		return number
	}

	source, err := d.PageSource(ctx)
	if err != nil {
		logger.Warn("Could not read page source for fallback scan.", zap.Error(err))
		return ""
	}
	return findTrackingNumber(source)
}

func (e *Extractor) clickRow(ctx context.Context, d browser.Driver, id string) (bool, error) {
	js := fmt.Sprintf(`(() => {
	for (const row of document.querySelectorAll('div.grid-row')) {
		const path = row.querySelector('div.cell-path');
		if (path && path.textContent.includes(%q)) { row.click(); return true; }
	}
	return false;
})()`, id)
	var clicked bool
	if err := d.Evaluate(ctx, js, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

func (e *Extractor) goBack(ctx context.Context, d browser.Driver) {
	if err := d.NavigateBack(ctx); err != nil {
		e.logger.Warn("Back navigation failed.", zap.Error(err))
	}
	sleep(ctx, e.cfg.BackSettle)
}

func (e *Extractor) scrollList(ctx context.Context, d browser.Driver) error {
	js := fmt.Sprintf(`(() => {
	const c = document.getElementById('%s');
	if (!c) return false;
	c.scrollTop += %d;
	return true;
})()`, listContainerID, scrollStep)
	var ok bool
	if err := d.Evaluate(ctx, js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("inbox list container disappeared mid-run")
	}
	sleep(ctx, e.cfg.ScrollSettle)
	return nil
}

// requesterStoreID strips the display name from a "1042 - Store Name" title.
func requesterStoreID(requester string) string {
	if idx := strings.Index(requester, " - "); idx >= 0 {
		requester = requester[:idx]
	}
	return strings.TrimSpace(requester)
}

// sleep pauses without outliving the context.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
