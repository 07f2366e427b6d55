// internal/carrier/checker.go

// Package carrier polls the public carrier tracking pages and flips stored
// shipments to delivered.
package carrier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/config"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// Delivered markers on the carrier pages.
const (
	arasStatusSelector = "#Son_Durum"
	arasDeliveredText  = "TESLİM EDİLDİ"

	// The K2Track page renders the UPS status into a branded headline; the
	// long class chain is the stable one, the short class is the fallback.
	k2trackPrimarySelector  = `div.font-bold.line-clamp-2.text-xl.flex-grow.service-branded-text.ml-2.sm\:ml-4`
	k2trackFallbackSelector = ".service-branded-text"
	k2trackDeliveredText    = "DELIVERED"
)

const k2trackScanJS = `(() => {
	for (const el of document.querySelectorAll('.service-branded-text')) {
		if (el.textContent.trim().toUpperCase() === 'DELIVERED') return true;
	}
	return false;
})()`

// Checker refreshes the delivery status of every stored shipment with one
// shared browser handle per batch.
type Checker struct {
	tracks  *track.Store
	factory browser.Factory
	limiter *rate.Limiter
	cfg     config.CarriersConfig
	logger  *zap.Logger
}

func NewChecker(tracks *track.Store, factory browser.Factory, cfg config.CarriersConfig, logger *zap.Logger) *Checker {
	limit := rate.Inf
	if cfg.PollInterval > 0 {
		limit = rate.Every(cfg.PollInterval)
	}
	return &Checker{
		tracks:  tracks,
		factory: factory,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  logger.Named("carrier"),
	}
}

// RefreshAll checks every stored record against its carrier page and returns
// the refreshed list. A record whose check fails keeps its previous status.
func (c *Checker) RefreshAll(ctx context.Context) ([]track.Record, error) {
	records := c.tracks.List()
	if len(records) == 0 {
		return nil, nil
	}

	d, err := c.factory.NewHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("tarayıcı açılamadı: %w", err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			c.logger.Warn("Closing carrier handle failed.", zap.Error(cerr))
		}
	}()

	for _, rec := range records {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.tracks.List(), err
		}

		delivered, err := c.isDelivered(ctx, d, rec.TrackingNumber)
		if err != nil {
			c.logger.Warn("Carrier check failed, keeping previous status.",
				zap.String("tracking_number", rec.TrackingNumber), zap.Error(err))
			continue
		}

		status := track.StatusInTransit
		if delivered {
			status = track.StatusDelivered
		}
		if err := c.tracks.SetStatus(rec.TrackingNumber, status); err != nil {
			c.logger.Warn("Could not persist status.",
				zap.String("tracking_number", rec.TrackingNumber), zap.Error(err))
		}
	}

	return c.tracks.List(), nil
}

func (c *Checker) isDelivered(ctx context.Context, d browser.Driver, trackingNumber string) (bool, error) {
	switch {
	case track.IsUPS(trackingNumber):
		return c.checkK2Track(ctx, d, trackingNumber)
	case track.IsAras(trackingNumber):
		return c.checkAras(ctx, d, trackingNumber)
	default:
		return false, fmt.Errorf("tanınmayan takip numarası biçimi: %s", trackingNumber)
	}
}

// checkAras reads the latest-status cell of the Aras tracking page.
func (c *Checker) checkAras(ctx context.Context, d browser.Driver, trackingNumber string) (bool, error) {
	if err := d.Navigate(ctx, c.cfg.ArasURL+trackingNumber); err != nil {
		return false, err
	}
	text, err := d.Text(ctx, arasStatusSelector, c.cfg.PageWait)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(text), arasDeliveredText), nil
}

// checkK2Track reads the branded status headline of the K2Track UPS page.
// The page is a hash-routed SPA and several elements carry the branded class,
// so a readable headline that is not DELIVERED is no verdict yet; only the
// full document scan is authoritative for the negative case.
func (c *Checker) checkK2Track(ctx context.Context, d browser.Driver, trackingNumber string) (bool, error) {
	if err := d.Navigate(ctx, c.cfg.K2TrackURL+trackingNumber); err != nil {
		return false, err
	}

	if text, err := d.Text(ctx, k2trackPrimarySelector, c.cfg.PageWait); err == nil && isDeliveredText(text) {
		return true, nil
	}
	if text, err := d.Text(ctx, k2trackFallbackSelector, c.cfg.PageWait); err == nil && isDeliveredText(text) {
		return true, nil
	}

	var delivered bool
	if err := d.Evaluate(ctx, k2trackScanJS, &delivered); err != nil {
		return false, err
	}
	return delivered, nil
}

func isDeliveredText(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), k2trackDeliveredText)
}
