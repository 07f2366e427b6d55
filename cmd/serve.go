// -- cmd/serve.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/api"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/auth"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/carrier"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/observability"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/scrape"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// reaperInterval is how often abandoned login sessions are checked for.
const reaperInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracks, err := track.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}

	manager, err := browser.NewManager(ctx, logger, cfg.Browser)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}

	sessions := auth.NewStore(logger)
	extractor := scrape.NewExtractor(tracks, cfg.Portal, logger)
	orchestrator := scrape.NewOrchestrator(sessions, manager, extractor, cfg.Portal, logger)
	checker := carrier.NewChecker(tracks, manager, cfg.Carriers, logger)

	handler := api.NewHandler(tracks, orchestrator, sessions, checker, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Portal.SessionTTL > 0 {
		go runSessionReaper(ctx, sessions, cfg.Portal.SessionTTL, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening.", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown was not clean.", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Browser shutdown was not clean.", zap.Error(err))
	}
	logger.Info("Shutdown complete.")
	return nil
}

// runSessionReaper evicts login sessions stuck waiting for a phone approval
// and closes the browser tabs parked with them.
func runSessionReaper(ctx context.Context, sessions *auth.Store, ttl time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, handle := range sessions.ReapExpired(ttl) {
				if err := handle.Close(); err != nil {
					logger.Warn("Closing reaped handle failed.", zap.Error(err))
				}
			}
		}
	}
}
