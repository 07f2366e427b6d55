// internal/scrape/login.go
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/auth"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/config"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// Microsoft login form element ids.
const (
	emailSelector      = "#i0116"
	passwordSelector   = "#i0118"
	staySignedInButton = "#idSIButton9"
	otpDisplaySelector = "#idRichContext_DisplaySign"
)

// otpFallbackSelectors are tried when the primary OTP display id is absent;
// the login page markup shifts between tenant themes.
var otpFallbackSelectors = []string{
	"div.displaySign",
	"div[data-bind*='displaySign']",
	"div.display-sign-height",
	"[id*='DisplaySign']",
	"[class*='displaySign']",
}

// otpFallbackWait bounds each fallback probe; only the primary selector gets
// the full element wait.
const otpFallbackWait = 2 * time.Second

// Orchestrator runs the portal login end to end: form fill, two-factor
// discovery, and (when no approval is needed) the inbox extraction itself.
type Orchestrator struct {
	sessions  *auth.Store
	factory   browser.Factory
	extractor *Extractor
	cfg       config.PortalConfig
	logger    *zap.Logger
}

func NewOrchestrator(sessions *auth.Store, factory browser.Factory, extractor *Extractor, cfg config.PortalConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		factory:   factory,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger.Named("login"),
	}
}

// LoginResult is the outcome of a login attempt that did not error out.
type LoginResult struct {
	SessionID         string
	RequiresTwoFactor bool
	TwoFactorCode     string
	Message           string
	Added             []track.Record
}

// Login signs in with the given credentials (falling back to the configured
// defaults) and either parks the browser for phone approval or extracts the
// inbox right away. Errors are wrapped as ErrLogin and always leave no
// session or handle behind.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" {
		email = o.cfg.Email
		password = o.cfg.Password
	}

	sessionID := uuid.NewString()
	if err := o.sessions.Create(sessionID, email, password); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrLogin, err)
	}
	logger := o.logger.With(zap.String("session_id", sessionID[:8]))
	report := func(msg string) { o.sessions.UpdateStatus(sessionID, msg) }

	d, err := o.factory.NewHandle(ctx)
	if err != nil {
		return LoginResult{}, o.fail(sessionID, logger, fmt.Errorf("tarayıcı açılamadı: %w", err))
	}
	// The handle is closed here unless custody moves to the session store.
	transferred := false
	defer func() {
		if !transferred {
			if cerr := d.Close(); cerr != nil {
				logger.Warn("Closing login handle failed.", zap.Error(cerr))
			}
		}
	}()

	report("Giriş sayfası açılıyor...")
	if err := d.Navigate(ctx, o.cfg.InboxURL); err != nil {
		return LoginResult{}, o.fail(sessionID, logger, err)
	}

	// Email step.
	o.sessions.Transition(sessionID, auth.PhaseEnteringEmail)
	report("E-posta adresi giriliyor...")
	if err := o.fillAndSubmit(ctx, d, emailSelector, email); err != nil {
		return LoginResult{}, o.fail(sessionID, logger, err)
	}

	// Password step.
	o.sessions.Transition(sessionID, auth.PhaseEnteringPassword)
	report("Şifre giriliyor...")
	if err := o.fillAndSubmit(ctx, d, passwordSelector, password); err != nil {
		return LoginResult{}, o.fail(sessionID, logger, err)
	}

	report("İki aşamalı doğrulama kontrol ediliyor...")
	code := o.discoverOTP(ctx, d, logger)
	if code != "" {
		// Park the handle; a later verify request picks it up.
		o.sessions.SetTwoFactorCode(sessionID, code)
		o.sessions.Transition(sessionID, auth.PhaseAwaitingApproval)
		if err := o.sessions.RegisterHandle(sessionID, d); err != nil {
			return LoginResult{}, o.fail(sessionID, logger, err)
		}
		transferred = true
		report(fmt.Sprintf("Telefonunuzdan onay bekleniyor. Ekrandaki kod: %s", code))
		logger.Info("Two-factor approval required, handle parked.", zap.String("code", code))
		return LoginResult{
			SessionID:         sessionID,
			RequiresTwoFactor: true,
			TwoFactorCode:     code,
			Message:           fmt.Sprintf("Telefonunuzdan %s kodunu onaylayın, sonra doğrulayın.", code),
		}, nil
	}

	// No approval needed; finish the login and extract synchronously.
	o.clickStaySignedIn(ctx, d, logger)
	o.sessions.Transition(sessionID, auth.PhaseExtracting)
	o.sessions.SetAuthenticated(sessionID)
	report("Giriş başarılı, talepler taranıyor...")

	if err := d.Navigate(ctx, o.cfg.InboxURL); err != nil {
		return LoginResult{}, o.fail(sessionID, logger, err)
	}
	added, err := o.extractor.Run(ctx, d, report)
	if err != nil {
		return LoginResult{}, o.fail(sessionID, logger, err)
	}

	o.sessions.Transition(sessionID, auth.PhaseDone)
	o.sessions.Remove(sessionID)
	logger.Info("Login and extraction completed without two-factor.", zap.Int("added", len(added)))
	return LoginResult{
		SessionID: sessionID,
		Message:   fmt.Sprintf("İşlem tamamlandı, %d yeni kargo eklendi.", len(added)),
		Added:     added,
	}, nil
}

// fail records the failure for pollers, tears the session down and wraps the
// cause as ErrLogin.
func (o *Orchestrator) fail(sessionID string, logger *zap.Logger, cause error) error {
	logger.Error("Login attempt failed.", zap.Error(cause))
	o.sessions.UpdateStatus(sessionID, fmt.Sprintf("%s: %v", auth.FailureMarker, cause))
	o.sessions.Transition(sessionID, auth.PhaseFailed)
	o.sessions.Remove(sessionID)
	return fmt.Errorf("%w: %v", ErrLogin, cause)
}

// fillAndSubmit waits for a form field, types into it and submits with Enter,
// then gives the page time to advance.
func (o *Orchestrator) fillAndSubmit(ctx context.Context, d browser.Driver, selector, value string) error {
	if err := d.WaitVisible(ctx, selector, o.cfg.ElementWait); err != nil {
		return err
	}
	if err := d.SendKeys(ctx, selector, value); err != nil {
		return err
	}
	if err := d.Submit(ctx, selector); err != nil {
		return err
	}
	sleep(ctx, o.cfg.StepDelay)
	return nil
}

// discoverOTP looks for the number-matching code the login page shows when a
// phone approval is pending. Empty means no two-factor challenge appeared.
func (o *Orchestrator) discoverOTP(ctx context.Context, d browser.Driver, logger *zap.Logger) string {
	if code, ok := o.readOTP(ctx, d, otpDisplaySelector, o.cfg.ElementWait); ok {
		return code
	}
	for _, selector := range otpFallbackSelectors {
		if code, ok := o.readOTP(ctx, d, selector, otpFallbackWait); ok {
			logger.Debug("OTP found via fallback selector.", zap.String("selector", selector))
			return code
		}
	}
	return ""
}

func (o *Orchestrator) readOTP(ctx context.Context, d browser.Driver, selector string, wait time.Duration) (string, bool) {
	text, err := d.Text(ctx, selector, wait)
	if err != nil {
		return "", false
	}
	code := strings.TrimSpace(text)
	if code == "" || !isDigits(code) {
		return "", false
	}
	return code, true
}

// clickStaySignedIn dismisses the "stay signed in?" interstitial when it
// shows up. Its absence is normal and not an error.
func (o *Orchestrator) clickStaySignedIn(ctx context.Context, d browser.Driver, logger *zap.Logger) {
	if err := d.WaitVisible(ctx, staySignedInButton, otpFallbackWait); err != nil {
		logger.Debug("No stay-signed-in prompt.")
		return
	}
	if err := d.Click(ctx, staySignedInButton); err != nil {
		logger.Warn("Could not click stay-signed-in prompt.", zap.Error(err))
		return
	}
	sleep(ctx, o.cfg.StepDelay)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
