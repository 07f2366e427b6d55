// internal/scrape/resume.go
package scrape

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/auth"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// VerifyResult is the outcome of a successful verification + extraction.
type VerifyResult struct {
	Message string
	Added   []track.Record
}

// Verify confirms the code a user approved on their phone, takes the parked
// browser handle back and runs the inbox extraction on it.
//
// A wrong code leaves the session untouched so the user may retry; there is
// deliberately no attempt limit here, throttling is the caller's business.
// Once the code matches, the session and handle are torn down on every path.
func (o *Orchestrator) Verify(ctx context.Context, sessionID, code string) (VerifyResult, error) {
	logger := o.logger.Named("verify").With(zap.String("session_id", shortID(sessionID)))

	// Validation and custody transfer happen in one store critical section,
	// so of two racing verify calls only the first ever sees the handle.
	d, err := o.sessions.ClaimForExtraction(sessionID, code)
	if err != nil {
		if errors.Is(err, auth.ErrCodeMismatch) {
			logger.Warn("Verification code mismatch.")
			return VerifyResult{}, ErrInvalidCode
		}
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	// The claim succeeded; from here on the session is consumed no matter what.
	defer func() {
		if parked := o.sessions.Remove(sessionID); parked != nil {
			if cerr := parked.Close(); cerr != nil {
				logger.Warn("Closing parked handle failed.", zap.Error(cerr))
			}
		}
	}()

	report := func(msg string) { o.sessions.UpdateStatus(sessionID, msg) }
	report("Onay alındı, giriş tamamlanıyor...")

	// After the phone approval the page advances on its own; dismiss the
	// interstitial if it shows and land on the inbox.
	o.clickStaySignedIn(ctx, d, logger)
	if err := d.Navigate(ctx, o.cfg.InboxURL); err != nil {
		report(fmt.Sprintf("%s: %v", auth.FailureMarker, err))
		o.sessions.Transition(sessionID, auth.PhaseFailed)
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	report("Giriş başarılı, talepler taranıyor...")
	added, err := o.extractor.Run(ctx, d, report)
	if err != nil {
		report(fmt.Sprintf("%s: %v", auth.FailureMarker, err))
		o.sessions.Transition(sessionID, auth.PhaseFailed)
		return VerifyResult{}, err
	}

	o.sessions.Transition(sessionID, auth.PhaseDone)
	report(fmt.Sprintf("İşlem tamamlandı, %d yeni kargo eklendi.", len(added)))
	logger.Info("Verification and extraction completed.", zap.Int("added", len(added)))
	return VerifyResult{
		Message: fmt.Sprintf("İşlem tamamlandı, %d yeni kargo eklendi.", len(added)),
		Added:   added,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
