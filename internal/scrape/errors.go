// internal/scrape/errors.go

// Package scrape drives the portal login flow and pulls shipment tracking
// numbers out of the 4me inbox.
package scrape

import "errors"

// Failure categories the HTTP boundary maps onto response envelopes.
var (
	// ErrLogin covers everything that goes wrong before a browser handle is
	// parked for phone approval.
	ErrLogin = errors.New("giriş başarısız")
	// ErrInvalidSession means the session id is unknown, expired, or not in a
	// verifiable state.
	ErrInvalidSession = errors.New("geçersiz veya süresi dolmuş oturum")
	// ErrInvalidCode means the submitted code does not match the one shown on
	// the login page. The session stays intact so the user can retry.
	ErrInvalidCode = errors.New("doğrulama kodu eşleşmiyor")
	// ErrExtraction covers loop-level inbox failures after authentication.
	ErrExtraction = errors.New("veri çekme başarısız")
)
