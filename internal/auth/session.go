// internal/auth/session.go

// Package auth tracks in-flight portal login sessions and the browser handles
// parked while a user approves the sign-in on their phone.
package auth

import (
	"errors"
	"time"
)

// Sentinel errors for the session store.
var (
	ErrDuplicateSession  = errors.New("session id already exists")
	ErrSessionNotFound   = errors.New("session not found")
	ErrIllegalTransition = errors.New("illegal session phase transition")
	ErrNotAwaiting       = errors.New("session is not awaiting approval")
	ErrCodeMismatch      = errors.New("verification code mismatch")
)

// FailureMarker appears in the status text of every failed session; the
// status endpoint treats its presence as terminal.
const FailureMarker = "Hata"

// Phase is the lifecycle position of a login session. The free-text status is
// for humans polling the API; the phase is what the code branches on.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseEnteringEmail
	PhaseEnteringPassword
	// PhaseAwaitingApproval means a two-digit code is on screen and the
	// browser handle is parked until the user confirms it.
	PhaseAwaitingApproval
	PhaseExtracting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseEnteringEmail:
		return "entering_email"
	case PhaseEnteringPassword:
		return "entering_password"
	case PhaseAwaitingApproval:
		return "awaiting_approval"
	case PhaseExtracting:
		return "extracting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// legalNext lists the forward transitions. PhaseFailed is reachable from
// anywhere and therefore not listed.
var legalNext = map[Phase][]Phase{
	PhaseStarting:         {PhaseEnteringEmail},
	PhaseEnteringEmail:    {PhaseEnteringPassword},
	PhaseEnteringPassword: {PhaseAwaitingApproval, PhaseExtracting},
	PhaseAwaitingApproval: {PhaseExtracting},
	PhaseExtracting:       {PhaseDone},
}

func canTransition(from, to Phase) bool {
	if to == PhaseFailed {
		return true
	}
	for _, next := range legalNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one login attempt. Credentials live only here, in memory; they
// are never serialized.
type Session struct {
	ID            string
	Email         string
	Password      string
	TwoFactorCode string
	Phase         Phase

	IsAuthenticated bool
	CurrentStatus   string
	CreatedAt       time.Time
	LastUpdated     time.Time
}
