// internal/auth/store.go
package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/browser"
)

// Store guards the session map and the parked-handle registry with a single
// mutex, so a session and its handle always change together. No I/O happens
// under the lock.
type Store struct {
	mu       sync.Mutex
	logger   *zap.Logger
	sessions map[string]*Session
	handles  map[string]browser.Driver
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:   logger.Named("auth_store"),
		sessions: make(map[string]*Session),
		handles:  make(map[string]browser.Driver),
	}
}

// Create registers a new session in PhaseStarting.
func (s *Store) Create(id, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	now := time.Now()
	s.sessions[id] = &Session{
		ID:            id,
		Email:         email,
		Password:      password,
		Phase:         PhaseStarting,
		CurrentStatus: "Oturum başlatılıyor...",
		CreatedAt:     now,
		LastUpdated:   now,
	}
	s.logger.Info("Session created.", zap.String("session_id", id))
	return nil
}

// UpdateStatus records progress text for pollers. A missing session is a
// logged no-op: extraction keeps reporting after cleanup races are fine.
func (s *Store) UpdateStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Debug("Status update for unknown session dropped.", zap.String("session_id", id))
		return
	}
	sess.CurrentStatus = status
	sess.LastUpdated = time.Now()
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return *sess, nil
}

// SetTwoFactorCode stores the code shown on the login page.
func (s *Store) SetTwoFactorCode(id, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.TwoFactorCode = code
	sess.LastUpdated = time.Now()
	return nil
}

// SetAuthenticated marks the session as past the login wall.
func (s *Store) SetAuthenticated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.IsAuthenticated = true
	sess.LastUpdated = time.Now()
	return nil
}

// Transition moves the session to the next phase, rejecting jumps the
// lifecycle does not allow.
func (s *Store) Transition(id string, to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !canTransition(sess.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sess.Phase, to)
	}
	s.logger.Debug("Session phase change.",
		zap.String("session_id", id),
		zap.Stringer("from", sess.Phase),
		zap.Stringer("to", to))
	sess.Phase = to
	sess.LastUpdated = time.Now()
	return nil
}

// RegisterHandle parks a browser handle under the session id. Custody of the
// handle passes to the store until Remove.
func (s *Store) RegisterHandle(id string, d browser.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.handles[id] = d
	return nil
}

// Handle returns the parked handle without transferring custody.
func (s *Store) Handle(id string) (browser.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return d, nil
}

// ClaimForExtraction validates the approval code and claims the parked
// handle in one critical section: the session must be awaiting approval with
// a handle registered and the code must match exactly. On success the session
// is authenticated and moved to PhaseExtracting, so a concurrent claim on the
// same id fails with ErrNotAwaiting and never touches the handle. A code
// mismatch mutates nothing.
func (s *Store) ClaimForExtraction(id, code string) (browser.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	d, ok := s.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if sess.Phase != PhaseAwaitingApproval {
		return nil, fmt.Errorf("%w: %s is in phase %s", ErrNotAwaiting, id, sess.Phase)
	}
	if code != sess.TwoFactorCode {
		return nil, ErrCodeMismatch
	}

	sess.IsAuthenticated = true
	sess.Phase = PhaseExtracting
	sess.LastUpdated = time.Now()
	s.logger.Info("Session claimed for extraction.", zap.String("session_id", id))
	return d, nil
}

// Remove deletes the session and its handle registration together and hands
// the parked handle (if any) back to the caller, who must close it.
func (s *Store) Remove(id string) browser.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.handles[id]
	delete(s.handles, id)
	delete(s.sessions, id)
	return d
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ReapExpired evicts sessions stuck in PhaseAwaitingApproval longer than ttl
// and returns their parked handles for the caller to close. A ttl of zero
// disables reaping.
func (s *Store) ReapExpired(ttl time.Duration) []browser.Driver {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	var reaped []browser.Driver
	for id, sess := range s.sessions {
		if sess.Phase != PhaseAwaitingApproval || sess.CreatedAt.After(cutoff) {
			continue
		}
		if d, ok := s.handles[id]; ok {
			reaped = append(reaped, d)
		}
		delete(s.handles, id)
		delete(s.sessions, id)
		s.logger.Warn("Reaped abandoned session.",
			zap.String("session_id", id),
			zap.Time("created_at", sess.CreatedAt))
	}
	return reaped
}

// Status is the poll projection of a session.
type Status struct {
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
	IsComplete  bool      `json:"isComplete"`
}

// StatusOf reports progress for pollers. An unknown id yields a synthetic
// terminal answer so clients stop polling instead of spinning forever.
func (s *Store) StatusOf(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Status{
			Status:      "Session bulunamadı veya süresi doldu",
			LastUpdated: time.Now(),
			IsComplete:  true,
		}
	}
	return Status{
		Status:      sess.CurrentStatus,
		LastUpdated: sess.LastUpdated,
		IsComplete:  sess.IsAuthenticated || strings.Contains(sess.CurrentStatus, FailureMarker),
	}
}
