// internal/api/handler.go

// Package api exposes the shipment store and the portal login flow over JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/auth"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/scrape"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

// LoginService is the slice of the scrape orchestrator the handlers need.
type LoginService interface {
	Login(ctx context.Context, email, password string) (scrape.LoginResult, error)
	Verify(ctx context.Context, sessionID, code string) (scrape.VerifyResult, error)
}

// StatusService reports login progress for pollers.
type StatusService interface {
	StatusOf(sessionID string) auth.Status
}

// RefreshService re-checks every shipment against its carrier.
type RefreshService interface {
	RefreshAll(ctx context.Context) ([]track.Record, error)
}

// Handler provides the HTTP handlers and their shared dependencies.
type Handler struct {
	tracks  *track.Store
	login   LoginService
	status  StatusService
	refresh RefreshService
	logger  *zap.Logger
}

func NewHandler(tracks *track.Store, login LoginService, status StatusService, refresh RefreshService, logger *zap.Logger) *Handler {
	return &Handler{
		tracks:  tracks,
		login:   login,
		status:  status,
		refresh: refresh,
		logger:  logger.Named("api"),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// -- wire shapes --

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	SessionID         string `json:"sessionId,omitempty"`
	TwoFactorCode     string `json:"twoFactorCode,omitempty"`
}

type twoFactorRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type twoFactorResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    []track.Record `json:"data,omitempty"`
}

// -- shipment CRUD --

// List handles GET /api/kargo.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.tracks.List())
}

// Add handles POST /api/kargo.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var rec track.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		Error(w, http.StatusBadRequest, "geçersiz istek gövdesi")
		return
	}
	if rec.TrackingNumber == "" {
		Error(w, http.StatusBadRequest, "takip numarası zorunludur")
		return
	}
	added, err := h.tracks.Insert(rec)
	if errors.Is(err, track.ErrDuplicateRecord) {
		Error(w, http.StatusConflict, "bu takip numarası zaten kayıtlı")
		return
	}
	if err != nil {
		h.logger.Error("Insert failed.", zap.Error(err))
		Error(w, http.StatusInternalServerError, "kayıt eklenemedi")
		return
	}
	JSON(w, http.StatusCreated, added)
}

// Delete handles DELETE /api/kargo/{trackingNumber}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	trackingNumber := chi.URLParam(r, "trackingNumber")
	err := h.tracks.Delete(trackingNumber)
	if errors.Is(err, track.ErrRecordNotFound) {
		Error(w, http.StatusNotFound, "takip numarası bulunamadı")
		return
	}
	if err != nil {
		h.logger.Error("Delete failed.", zap.Error(err))
		Error(w, http.StatusInternalServerError, "kayıt silinemedi")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "kayıt silindi"})
}

// DeleteAll handles DELETE /api/kargo/delete-all.
func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.tracks.DeleteAll(); err != nil {
		h.logger.Error("DeleteAll failed.", zap.Error(err))
		Error(w, http.StatusInternalServerError, "kayıtlar silinemedi")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateAll handles POST /api/kargo/update-all.
func (h *Handler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.refresh.RefreshAll(r.Context())
	if err != nil {
		h.logger.Error("Carrier refresh failed.", zap.Error(err))
		Error(w, http.StatusInternalServerError, "durumlar güncellenemedi")
		return
	}
	if records == nil {
		records = []track.Record{}
	}
	JSON(w, http.StatusOK, records)
}

// -- portal login flow --

// Login handles POST /api/kargo/login. Orchestrator failures come back as a
// success=false envelope rather than an HTTP error; the frontend surfaces the
// message verbatim.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "geçersiz istek gövdesi")
		return
	}

	res, err := h.login.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		JSON(w, http.StatusOK, loginResponse{Success: false, Message: err.Error()})
		return
	}

	msg := res.Message
	if msg == "" && res.RequiresTwoFactor {
		msg = "Telefonunuzdan onay bekleniyor."
	}
	JSON(w, http.StatusOK, loginResponse{
		Success:           true,
		Message:           msg,
		RequiresTwoFactor: res.RequiresTwoFactor,
		SessionID:         res.SessionID,
		TwoFactorCode:     res.TwoFactorCode,
	})
}

// VerifyTwoFactor handles POST /api/kargo/verify-2fa.
func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "geçersiz istek gövdesi")
		return
	}

	res, err := h.login.Verify(r.Context(), req.SessionID, req.Code)
	if err != nil {
		JSON(w, http.StatusOK, twoFactorResponse{Success: false, Message: err.Error()})
		return
	}
	JSON(w, http.StatusOK, twoFactorResponse{Success: true, Message: res.Message, Data: res.Added})
}

// Status handles GET /api/kargo/status/{sessionID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.status.StatusOf(chi.URLParam(r, "sessionID")))
}

// LoadFromPortal handles POST /api/kargo/load-from-4me: a login with the
// configured default credentials. When the account needs a phone approval the
// caller is redirected to the interactive flow.
func (h *Handler) LoadFromPortal(w http.ResponseWriter, r *http.Request) {
	res, err := h.login.Login(r.Context(), "", "")
	if err != nil {
		JSON(w, http.StatusOK, twoFactorResponse{Success: false, Message: err.Error()})
		return
	}
	if res.RequiresTwoFactor {
		JSON(w, http.StatusOK, loginResponse{
			Success:           false,
			Message:           "Hesap telefon onayı istiyor; /api/kargo/login ile devam edin.",
			RequiresTwoFactor: true,
			SessionID:         res.SessionID,
			TwoFactorCode:     res.TwoFactorCode,
		})
		return
	}
	JSON(w, http.StatusOK, twoFactorResponse{Success: true, Message: res.Message, Data: res.Added})
}
