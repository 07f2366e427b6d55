// internal/api/handler_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nahxdasd/ups-aras-kargotakip/internal/auth"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/scrape"
	"github.com/nahxdasd/ups-aras-kargotakip/internal/track"
)

type stubLogin struct {
	loginResult  scrape.LoginResult
	loginErr     error
	verifyResult scrape.VerifyResult
	verifyErr    error
	lastEmail    string
}

func (s *stubLogin) Login(_ context.Context, email, _ string) (scrape.LoginResult, error) {
	s.lastEmail = email
	return s.loginResult, s.loginErr
}

func (s *stubLogin) Verify(context.Context, string, string) (scrape.VerifyResult, error) {
	return s.verifyResult, s.verifyErr
}

type stubStatus struct{ status auth.Status }

func (s *stubStatus) StatusOf(string) auth.Status { return s.status }

type stubRefresh struct {
	records []track.Record
	err     error
}

func (s *stubRefresh) RefreshAll(context.Context) ([]track.Record, error) {
	return s.records, s.err
}

type rig struct {
	tracks  *track.Store
	login   *stubLogin
	status  *stubStatus
	refresh *stubRefresh
	router  http.Handler
}

func newRig(t *testing.T) *rig {
	t.Helper()
	tracks, err := track.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	login := &stubLogin{}
	status := &stubStatus{}
	refresh := &stubRefresh{}
	h := NewHandler(tracks, login, status, refresh, zap.NewNop())
	return &rig{
		tracks:  tracks,
		login:   login,
		status:  status,
		refresh: refresh,
		router:  NewRouter(h, zap.NewNop()),
	}
}

func (r *rig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListAndAdd(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, http.MethodGet, "/api/kargo", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = r.do(t, http.MethodPost, "/api/kargo", map[string]string{
		"takipNo":  "Z999AA10123456784",
		"magazaId": "1042",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decode[track.Record](t, rec)
	assert.Equal(t, "1Z999AA10123456784", added.TrackingNumber)
	assert.Equal(t, track.StatusPending, added.Status)

	// Duplicates conflict.
	rec = r.do(t, http.MethodPost, "/api/kargo", map[string]string{"takipNo": "1Z999AA10123456784"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = r.do(t, http.MethodGet, "/api/kargo", nil)
	records := decode[[]track.Record](t, rec)
	assert.Len(t, records, 1)
}

func TestAddValidation(t *testing.T) {
	r := newRig(t)
	rec := r.do(t, http.MethodPost, "/api/kargo", map[string]string{"magazaId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete(t *testing.T) {
	r := newRig(t)
	_, err := r.tracks.Insert(track.Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)

	rec := r.do(t, http.MethodDelete, "/api/kargo/AB123456789", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = r.do(t, http.MethodDelete, "/api/kargo/AB123456789", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAll(t *testing.T) {
	r := newRig(t)
	_, err := r.tracks.Insert(track.Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)

	rec := r.do(t, http.MethodDelete, "/api/kargo/delete-all", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, r.tracks.Count())
}

func TestUpdateAll(t *testing.T) {
	r := newRig(t)
	r.refresh.records = []track.Record{{TrackingNumber: "AB123456789", Status: track.StatusDelivered}}

	rec := r.do(t, http.MethodPost, "/api/kargo/update-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]track.Record](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, track.StatusDelivered, records[0].Status)
}

func TestLoginTwoFactorEnvelope(t *testing.T) {
	r := newRig(t)
	r.login.loginResult = scrape.LoginResult{
		SessionID:         "sess-1",
		RequiresTwoFactor: true,
		TwoFactorCode:     "42",
	}

	rec := r.do(t, http.MethodPost, "/api/kargo/login", map[string]string{
		"email": "user@example.com", "password": "x",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, true, res["requiresTwoFactor"])
	assert.Equal(t, "sess-1", res["sessionId"])
	assert.Equal(t, "42", res["twoFactorCode"])
	assert.Equal(t, "user@example.com", r.login.lastEmail)
}

func TestLoginFailureEnvelope(t *testing.T) {
	r := newRig(t)
	r.login.loginErr = scrape.ErrLogin

	rec := r.do(t, http.MethodPost, "/api/kargo/login", map[string]string{"email": "u"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Equal(t, false, res["success"])
	assert.NotEmpty(t, res["message"])
}

func TestVerifyEnvelopes(t *testing.T) {
	r := newRig(t)

	t.Run("wrong code", func(t *testing.T) {
		r.login.verifyErr = scrape.ErrInvalidCode
		rec := r.do(t, http.MethodPost, "/api/kargo/verify-2fa", map[string]string{
			"sessionId": "sess-1", "code": "99",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[map[string]any](t, rec)
		assert.Equal(t, false, res["success"])
	})

	t.Run("success carries the new records", func(t *testing.T) {
		r.login.verifyErr = nil
		r.login.verifyResult = scrape.VerifyResult{
			Message: "İşlem tamamlandı, 1 yeni kargo eklendi.",
			Added:   []track.Record{{TrackingNumber: "AB123456789"}},
		}
		rec := r.do(t, http.MethodPost, "/api/kargo/verify-2fa", map[string]string{
			"sessionId": "sess-1", "code": "42",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[twoFactorResponse](t, rec)
		assert.True(t, res.Success)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "AB123456789", res.Data[0].TrackingNumber)
	})
}

func TestStatusEndpoint(t *testing.T) {
	r := newRig(t)
	r.status.status = auth.Status{
		Status:      "Telefonunuzdan onay bekleniyor.",
		LastUpdated: time.Now(),
		IsComplete:  false,
	}

	rec := r.do(t, http.MethodGet, "/api/kargo/status/sess-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[auth.Status](t, rec)
	assert.False(t, res.IsComplete)
	assert.Contains(t, res.Status, "onay")
}

func TestLoadFromPortal(t *testing.T) {
	r := newRig(t)

	t.Run("redirects to interactive flow on two-factor", func(t *testing.T) {
		r.login.loginResult = scrape.LoginResult{RequiresTwoFactor: true, SessionID: "sess-1", TwoFactorCode: "42"}
		rec := r.do(t, http.MethodPost, "/api/kargo/load-from-4me", nil)
		res := decode[map[string]any](t, rec)
		assert.Equal(t, false, res["success"])
		assert.Equal(t, true, res["requiresTwoFactor"])
		assert.Empty(t, r.login.lastEmail, "default credentials come from config")
	})

	t.Run("returns added records otherwise", func(t *testing.T) {
		r.login.loginResult = scrape.LoginResult{
			Message: "İşlem tamamlandı, 1 yeni kargo eklendi.",
			Added:   []track.Record{{TrackingNumber: "AB123456789"}},
		}
		rec := r.do(t, http.MethodPost, "/api/kargo/load-from-4me", nil)
		res := decode[twoFactorResponse](t, rec)
		assert.True(t, res.Success)
		assert.Len(t, res.Data, 1)
	})
}

func TestHealthz(t *testing.T) {
	r := newRig(t)
	rec := r.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
