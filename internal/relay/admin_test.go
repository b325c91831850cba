package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storydeck/storydeck/internal/config"
	"github.com/storydeck/storydeck/internal/security"
)

func adminConfig(t *testing.T) config.Config {
	t.Helper()
	hash, errHash := security.HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Username: "admin", PasswordHash: hash}
	cfg.JWT = config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	return cfg
}

func adminLogin(t *testing.T, srv *Server, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/v0/admin/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAdminLoginAndQuota(t *testing.T) {
	gen := &stubGenerator{out: "x"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv, _ := newTestServer(t, adminConfig(t), gen, now)

	rec := adminLogin(t, srv, "admin", "hunter2")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	token := login["token"]
	if token == "" {
		t.Fatalf("expected token in login response")
	}

	// One admitted request so the snapshot has live counters.
	if rec := postStory(srv, map[string]any{"raw": "hi"}, nil); rec.Code != http.StatusOK {
		t.Fatalf("story: expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/admin/quota", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	quotaRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(quotaRec, req)
	if quotaRec.Code != http.StatusOK {
		t.Fatalf("quota: expected 200, got %d: %s", quotaRec.Code, quotaRec.Body.String())
	}
	var body struct {
		Limits   map[string]int `json:"limits"`
		Counters map[string]int `json:"counters"`
	}
	if err := json.Unmarshal(quotaRec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode quota: %v", err)
	}
	if body.Limits["per-minute"] != 2 {
		t.Fatalf("expected per-minute limit 2, got %d", body.Limits["per-minute"])
	}
	if got := body.Counters["global:d:2026-03-01"]; got != 1 {
		t.Fatalf("expected global counter 1, got %d (counters: %v)", got, body.Counters)
	}
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	srv, _ := newTestServer(t, adminConfig(t), &stubGenerator{}, time.Now())
	rec := adminLogin(t, srv, "admin", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	srv, _ := newTestServer(t, adminConfig(t), &stubGenerator{}, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/v0/admin/quota", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v0/admin/usage", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestAdminDisabledWithoutCredentials(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), &stubGenerator{}, time.Now())
	rec := adminLogin(t, srv, "admin", "hunter2")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin disabled, got %d", rec.Code)
	}
}
