package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	ts := newTestServer(t)
	srv := NewWarrenServer(ts.store, ts.provisioner, ts.pool, ts.coordinator, ts.publisher, nil)
	return srv.NewHTTPHandler(token)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	h := authHandler(t, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/environments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	h := authHandler(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v1/environments", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	h := authHandler(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v1/environments", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_HealthExempt(t *testing.T) {
	h := authHandler(t, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	h := authHandler(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/environments", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
