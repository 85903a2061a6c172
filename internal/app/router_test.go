package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/config"
)

// pingStore answers only the health probe.
type pingStore struct {
	handlers.Store
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }

type noPrincipals struct{}

func (noPrincipals) LoadPrincipal(context.Context, string) (*middleware.Principal, error) {
	return nil, middleware.ErrPrincipalNotFound
}

func testRouter(t *testing.T, cfg *config.Config, store handlers.Store) http.Handler {
	t.Helper()
	server := handlers.NewServer(handlers.ServerDeps{
		Store:  store,
		JWTCfg: middleware.JWTConfig{SigningKey: []byte("router-test-key-0123456789abcdef")},
	})
	r, err := newRouter(cfg, server, noPrincipals{})
	require.NoError(t, err)
	return r
}

func TestRouter_RootAndRequestID(t *testing.T) {
	r := testRouter(t, &config.Config{}, pingStore{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"status":"success"`)
}

func TestRouter_DatabaseDown(t *testing.T) {
	r := testRouter(t, &config.Config{}, pingStore{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"error"`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"https://mis.plant.example"}, AllowCredentials: true}}
	r := testRouter(t, cfg, pingStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/assets", nil)
	req.Header.Set("Origin", "https://mis.plant.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://mis.plant.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_OpenAPIRejectsMalformedLogin(t *testing.T) {
	cfg := &config.Config{OpenAPI: config.OpenAPIConfig{ValidateRequests: true}}
	r := testRouter(t, cfg, pingStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"ops@plant.example"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestRouter_WritesNeedAToken(t *testing.T) {
	r := testRouter(t, &config.Config{}, pingStore{})

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/assets"},
		{http.MethodDelete, "/api/assets/5b1d2f3e-0000-4000-8000-00000000a001"},
		{http.MethodPost, "/api/spares/transaction"},
		{http.MethodGet, "/api/kpi"},
		{http.MethodGet, "/api/users"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}
