package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobtracker/apiserver/config"
	"github.com/jobtracker/apiserver/internal/services"
	"github.com/jobtracker/apiserver/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, limits config.RateLimitConfig) http.Handler {
	t.Helper()
	mem := storetest.New()
	return NewRouter(RouterDeps{
		Auth: services.NewAuthService(mem.Users(), config.AuthConfig{
			JWTSecret:  "router-secret",
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.MinCost,
		}),
		Jobs:        services.NewJobService(mem.Jobs()),
		RateLimit:   limits,
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func send(h http.Handler, method, path, remoteAddr string, body any) *httptest.ResponseRecorder {
	return sendWithHeaders(h, method, path, remoteAddr, body, nil)
}

func sendWithHeaders(h http.Handler, method, path, remoteAddr string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = remoteAddr
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_AuthAttemptsAreLimited(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{Window: time.Minute, GeneralRequests: 100, AuthRequests: 5})
	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}

	for i := 0; i < 5; i++ {
		rec := send(h, http.MethodPost, "/api/auth/login", "198.51.100.7:4000", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := send(h, http.MethodPost, "/api/auth/login", "198.51.100.7:4000", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many authentication attempts")

	rec = send(h, http.MethodPost, "/api/auth/login", "198.51.100.8:4000", creds)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "other clients keep their own budget")
}

func TestRouter_ForwardedForDoesNotResetAuthBudget(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{Window: time.Minute, GeneralRequests: 100, AuthRequests: 5})
	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}

	var codes []int
	for i := 0; i < 20; i++ {
		rec := sendWithHeaders(h, http.MethodPost, "/api/auth/login", "198.51.100.7:4000", creds, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP":       fmt.Sprintf("10.0.1.%d", i),
		})
		codes = append(codes, rec.Code)
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, codes[i], "attempt %d", i+1)
	}
	for i := 5; i < len(codes); i++ {
		assert.Equal(t, http.StatusTooManyRequests, codes[i], "attempt %d", i+1)
	}
}

func TestRouter_TrustProxyKeysOnForwardedFor(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{Window: time.Minute, GeneralRequests: 100, AuthRequests: 1, TrustProxy: true})
	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}

	first := sendWithHeaders(h, http.MethodPost, "/api/auth/login", "10.1.1.1:4000", creds, map[string]string{"X-Forwarded-For": "203.0.113.1"})
	require.Equal(t, http.StatusUnauthorized, first.Code)
	again := sendWithHeaders(h, http.MethodPost, "/api/auth/login", "10.1.1.1:4000", creds, map[string]string{"X-Forwarded-For": "203.0.113.1"})
	assert.Equal(t, http.StatusTooManyRequests, again.Code)

	other := sendWithHeaders(h, http.MethodPost, "/api/auth/login", "10.1.1.1:4000", creds, map[string]string{"X-Forwarded-For": "203.0.113.2"})
	assert.Equal(t, http.StatusUnauthorized, other.Code)
}

func TestRouter_GeneralLimitExemptsHealth(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{Window: time.Minute, GeneralRequests: 2, AuthRequests: 5})

	for i := 0; i < 2; i++ {
		rec := send(h, http.MethodGet, "/api/stats", "203.0.113.9:5000", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := send(h, http.MethodGet, "/api/stats", "203.0.113.9:5000", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	for i := 0; i < 10; i++ {
		rec := send(h, http.MethodGet, "/health", "203.0.113.9:5000", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRouter_DisabledLimits(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	for i := 0; i < 20; i++ {
		rec := send(h, http.MethodPost, "/api/auth/login", "192.0.2.1:1234", map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestRouter_UnknownRouteIsJSON(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	rec := send(h, http.MethodGet, "/nope", "192.0.2.1:1234", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, rec.Body.String())
}

func TestRouter_AttachmentRoutesNeedStorage(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	rec := send(h, http.MethodPost, "/api/auth/register", "192.0.2.1:1234", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/1/attachments", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNotFound, out.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, out.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
