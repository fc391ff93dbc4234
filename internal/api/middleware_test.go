package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"secret-1", "secret-2"}
	s := newTestServer(t, cfg, nil)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "secret-3", http.StatusUnauthorized},
		{"first key", "secret-1", http.StatusOK},
		{"second key", "secret-2", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/brands", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			assert.Equal(t, tt.want, serve(s.router, req).Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, serve(s.router, req).Code, "health needs no key")
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4321"
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)
	w := get("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get("192.0.2.2").Code, "buckets are per client")
}

func TestRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(0, 0))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestClientLimiters_PrunesIdleClients(t *testing.T) {
	l := newClientLimiters(1, 1)
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))

	later := now.Add(5 * time.Minute)
	assert.True(t, l.allow("b", later))
	l.mu.Lock()
	_, stillThere := l.clients["a"]
	l.mu.Unlock()
	assert.False(t, stillThere)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, given)
	assert.Equal(t, given, serve(r, req).Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "<script>")
	assert.NotEqual(t, "<script>", serve(r, req).Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(s.router, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		allowed int
	}{
		{"untrusted peer cannot spoof its address", nil, 2},
		{"trusted proxy forwards distinct clients", []string{"203.0.113.9"}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RateLimit.RPS = 0.01
			cfg.RateLimit.Burst = 2
			cfg.Server.TrustedProxies = tt.proxies
			s := newTestServer(t, cfg, nil)

			allowed := 0
			for i := 0; i < 20; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/months", nil)
				req.RemoteAddr = "203.0.113.9:4321"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
				if serve(s.router, req).Code == http.StatusOK {
					allowed++
				}
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestSetupRoutes_InvalidTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Server.TrustedProxies = []string{"not-an-address"}

	err := SetupRoutes(gin.New(), NewHandler(nil, cfg, nil, nil, nil), cfg)
	assert.Error(t, err)
}
