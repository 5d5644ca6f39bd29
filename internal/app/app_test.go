package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/backendstub"
	"github.com/kidpech/authbridge/internal/config"
)

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "authbridge", Env: "test", Version: "test"},
		Backend: config.BackendConfig{
			BaseURL:           backendURL,
			DefaultAvatarPath: "media/default.png",
			DefaultLocale:     "en",
			Timeout:           2 * time.Second,
			Providers:         []string{"google"},
		},
		Session:     config.SessionConfig{TTL: time.Hour, CookieName: "sid", KeyPrefix: "session"},
		Database:    config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxIdleConns: 1, AutoMigrate: true},
		RateLimit:   config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, Burst: 10, RedisPrefix: "rl"},
		Monitoring:  config.MonitoringConfig{PrometheusEnabled: true},
		Diagnostics: config.DiagnosticsConfig{MaxLogLines: 50},
	}
}

func newTestApp(t *testing.T) (*App, *backendstub.Stub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stub := backendstub.New(backendstub.Options{})
	stub.AddUser("tok123", backendstub.User{ID: 1, Username: "alice", ProfilePicture: "https://cdn.example.com/alice.png"})
	backend := httptest.NewServer(stub.Engine())
	t.Cleanup(backend.Close)

	a, err := Build(context.Background(), testConfig(backend.URL), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, stub
}

func do(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Login-Trigger", "google-button")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestEndToEndLogin(t *testing.T) {
	a, stub := newTestApp(t)

	rec := do(a.Router, http.MethodPost, "/api/v1/en/auth/google/login", map[string]string{"access_token": "tok123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, stub.Requests())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	cookie := rec.Result().Cookies()[0]

	rec = do(a.Router, http.MethodGet, "/api/v1/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = do(a.Router, http.MethodGet, "/api/v1/me/avatar", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://cdn.example.com/alice.png")

	rec = do(a.Router, http.MethodGet, "/api/v1/attempts", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var attempts struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempts))
	require.Len(t, attempts.Data, 1)
	require.Equal(t, "exchange_succeeded", attempts.Data[0]["state"])

	rec = do(a.Router, http.MethodGet, "/api/v1/debug/logs", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(a.Router, http.MethodPost, "/api/v1/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(a.Router, http.MethodGet, "/api/v1/session", nil, cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectedLoginPublishesNothing(t *testing.T) {
	a, stub := newTestApp(t)

	rec := do(a.Router, http.MethodPost, "/api/v1/en/auth/google/login", map[string]string{"access_token": "stolen"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "backend_rejected")
	require.Empty(t, rec.Result().Cookies())
	require.Equal(t, 1, stub.Requests())
}

func TestUnknownProviderNeverCallsBackend(t *testing.T) {
	a, stub := newTestApp(t)

	rec := do(a.Router, http.MethodPost, "/api/v1/en/auth/myspace/login", map[string]string{"access_token": "tok123"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, stub.Requests())
}

func TestHealthAndProtectedDebug(t *testing.T) {
	a, _ := newTestApp(t)

	rec := do(a.Router, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"database":"up"`)

	rec = do(a.Router, http.MethodGet, "/api/v1/debug/logs", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a.Router, http.MethodGet, "/api/v1/avatar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/media/default.png")
}

func TestServerRunStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	srv := &Server{Engine: a.Router, Addr: "127.0.0.1:0", Logger: zap.NewNop(), Ready: ready}
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}
