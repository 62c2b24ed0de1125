package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/config"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers/feed"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers/health"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	// Initialize logger for tests
	middleware.InitLogger("panic")
}

func testCORSConfig() *config.Config {
	return &config.Config{
		CORSConfig: config.CORSConfig{
			Environment: "development",
			DevelopmentOrigins: []string{
				"https://localhost:3000",
				"https://127.0.0.1:3000",
			},
			StagingOrigins:    []string{"https://staging.example.com"},
			ProductionOrigins: []string{"https://example.com"},
			AllowedMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:    []string{"Content-Type", "Authorization"},
			ExposedHeaders:    []string{"X-Request-ID"},
			AllowCredentials:  true,
			MaxAge:            86400,
		},
	}
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func TestCORSMiddleware(t *testing.T) {
	corsHandler := CORSMiddleware(http.HandlerFunc(okHandler), testCORSConfig())

	testCases := []struct {
		name           string
		origin         string
		expectedOrigin string
	}{
		{"Allowed development origin", "https://localhost:3000", "https://localhost:3000"},
		{"Allowed 127.0.0.1 origin", "https://127.0.0.1:3000", "https://127.0.0.1:3000"},
		{"Disallowed origin", "https://evil.com", ""},
		{"No origin header", "", ""},
		{"Case sensitive check", "https://LOCALHOST:3000", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}

			w := httptest.NewRecorder()
			corsHandler.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
		})
	}

	t.Run("Preflight request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", "https://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")

		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestCORSMiddlewareDefaults(t *testing.T) {
	corsHandler := CORSMiddleware(http.HandlerFunc(okHandler), &config.Config{})

	w := httptest.NewRecorder()
	corsHandler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestEnvironmentBasedOrigins(t *testing.T) {
	dev := []string{"https://localhost:3000", "https://127.0.0.1:3000"}
	testCases := []struct {
		environment     string
		expectedOrigins []string
	}{
		{"development", dev},
		{"dev", dev},
		{"staging", []string{"https://staging.example.com"}},
		{"stage", []string{"https://staging.example.com"}},
		{"production", []string{"https://example.com"}},
		{"PROD", []string{"https://example.com"}},
		{"unknown", dev}, // Falls back to development
	}

	for _, tc := range testCases {
		t.Run(tc.environment, func(t *testing.T) {
			corsConfig := config.CORSConfig{
				Environment:        tc.environment,
				DevelopmentOrigins: dev,
				StagingOrigins:     []string{"https://staging.example.com"},
				ProductionOrigins:  []string{"https://example.com"},
			}

			assert.Equal(t, tc.expectedOrigins, getAllowedOrigins(corsConfig))
		})
	}
}

func TestSubdomainValidation(t *testing.T) {
	corsConfig := config.CORSConfig{
		AllowSubdomains:    true,
		AllowedDomains:     []string{"trusted.com"},
		DevelopmentOrigins: []string{"*.example.com"},
	}

	testCases := []struct {
		name        string
		origin      string
		shouldAllow bool
	}{
		{"Wildcard exact domain", "https://example.com", true},
		{"Wildcard subdomain", "https://api.example.com", true},
		{"Trusted domain", "https://trusted.com", true},
		{"Trusted subdomain", "https://api.trusted.com", true},
		{"Unrelated domain", "https://evil.com", false},
		{"Similar but different", "https://example.com.evil.com", false},
		{"Suffix without dot", "https://notexample.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.shouldAllow, isOriginAllowed(tc.origin, corsConfig))
		})
	}

	corsConfig.AllowSubdomains = false
	assert.False(t, isOriginAllowed("https://api.example.com", corsConfig))
}

func TestRateLimitMiddleware(t *testing.T) {
	// A negligible refill rate keeps the test independent of timing
	limiter := NewRateLimiter(rate.Limit(0.001), 3)
	rateLimited := RateLimitMiddleware(limiter, okHandler)

	request := func(userAgent string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("User-Agent", userAgent)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		rateLimited(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request("Mozilla/5.0").Code, "request %d", i)
	}

	w := request("Mozilla/5.0")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var apiErr middleware.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, middleware.ErrCodeRateLimited, apiErr.Error)

	// Same IP but a different user agent has its own bucket
	assert.Equal(t, http.StatusOK, request("Chrome/91.0").Code)
}

func TestClientIdentifier(t *testing.T) {
	build := func(setup func(*http.Request)) string {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("User-Agent", "Mozilla/5.0")
		setup(req)
		return getClientIdentifier(req)
	}

	base := build(func(*http.Request) {})
	assert.Len(t, base, 16)
	assert.Equal(t, base, build(func(*http.Request) {}))

	assert.NotEqual(t, base, build(func(r *http.Request) { r.RemoteAddr = "192.168.1.2:12345" }))
	assert.NotEqual(t, base, build(func(r *http.Request) { r.Header.Set("User-Agent", "Chrome/91.0") }))
	assert.NotEqual(t, base, build(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "session_id", Value: "test-session-123"})
	}))
	assert.NotEqual(t, base, build(func(r *http.Request) { r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2") }))

	// Short or empty headers must not panic
	assert.NotPanics(t, func() {
		build(func(r *http.Request) {
			r.Header.Set("Accept-Language", "e")
			r.Header.Set("User-Agent", "   ")
		})
	})
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(10), 5)

	limiter.Allow("client1")
	limiter.Allow("client2")
	limiter.Allow("client3")
	require.Len(t, limiter.clients, 3)

	limiter.mutex.Lock()
	limiter.clients["client1"].lastSeen = time.Now().Add(-10 * time.Minute)
	limiter.clients["client2"].lastSeen = time.Now().Add(-10 * time.Minute)
	limiter.mutex.Unlock()

	limiter.Cleanup()

	assert.Len(t, limiter.clients, 1)
	assert.Contains(t, limiter.clients, "client3")
}

// stubTracker serves a fixed snapshot
type stubTracker struct {
	snap lifecycle.Snapshot
}

func (s *stubTracker) Submit(ctx context.Context, rawURL string) (*types.Task, error) {
	return &types.Task{ID: 1, URL: rawURL, Status: types.StatusPending}, nil
}

func (s *stubTracker) SetTrackedTask(id *int64) error { return nil }

func (s *stubTracker) Snapshot() lifecycle.Snapshot { return s.snap }

type stubLister struct{}

func (stubLister) ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error) {
	return []types.Task{{ID: 1, Status: types.StatusCompleted}}, nil
}

type stubResults struct{}

func (stubResults) FetchResult(ctx context.Context, taskID int64) (*types.Result, error) {
	return &types.Result{ID: 10, TaskID: taskID}, nil
}

func (stubResults) Refetch(ctx context.Context, taskID int64) (*types.Result, error) {
	return &types.Result{ID: 11, TaskID: taskID}, nil
}

type stubBatches struct{}

func (stubBatches) SubmitJob(batchID, url, requestID string) (string, error) { return "job_1", nil }

func (stubBatches) GetBatch(batchID string) (*types.BatchSummary, bool) { return nil, false }

type stubFeeds struct{}

func (stubFeeds) Collect(ctx context.Context, feedURLs []string) []source.FeedResult { return nil }

func testRouter(t *testing.T) http.Handler {
	store := archive.NewMemoryArchive()
	api := handlers.NewHandler(
		&stubTracker{snap: lifecycle.Snapshot{Phase: lifecycle.PhaseIdle}},
		stubLister{}, stubResults{}, stubBatches{}, stubFeeds{}, store, middleware.Logger,
	)
	cfg := testCORSConfig()
	return newRouter(cfg, routes{
		api:    api,
		health: health.NewHandler(stubLister{}, store, middleware.Logger),
		feeds:  feed.NewHandler(filepath.Join(t.TempDir(), "feeds.json"), middleware.Logger),
	}, NewRateLimiter(rate.Limit(1000), 1000))
}

func TestRouterRoutes(t *testing.T) {
	router := testRouter(t)

	testCases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/health", "", http.StatusOK},
		{"GET", "/health/live", "", http.StatusOK},
		{"GET", "/health/ready", "", http.StatusOK},
		{"GET", "/metrics", "", http.StatusOK},
		{"POST", "/scrape", `{"url":"https://example.com"}`, http.StatusAccepted},
		{"GET", "/tracked", "", http.StatusOK},
		{"PUT", "/tracked", `{"task_id":3}`, http.StatusOK},
		{"DELETE", "/tracked", "", http.StatusOK},
		{"GET", "/tasks", "", http.StatusOK},
		{"GET", "/tasks/5/result", "", http.StatusOK},
		{"GET", "/tasks/abc/result", "", http.StatusNotFound},
		{"POST", "/batches", `{"urls":["https://example.com"]}`, http.StatusAccepted},
		{"GET", "/batches/missing", "", http.StatusNotFound},
		{"GET", "/archive", "", http.StatusOK},
		{"GET", "/archive/5", "", http.StatusNotFound},
		{"GET", "/feeds", "", http.StatusOK},
		{"POST", "/tasks", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var req *http.Request
			if tc.body != "" {
				req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			} else {
				req = httptest.NewRequest(tc.method, tc.path, nil)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest("GET", "/tracked", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/tracked", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
