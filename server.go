package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/config"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers/feed"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers/health"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"golang.org/x/time/rate"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	clients map[string]*ClientLimiter
	mutex   sync.RWMutex
	rate    rate.Limit
	burst   int
	maxIdle time.Duration
}

// ClientLimiter represents a rate limiter for a specific client
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientLimiter),
		rate:    r,
		burst:   b,
		maxIdle: 5 * time.Minute,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	client, exists := rl.clients[clientID]
	if !exists {
		client = &ClientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[clientID] = client
	}

	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

// Cleanup removes stale client entries
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for clientID, client := range rl.clients {
		if time.Since(client.lastSeen) > rl.maxIdle {
			delete(rl.clients, clientID)
		}
	}
}

// runCleanup evicts idle clients every interval until ctx is done
func (rl *RateLimiter) runCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// routes are the handlers the companion server mounts
type routes struct {
	api    *handlers.Handler
	health *health.Handler
	feeds  *feed.Handler
}

// newRouter mounts every route and wraps the router in the logging and CORS
// middleware.
func newRouter(cfg *config.Config, r routes, limiter *RateLimiter) http.Handler {
	router := mux.NewRouter()

	// Setup metrics endpoint
	monitoring.SetupMetricsEndpoint(router)

	// Setup health check endpoints (no rate limiting)
	router.HandleFunc("/health", r.health.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", r.health.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", r.health.HandleReadinessCheck).Methods("GET")

	// Setup Swagger documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return MonitoringMiddleware(RateLimitMiddleware(limiter, h))
	}

	router.HandleFunc("/scrape", api(r.api.HandleSubmit)).Methods("POST")
	router.HandleFunc("/tracked", api(r.api.HandleGetTracked)).Methods("GET")
	router.HandleFunc("/tracked", api(r.api.HandleSetTracked)).Methods("PUT")
	router.HandleFunc("/tracked", api(r.api.HandleClearTracked)).Methods("DELETE")
	router.HandleFunc("/tasks", api(r.api.HandleListTasks)).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}/result", api(r.api.HandleGetResult)).Methods("GET")
	router.HandleFunc("/batches", api(r.api.HandleCreateBatch)).Methods("POST")
	router.HandleFunc("/batches/{id}", api(r.api.HandleGetBatch)).Methods("GET")
	router.HandleFunc("/archive", api(r.api.HandleListArchive)).Methods("GET")
	router.HandleFunc("/archive/{id:[0-9]+}", api(r.api.HandleGetArchive)).Methods("GET")
	router.HandleFunc("/feeds", api(r.feeds.HandleGetFeeds)).Methods("GET")

	// Apply logging middleware
	withLogging := middleware.LoggingMiddleware(router)

	// Attach the CORS middleware with enhanced configuration
	return CORSMiddleware(withLogging, cfg)
}

// serve runs the companion server until ctx is cancelled
func serve(ctx context.Context, appConfig *config.AppConfig) error {
	cfg := appConfig.Config
	logger := appConfig.Services.Logger

	tracerProvider, err := monitoring.InitTracing("scrape-monitor", cfg.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer monitoring.ShutdownTracing(tracerProvider, logger)

	handler, err := appConfig.Services.Container.GetHandler()
	if err != nil {
		return fmt.Errorf("failed to initialize handler: %w", err)
	}
	lister, err := appConfig.Services.Container.GetLister()
	if err != nil {
		return err
	}
	store, err := appConfig.Services.Container.GetArchive()
	if err != nil {
		return err
	}

	// Initialize rate limiter with configuration
	limiter := NewRateLimiter(rate.Limit(cfg.RateLimitRequestsPerMinute/60.0), cfg.RateLimitBurst)
	go limiter.runCleanup(ctx, cfg.ClientCleanupInterval)

	router := newRouter(cfg, routes{
		api:    handler,
		health: health.NewHandler(lister, store, logger),
		feeds:  feed.NewHandler(cfg.FeedSourcesFile, logger),
	}, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":         cfg.ServerPort,
			"api_base_url": cfg.APIBaseURL,
		}).Info("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create tracing span
		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.url":        r.URL.String(),
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
			"request.id":      middleware.RequestID(r),
		})

		r = r.WithContext(ctx)

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", rw.statusCode)

		// Label by route template so task ids do not explode cardinality
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		monitoring.RecordHTTPRequest(r.Method, endpoint, status, duration)

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.status_code": rw.statusCode,
			"duration_seconds": duration,
		})

		if rw.statusCode >= 400 {
			monitoring.SetSpanError(span, fmt.Errorf("HTTP %d", rw.statusCode))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIdentifier generates a robust client identifier using multiple factors
func getClientIdentifier(r *http.Request) string {
	var identifiers []string

	// 1. IP Address (with X-Forwarded-For support)
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		ip = strings.TrimSpace(ips[0])
	} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = realIP
	}
	identifiers = append(identifiers, "ip:"+ip)

	// 2. User Agent (first word, lowercased)
	if fields := strings.Fields(strings.ToLower(r.Header.Get("User-Agent"))); len(fields) > 0 {
		identifiers = append(identifiers, "ua:"+fields[0])
	}

	// 3. Accept-Language header
	if acceptLang := strings.TrimSpace(r.Header.Get("Accept-Language")); len(acceptLang) >= 2 {
		identifiers = append(identifiers, "lang:"+strings.ToLower(acceptLang[:2]))
	}

	// 4. Session cookie, hashed
	if cookie, err := r.Cookie("session_id"); err == nil && cookie.Value != "" {
		hash := sha256.Sum256([]byte(cookie.Value))
		identifiers = append(identifiers, "sess:"+fmt.Sprintf("%x", hash)[:8])
	}

	combined := strings.Join(identifiers, "|")
	finalHash := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%x", finalHash)[:16]
}

// RateLimitMiddleware implements enhanced rate limiting for HTTP handlers
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientIdentifier(r)

		if !limiter.Allow(clientID) {
			middleware.RespondRateLimited(w, fmt.Errorf("rate limit exceeded"), middleware.RequestID(r))
			return
		}

		next.ServeHTTP(w, r)
	}
}

// getAllowedOrigins returns the appropriate allowed origins based on environment
func getAllowedOrigins(corsConfig config.CORSConfig) []string {
	switch strings.ToLower(corsConfig.Environment) {
	case "production", "prod":
		return corsConfig.ProductionOrigins
	case "staging", "stage":
		return corsConfig.StagingOrigins
	default:
		return corsConfig.DevelopmentOrigins
	}
}

// isOriginAllowed checks if the origin is allowed based on CORS configuration
func isOriginAllowed(origin string, corsConfig config.CORSConfig) bool {
	allowedOrigins := getAllowedOrigins(corsConfig)

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return true
		}
	}

	if !corsConfig.AllowSubdomains {
		return false
	}

	domains := append([]string{}, corsConfig.AllowedDomains...)
	for _, allowedOrigin := range allowedOrigins {
		if strings.HasPrefix(allowedOrigin, "*.") {
			domains = append(domains, allowedOrigin[2:])
		}
	}
	for _, domain := range domains {
		if origin == "https://"+domain || origin == "http://"+domain {
			return true
		}
		if strings.HasSuffix(origin, "."+domain) {
			return true
		}
	}
	return false
}

// CORSMiddleware sets CORS headers from the configuration and answers
// preflight requests
func CORSMiddleware(next http.Handler, appConfig *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		corsConfig := appConfig.CORSConfig

		if origin != "" && isOriginAllowed(origin, corsConfig) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if len(corsConfig.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
		} else {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}

		if len(corsConfig.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		}

		if len(corsConfig.ExposedHeaders) > 0 {
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(corsConfig.ExposedHeaders, ", "))
		}

		if corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
