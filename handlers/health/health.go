// Package health provides health check handlers for the scrape monitor
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// BackendChecker reaches the scraping backend
type BackendChecker interface {
	ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error)
}

// ArchiveChecker reaches the outcome archive
type ArchiveChecker interface {
	List(ctx context.Context, limit int) ([]*archive.Record, error)
}

// Handler contains dependencies for health handlers
type Handler struct {
	Backend BackendChecker
	Archive ArchiveChecker
	Logger  *logrus.Logger
	Timeout time.Duration
}

// NewHandler creates a new health handler; archive may be nil
func NewHandler(backend BackendChecker, archive ArchiveChecker, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Backend: backend,
		Archive: archive,
		Logger:  logger,
		Timeout: 5 * time.Second,
	}
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	for service, err := range h.check(r.Context()) {
		if err != nil {
			health.Status = "unhealthy"
			health.Services[service] = "unhealthy: " + err.Error()
			h.Logger.WithFields(logrus.Fields{
				"service": service,
				"error":   err.Error(),
			}).Error("Health check failed")
			continue
		}
		health.Services[service] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck reports ready only when the backend is reachable
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	services := make(map[string]string)
	for service, err := range h.check(r.Context()) {
		if err != nil {
			middleware.RespondServiceUnavailable(w, err, requestID)
			return
		}
		services[service] = "ready"
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) check(parent context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(parent, h.Timeout)
	defer cancel()

	results := map[string]error{}
	if h.Backend != nil {
		_, err := h.Backend.ListTasks(ctx, 0, 1)
		results["backend"] = err
	}
	if h.Archive != nil {
		_, err := h.Archive.List(ctx, 1)
		results["archive"] = err
	}
	return results
}

var startTime = time.Now()
