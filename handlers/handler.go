/*
Package handlers provides HTTP handlers with dependency injection support.

This package defines the Handler struct that contains all service dependencies,
eliminating global variables and enabling better testability and separation of concerns.
*/
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// TrackerInterface is the lifecycle coordinator as seen by the HTTP layer
type TrackerInterface interface {
	Submit(ctx context.Context, rawURL string) (*types.Task, error)
	SetTrackedTask(id *int64) error
	Snapshot() lifecycle.Snapshot
}

// TaskListerInterface lists backend tasks
type TaskListerInterface interface {
	ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error)
}

// ResultFetcherInterface retrieves task results, optionally bypassing the cache
type ResultFetcherInterface interface {
	FetchResult(ctx context.Context, taskID int64) (*types.Result, error)
	Refetch(ctx context.Context, taskID int64) (*types.Result, error)
}

// BatchProcessorInterface defines the interface for batch submission
type BatchProcessorInterface interface {
	SubmitJob(batchID, url, requestID string) (string, error)
	GetBatch(batchID string) (*types.BatchSummary, bool)
}

// FeedCollectorInterface reads links from feeds
type FeedCollectorInterface interface {
	Collect(ctx context.Context, feedURLs []string) []source.FeedResult
}

// ArchiveReaderInterface defines read operations on archived outcomes
type ArchiveReaderInterface interface {
	Get(ctx context.Context, taskID int64) (*archive.Record, error)
	List(ctx context.Context, limit int) ([]*archive.Record, error)
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Tracker        TrackerInterface
	Tasks          TaskListerInterface
	Results        ResultFetcherInterface
	BatchProcessor BatchProcessorInterface
	Feeds          FeedCollectorInterface
	Archive        ArchiveReaderInterface
	Logger         *logrus.Logger
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(
	tracker TrackerInterface,
	tasks TaskListerInterface,
	results ResultFetcherInterface,
	batches BatchProcessorInterface,
	feeds FeedCollectorInterface,
	archive ArchiveReaderInterface,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Tracker:        tracker,
		Tasks:          tasks,
		Results:        results,
		BatchProcessor: batches,
		Feeds:          feeds,
		Archive:        archive,
		Logger:         logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
