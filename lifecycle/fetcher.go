package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// ResultGetter retrieves a task together with its results
type ResultGetter interface {
	GetTaskWithResults(ctx context.Context, taskID int64) (*types.TaskWithResults, error)
}

// ResultCache stores results of finished tasks
type ResultCache interface {
	GetResult(taskID int64) (*types.Result, bool)
	SetResult(taskID int64, result *types.Result) error
}

// Fetcher retrieves the result of a completed task
type Fetcher struct {
	getter ResultGetter
	cache  ResultCache
	logger *logrus.Logger
}

// NewFetcher creates a fetcher; cache may be nil
func NewFetcher(getter ResultGetter, cache ResultCache, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{getter: getter, cache: cache, logger: logger}
}

// FetchResult returns the first result recorded for a task. A cached result
// is returned without contacting the backend.
func (f *Fetcher) FetchResult(ctx context.Context, taskID int64) (*types.Result, error) {
	if f.cache != nil {
		if result, ok := f.cache.GetResult(taskID); ok {
			monitoring.RecordResultFetch("cache", "success")
			return result, nil
		}
	}
	return f.fetch(ctx, taskID)
}

// Refetch bypasses the cache and replaces any cached entry
func (f *Fetcher) Refetch(ctx context.Context, taskID int64) (*types.Result, error) {
	return f.fetch(ctx, taskID)
}

func (f *Fetcher) fetch(ctx context.Context, taskID int64) (*types.Result, error) {
	ctx, span := monitoring.CreateSpan(ctx, "lifecycle.fetch_result")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{"task_id": taskID})

	task, err := f.getter.GetTaskWithResults(ctx, taskID)
	if err != nil {
		monitoring.RecordResultFetch("backend", "error")
		monitoring.SetSpanError(span, err)
		f.logger.WithFields(logrus.Fields{
			"task_id": taskID,
			"error":   err.Error(),
		}).Error("Failed to fetch task result")
		return nil, &types.ResultFetchError{TaskID: taskID, Err: err}
	}

	if len(task.Results) == 0 {
		monitoring.RecordResultFetch("backend", "empty")
		f.logger.WithField("task_id", taskID).Warn("Task has no results")
		return nil, fmt.Errorf("task %d: %w", taskID, types.ErrEmptyResults)
	}

	result := task.Results[0]
	monitoring.RecordResultFetch("backend", "success")
	f.logger.WithFields(logrus.Fields{
		"task_id":      taskID,
		"result_id":    result.ID,
		"result_count": len(task.Results),
	}).Info("Fetched task result")

	if f.cache != nil && task.Status == types.StatusCompleted {
		if err := f.cache.SetResult(taskID, &result); err != nil {
			f.logger.WithFields(logrus.Fields{
				"task_id": taskID,
				"error":   err.Error(),
			}).Warn("Failed to cache task result")
		}
	}
	return &result, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
