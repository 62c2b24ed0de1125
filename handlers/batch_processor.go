package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/Nexora-Open-Source/scrape-monitor/utils"
	"github.com/sirupsen/logrus"
)

// ErrProcessorStopped is returned for submissions after Stop
var ErrProcessorStopped = errors.New("batch processor stopped")

// TaskSubmitter validates a URL and creates a scraping task for it
type TaskSubmitter interface {
	Submit(ctx context.Context, rawURL string) (*types.Task, error)
}

// BatchJob is one URL waiting to be submitted
type BatchJob struct {
	ID        string
	BatchID   string
	URL       string
	RequestID string
	CreatedAt time.Time
}

// BatchJobResult is the outcome of submitting one URL
type BatchJobResult struct {
	JobID       string
	TaskID      int64
	Error       error
	ProcessedAt time.Time
	Duration    time.Duration
}

// BatchProcessorConfig tunes the worker pool
type BatchProcessorConfig struct {
	Workers             int
	QueueSize           int
	BackpressureEnabled bool
	RejectThreshold     float64
	WaitTimeout         time.Duration
	JobTimeout          time.Duration
	Retention           time.Duration
	CleanupInterval     time.Duration
}

// DefaultBatchProcessorConfig returns the settings used when none are configured
func DefaultBatchProcessorConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		Workers:             3,
		QueueSize:           50,
		BackpressureEnabled: true,
		RejectThreshold:     0.8,
		WaitTimeout:         5 * time.Second,
		JobTimeout:          30 * time.Second,
		Retention:           24 * time.Hour,
		CleanupInterval:     time.Hour,
	}
}

// BatchProcessor submits many URLs in the background. Batches only create
// tasks; they never poll them.
type BatchProcessor struct {
	cfg       BatchProcessorConfig
	submitter TaskSubmitter
	logger    *logrus.Logger

	jobs      chan BatchJob
	results   chan BatchJobResult
	quit      chan struct{}
	workersWG sync.WaitGroup
	resultWG  sync.WaitGroup
	stopOnce  sync.Once

	statusMutex  sync.RWMutex
	jobStatus    map[string]*types.BatchJobStatus
	batches      map[string][]string
	batchCreated map[string]time.Time
	stopped      bool
}

// NewBatchProcessor starts the workers
func NewBatchProcessor(cfg BatchProcessorConfig, submitter TaskSubmitter, logger *logrus.Logger) *BatchProcessor {
	defaults := DefaultBatchProcessorConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.RejectThreshold <= 0 || cfg.RejectThreshold > 1 {
		cfg.RejectThreshold = defaults.RejectThreshold
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaults.WaitTimeout
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	processor := &BatchProcessor{
		cfg:          cfg,
		submitter:    submitter,
		logger:       logger,
		jobs:         make(chan BatchJob, cfg.QueueSize),
		results:      make(chan BatchJobResult, cfg.QueueSize),
		quit:         make(chan struct{}),
		jobStatus:    make(map[string]*types.BatchJobStatus),
		batches:      make(map[string][]string),
		batchCreated: make(map[string]time.Time),
	}

	for i := 0; i < cfg.Workers; i++ {
		processor.workersWG.Add(1)
		go processor.worker(i)
	}

	processor.resultWG.Add(1)
	go processor.resultProcessor()

	go processor.cleanupOldJobs()

	logger.WithFields(logrus.Fields{
		"workers":              cfg.Workers,
		"queue_size":           cfg.QueueSize,
		"backpressure_enabled": cfg.BackpressureEnabled,
		"reject_threshold":     cfg.RejectThreshold,
	}).Info("Batch processor started")

	return processor
}

// SubmitJob queues url as part of batchID and returns the job id
func (bp *BatchProcessor) SubmitJob(batchID, url, requestID string) (string, error) {
	now := time.Now()
	jobID := fmt.Sprintf("job_%d_%s", now.UnixNano(), utils.RandomString(8))
	job := BatchJob{
		ID:        jobID,
		BatchID:   batchID,
		URL:       url,
		RequestID: requestID,
		CreatedAt: now,
	}

	bp.statusMutex.Lock()
	if bp.stopped {
		bp.statusMutex.Unlock()
		return "", ErrProcessorStopped
	}
	bp.statusMutex.Unlock()

	if bp.cfg.BackpressureEnabled {
		currentLoad := float64(len(bp.jobs)) / float64(bp.cfg.QueueSize)
		if currentLoad >= bp.cfg.RejectThreshold {
			bp.logger.WithFields(logrus.Fields{
				"url":              url,
				"batch_id":         batchID,
				"current_load":     fmt.Sprintf("%.2f", currentLoad),
				"reject_threshold": fmt.Sprintf("%.2f", bp.cfg.RejectThreshold),
				"queue_size":       len(bp.jobs),
			}).Warn("Rejecting job due to backpressure - queue near capacity")
			return "", fmt.Errorf("batch queue under backpressure (load: %.2f%%)", currentLoad*100)
		}
	}

	bp.statusMutex.Lock()
	bp.jobStatus[jobID] = &types.BatchJobStatus{
		JobID:     jobID,
		BatchID:   batchID,
		URL:       url,
		Status:    types.BatchJobPending,
		CreatedAt: now,
	}
	if _, ok := bp.batchCreated[batchID]; !ok {
		bp.batchCreated[batchID] = now
	}
	bp.batches[batchID] = append(bp.batches[batchID], jobID)
	bp.statusMutex.Unlock()

	select {
	case bp.jobs <- job:
		monitoring.UpdateBatchQueueSize(len(bp.jobs))
		monitoring.RecordBatchJob("queued")
		bp.logger.WithFields(logrus.Fields{
			"job_id":     jobID,
			"batch_id":   batchID,
			"url":        url,
			"request_id": requestID,
		}).Debug("Job queued for submission")
		return jobID, nil
	case <-time.After(bp.cfg.WaitTimeout):
		bp.forget(batchID, jobID)
		bp.logger.WithFields(logrus.Fields{
			"url":          url,
			"wait_timeout": bp.cfg.WaitTimeout.String(),
			"queue_size":   len(bp.jobs),
		}).Warn("Job submission timed out due to queue pressure")
		return "", fmt.Errorf("batch queue timeout after %v", bp.cfg.WaitTimeout)
	case <-bp.quit:
		bp.forget(batchID, jobID)
		return "", ErrProcessorStopped
	}
}

func (bp *BatchProcessor) forget(batchID, jobID string) {
	bp.statusMutex.Lock()
	defer bp.statusMutex.Unlock()

	delete(bp.jobStatus, jobID)
	ids := bp.batches[batchID]
	for i, id := range ids {
		if id == jobID {
			bp.batches[batchID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(bp.batches[batchID]) == 0 {
		delete(bp.batches, batchID)
		delete(bp.batchCreated, batchID)
	}
}

// GetJobStatus retrieves the status of a job
func (bp *BatchProcessor) GetJobStatus(jobID string) (*types.BatchJobStatus, bool) {
	bp.statusMutex.RLock()
	defer bp.statusMutex.RUnlock()

	status, exists := bp.jobStatus[jobID]
	if !exists {
		return nil, false
	}
	copied := *status
	return &copied, true
}

// GetBatch summarizes every job of a batch
func (bp *BatchProcessor) GetBatch(batchID string) (*types.BatchSummary, bool) {
	bp.statusMutex.RLock()
	defer bp.statusMutex.RUnlock()

	ids, exists := bp.batches[batchID]
	if !exists {
		return nil, false
	}

	summary := &types.BatchSummary{
		BatchID:   batchID,
		CreatedAt: bp.batchCreated[batchID],
		Jobs:      make([]types.BatchJobStatus, 0, len(ids)),
	}
	for _, id := range ids {
		status, ok := bp.jobStatus[id]
		if !ok {
			continue
		}
		summary.Jobs = append(summary.Jobs, *status)
		switch status.Status {
		case types.BatchJobSubmitted:
			summary.Submitted++
		case types.BatchJobFailed:
			summary.Failed++
		default:
			summary.Pending++
		}
	}
	sort.SliceStable(summary.Jobs, func(i, j int) bool {
		return summary.Jobs[i].CreatedAt.Before(summary.Jobs[j].CreatedAt)
	})
	summary.Total = len(summary.Jobs)
	summary.Done = summary.Pending == 0
	return summary, true
}

// worker submits jobs in the background
func (bp *BatchProcessor) worker(workerID int) {
	defer bp.workersWG.Done()

	bp.logger.WithField("worker_id", workerID).Debug("Batch worker started")

	for {
		select {
		case job := <-bp.jobs:
			monitoring.UpdateBatchQueueSize(len(bp.jobs))
			bp.processJob(workerID, job)
		case <-bp.quit:
			bp.logger.WithField("worker_id", workerID).Debug("Batch worker stopping")
			return
		}
	}
}

// processJob submits a single URL
func (bp *BatchProcessor) processJob(workerID int, job BatchJob) {
	startTime := time.Now()
	bp.updateJobStatus(job.ID, func(status *types.BatchJobStatus) {
		status.Status = types.BatchJobProcessing
	})

	ctx, cancel := context.WithTimeout(context.Background(), bp.cfg.JobTimeout)
	defer cancel()

	task, err := bp.submitter.Submit(ctx, job.URL)
	result := BatchJobResult{
		JobID:       job.ID,
		Error:       err,
		ProcessedAt: time.Now(),
		Duration:    time.Since(startTime),
	}
	if err == nil {
		result.TaskID = task.ID
	}

	fields := logrus.Fields{
		"worker_id":   workerID,
		"job_id":      job.ID,
		"batch_id":    job.BatchID,
		"url":         job.URL,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		bp.logger.WithFields(fields).Warn("Batch job failed")
	} else {
		fields["task_id"] = task.ID
		bp.logger.WithFields(fields).Info("Batch job submitted")
	}

	bp.results <- result
}

// resultProcessor applies job results
func (bp *BatchProcessor) resultProcessor() {
	defer bp.resultWG.Done()

	for result := range bp.results {
		status := types.BatchJobSubmitted
		if result.Error != nil {
			status = types.BatchJobFailed
		}
		monitoring.RecordBatchJob(status)

		processedAt := result.ProcessedAt
		bp.updateJobStatus(result.JobID, func(job *types.BatchJobStatus) {
			job.Status = status
			job.TaskID = result.TaskID
			job.DurationMs = result.Duration.Milliseconds()
			job.CompletedAt = &processedAt
			if result.Error != nil {
				job.Error = result.Error.Error()
				job.ErrorKind = types.KindOf(result.Error)
			}
		})
	}
}

func (bp *BatchProcessor) updateJobStatus(jobID string, update func(*types.BatchJobStatus)) {
	bp.statusMutex.Lock()
	defer bp.statusMutex.Unlock()

	if jobStatus, exists := bp.jobStatus[jobID]; exists {
		update(jobStatus)
	}
}

// cleanupOldJobs removes job statuses older than the retention period
func (bp *BatchProcessor) cleanupOldJobs() {
	ticker := time.NewTicker(bp.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := bp.removeOlderThan(time.Now().Add(-bp.cfg.Retention)); removed > 0 {
				bp.logger.WithField("removed_count", removed).Info("Cleaned up old batch job statuses")
			}
		case <-bp.quit:
			return
		}
	}
}

func (bp *BatchProcessor) removeOlderThan(cutoff time.Time) int {
	bp.statusMutex.Lock()
	defer bp.statusMutex.Unlock()

	removed := 0
	for batchID, created := range bp.batchCreated {
		if !created.Before(cutoff) {
			continue
		}
		for _, jobID := range bp.batches[batchID] {
			delete(bp.jobStatus, jobID)
			removed++
		}
		delete(bp.batches, batchID)
		delete(bp.batchCreated, batchID)
	}
	return removed
}

// Stop shuts down the workers. Jobs still queued stay pending.
func (bp *BatchProcessor) Stop() {
	bp.stopOnce.Do(func() {
		bp.logger.Info("Stopping batch processor")

		bp.statusMutex.Lock()
		bp.stopped = true
		bp.statusMutex.Unlock()

		close(bp.quit)
		bp.workersWG.Wait()
		close(bp.results)
		bp.resultWG.Wait()

		bp.logger.Info("Batch processor stopped")
	})
}
