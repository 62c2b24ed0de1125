package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSubmitter creates tasks with increasing ids and fails for selected URLs
type stubSubmitter struct {
	mu      sync.Mutex
	nextID  int64
	failFor map[string]error
	block   chan struct{}
	calls   []string
}

func (s *stubSubmitter) Submit(ctx context.Context, rawURL string) (*types.Task, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	if err, ok := s.failFor[rawURL]; ok {
		return nil, err
	}
	s.nextID++
	return &types.Task{ID: s.nextID, URL: rawURL, Status: types.StatusPending}, nil
}

func testProcessorConfig() BatchProcessorConfig {
	cfg := DefaultBatchProcessorConfig()
	cfg.Workers = 2
	cfg.QueueSize = 10
	cfg.WaitTimeout = 100 * time.Millisecond
	cfg.JobTimeout = time.Second
	return cfg
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestNewBatchProcessorAppliesDefaults(t *testing.T) {
	processor := NewBatchProcessor(BatchProcessorConfig{}, &stubSubmitter{}, testLogger())
	defer processor.Stop()

	defaults := DefaultBatchProcessorConfig()
	assert.Equal(t, defaults.Workers, processor.cfg.Workers)
	assert.Equal(t, defaults.QueueSize, processor.cfg.QueueSize)
	assert.Equal(t, defaults.RejectThreshold, processor.cfg.RejectThreshold)
	assert.Equal(t, defaults.Retention, processor.cfg.Retention)
}

func TestBatchProcessorSubmitsEveryJob(t *testing.T) {
	submitter := &stubSubmitter{failFor: map[string]error{
		"https://bad.example.com": &types.SubmissionError{URL: "https://bad.example.com", Err: fmt.Errorf("boom")},
	}}
	processor := NewBatchProcessor(testProcessorConfig(), submitter, testLogger())
	defer processor.Stop()

	urls := []string{"https://a.example.com", "https://bad.example.com", "https://b.example.com"}
	for _, u := range urls {
		jobID, err := processor.SubmitJob("batch-1", u, "req-1")
		require.NoError(t, err)
		assert.Contains(t, jobID, "job_")
	}

	require.Eventually(t, func() bool {
		summary, ok := processor.GetBatch("batch-1")
		return ok && summary.Done
	}, 2*time.Second, 10*time.Millisecond)

	summary, _ := processor.GetBatch("batch-1")
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Submitted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Pending)

	for _, job := range summary.Jobs {
		if job.URL == "https://bad.example.com" {
			assert.Equal(t, types.BatchJobFailed, job.Status)
			assert.Equal(t, types.KindSubmission, job.ErrorKind)
			assert.NotEmpty(t, job.Error)
			continue
		}
		assert.Equal(t, types.BatchJobSubmitted, job.Status)
		assert.NotZero(t, job.TaskID)
		assert.NotNil(t, job.CompletedAt)
	}
}

func TestBatchProcessorGetJobStatus(t *testing.T) {
	submitter := &stubSubmitter{block: make(chan struct{})}
	processor := NewBatchProcessor(testProcessorConfig(), submitter, testLogger())
	defer processor.Stop()
	defer close(submitter.block)

	jobID, err := processor.SubmitJob("batch-1", "https://example.com", "req-1")
	require.NoError(t, err)

	status, exists := processor.GetJobStatus(jobID)
	require.True(t, exists)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, "batch-1", status.BatchID)
	assert.Equal(t, "https://example.com", status.URL)
	assert.Contains(t, []string{types.BatchJobPending, types.BatchJobProcessing}, status.Status)

	status.Status = "mutated"
	again, _ := processor.GetJobStatus(jobID)
	assert.NotEqual(t, "mutated", again.Status)
}

func TestBatchProcessorUnknownIDs(t *testing.T) {
	processor := NewBatchProcessor(testProcessorConfig(), &stubSubmitter{}, testLogger())
	defer processor.Stop()

	status, exists := processor.GetJobStatus("non-existent-job")
	assert.False(t, exists)
	assert.Nil(t, status)

	summary, exists := processor.GetBatch("non-existent-batch")
	assert.False(t, exists)
	assert.Nil(t, summary)
}

func TestBatchProcessorBackpressure(t *testing.T) {
	cfg := testProcessorConfig()
	cfg.Workers = 1
	cfg.QueueSize = 4
	cfg.RejectThreshold = 0.5
	submitter := &stubSubmitter{block: make(chan struct{})}
	processor := NewBatchProcessor(cfg, submitter, testLogger())
	defer processor.Stop()
	defer close(submitter.block)

	var rejected int
	for i := 0; i < 6; i++ {
		if _, err := processor.SubmitJob("batch-1", fmt.Sprintf("https://example.com/%d", i), "req"); err != nil {
			assert.Contains(t, err.Error(), "backpressure")
			rejected++
		}
	}
	assert.Greater(t, rejected, 0)

	summary, ok := processor.GetBatch("batch-1")
	require.True(t, ok)
	assert.Equal(t, 6-rejected, summary.Total)
}

func TestBatchProcessorQueueTimeout(t *testing.T) {
	cfg := testProcessorConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	cfg.BackpressureEnabled = false
	submitter := &stubSubmitter{block: make(chan struct{})}
	processor := NewBatchProcessor(cfg, submitter, testLogger())
	defer processor.Stop()
	defer close(submitter.block)

	var lastErr error
	for i := 0; i < 3 && lastErr == nil; i++ {
		_, lastErr = processor.SubmitJob("batch-1", fmt.Sprintf("https://example.com/%d", i), "req")
	}
	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "timeout")

	summary, ok := processor.GetBatch("batch-1")
	require.True(t, ok)
	for _, job := range summary.Jobs {
		assert.NotEqual(t, types.BatchJobFailed, job.Status)
	}
}

func TestBatchProcessorStop(t *testing.T) {
	processor := NewBatchProcessor(testProcessorConfig(), &stubSubmitter{}, testLogger())

	_, err := processor.SubmitJob("batch-1", "https://example.com", "req")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		processor.Stop()
		processor.Stop()
	})

	_, err = processor.SubmitJob("batch-1", "https://example.com/2", "req")
	assert.ErrorIs(t, err, ErrProcessorStopped)
}

func TestBatchProcessorRemoveOlderThan(t *testing.T) {
	processor := NewBatchProcessor(testProcessorConfig(), &stubSubmitter{}, testLogger())
	defer processor.Stop()

	_, err := processor.SubmitJob("old", "https://example.com/old", "req")
	require.NoError(t, err)
	_, err = processor.SubmitJob("new", "https://example.com/new", "req")
	require.NoError(t, err)

	processor.statusMutex.Lock()
	processor.batchCreated["old"] = time.Now().Add(-48 * time.Hour)
	processor.statusMutex.Unlock()

	removed := processor.removeOlderThan(time.Now().Add(-24 * time.Hour))
	assert.Equal(t, 1, removed)

	_, exists := processor.GetBatch("old")
	assert.False(t, exists)
	_, exists = processor.GetBatch("new")
	assert.True(t, exists)
}

func BenchmarkBatchProcessorSubmitJob(b *testing.B) {
	cfg := DefaultBatchProcessorConfig()
	cfg.QueueSize = 1000
	cfg.BackpressureEnabled = false
	processor := NewBatchProcessor(cfg, &stubSubmitter{}, testLogger())
	defer processor.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processor.SubmitJob("bench", fmt.Sprintf("https://example.com/%d", i), "req")
	}
}
