package types

import (
	"time"
)

// Batch job states
const (
	BatchJobPending    = "pending"
	BatchJobProcessing = "processing"
	BatchJobSubmitted  = "submitted"
	BatchJobFailed     = "failed"
)

// BatchJobStatus represents the status of one URL in a batch submission
type BatchJobStatus struct {
	JobID       string     `json:"job_id"`
	BatchID     string     `json:"batch_id"`
	URL         string     `json:"url"`
	Status      string     `json:"status"` // pending, processing, submitted, failed
	TaskID      int64      `json:"task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}

// BatchSummary aggregates the jobs of one batch
type BatchSummary struct {
	BatchID   string           `json:"batch_id"`
	CreatedAt time.Time        `json:"created_at"`
	Total     int              `json:"total"`
	Pending   int              `json:"pending"`
	Submitted int              `json:"submitted"`
	Failed    int              `json:"failed"`
	Done      bool             `json:"done"`
	Jobs      []BatchJobStatus `json:"jobs"`
}
