package archive

import (
	"context"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/sirupsen/logrus"
)

// Recorder archives terminal coordinator snapshots on a background worker
// so that observers never block on storage.
type Recorder struct {
	archive Archive
	logger  *logrus.Logger
	timeout time.Duration

	queue chan *Record
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRecorder starts a recorder with room for queueSize pending records
func NewRecorder(archive Archive, logger *logrus.Logger, queueSize int) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	r := &Recorder{
		archive: archive,
		logger:  logger,
		timeout: 10 * time.Second,
		queue:   make(chan *Record, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Observe queues a terminal snapshot for archiving. It never blocks;
// records are dropped when the queue is full.
func (r *Recorder) Observe(snap lifecycle.Snapshot) {
	record, ok := RecordFromSnapshot(snap)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	select {
	case r.queue <- record:
	default:
		r.logger.WithField("task_id", record.TaskID).Warn("Archive queue full, dropping record")
	}
}

// Stop drains queued records and stops the worker
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for record := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.archive.Save(ctx, record)
		cancel()
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"task_id": record.TaskID,
				"error":   err.Error(),
			}).Error("Failed to archive task outcome")
		}
	}
}
