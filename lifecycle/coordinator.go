package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// ErrCoordinatorClosed is returned by operations on a closed Coordinator
var ErrCoordinatorClosed = errors.New("coordinator is closed")

// Phase is the coordinator's view of the tracked task
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePolling   Phase = "polling"
	PhaseFetching  Phase = "fetching"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseErrored   Phase = "errored"
)

// ResultFetcher retrieves the result of a completed task
type ResultFetcher interface {
	FetchResult(ctx context.Context, taskID int64) (*types.Result, error)
}

// ErrorInfo is the serializable form of a lifecycle error
type ErrorInfo struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// Snapshot is the observable state of the tracked task
type Snapshot struct {
	TrackedTaskID *int64        `json:"tracked_task_id"`
	Phase         Phase         `json:"phase"`
	Status        types.Status  `json:"status,omitempty"`
	Result        *types.Result `json:"result,omitempty"`
	Error         *ErrorInfo    `json:"error,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Err is the original error behind Error
	Err error `json:"-"`

	version uint64
}

// Outcome returns the alerting outcome of a finished snapshot, or an empty
// string while the task is still in progress.
func (s Snapshot) Outcome() string {
	switch s.Phase {
	case PhaseCompleted:
		return monitoring.OutcomeCompleted
	case PhaseFailed:
		return monitoring.OutcomeFailed
	case PhaseErrored:
		if s.Error != nil && s.Error.Kind == types.KindEmptyResults {
			return monitoring.OutcomeEmpty
		}
		return monitoring.OutcomeErrored
	}
	return ""
}

// Terminal reports whether the snapshot will not change until the tracked
// task does.
func (s Snapshot) Terminal() bool {
	return s.Outcome() != ""
}

// Coordinator owns the currently tracked task id. Changing it cancels the
// running polling session before a new one starts, so at most one session
// is live at a time and responses for a previous id never reach the
// snapshot.
type Coordinator struct {
	poller    *Poller
	fetcher   ResultFetcher
	submitter *Submitter
	logger    *logrus.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	session     *Session
	trackCancel context.CancelFunc
	state       Snapshot
	closed      bool
	observers   []func(Snapshot)

	notifyMu     sync.Mutex
	lastNotified uint64
}

// NewCoordinator creates an idle coordinator
func NewCoordinator(poller *Poller, fetcher ResultFetcher, submitter *Submitter, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		poller:     poller,
		fetcher:    fetcher,
		submitter:  submitter,
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
		state:      Snapshot{Phase: PhaseIdle, UpdatedAt: time.Now()},
	}
}

// Subscribe registers fn to receive snapshots after every applied change.
// Observers run outside the coordinator lock and see snapshots in the
// order changes were applied; a burst of changes may be coalesced into the
// latest one. fn must not call SetTrackedTask synchronously.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the current state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetTrackedTask re-points tracking. A nil id stops tracking. Any id,
// including the one already tracked, cancels the current session, clears
// the previous result and error, and starts a fresh session.
func (c *Coordinator) SetTrackedTask(id *int64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}

	c.stopLocked()
	if id == nil {
		c.applyLocked(Snapshot{Phase: PhaseIdle})
		snap, observers := c.snapshotLocked(), c.observersLocked()
		c.mu.Unlock()

		c.logger.Info("Stopped tracking task")
		c.notify(snap, observers)
		return nil
	}

	taskID := *id
	trackCtx, cancel := context.WithCancel(c.baseCtx)
	c.trackCancel = cancel
	c.applyLocked(Snapshot{TrackedTaskID: &taskID, Phase: PhasePolling})
	c.session = c.poller.Start(trackCtx, taskID, SessionHooks{
		OnStatus: c.onStatus,
		OnSignal: func(s *Session, sig Signal) { c.onSignal(trackCtx, s, sig) },
	})
	snap, observers := c.snapshotLocked(), c.observersLocked()
	c.mu.Unlock()

	c.logger.WithField("task_id", taskID).Info("Tracking task")
	c.notify(snap, observers)
	return nil
}

// Submit creates a task for rawURL and starts tracking it
func (c *Coordinator) Submit(ctx context.Context, rawURL string) (*types.Task, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrCoordinatorClosed
	}

	task, err := c.submitter.Submit(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	id := task.ID
	if err := c.SetTrackedTask(&id); err != nil {
		return nil, err
	}
	return task, nil
}

// Close cancels the running session, notifies observers of the final idle
// snapshot and rejects further use. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLocked()
	c.baseCancel()
	c.applyLocked(Snapshot{Phase: PhaseIdle})
	snap, observers := c.snapshotLocked(), c.observersLocked()
	c.mu.Unlock()

	c.logger.Info("Coordinator closed")
	c.notify(snap, observers)
}

func (c *Coordinator) stopLocked() {
	if c.session != nil {
		c.session.Cancel()
		c.session = nil
	}
	if c.trackCancel != nil {
		c.trackCancel()
		c.trackCancel = nil
	}
}

func (c *Coordinator) applyLocked(next Snapshot) {
	next.version = c.state.version + 1
	next.UpdatedAt = time.Now()
	c.state = next
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := c.state
	if snap.TrackedTaskID != nil {
		id := *snap.TrackedTaskID
		snap.TrackedTaskID = &id
	}
	return snap
}

func (c *Coordinator) observersLocked() []func(Snapshot) {
	return append([]func(Snapshot){}, c.observers...)
}

func (c *Coordinator) notify(snap Snapshot, observers []func(Snapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.version <= c.lastNotified {
		return
	}
	c.lastNotified = snap.version
	for _, fn := range observers {
		fn(snap)
	}
}

func (c *Coordinator) discardLocked(s *Session, source string) bool {
	if c.session == s && !c.closed {
		return false
	}
	monitoring.RecordStaleResponse(source)
	c.logger.WithFields(logrus.Fields{
		"session_id": s.ID(),
		"task_id":    s.TaskID(),
		"source":     source,
	}).Debug("Discarding update for task no longer tracked")
	return true
}

func (c *Coordinator) onStatus(s *Session, status types.Status) {
	c.mu.Lock()
	if c.discardLocked(s, "status") {
		c.mu.Unlock()
		return
	}
	next := c.state
	next.Status = status
	c.applyLocked(next)
	snap, observers := c.snapshotLocked(), c.observersLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"task_id": s.TaskID(),
		"status":  status,
	}).Debug("Task status changed")
	c.notify(snap, observers)
}

func (c *Coordinator) onSignal(ctx context.Context, s *Session, sig Signal) {
	c.mu.Lock()
	if c.discardLocked(s, "signal") {
		c.mu.Unlock()
		return
	}

	next := c.state
	switch sig.Kind {
	case SignalCompleted:
		next.Phase = PhaseFetching
		next.Status = types.StatusCompleted
	case SignalFailed:
		next.Phase = PhaseFailed
		next.Status = types.StatusFailed
		next.Error, next.Err = errorInfo(sig.Err), sig.Err
	case SignalErrored:
		next.Phase = PhaseErrored
		next.Error, next.Err = errorInfo(sig.Err), sig.Err
	}
	c.applyLocked(next)
	snap, observers := c.snapshotLocked(), c.observersLocked()
	c.mu.Unlock()
	c.notify(snap, observers)

	if sig.Kind != SignalCompleted {
		return
	}

	result, err := c.fetcher.FetchResult(ctx, sig.TaskID)

	c.mu.Lock()
	if c.discardLocked(s, "result") {
		c.mu.Unlock()
		return
	}
	next = c.state
	if err != nil {
		next.Phase = PhaseErrored
		next.Error, next.Err = errorInfo(err), err
	} else {
		next.Phase = PhaseCompleted
		next.Result = result
	}
	c.applyLocked(next)
	snap, observers = c.snapshotLocked(), c.observersLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"task_id": sig.TaskID,
		"phase":   snap.Phase,
	}).Info("Tracked task finished")
	c.notify(snap, observers)
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Kind: types.KindOf(err), Message: err.Error()}
}
