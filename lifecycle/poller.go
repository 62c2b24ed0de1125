/*
Package lifecycle tracks remote scraping tasks from submission to result.

A Submitter creates tasks, a Poller runs one polling Session per tracked task,
a Fetcher retrieves the result once a task completes, and a Coordinator owns
the currently tracked task id and wires the three together.
*/
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the period between status checks
const DefaultPollInterval = 2 * time.Second

// StatusChecker issues a single status request for a task
type StatusChecker interface {
	GetStatus(ctx context.Context, taskID int64) (*types.StatusResponse, error)
}

// State is the state of a polling session
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateErrored   State = "errored"
)

// SignalKind identifies how a polling session ended
type SignalKind string

const (
	SignalCompleted SignalKind = "completed"
	SignalFailed    SignalKind = "failed"
	SignalErrored   SignalKind = "errored"
)

// Signal is emitted exactly once when a session reaches a terminal state.
// Err is a *types.TaskFailedError for SignalFailed. For SignalErrored it is
// a *types.ProtocolError when the backend broke the contract and a
// *types.PollingError otherwise.
type Signal struct {
	TaskID int64
	Kind   SignalKind
	Err    error
}

// SessionHooks receive session events. Both run on the session's polling
// goroutine, outside any session lock, in the order the causing responses
// arrived.
type SessionHooks struct {
	OnStatus func(s *Session, status types.Status)
	OnSignal func(s *Session, sig Signal)
}

// Poller starts polling sessions against a StatusChecker
type Poller struct {
	checker  StatusChecker
	interval time.Duration
	logger   *logrus.Logger
	seq      atomic.Uint64
}

// NewPoller creates a poller checking every interval
func NewPoller(checker StatusChecker, interval time.Duration, logger *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Poller{checker: checker, interval: interval, logger: logger}
}

// Interval returns the polling period
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start begins a new session for taskID: an immediate status check, then
// one check per interval until the task is terminal, a check fails, or the
// session is cancelled. Cancelling ctx stops in-flight requests but does
// not by itself cancel the session; call Session.Cancel for that.
func (p *Poller) Start(ctx context.Context, taskID int64, hooks SessionHooks) *Session {
	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      p.seq.Add(1),
		taskID:  taskID,
		checker: p.checker,
		logger:  p.logger,
		hooks:   hooks,
		ctx:     sessionCtx,
		cancel:  cancel,
		state:   StatePolling,
	}
	s.schedule = NewSchedule(p.interval, s.tick, func(skipped int) {
		for i := 0; i < skipped; i++ {
			monitoring.RecordSkippedTick()
		}
		s.logger.WithFields(logrus.Fields{
			"session_id": s.id,
			"task_id":    s.taskID,
			"skipped":    skipped,
		}).Debug("Status check outlasted the poll interval, skipping ticks")
	})

	monitoring.RecordSessionStarted()
	p.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"task_id":    taskID,
		"interval":   p.interval.String(),
	}).Info("Polling session started")

	s.schedule.Start()
	return s
}

// Session polls the status of one task
type Session struct {
	id       uint64
	taskID   int64
	checker  StatusChecker
	logger   *logrus.Logger
	hooks    SessionHooks
	ctx      context.Context
	cancel   context.CancelFunc
	schedule *Schedule

	mu         sync.Mutex
	state      State
	lastStatus types.Status
	checks     int
	ended      bool
}

// ID returns the session's sequence number
func (s *Session) ID() uint64 {
	return s.id
}

// TaskID returns the tracked task id
func (s *Session) TaskID() int64 {
	return s.taskID
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastStatus returns the most recent status applied to the session
func (s *Session) LastStatus() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// Checks returns how many status responses the session applied
func (s *Session) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// Cancel moves the session to Idle, disarms its timer and aborts any
// request in flight. A response that still arrives, or one applied but not
// yet delivered to the hooks, is discarded. Safe to
// call more than once.
func (s *Session) Cancel() {
	s.schedule.Cancel()
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	wasPolling := s.state == StatePolling
	s.state = StateIdle
	if wasPolling {
		s.endLocked(monitoring.OutcomeCancelled)
		s.logger.WithFields(logrus.Fields{
			"session_id": s.id,
			"task_id":    s.taskID,
		}).Info("Polling session cancelled")
	}
}

func (s *Session) endLocked(outcome string) {
	if s.ended {
		return
	}
	s.ended = true
	monitoring.RecordSessionEnded(outcome)
}

func (s *Session) tick() {
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	resp, err := s.checker.GetStatus(s.ctx, s.taskID)

	var (
		sig           *Signal
		statusChanged bool
		status        types.Status
	)

	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		monitoring.RecordStaleResponse("status")
		s.logger.WithFields(logrus.Fields{
			"session_id": s.id,
			"task_id":    s.taskID,
		}).Debug("Discarding status response for abandoned session")
		return
	}

	switch {
	case err != nil:
		monitoring.RecordPollTick("error")
		s.state = StateErrored
		sig = &Signal{TaskID: s.taskID, Kind: SignalErrored, Err: pollError(s.taskID, err)}
	case resp.ID != 0 && resp.ID != s.taskID:
		monitoring.RecordPollTick("error")
		s.state = StateErrored
		sig = &Signal{TaskID: s.taskID, Kind: SignalErrored, Err: &types.ProtocolError{Field: "id", Value: formatID(resp.ID)}}
	case resp.Status.Rank() == 0:
		monitoring.RecordPollTick("error")
		s.state = StateErrored
		sig = &Signal{TaskID: s.taskID, Kind: SignalErrored, Err: &types.ProtocolError{Field: "status", Value: string(resp.Status)}}
	case resp.Status.Rank() < s.lastStatus.Rank():
		monitoring.RecordPollTick(string(resp.Status))
		s.logger.WithFields(logrus.Fields{
			"session_id":  s.id,
			"task_id":     s.taskID,
			"status":      resp.Status,
			"last_status": s.lastStatus,
		}).Warn("Ignoring status regression")
	default:
		monitoring.RecordPollTick(string(resp.Status))
		s.checks++
		if resp.Status != s.lastStatus {
			s.lastStatus = resp.Status
			statusChanged = true
		}
		status = resp.Status
		switch resp.Status {
		case types.StatusCompleted:
			s.state = StateCompleted
			sig = &Signal{TaskID: s.taskID, Kind: SignalCompleted}
		case types.StatusFailed:
			s.state = StateFailed
			sig = &Signal{TaskID: s.taskID, Kind: SignalFailed, Err: &types.TaskFailedError{TaskID: s.taskID, Message: resp.Message()}}
		}
	}
	if sig != nil {
		s.endLocked(string(sig.Kind))
	}
	applied := s.state
	s.mu.Unlock()

	if sig != nil {
		s.schedule.Cancel()
		s.cancel()
		s.logSignal(*sig)
	}

	if statusChanged && s.hooks.OnStatus != nil && s.stateIs(applied) {
		s.hooks.OnStatus(s, status)
	}
	if sig != nil && s.hooks.OnSignal != nil && s.stateIs(applied) {
		s.hooks.OnSignal(s, *sig)
	}
}

// stateIs reports whether the session is still in state, so a Cancel that
// lands between applying a response and delivering it suppresses the hooks
func (s *Session) stateIs(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == state
}

func pollError(taskID int64, err error) error {
	var protocolErr *types.ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr
	}
	return &types.PollingError{TaskID: taskID, Err: err}
}

func (s *Session) logSignal(sig Signal) {
	fields := logrus.Fields{
		"session_id": s.id,
		"task_id":    s.taskID,
		"outcome":    sig.Kind,
	}
	if sig.Err != nil {
		fields["error"] = sig.Err.Error()
	}
	switch sig.Kind {
	case SignalErrored:
		s.logger.WithFields(fields).Error("Polling session errored")
	default:
		s.logger.WithFields(fields).Info("Polling session reached terminal status")
	}
}
