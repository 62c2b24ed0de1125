package lifecycle

import (
	"sync"
	"time"
)

// Schedule runs fn once immediately and then on a fixed period until
// cancelled. A Schedule owns at most one armed timer and never runs fn
// concurrently with itself: the next run is armed only after the current
// one returns. Periods that elapse while fn is still running are skipped
// and the next run lands on the following period boundary.
type Schedule struct {
	interval time.Duration
	fn       func()
	onSkip   func(skipped int)

	mu        sync.Mutex
	timer     *time.Timer
	started   bool
	cancelled bool
}

// NewSchedule creates a schedule; onSkip may be nil.
func NewSchedule(interval time.Duration, fn func(), onSkip func(skipped int)) *Schedule {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Schedule{interval: interval, fn: fn, onSkip: onSkip}
}

// Start triggers the first run. Calling Start again, or after Cancel, does
// nothing.
func (s *Schedule) Start() {
	s.mu.Lock()
	if s.started || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(time.Now())
}

// Cancel stops the schedule. It is safe to call more than once and from
// inside fn. Once Cancel returns no timer is armed and fn will not start
// again.
func (s *Schedule) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether a timer is currently waiting to fire
func (s *Schedule) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancelled reports whether Cancel has been called
func (s *Schedule) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Schedule) run(due time.Time) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}

	now := time.Now()
	next := due.Add(s.interval)
	skipped := 0
	for !next.After(now) {
		next = next.Add(s.interval)
		skipped++
	}
	if skipped > 0 && s.onSkip != nil {
		s.onSkip(skipped)
	}
	s.timer = time.AfterFunc(next.Sub(now), func() { s.run(next) })
}
