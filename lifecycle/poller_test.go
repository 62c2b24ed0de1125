package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T, backend *fakeBackend, taskID int64, rec *recorder) *Session {
	t.Helper()
	poller := NewPoller(backend, testInterval, quietLogger())
	s := poller.Start(context.Background(), taskID, rec.hooks())
	t.Cleanup(s.Cancel)
	return s
}

func TestSessionPollsUntilCompleted(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1,
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusInProgress},
		statusReply{status: types.StatusCompleted},
	)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return s.State() == StateCompleted }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.Signals()) == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, []types.Status{types.StatusPending, types.StatusInProgress, types.StatusCompleted}, rec.Statuses())
	assert.Equal(t, SignalCompleted, rec.Signals()[0].Kind)
	assert.NoError(t, rec.Signals()[0].Err)
	assert.True(t, s.schedule.Cancelled())

	calls := backend.StatusCalls(1)
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, backend.StatusCalls(1), "no checks after a terminal status")
	assert.Len(t, rec.Signals(), 1)
}

func TestSessionRepeatedStatusIsReportedOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1,
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusCompleted},
	)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return s.State() == StateCompleted }, time.Second, time.Millisecond)
	assert.Equal(t, []types.Status{types.StatusPending, types.StatusCompleted}, rec.Statuses())
	assert.Equal(t, 4, s.Checks())
}

func TestSessionFailedCarriesMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1,
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusFailed, message: "timeout after 30s"},
	)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return len(rec.Signals()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateFailed, s.State())

	sig := rec.Signals()[0]
	assert.Equal(t, SignalFailed, sig.Kind)
	var failedErr *types.TaskFailedError
	require.ErrorAs(t, sig.Err, &failedErr)
	assert.Equal(t, "timeout after 30s", failedErr.Message)
	assert.Contains(t, sig.Err.Error(), "timeout after 30s")
}

func TestSessionTransportErrorEndsSession(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1, statusReply{err: errors.New("connection refused")})
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return len(rec.Signals()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateErrored, s.State())

	var pollingErr *types.PollingError
	require.ErrorAs(t, rec.Signals()[0].Err, &pollingErr)
	assert.Equal(t, int64(1), pollingErr.TaskID)

	time.Sleep(5 * testInterval)
	assert.Equal(t, 1, backend.StatusCalls(1), "no retry after a failed check")
}

func TestSessionProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply statusReply
		field string
	}{
		{"unknown status", statusReply{err: &types.ProtocolError{Field: "status", Value: "queued"}}, "status"},
		{"foreign task id", statusReply{status: types.StatusPending, id: 99}, "id"},
		{"missing status", statusReply{}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.script(1, tt.reply)
			rec := &recorder{}
			s := startSession(t, backend, 1, rec)

			require.Eventually(t, func() bool { return len(rec.Signals()) == 1 }, time.Second, time.Millisecond)
			assert.Equal(t, StateErrored, s.State())

			var protocolErr *types.ProtocolError
			require.ErrorAs(t, rec.Signals()[0].Err, &protocolErr)
			assert.Equal(t, tt.field, protocolErr.Field)
			assert.Equal(t, types.KindProtocol, types.KindOf(rec.Signals()[0].Err))
			assert.Empty(t, rec.Statuses())
		})
	}
}

func TestSessionIgnoresStatusRegression(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1,
		statusReply{status: types.StatusInProgress},
		statusReply{status: types.StatusPending},
		statusReply{status: types.StatusCompleted},
	)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return s.State() == StateCompleted }, time.Second, time.Millisecond)
	assert.Equal(t, []types.Status{types.StatusInProgress, types.StatusCompleted}, rec.Statuses())
	assert.Equal(t, types.StatusCompleted, s.LastStatus())
}

func TestSessionCancelDiscardsInFlightResponse(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1, statusReply{status: types.StatusCompleted})
	gate := backend.gateStatus(1)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return backend.StatusCalls(1) == 1 }, time.Second, time.Millisecond)
	s.Cancel()
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.schedule.Armed())

	close(gate)
	time.Sleep(5 * testInterval)

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, rec.Statuses())
	assert.Empty(t, rec.Signals())
	assert.Equal(t, 1, backend.StatusCalls(1))
}

func TestSessionCancelIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	assert.NotPanics(t, func() {
		s.Cancel()
		s.Cancel()
	})
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionNeverOverlapsChecks(t *testing.T) {
	backend := newFakeBackend()
	backend.delay = 3 * testInterval
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return backend.StatusCalls(1) >= 3 }, time.Second, time.Millisecond)
	s.Cancel()

	assert.Equal(t, 1, backend.MaxInFlight())
}

func TestPollerAssignsSessionIDs(t *testing.T) {
	backend := newFakeBackend()
	poller := NewPoller(backend, testInterval, quietLogger())

	first := poller.Start(context.Background(), 1, SessionHooks{})
	second := poller.Start(context.Background(), 2, SessionHooks{})
	defer first.Cancel()
	defer second.Cancel()

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, int64(2), second.TaskID())
	assert.Equal(t, DefaultPollInterval, NewPoller(backend, 0, nil).Interval())
}

func TestSessionMissingStatusAfterPendingEndsSession(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1,
		statusReply{status: types.StatusPending},
		statusReply{},
	)
	rec := &recorder{}
	s := startSession(t, backend, 1, rec)

	require.Eventually(t, func() bool { return len(rec.Signals()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateErrored, s.State())
	assert.Equal(t, []types.Status{types.StatusPending}, rec.Statuses())

	var protocolErr *types.ProtocolError
	require.ErrorAs(t, rec.Signals()[0].Err, &protocolErr)
	assert.Equal(t, "status", protocolErr.Field)

	calls := backend.StatusCalls(1)
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, backend.StatusCalls(1), "no checks after a protocol error")
}

func TestSessionCancelFromStatusHookSuppressesSignal(t *testing.T) {
	backend := newFakeBackend()
	backend.script(1, statusReply{status: types.StatusCompleted})

	var (
		mu       sync.Mutex
		statuses []types.Status
		signals  []Signal
	)
	poller := NewPoller(backend, testInterval, quietLogger())
	s := poller.Start(context.Background(), 1, SessionHooks{
		OnStatus: func(s *Session, status types.Status) {
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
			s.Cancel()
		},
		OnSignal: func(_ *Session, sig Signal) {
			mu.Lock()
			defer mu.Unlock()
			signals = append(signals, sig)
		},
	})
	t.Cleanup(s.Cancel)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(5 * testInterval)

	assert.Equal(t, StateIdle, s.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, signals)
}
