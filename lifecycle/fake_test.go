package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

const testInterval = 10 * time.Millisecond

type statusReply struct {
	status  types.Status
	message string
	id      int64
	err     error
}

// fakeBackend serves scripted replies. The last reply queued for an id
// repeats once the others are consumed.
type fakeBackend struct {
	mu sync.Mutex

	replies     map[int64][]statusReply
	statusGates map[int64]chan struct{}
	delay       time.Duration
	statusCalls map[int64]int
	inFlight    int
	maxInFlight int

	createTask  *types.Task
	createErr   error
	createCalls int

	results    map[int64]*types.TaskWithResults
	fetchErr   error
	fetchGates map[int64]chan struct{}
	fetchCalls map[int64]int

	listCalls int
	lastSkip  int
	lastLimit int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		replies:     make(map[int64][]statusReply),
		statusGates: make(map[int64]chan struct{}),
		statusCalls: make(map[int64]int),
		results:     make(map[int64]*types.TaskWithResults),
		fetchGates:  make(map[int64]chan struct{}),
		fetchCalls:  make(map[int64]int),
	}
}

func (b *fakeBackend) script(id int64, replies ...statusReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[id] = replies
}

func (b *fakeBackend) gateStatus(id int64) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	b.statusGates[id] = gate
	return gate
}

func (b *fakeBackend) gateFetch(id int64) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	b.fetchGates[id] = gate
	return gate
}

func (b *fakeBackend) setResults(id int64, results ...types.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[id] = &types.TaskWithResults{
		Task:    types.Task{ID: id, Status: types.StatusCompleted},
		Results: results,
	}
}

func (b *fakeBackend) StatusCalls(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[id]
}

func (b *fakeBackend) FetchCalls(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls[id]
}

func (b *fakeBackend) MaxInFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

func (b *fakeBackend) CreateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

func (b *fakeBackend) GetStatus(ctx context.Context, taskID int64) (*types.StatusResponse, error) {
	b.mu.Lock()
	b.statusCalls[taskID]++
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	var reply statusReply
	queue := b.replies[taskID]
	switch {
	case len(queue) > 1:
		reply, b.replies[taskID] = queue[0], queue[1:]
	case len(queue) == 1:
		reply = queue[0]
	default:
		reply = statusReply{status: types.StatusPending}
	}
	gate := b.statusGates[taskID]
	delete(b.statusGates, taskID)
	delay := b.delay
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()

	if reply.err != nil {
		return nil, reply.err
	}
	id := taskID
	if reply.id != 0 {
		id = reply.id
	}
	resp := &types.StatusResponse{ID: id, Status: reply.status}
	if reply.message != "" {
		msg := reply.message
		resp.ErrorMessage = &msg
	}
	return resp, nil
}

func (b *fakeBackend) GetTaskWithResults(ctx context.Context, taskID int64) (*types.TaskWithResults, error) {
	b.mu.Lock()
	b.fetchCalls[taskID]++
	gate := b.fetchGates[taskID]
	task, ok := b.results[taskID]
	fetchErr := b.fetchErr
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if !ok {
		return nil, errors.New("task not found")
	}
	return task, nil
}

func (b *fakeBackend) CreateTask(ctx context.Context, rawURL string) (*types.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	if b.createErr != nil {
		return nil, b.createErr
	}
	if b.createTask != nil {
		task := *b.createTask
		task.URL = rawURL
		return &task, nil
	}
	return &types.Task{ID: int64(b.createCalls), URL: rawURL, Status: types.StatusPending}, nil
}

func (b *fakeBackend) ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	b.lastSkip, b.lastLimit = skip, limit
	return []types.Task{{ID: 1, Status: types.StatusCompleted}}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// recorder collects session hook invocations
type recorder struct {
	mu       sync.Mutex
	statuses []types.Status
	signals  []Signal
}

func (r *recorder) hooks() SessionHooks {
	return SessionHooks{
		OnStatus: func(_ *Session, status types.Status) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, status)
		},
		OnSignal: func(_ *Session, sig Signal) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.signals = append(r.signals, sig)
		},
	}
}

func (r *recorder) Statuses() []types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Status{}, r.statuses...)
}

func (r *recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal{}, r.signals...)
}
