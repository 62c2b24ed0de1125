/*
Package client implements the transport to the scraping backend.

The backend exposes four operations under its API base URL:

	POST /scrape             create a task            {"url": "..."}
	GET  /task-status/{id}   lightweight status check
	GET  /tasks/{id}         task with its results
	GET  /tasks?skip&limit   list tasks

Any network failure or non-2xx answer is returned as an error; status values
are validated into the closed set of task statuses while decoding.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/Nexora-Open-Source/scrape-monitor/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	OpCreateTask         = "create_task"
	OpGetStatus          = "get_status"
	OpGetTaskWithResults = "get_task_with_results"
	OpListTasks          = "list_tasks"
)

// DefaultMaxBodyBytes bounds how much of a response body is read
const DefaultMaxBodyBytes int64 = 8 << 20

// Client talks to the scraping backend over HTTP
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *logrus.Logger
	maxBodyBytes int64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxBodyBytes bounds the size of response bodies
func WithMaxBodyBytes(limit int64) Option {
	return func(c *Client) {
		c.maxBodyBytes = limit
	}
}

// New creates a client for the backend API rooted at baseURL
// (for example http://localhost:8000/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:      parsed,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logrus.StandardLogger(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API base URL the client targets
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type createTaskRequest struct {
	URL string `json:"url"`
}

// CreateTask asks the backend to scrape rawURL and returns the new task
func (c *Client) CreateTask(ctx context.Context, rawURL string) (*types.Task, error) {
	var task types.Task
	if err := c.do(ctx, OpCreateTask, http.MethodPost, "/scrape", nil, createTaskRequest{URL: rawURL}, &task); err != nil {
		return nil, err
	}
	if task.Status == "" {
		return nil, &types.ProtocolError{Field: "status", Value: ""}
	}
	return &task, nil
}

// GetStatus returns the current status of a task
func (c *Client) GetStatus(ctx context.Context, taskID int64) (*types.StatusResponse, error) {
	var status types.StatusResponse
	path := "/task-status/" + strconv.FormatInt(taskID, 10)
	if err := c.do(ctx, OpGetStatus, http.MethodGet, path, nil, nil, &status); err != nil {
		return nil, err
	}
	// A missing key never reaches Status.UnmarshalJSON
	if status.Status == "" {
		return nil, &types.ProtocolError{Field: "status", Value: ""}
	}
	return &status, nil
}

// GetTaskWithResults returns a task together with its results
func (c *Client) GetTaskWithResults(ctx context.Context, taskID int64) (*types.TaskWithResults, error) {
	var task types.TaskWithResults
	path := "/tasks/" + strconv.FormatInt(taskID, 10)
	if err := c.do(ctx, OpGetTaskWithResults, http.MethodGet, path, nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns one page of tasks in backend order
func (c *Client) ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	tasks := []types.Task{}
	if err := c.do(ctx, OpListTasks, http.MethodGet, "/tasks", query, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	requestID := utils.GenerateRequestID()

	ctx, span := monitoring.CreateSpan(ctx, "backend."+op)
	defer span.End()

	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			monitoring.SetSpanError(span, err)
		}
		monitoring.RecordTransportRequest(op, outcome, time.Since(start).Seconds())
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", op, err)
		}
	}

	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"http.method": method,
		"http.url":    endpoint.String(),
		"request_id":  requestID,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"operation":  op,
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Backend request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := ReadAllWithLimit(resp.Body, c.maxBodyBytes)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	c.logger.WithFields(logrus.Fields{
		"operation":   op,
		"request_id":  requestID,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Operation: op, StatusCode: resp.StatusCode, Detail: parseDetail(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		var protocolErr *types.ProtocolError
		if errors.As(err, &protocolErr) {
			return protocolErr
		}
		return &types.ProtocolError{Field: "response", Value: op, Err: err}
	}
	return nil
}
