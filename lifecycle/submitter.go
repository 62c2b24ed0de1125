package lifecycle

import (
	"context"
	"net/url"
	"strings"

	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// TaskCreator creates a scraping task on the backend
type TaskCreator interface {
	CreateTask(ctx context.Context, rawURL string) (*types.Task, error)
}

// TaskLister lists tasks known to the backend
type TaskLister interface {
	ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error)
}

// DefaultListLimit is the page size used when none is given
const DefaultListLimit = 100

// ValidateURL checks that raw is an absolute URL with a scheme and a host
// and returns it trimmed.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &types.ValidationError{Input: raw, Reason: "url is required"}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &types.ValidationError{Input: raw, Reason: "not a valid url"}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", &types.ValidationError{Input: raw, Reason: "url must be absolute with a scheme and host"}
	}
	return trimmed, nil
}

// Submitter validates URLs and creates scraping tasks
type Submitter struct {
	creator TaskCreator
	logger  *logrus.Logger
}

// NewSubmitter creates a submitter
func NewSubmitter(creator TaskCreator, logger *logrus.Logger) *Submitter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Submitter{creator: creator, logger: logger}
}

// Submit validates rawURL and creates a task for it. Invalid input is
// rejected before any request is sent.
func (s *Submitter) Submit(ctx context.Context, rawURL string) (*types.Task, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"url":   rawURL,
			"error": err.Error(),
		}).Debug("Rejected submission")
		return nil, err
	}

	task, err := s.creator.CreateTask(ctx, target)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"url":   target,
			"error": err.Error(),
		}).Error("Failed to create scraping task")
		return nil, &types.SubmissionError{URL: target, Err: err}
	}
	if task.Status != types.StatusPending {
		return nil, &types.ProtocolError{Field: "status", Value: string(task.Status)}
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"url":     task.URL,
	}).Info("Scraping task created")
	return task, nil
}

// Lister pages through backend tasks
type Lister struct {
	lister       TaskLister
	defaultLimit int
}

// NewLister creates a lister; a non-positive defaultLimit uses DefaultListLimit
func NewLister(lister TaskLister, defaultLimit int) *Lister {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	return &Lister{lister: lister, defaultLimit: defaultLimit}
}

// ListTasks returns one page of tasks. A non-positive limit uses the
// default page size.
func (l *Lister) ListTasks(ctx context.Context, skip, limit int) ([]types.Task, error) {
	if skip < 0 {
		return nil, &types.ValidationError{Field: "skip", Input: formatID(int64(skip)), Reason: "skip must not be negative"}
	}
	if limit <= 0 {
		limit = l.defaultLimit
	}
	return l.lister.ListTasks(ctx, skip, limit)
}
