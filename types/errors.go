package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lifecycle failures for callers and the HTTP layer
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindSubmission   ErrorKind = "submission"
	KindPolling      ErrorKind = "polling"
	KindTaskFailed   ErrorKind = "task_failed"
	KindResultFetch  ErrorKind = "result_fetch"
	KindEmptyResults ErrorKind = "empty_results"
	KindProtocol     ErrorKind = "protocol"
	KindUnknown      ErrorKind = "unknown"
)

// ErrEmptyResults is returned when a task completed without a result record
var ErrEmptyResults = errors.New("task completed but produced no results")

// ValidationError reports input rejected before any request was sent
type ValidationError struct {
	Field  string // defaults to "url"
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	field := e.Field
	if field == "" {
		field = "url"
	}
	return fmt.Sprintf("invalid %s %q: %s", field, e.Input, e.Reason)
}

// SubmissionError wraps a transport failure while creating a task
type SubmissionError struct {
	URL string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit %s for scraping: %v", e.URL, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollingError wraps a transport failure during a status check. It ends
// the polling session.
type PollingError struct {
	TaskID int64
	Err    error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("failed to check status of task %d: %v", e.TaskID, e.Err)
}

func (e *PollingError) Unwrap() error {
	return e.Err
}

// TaskFailedError reports that the backend marked the task as failed
type TaskFailedError struct {
	TaskID  int64
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return "scraping failed"
	}
	return "scraping failed: " + e.Message
}

// ResultFetchError wraps a transport failure while retrieving results
type ResultFetchError struct {
	TaskID int64
	Err    error
}

func (e *ResultFetchError) Error() string {
	return fmt.Sprintf("failed to fetch results of task %d: %v", e.TaskID, e.Err)
}

func (e *ResultFetchError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response that does not match the expected contract
type ProtocolError struct {
	Field string
	Value string
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected %s value %s: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("unexpected %s value %q", e.Field, e.Value)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost classified error in err's
// chain. Joined errors are searched in order.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if kind := kindOf(err); kind != "" {
		return kind
	}
	return KindUnknown
}

func kindOf(err error) ErrorKind {
	for err != nil {
		switch err.(type) {
		case *ValidationError:
			return KindValidation
		case *SubmissionError:
			return KindSubmission
		case *PollingError:
			return KindPolling
		case *TaskFailedError:
			return KindTaskFailed
		case *ResultFetchError:
			return KindResultFetch
		case *ProtocolError:
			return KindProtocol
		}
		if err == ErrEmptyResults {
			return KindEmptyResults
		}

		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				if kind := kindOf(inner); kind != "" {
					return kind
				}
			}
			return ""
		default:
			err = errors.Unwrap(err)
		}
	}
	return ""
}
