package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPError reports a non-success answer from the backend
type HTTPError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// ResponseTooLargeError reports that the response body exceeded the limit
type ResponseTooLargeError struct {
	Limit int64
}

func (e ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeded limit of %d bytes", e.Limit)
}

// ReadAllWithLimit reads r up to limit bytes. A non-positive limit reads
// everything.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	lr := &io.LimitedReader{R: r, N: limit + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ResponseTooLargeError{Limit: limit}
	}
	return data, nil
}

// parseDetail extracts the backend's {"detail": ...} message. Validation
// failures carry a list of objects; those are kept as raw JSON.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return detail
	}
	return string(envelope.Detail)
}
