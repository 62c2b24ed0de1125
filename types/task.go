// Package types contains the entities exchanged with the scraping backend
// and shared across the scrape monitor.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a remote scraping task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps a wire value onto the closed set of task statuses.
// Unknown values are reported as a ProtocolError rather than defaulted.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return Status(raw), nil
	}
	return "", &ProtocolError{Field: "status", Value: raw}
}

// UnmarshalJSON validates the status at the transport boundary
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ProtocolError{Field: "status", Value: string(data), Err: err}
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses along the lifecycle. Both terminal states share
// the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Timestamp accepts both RFC3339 and the zone-less ISO format the backend
// emits for UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses a JSON string timestamp; null leaves the zero value
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON always writes RFC3339 in UTC
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Task represents a unit of remote scraping work
type Task struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Status       Status     `json:"status"`
	CreatedAt    Timestamp  `json:"created_at"`
	CompletedAt  *Timestamp `json:"completed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// StatusResponse is the lightweight payload returned by a status check
type StatusResponse struct {
	ID           int64   `json:"id"`
	Status       Status  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Message returns the error message or an empty string
func (s *StatusResponse) Message() string {
	if s == nil || s.ErrorMessage == nil {
		return ""
	}
	return *s.ErrorMessage
}

// Content is the structured data extracted from a scraped page
type Content struct {
	Title           string   `json:"title"`
	MetaDescription *string  `json:"meta_description,omitempty"`
	URL             string   `json:"url"`
	LinksCount      int      `json:"links_count"`
	ImagesCount     int      `json:"images_count"`
	Links           []string `json:"links"`
	Images          []string `json:"images"`
}

// Result is the output a completed task produced
type Result struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	Content     Content   `json:"content"`
	HTMLContent *string   `json:"html_content,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// TaskWithResults is a task together with every result recorded for it
type TaskWithResults struct {
	Task
	Results []Result `json:"results"`
}
