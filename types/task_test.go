package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "pending", want: StatusPending},
		{raw: "in_progress", want: StatusInProgress},
		{raw: "completed", want: StatusCompleted},
		{raw: "failed", want: StatusFailed},
		{raw: "PENDING", wantErr: true},
		{raw: "processing", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				var protocolErr *ProtocolError
				require.ErrorAs(t, err, &protocolErr)
				assert.Equal(t, "status", protocolErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusPending.Rank(), StatusInProgress.Rank())
	assert.Less(t, StatusInProgress.Rank(), StatusCompleted.Rank())
	assert.Equal(t, StatusCompleted.Rank(), StatusFailed.Rank())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
}

func TestStatusResponseRejectsUnknownStatus(t *testing.T) {
	var resp StatusResponse
	err := json.Unmarshal([]byte(`{"id": 3, "status": "queued"}`), &resp)

	var protocolErr *ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "queued", protocolErr.Value)
}

func TestTaskWithResultsDecodesBackendPayload(t *testing.T) {
	payload := `{
		"id": 1,
		"url": "https://example.com",
		"status": "completed",
		"created_at": "2025-03-01T10:00:00.123456",
		"completed_at": "2025-03-01T10:00:05Z",
		"error_message": null,
		"results": [{
			"id": 7,
			"task_id": 1,
			"content": {
				"title": "Example Domain",
				"meta_description": "",
				"url": "https://example.com",
				"links_count": 1,
				"images_count": 0,
				"links": ["https://www.iana.org/domains/example"],
				"images": []
			},
			"html_content": "<html></html>",
			"created_at": "2025-03-01T10:00:05"
		}]
	}`

	var task TaskWithResults
	require.NoError(t, json.Unmarshal([]byte(payload), &task))

	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Nil(t, task.ErrorMessage)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC), task.CreatedAt.Time)
	require.Len(t, task.Results, 1)
	assert.Equal(t, "Example Domain", task.Results[0].Content.Title)
	assert.Equal(t, 1, task.Results[0].Content.LinksCount)
}

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Input: "x", Reason: "missing scheme"}, KindValidation},
		{"submission", &SubmissionError{URL: "https://example.com", Err: cause}, KindSubmission},
		{"polling", &PollingError{TaskID: 1, Err: cause}, KindPolling},
		{"task failed", &TaskFailedError{TaskID: 1, Message: "timeout"}, KindTaskFailed},
		{"result fetch", &ResultFetchError{TaskID: 1, Err: cause}, KindResultFetch},
		{"empty results", fmt.Errorf("task 1: %w", ErrEmptyResults), KindEmptyResults},
		{"protocol", &ProtocolError{Field: "status", Value: "queued"}, KindProtocol},
		{"unknown", cause, KindUnknown},
		{"outermost wins", &SubmissionError{URL: "x", Err: &ValidationError{Input: "x"}}, KindSubmission},
		{"protocol inside fetch", &ResultFetchError{TaskID: 1, Err: &ProtocolError{Field: "response"}}, KindResultFetch},
		{"wrapped with context", fmt.Errorf("submit: %w", &PollingError{TaskID: 1, Err: cause}), KindPolling},
		{"joined", errors.Join(cause, &TaskFailedError{TaskID: 1}), KindTaskFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestTaskFailedErrorMessage(t *testing.T) {
	assert.Equal(t, "scraping failed: timeout after 30s", (&TaskFailedError{Message: "timeout after 30s"}).Error())
	assert.Equal(t, "scraping failed", (&TaskFailedError{}).Error())
}
