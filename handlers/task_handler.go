package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ScrapeRequest is the body of POST /scrape
type ScrapeRequest struct {
	URL string `json:"url" example:"https://example.com"`
}

// ScrapeResponse is returned once a task has been created and tracking started
type ScrapeResponse struct {
	Task     *types.Task        `json:"task"`
	Tracking lifecycle.Snapshot `json:"tracking"`
}

// TrackRequest is the body of PUT /tracked; a null task_id stops tracking
type TrackRequest struct {
	TaskID *int64 `json:"task_id"`
}

// @Summary Submit a URL for scraping
// @Description Validates the URL, creates a scraping task on the backend and starts tracking it.
// @Tags Tasks
// @Accept json
// @Produce json
// @Param request body ScrapeRequest true "URL to scrape"
// @Success 202 {object} ScrapeResponse "Task created and tracked"
// @Failure 400 {object} middleware.APIError "Invalid URL"
// @Failure 502 {object} middleware.APIError "Backend unavailable"
// @Router /scrape [post]
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), requestID)
		return
	}

	task, err := h.Tracker.Submit(r.Context(), req.URL)
	if err != nil {
		middleware.RespondError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"task_id":    task.ID,
		"url":        task.URL,
	}).Info("Task submitted and tracked")

	writeJSON(w, http.StatusAccepted, ScrapeResponse{Task: task, Tracking: h.Tracker.Snapshot()})
}

// @Summary Get the tracked task
// @Description Returns the phase, last known status, result and error of the tracked task.
// @Tags Tracking
// @Produce json
// @Success 200 {object} lifecycle.Snapshot "Current tracking state"
// @Router /tracked [get]
func (h *Handler) HandleGetTracked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Tracker.Snapshot())
}

// @Summary Change the tracked task
// @Description Cancels polling of the current task and starts tracking task_id. A null task_id stops tracking.
// @Tags Tracking
// @Accept json
// @Produce json
// @Param request body TrackRequest true "Task to track"
// @Success 200 {object} lifecycle.Snapshot "New tracking state"
// @Failure 400 {object} middleware.APIError "Invalid request"
// @Router /tracked [put]
func (h *Handler) HandleSetTracked(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), requestID)
		return
	}
	if req.TaskID != nil && *req.TaskID <= 0 {
		middleware.RespondValidationError(w, fmt.Errorf("task_id must be positive"), requestID)
		return
	}

	if err := h.Tracker.SetTrackedTask(req.TaskID); err != nil {
		middleware.RespondError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, h.Tracker.Snapshot())
}

// @Summary Stop tracking
// @Tags Tracking
// @Produce json
// @Success 200 {object} lifecycle.Snapshot "Idle tracking state"
// @Router /tracked [delete]
func (h *Handler) HandleClearTracked(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.SetTrackedTask(nil); err != nil {
		middleware.RespondError(w, err, middleware.RequestID(r))
		return
	}
	writeJSON(w, http.StatusOK, h.Tracker.Snapshot())
}

// @Summary List tasks
// @Description Lists backend tasks in backend order.
// @Tags Tasks
// @Produce json
// @Param skip query int false "Number of tasks to skip (default: 0)"
// @Param limit query int false "Number of tasks to return (default: 100)"
// @Success 200 {array} types.Task "Tasks"
// @Failure 400 {object} middleware.APIError "Invalid paging"
// @Failure 502 {object} middleware.APIError "Backend unavailable"
// @Router /tasks [get]
func (h *Handler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}

	tasks, err := h.Tasks.ListTasks(r.Context(), skip, limit)
	if err != nil {
		middleware.RespondError(w, err, requestID)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(tasks)))
	writeJSON(w, http.StatusOK, tasks)
}

// @Summary Get a task result
// @Description Returns the first result of a completed task. Cached results are served unless refresh=true.
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Param refresh query bool false "Bypass the result cache"
// @Success 200 {object} types.Result "Task result"
// @Failure 400 {object} middleware.APIError "Invalid task id"
// @Failure 404 {object} middleware.APIError "Task or result not found"
// @Failure 502 {object} middleware.APIError "Backend unavailable"
// @Router /tasks/{id}/result [get]
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	taskID, err := pathID(r)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}

	var result *types.Result
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		result, err = h.Results.Refetch(r.Context(), taskID)
	} else {
		result, err = h.Results.FetchResult(r.Context(), taskID)
	}
	if err != nil {
		middleware.RespondError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %v", name, err)
	}
	return value, nil
}
