package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
)

// DefaultArchiveLimit is used when no limit is given
const DefaultArchiveLimit = 50

// @Summary List archived outcomes
// @Description Lists outcomes of tracked tasks, most recent first.
// @Tags Archive
// @Produce json
// @Param limit query int false "Number of records to return (default: 50)"
// @Success 200 {array} archive.Record "Archived outcomes"
// @Failure 400 {object} middleware.APIError "Invalid limit"
// @Failure 500 {object} middleware.APIError "Archive unavailable"
// @Router /archive [get]
func (h *Handler) HandleListArchive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	limit, err := queryInt(r, "limit", DefaultArchiveLimit)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}
	if limit <= 0 {
		limit = DefaultArchiveLimit
	}

	records, err := h.Archive.List(r.Context(), limit)
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}
	if records == nil {
		records = []*archive.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// @Summary Get an archived outcome
// @Tags Archive
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} archive.Record "Archived outcome"
// @Failure 400 {object} middleware.APIError "Invalid task id"
// @Failure 404 {object} middleware.APIError "No outcome archived for the task"
// @Router /archive/{id} [get]
func (h *Handler) HandleGetArchive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	taskID, err := pathID(r)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}

	record, err := h.Archive.Get(r.Context(), taskID)
	if errors.Is(err, archive.ErrNotFound) {
		middleware.RespondNotFound(w, fmt.Errorf("no outcome archived for task %d", taskID), requestID)
		return
	}
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
