package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/Nexora-Open-Source/scrape-monitor/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// MaxBatchURLs caps how many URLs one batch may queue
const MaxBatchURLs = 500

// BatchRequest is the body of POST /batches. Links read from feed_urls are
// merged with urls, duplicates removed.
type BatchRequest struct {
	FeedURLs []string `json:"feed_urls,omitempty"`
	URLs     []string `json:"urls,omitempty"`
}

// RejectedURL is a URL that could not be queued
type RejectedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchResponse describes a queued batch
type BatchResponse struct {
	BatchID  string              `json:"batch_id"`
	Queued   int                 `json:"queued"`
	JobIDs   []string            `json:"job_ids"`
	Rejected []RejectedURL       `json:"rejected,omitempty"`
	Feeds    []source.FeedResult `json:"feeds,omitempty"`
}

// @Summary Submit a batch of URLs
// @Description Reads links from the given feeds, merges them with the explicit URLs and queues a scraping task for each. Batch tasks are created but not tracked.
// @Tags Batches
// @Accept json
// @Produce json
// @Param request body BatchRequest true "Feeds and URLs to submit"
// @Success 202 {object} BatchResponse "Batch queued"
// @Failure 400 {object} middleware.APIError "Empty or oversized batch"
// @Failure 429 {object} middleware.APIError "Queue is full"
// @Router /batches [post]
func (h *Handler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), requestID)
		return
	}

	var feeds []source.FeedResult
	if len(req.FeedURLs) > 0 {
		feeds = h.Feeds.Collect(r.Context(), req.FeedURLs)
	}

	explicit := source.FeedResult{Links: trimmed(req.URLs)}
	links := source.UniqueLinks(append([]source.FeedResult{explicit}, feeds...))
	if len(links) == 0 {
		middleware.RespondBadRequest(w, fmt.Errorf("batch contains no urls"), requestID)
		return
	}
	if len(links) > MaxBatchURLs {
		middleware.RespondBadRequest(w, fmt.Errorf("batch contains %d urls, at most %d allowed", len(links), MaxBatchURLs), requestID)
		return
	}

	resp := BatchResponse{
		BatchID: "batch_" + utils.RandomString(12),
		JobIDs:  make([]string, 0, len(links)),
		Feeds:   feeds,
	}
	for _, link := range links {
		jobID, err := h.BatchProcessor.SubmitJob(resp.BatchID, link, requestID)
		if err != nil {
			resp.Rejected = append(resp.Rejected, RejectedURL{URL: link, Error: err.Error()})
			continue
		}
		resp.JobIDs = append(resp.JobIDs, jobID)
	}
	resp.Queued = len(resp.JobIDs)

	fields := logrus.Fields{
		"request_id": requestID,
		"batch_id":   resp.BatchID,
		"queued":     resp.Queued,
		"rejected":   len(resp.Rejected),
		"feeds":      len(feeds),
	}
	if resp.Queued == 0 {
		h.Logger.WithFields(fields).Warn("Batch rejected")
		middleware.RespondRateLimited(w, fmt.Errorf("no urls could be queued"), requestID)
		return
	}
	h.Logger.WithFields(fields).Info("Batch queued")

	writeJSON(w, http.StatusAccepted, resp)
}

// @Summary Get batch progress
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} types.BatchSummary "Batch progress"
// @Failure 404 {object} middleware.APIError "Batch not found"
// @Router /batches/{id} [get]
func (h *Handler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["id"]
	summary, ok := h.BatchProcessor.GetBatch(batchID)
	if !ok {
		middleware.RespondNotFound(w, fmt.Errorf("batch %s not found", batchID), middleware.RequestID(r))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func trimmed(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
