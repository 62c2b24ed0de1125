// Package feed serves the feed sources a batch can be built from
package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/sirupsen/logrus"
)

// DefaultSourcesFile is read when no sources file is configured
const DefaultSourcesFile = "data/feeds.json"

// FeedSource represents a predefined feed
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultSources are served when the sources file does not exist
var DefaultSources = []FeedSource{
	{Name: "BBC News", URL: "http://feeds.bbci.co.uk/news/rss.xml"},
	{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
	{Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
}

// Handler contains dependencies for feed handlers
type Handler struct {
	SourcesFile string
	Logger      *logrus.Logger
}

// NewHandler creates a new feed handler
func NewHandler(sourcesFile string, logger *logrus.Logger) *Handler {
	if sourcesFile == "" {
		sourcesFile = DefaultSourcesFile
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{SourcesFile: sourcesFile, Logger: logger}
}

// @Summary List feed sources
// @Description Returns the predefined feeds whose URLs can be passed as feed_urls to POST /batches.
// @Tags Feeds
// @Produce json
// @Success 200 {array} FeedSource "Feed sources"
// @Failure 500 {object} middleware.APIError "Sources file unreadable"
// @Router /feeds [get]
func (h *Handler) HandleGetFeeds(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r)

	feeds, err := LoadSources(h.SourcesFile)
	if err != nil {
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"file":       h.SourcesFile,
			"error":      err.Error(),
		}).Error("Failed to load feed sources")
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"feeds_count": len(feeds),
	}).Debug("Feed sources retrieved")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(feeds)
}

// LoadSources reads feed sources from a JSON array file. A missing file
// yields DefaultSources.
func LoadSources(path string) ([]FeedSource, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed sources: %w", err)
	}

	var feeds []FeedSource
	if err := json.Unmarshal(data, &feeds); err != nil {
		return nil, fmt.Errorf("parse feed sources %s: %w", path, err)
	}
	for i, feed := range feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return nil, fmt.Errorf("feed source %d has no url", i)
		}
	}
	return feeds, nil
}
