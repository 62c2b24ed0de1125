/*
Package source turns RSS and Atom feeds into page URLs to submit for
scraping.
*/
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many feeds are read at once
const DefaultConcurrency = 4

// FeedResult holds the links read from one feed
type FeedResult struct {
	FeedURL string   `json:"feed_url"`
	Title   string   `json:"title,omitempty"`
	Links   []string `json:"links"`
	Error   string   `json:"error,omitempty"`

	Err error `json:"-"`
}

// Reader fetches feeds over HTTP
type Reader struct {
	client      *http.Client
	concurrency int
	logger      *logrus.Logger
}

// NewReader creates a feed reader; a nil client uses a 10 second timeout
func NewReader(client *http.Client, concurrency int, logger *logrus.Logger) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reader{client: client, concurrency: concurrency, logger: logger}
}

// FeedLinks fetches feedURL and returns the item links it lists
func (r *Reader) FeedLinks(ctx context.Context, feedURL string) (*FeedResult, error) {
	parser := gofeed.NewParser()
	parser.Client = r.client

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", feedURL, err)
	}
	return &FeedResult{FeedURL: feedURL, Title: strings.TrimSpace(feed.Title), Links: itemLinks(feed)}, nil
}

// ParseLinks parses a feed document and returns its item links
func ParseLinks(body io.Reader) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, err
	}
	return itemLinks(feed), nil
}

// Collect reads every feed, at most the reader's concurrency at a time.
// A feed that cannot be read is reported in its FeedResult and does not
// stop the others. Results keep the order of feedURLs.
func (r *Reader) Collect(ctx context.Context, feedURLs []string) []FeedResult {
	results := make([]FeedResult, len(feedURLs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, feedURL := range feedURLs {
		g.Go(func() error {
			result, err := r.FeedLinks(ctx, feedURL)
			if err != nil {
				r.logger.WithFields(logrus.Fields{
					"feed_url": feedURL,
					"error":    err.Error(),
				}).Warn("Failed to read feed")
				results[i] = FeedResult{FeedURL: feedURL, Links: []string{}, Error: err.Error(), Err: err}
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	g.Wait()

	return results
}

// UniqueLinks flattens results into distinct links in first-seen order
func UniqueLinks(results []FeedResult) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, result := range results {
		for _, link := range result.Links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	return links
}

func itemLinks(feed *gofeed.Feed) []string {
	seen := make(map[string]struct{}, len(feed.Items))
	links := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}
