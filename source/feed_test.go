package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <link>https://news.example.com</link>
    <item><title>First</title><link>https://news.example.com/first</link></item>
    <item><title>Second</title><link> https://news.example.com/second </link></item>
    <item><title>Duplicate</title><link>https://news.example.com/first</link></item>
    <item><title>No link</title></item>
  </channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Blog</title>
  <entry><title>Post</title><link href="https://blog.example.com/post"/></entry>
  <entry><title>Again</title><link href="https://news.example.com/second"/></entry>
</feed>`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestParseLinks(t *testing.T) {
	links, err := ParseLinks(strings.NewReader(rssFeed))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://news.example.com/first", "https://news.example.com/second"}, links)

	_, err = ParseLinks(strings.NewReader("not a feed"))
	assert.Error(t, err)
}

func TestCollectKeepsOrderAndReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			w.Write([]byte(rssFeed))
		case "/atom":
			w.Write([]byte(atomFeed))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	reader := NewReader(server.Client(), 2, quietLogger())
	results := reader.Collect(context.Background(), []string{
		server.URL + "/rss",
		server.URL + "/missing",
		server.URL + "/atom",
	})

	require.Len(t, results, 3)
	assert.Equal(t, "Example News", results[0].Title)
	assert.Len(t, results[0].Links, 2)
	assert.Error(t, results[1].Err)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].Links)
	assert.Equal(t, "Example Blog", results[2].Title)

	assert.Equal(t, []string{
		"https://news.example.com/first",
		"https://news.example.com/second",
		"https://blog.example.com/post",
	}, UniqueLinks(results))
}
