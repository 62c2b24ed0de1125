/*
Package utils provides helper functions for the scrape monitor.
*/
package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRequestID generates a unique request ID of the form
// <yyyymmddhhmmss>-<8 hex chars>
func GenerateRequestID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + RandomString(8)
}

// RandomString returns length random hex characters
func RandomString(length int) string {
	var b strings.Builder
	for b.Len() < length {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:length]
}

// RequestIDOrNew returns id when set and a fresh request ID otherwise
func RequestIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return GenerateRequestID()
}
