// Package sources provides the source adapters that collect candidate content
// items from external systems, and the manager that merges their output into
// deduplicated candidate topics.
package sources

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"curateai/internal/core"

	"github.com/PuerkitoBio/goquery"
)

// Adapter fetches raw items from one external source within a lookback
// window. Implementations isolate per-unit failures (one feed, one query, one
// subreddit) internally: a failed unit contributes nothing and never aborts
// the adapter.
type Adapter interface {
	// Name identifies the adapter in logs and merge ordering.
	Name() string

	// Fetch returns items published within the lookback window. A fully
	// failed adapter returns an empty slice and an error; the manager treats
	// that the same as "produced nothing".
	Fetch(ctx context.Context, lookback time.Duration) ([]core.RawItem, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

var whitespaceExpr = regexp.MustCompile(`\s+`)

// stripMarkup removes HTML tags from a summary fragment and collapses
// whitespace. Unparseable input falls back to the raw text.
func stripMarkup(s string) string {
	if s == "" {
		return ""
	}
	text := s
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		text = doc.Text()
	}
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}

// capSummary truncates a summary to the adapter's length limit. The limit
// counts runes, so a multi-byte character is never split.
func capSummary(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
