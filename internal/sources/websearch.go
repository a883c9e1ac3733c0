package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// searchEndpoint is a variable so tests can point the adapter at a fake server.
var searchEndpoint = "https://html.duckduckgo.com/html/"

// WebSearchAdapter issues configured queries against the DuckDuckGo HTML
// endpoint and extracts organic results.
type WebSearchAdapter struct {
	cfg       config.WebSearchConfig
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewWebSearchAdapter creates a web-search adapter from the source configuration.
func NewWebSearchAdapter(cfg config.Sources) *WebSearchAdapter {
	return &WebSearchAdapter{
		cfg:       cfg.WebSearch,
		client:    newHTTPClient(cfg.RequestTimeoutDuration()),
		userAgent: cfg.UserAgent,
		log:       logger.Get(),
	}
}

// Name identifies the adapter.
func (a *WebSearchAdapter) Name() string { return "web_search" }

// Fetch runs every configured query and returns results deduplicated by URL
// within and across queries. A failed query is logged and contributes nothing.
func (a *WebSearchAdapter) Fetch(ctx context.Context, lookback time.Duration) ([]core.RawItem, error) {
	queries := a.cfg.Queries
	if len(queries) == 0 {
		a.log.Info("No search queries configured")
		return nil, nil
	}

	maxResults := a.cfg.MaxResultsPerQuery
	if maxResults <= 0 {
		maxResults = 10
	}

	seen := make(map[string]struct{})
	var items []core.RawItem

	for _, query := range queries {
		results, err := a.search(ctx, query, maxResults)
		if err != nil {
			a.log.Warn("Search query failed", "query", query, "error", err.Error())
			continue
		}
		for _, item := range results {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
			items = append(items, item)
		}
	}

	a.log.Info("Web search completed", "total_items", len(items), "queries", len(queries))
	return items, nil
}

func (a *WebSearchAdapter) search(ctx context.Context, query string, maxResults int) ([]core.RawItem, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("df", "d") // past day

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var items []core.RawItem
	doc.Find("a.result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(items) >= maxResults {
			return false
		}

		href, _ := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())

		// Sponsored results carry an ad_provider marker in the redirect
		if strings.Contains(href, "ad_provider") {
			return true
		}

		target := resolveRedirect(href)
		if !strings.HasPrefix(target, "http") {
			return true
		}

		snippet := strings.TrimSpace(sel.Closest(".result").Find(".result__snippet").Text())

		items = append(items, core.RawItem{
			Title:       title,
			URL:         target,
			Source:      "Web Search",
			SourceKind:  core.SourceWebSearch,
			Category:    "news",
			Summary:     snippet,
			PublishedAt: time.Now().UTC(), // search results carry no reliable date
			Metadata:    map[string]string{"query": query},
		})
		return true
	})

	a.log.Debug("Search completed", "query", query, "count", len(items))
	return items, nil
}

// resolveRedirect unwraps DuckDuckGo redirect URLs (the uddg parameter) to
// the real target. Non-wrapped URLs pass through unchanged.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
