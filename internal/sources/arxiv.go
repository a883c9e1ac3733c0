package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/logger"
)

const arxivSummaryLimit = 1500

// arxivAPIURL is a variable so tests can point the adapter at a fake server.
var arxivAPIURL = "https://export.arxiv.org/api/query"

// ArxivAdapter fetches recent papers from the arXiv API for the configured
// categories.
type ArxivAdapter struct {
	cfg       config.ArxivConfig
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewArxivAdapter creates an academic-index adapter from the source configuration.
func NewArxivAdapter(cfg config.Sources) *ArxivAdapter {
	return &ArxivAdapter{
		cfg:       cfg.Arxiv,
		client:    newHTTPClient(cfg.RequestTimeoutDuration()),
		userAgent: cfg.UserAgent,
		log:       logger.Get(),
	}
}

// Name identifies the adapter.
func (a *ArxivAdapter) Name() string { return "arxiv" }

// Atom feed shapes for the arXiv API response. Typed link attributes are
// needed to prefer the PDF link, which is why this is parsed directly.
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
}

// Fetch queries the arXiv API with a category-OR query sorted by recency and
// returns fresh entries.
func (a *ArxivAdapter) Fetch(ctx context.Context, lookback time.Duration) ([]core.RawItem, error) {
	categories := a.cfg.Categories
	if len(categories) == 0 {
		categories = []string{"cs.AI", "cs.LG", "cs.CL"}
	}
	maxResults := a.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	catQuery := make([]string, 0, len(categories))
	for _, cat := range categories {
		catQuery = append(catQuery, "cat:"+cat)
	}

	params := url.Values{}
	params.Set("search_query", strings.Join(catQuery, " OR "))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode atom feed: %w", err)
	}

	cutoff := time.Now().UTC().Add(-lookback)
	var items []core.RawItem

	for _, entry := range feed.Entries {
		published, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published))
		if err != nil {
			continue
		}
		published = published.UTC()
		if published.Before(cutoff) {
			continue
		}

		title := strings.TrimSpace(whitespaceExpr.ReplaceAllString(entry.Title, " "))
		summary := strings.TrimSpace(whitespaceExpr.ReplaceAllString(entry.Summary, " "))

		authors := make([]string, 0, len(entry.Authors))
		for _, author := range entry.Authors {
			if author.Name != "" {
				authors = append(authors, author.Name)
			}
		}

		tags := make([]string, 0, len(entry.Categories))
		for _, cat := range entry.Categories {
			if cat.Term != "" {
				tags = append(tags, cat.Term)
			}
		}

		// Prefer the typed PDF link over the abstract page when present
		pdfURL := entry.ID
		for _, link := range entry.Links {
			if link.Type == "application/pdf" && link.Href != "" {
				pdfURL = link.Href
				break
			}
		}

		arxivID := entry.ID
		if idx := strings.Index(arxivID, "/abs/"); idx >= 0 {
			arxivID = arxivID[idx+len("/abs/"):]
		}

		items = append(items, core.RawItem{
			Title:       title,
			URL:         entry.ID,
			Source:      "arXiv",
			SourceKind:  core.SourceArxiv,
			Category:    "research",
			Summary:     capSummary(summary, arxivSummaryLimit),
			PublishedAt: published,
			Authors:     authors,
			Tags:        tags,
			Metadata: map[string]string{
				"primary_category": entry.PrimaryCategory.Term,
				"pdf_url":          pdfURL,
				"arxiv_id":         arxivID,
			},
		})
	}

	a.log.Info("arXiv fetch completed", "count", len(items), "categories", len(categories))
	return items, nil
}
