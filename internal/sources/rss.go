package sources

import (
	"context"
	"log/slog"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/logger"

	"github.com/mmcdole/gofeed"
)

const rssSummaryLimit = 1000

// RSSAdapter fetches configured RSS/Atom feeds and converts fresh entries to
// raw items.
type RSSAdapter struct {
	feeds     []config.Feed
	parser    *gofeed.Parser
	userAgent string
	log       *slog.Logger
}

// NewRSSAdapter creates a feed adapter from the source configuration.
func NewRSSAdapter(cfg config.Sources) *RSSAdapter {
	parser := gofeed.NewParser()
	parser.Client = newHTTPClient(cfg.RequestTimeoutDuration())
	parser.UserAgent = cfg.UserAgent
	return &RSSAdapter{
		feeds:     cfg.RSS.Feeds,
		parser:    parser,
		userAgent: cfg.UserAgent,
		log:       logger.Get(),
	}
}

// Name identifies the adapter.
func (a *RSSAdapter) Name() string { return "rss" }

// Fetch retrieves all configured feeds. A failure on one feed is logged and
// contributes nothing; the remaining feeds are still fetched.
func (a *RSSAdapter) Fetch(ctx context.Context, lookback time.Duration) ([]core.RawItem, error) {
	if len(a.feeds) == 0 {
		a.log.Info("No RSS feeds configured")
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-lookback)
	var items []core.RawItem

	for _, feed := range a.feeds {
		if feed.URL == "" {
			continue
		}
		fetched, err := a.fetchFeed(ctx, feed, cutoff)
		if err != nil {
			a.log.Warn("Failed to fetch RSS feed", "source", feed.Name, "error", err.Error())
			continue
		}
		items = append(items, fetched...)
	}

	a.log.Info("RSS adapter completed", "total_items", len(items), "feeds", len(a.feeds))
	return items, nil
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, feed config.Feed, cutoff time.Time) ([]core.RawItem, error) {
	parsed, err := a.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, err
	}

	category := feed.Category
	if category == "" {
		category = "news"
	}

	var items []core.RawItem
	for _, entry := range parsed.Items {
		published := entryPublished(entry)
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}
		if entry.Link == "" {
			continue
		}

		title := entry.Title
		if title == "" {
			title = "Untitled"
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, core.RawItem{
			Title:       title,
			URL:         entry.Link,
			Source:      feed.Name,
			SourceKind:  core.SourceRSS,
			Category:    category,
			Summary:     capSummary(stripMarkup(summary), rssSummaryLimit),
			PublishedAt: published,
			Authors:     entryAuthors(entry),
			Tags:        append([]string(nil), entry.Categories...),
			Metadata:    map[string]string{"feed_url": feed.URL},
		})
	}

	a.log.Debug("Fetched RSS feed", "source", feed.Name, "count", len(items))
	return items, nil
}

// entryPublished picks the best available timestamp for a feed entry.
// A missing date yields the zero time, never an error.
func entryPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// entryAuthors extracts author names defensively; absent fields yield an
// empty list.
func entryAuthors(entry *gofeed.Item) []string {
	var authors []string
	for _, author := range entry.Authors {
		if author != nil && author.Name != "" {
			authors = append(authors, author.Name)
		}
	}
	if len(authors) == 0 && entry.Author != nil && entry.Author.Name != "" {
		authors = append(authors, entry.Author.Name)
	}
	return authors
}
