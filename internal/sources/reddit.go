package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/logger"
)

const redditSummaryLimit = 500

// redditBaseURL is a variable so tests can point the adapter at a fake server.
var redditBaseURL = "https://www.reddit.com"

// RedditAdapter fetches ranked subreddit listings via the public JSON API.
type RedditAdapter struct {
	subreddits []config.Subreddit
	client     *http.Client
	userAgent  string
	log        *slog.Logger
}

// NewRedditAdapter creates a community-post adapter from the source configuration.
func NewRedditAdapter(cfg config.Sources) *RedditAdapter {
	return &RedditAdapter{
		subreddits: cfg.Reddit.Subreddits,
		client:     newHTTPClient(cfg.RequestTimeoutDuration()),
		userAgent:  cfg.UserAgent,
		log:        logger.Get(),
	}
}

// Name identifies the adapter.
func (a *RedditAdapter) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Selftext      string  `json:"selftext"`
	Author        string  `json:"author"`
	CreatedUTC    float64 `json:"created_utc"`
	Stickied      bool    `json:"stickied"`
	IsSelf        bool    `json:"is_self"`
	Score         float64 `json:"score"`
	NumComments   int     `json:"num_comments"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	LinkFlairText string  `json:"link_flair_text"`
}

// Fetch retrieves all configured subreddits and returns the merged listing
// sorted by engagement score descending. One failed subreddit contributes
// nothing; the rest are still fetched.
func (a *RedditAdapter) Fetch(ctx context.Context, lookback time.Duration) ([]core.RawItem, error) {
	if len(a.subreddits) == 0 {
		a.log.Info("No subreddits configured")
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-lookback)
	var items []core.RawItem

	for _, sub := range a.subreddits {
		fetched, err := a.fetchSubreddit(ctx, sub, cutoff)
		if err != nil {
			a.log.Warn("Failed to fetch subreddit", "subreddit", sub.Name, "error", err.Error())
			continue
		}
		items = append(items, fetched...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Engagement > items[j].Engagement
	})

	a.log.Info("Reddit adapter completed", "total_items", len(items), "subreddits", len(a.subreddits))
	return items, nil
}

func (a *RedditAdapter) fetchSubreddit(ctx context.Context, sub config.Subreddit, cutoff time.Time) ([]core.RawItem, error) {
	if sub.Name == "" {
		return nil, nil
	}
	sortOrder := sub.Sort
	if sortOrder == "" {
		sortOrder = "hot"
	}
	limit := sub.Limit
	if limit <= 0 {
		limit = 25
	}

	listingURL := fmt.Sprintf("%s/r/%s/%s.json", redditBaseURL, url.PathEscape(sub.Name), sortOrder)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	var items []core.RawItem
	for _, child := range listing.Data.Children {
		post := child.Data

		// Pinned posts are usually mod announcements
		if post.Stickied {
			continue
		}

		var published time.Time
		if post.CreatedUTC > 0 {
			published = time.Unix(int64(post.CreatedUTC), 0).UTC()
			if published.Before(cutoff) {
				continue
			}
		}

		permalink := redditBaseURL + post.Permalink

		// Self posts link to the discussion; link posts point at the external URL
		finalURL := permalink
		if !post.IsSelf && post.URL != "" {
			finalURL = post.URL
		}

		title := post.Title
		if title == "" {
			title = "Untitled"
		}

		summary := capSummary(post.Selftext, redditSummaryLimit)
		if summary == "" {
			summary = fmt.Sprintf("Reddit post with %d comments", post.NumComments)
		}

		var tags []string
		if post.LinkFlairText != "" {
			tags = []string{post.LinkFlairText}
		}

		var authors []string
		if post.Author != "" {
			authors = []string{post.Author}
		}

		items = append(items, core.RawItem{
			Title:       title,
			URL:         finalURL,
			Source:      "r/" + sub.Name,
			SourceKind:  core.SourceReddit,
			Category:    "discussion",
			Summary:     summary,
			PublishedAt: published,
			Authors:     authors,
			Tags:        tags,
			Engagement:  post.Score,
			Metadata: map[string]string{
				"subreddit":    sub.Name,
				"permalink":    permalink,
				"num_comments": strconv.Itoa(post.NumComments),
			},
		})
	}

	a.log.Debug("Fetched subreddit", "subreddit", sub.Name, "count", len(items))
	return items, nil
}
