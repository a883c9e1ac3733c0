// Package curation collects supporting assets for accepted angles by
// inspecting their topics' source pages: figures embedded in the page, a
// repository README when the source is a GitHub repo, and always the source
// link itself.
package curation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"curateai/internal/core"
	"curateai/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// maxFiguresPerSource caps the figures extracted from one page.
const maxFiguresPerSource = 3

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".webp": true,
}

// githubRawBase is a package variable so tests can point README fetches at a
// local server.
var githubRawBase = "https://raw.githubusercontent.com"

// Curator fetches source pages and extracts supporting assets from them.
type Curator struct {
	httpClient *http.Client
	log        *slog.Logger
}

// NewCurator creates a curator with the given per-request timeout.
func NewCurator(timeout time.Duration) *Curator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Curator{
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Get(),
	}
}

// Curate collects assets for each angle from its topic's source URL and
// returns them keyed by angle ID. Extraction failures are isolated per angle:
// a page that cannot be fetched still contributes the source link itself. An
// angle whose topic has no URL gets no assets.
func (c *Curator) Curate(ctx context.Context, angles []core.InsightAngle, sourceURLs map[string]string) map[string][]core.CuratedAsset {
	result := make(map[string][]core.CuratedAsset, len(angles))

	for _, angle := range angles {
		sourceURL := sourceURLs[angle.TopicID]
		if sourceURL == "" {
			result[angle.ID] = nil
			continue
		}

		assets := c.extractFigures(ctx, sourceURL)
		if strings.Contains(sourceURL, "github.com") {
			if readme := c.fetchGitHubReadme(ctx, sourceURL); readme != nil {
				assets = append(assets, *readme)
			}
		}

		// The source itself is always worth linking
		assets = append(assets, core.CuratedAsset{
			URL:         sourceURL,
			Kind:        core.AssetLink,
			Description: "Original source",
		})

		result[angle.ID] = assets
		c.log.Debug("Curated assets for angle", "angle_id", angle.ID, "assets", len(assets))
	}

	return result
}

// extractFigures fetches the page and collects image URLs with recognized
// extensions, resolved against the page URL.
func (c *Curator) extractFigures(ctx context.Context, pageURL string) []core.CuratedAsset {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Failed to fetch source page for assets", "url", pageURL, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Source page returned non-success status", "url", pageURL, "status", resp.StatusCode)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	var assets []core.CuratedAsset
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		ref, err := url.Parse(src)
		if err != nil || !imageExtensions[strings.ToLower(path.Ext(ref.Path))] {
			return true
		}

		description := strings.TrimSpace(sel.AttrOr("alt", ""))
		if description == "" {
			description = "Figure from source"
		}

		assets = append(assets, core.CuratedAsset{
			URL:         base.ResolveReference(ref).String(),
			Kind:        core.AssetFigure,
			Description: description,
			SourceTitle: pageURL,
		})
		return len(assets) < maxFiguresPerSource
	})

	return assets
}

// fetchGitHubReadme resolves a github.com repository URL to its raw README,
// trying the main branch and falling back to master.
func (c *Curator) fetchGitHubReadme(ctx context.Context, repoURL string) *core.CuratedAsset {
	parsed, err := url.Parse(repoURL)
	if err != nil || !strings.Contains(parsed.Host, "github.com") {
		return nil
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}
	owner, repo := parts[0], parts[1]

	for _, branch := range []string{"main", "master"} {
		readmeURL := fmt.Sprintf("%s/%s/%s/%s/README.md", githubRawBase, owner, repo, branch)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, readmeURL, nil)
		if err != nil {
			return nil
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("Failed to fetch repository README", "url", readmeURL, "error", err.Error())
			return nil
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return &core.CuratedAsset{
				URL:         readmeURL,
				Kind:        core.AssetReadme,
				Description: fmt.Sprintf("README for %s/%s", owner, repo),
				SourceTitle: owner + "/" + repo,
			}
		}
	}
	return nil
}
