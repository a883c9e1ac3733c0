package sources

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/logger"

	"github.com/google/uuid"
)

// Manager runs all source adapters concurrently and merges their output into
// deduplicated candidate topics. Adapters are merged in their declared order,
// not completion order, so first-occurrence-wins dedup is reproducible across
// runs.
type Manager struct {
	adapters []Adapter
	log      *slog.Logger
}

// NewManager wires the four standard adapters from the source configuration.
// Disabled adapters are omitted entirely.
func NewManager(cfg config.Sources) *Manager {
	var adapters []Adapter
	if cfg.RSS.Enabled {
		adapters = append(adapters, NewRSSAdapter(cfg))
	}
	if cfg.Reddit.Enabled {
		adapters = append(adapters, NewRedditAdapter(cfg))
	}
	if cfg.WebSearch.Enabled {
		adapters = append(adapters, NewWebSearchAdapter(cfg))
	}
	if cfg.Arxiv.Enabled {
		adapters = append(adapters, NewArxivAdapter(cfg))
	}
	return NewManagerWithAdapters(adapters...)
}

// NewManagerWithAdapters creates a manager over an explicit adapter list.
// The list order is the merge priority order.
func NewManagerWithAdapters(adapters ...Adapter) *Manager {
	return &Manager{
		adapters: adapters,
		log:      logger.Get(),
	}
}

// MergeStats summarizes one merge pass for logging and auditing.
type MergeStats struct {
	PerAdapter        map[string]int // items contributed by each adapter
	TotalRaw          int            // items before dedup
	DuplicatesRemoved int            // items dropped by URL dedup
}

// Merge fetches from every adapter concurrently, isolates individual adapter
// failures, deduplicates by normalized URL (first occurrence wins, in adapter
// declaration order), and converts the survivors to candidate topics.
func (m *Manager) Merge(ctx context.Context, lookback time.Duration) ([]core.CandidateTopic, MergeStats) {
	stats := MergeStats{PerAdapter: make(map[string]int)}
	if len(m.adapters) == 0 {
		m.log.Warn("No source adapters enabled")
		return nil, stats
	}

	m.log.Info("Starting ingestion", "lookback", lookback.String(), "adapters", len(m.adapters))

	// Fan out, gather into per-adapter slots so merge order is fixed
	results := make([][]core.RawItem, len(m.adapters))
	var wg sync.WaitGroup
	for i, adapter := range m.adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()
			items, err := adapter.Fetch(ctx, lookback)
			if err != nil {
				// A failed adapter is treated the same as "produced nothing"
				m.log.Error("Source adapter failed", "adapter", adapter.Name(), "error", err.Error())
				return
			}
			results[i] = items
		}(i, adapter)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var topics []core.CandidateTopic

	for i, adapter := range m.adapters {
		stats.PerAdapter[adapter.Name()] = len(results[i])
		stats.TotalRaw += len(results[i])

		for _, item := range results[i] {
			key := NormalizeURL(item.URL)
			if _, ok := seen[key]; ok {
				stats.DuplicatesRemoved++
				continue
			}
			seen[key] = struct{}{}
			topics = append(topics, toCandidateTopic(item))
		}
	}

	m.log.Info("Ingestion complete",
		"total_raw", stats.TotalRaw,
		"unique", len(topics),
		"duplicates_removed", stats.DuplicatesRemoved,
	)
	return topics, stats
}

// NormalizeURL produces the dedup key for a URL: trailing slashes are
// stripped first, then everything from the first '#' onward.
func NormalizeURL(raw string) string {
	normalized := strings.TrimRight(raw, "/")
	if idx := strings.Index(normalized, "#"); idx >= 0 {
		normalized = normalized[:idx]
	}
	return normalized
}

// toCandidateTopic reshapes a raw item for the pipeline: it gains a
// run-unique ID and drops source-specific metadata.
func toCandidateTopic(item core.RawItem) core.CandidateTopic {
	return core.CandidateTopic{
		ID:          uuid.NewString(),
		Title:       item.Title,
		Source:      item.Source,
		SourceKind:  item.SourceKind,
		URL:         item.URL,
		Summary:     item.Summary,
		PublishedAt: item.PublishedAt,
		Authors:     item.Authors,
		Tags:        item.Tags,
	}
}
