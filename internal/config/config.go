// Package config loads the immutable configuration snapshot consumed by the
// curation pipeline. Values come from a YAML config file, environment
// variables, and defaults, in that order of precedence.
package config

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. A run receives one snapshot at
// start; there is no hot reload within a run.
type Config struct {
	App        App        `mapstructure:"app"`
	Sources    Sources    `mapstructure:"sources"`
	Relevance  Relevance  `mapstructure:"relevance"`
	Redundancy Redundancy `mapstructure:"redundancy"`
	AI         AI         `mapstructure:"ai"`
	Messaging  Messaging  `mapstructure:"messaging"`
}

// App holds general application configuration.
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// Sources holds per-adapter source configuration.
type Sources struct {
	LookbackDays   int             `mapstructure:"lookback_days"`
	RequestTimeout string          `mapstructure:"request_timeout"`
	UserAgent      string          `mapstructure:"user_agent"`
	RSS            RSSConfig       `mapstructure:"rss"`
	Reddit         RedditConfig    `mapstructure:"reddit"`
	WebSearch      WebSearchConfig `mapstructure:"web_search"`
	Arxiv          ArxivConfig     `mapstructure:"arxiv"`
}

// Feed identifies one RSS/Atom feed to poll.
type Feed struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Category string `mapstructure:"category"`
}

// RSSConfig holds the feed-adapter configuration.
type RSSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Feeds   []Feed `mapstructure:"feeds"`
}

// Subreddit identifies one community listing to fetch.
type Subreddit struct {
	Name  string `mapstructure:"name"`
	Sort  string `mapstructure:"sort"`
	Limit int    `mapstructure:"limit"`
}

// RedditConfig holds the community-post adapter configuration.
type RedditConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Subreddits []Subreddit `mapstructure:"subreddits"`
}

// WebSearchConfig holds the web-search adapter configuration.
type WebSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Queries            []string `mapstructure:"queries"`
	MaxResultsPerQuery int      `mapstructure:"max_results_per_query"`
}

// ArxivConfig holds the academic-index adapter configuration.
type ArxivConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Categories []string `mapstructure:"categories"`
	MaxResults int      `mapstructure:"max_results"`
}

// Relevance holds scoring thresholds for the relevance filter.
type Relevance struct {
	MinCombinedScore float64 `mapstructure:"min_combined_score"`
	MaxTopics        int     `mapstructure:"max_topics"`
}

// Redundancy holds the semantic dedup threshold.
type Redundancy struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// AI holds LLM and embedding configuration.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// Messaging holds outbound notification configuration.
type Messaging struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
}

// Load reads configuration from the given file (or the default search path
// when cfgFile is empty), merges environment variables, and returns the
// resulting snapshot.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.curateai")
	}

	v.SetEnvPrefix("CURATEAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common secrets read from bare env vars for convenience
	_ = v.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("messaging.slack_webhook_url", "SLACK_WEBHOOK_URL")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".curateai")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.debug", false)

	v.SetDefault("sources.lookback_days", 3)
	v.SetDefault("sources.request_timeout", "30s")
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (compatible; CurateAI/1.0)")
	v.SetDefault("sources.rss.enabled", true)
	v.SetDefault("sources.reddit.enabled", true)
	v.SetDefault("sources.web_search.enabled", false)
	v.SetDefault("sources.web_search.max_results_per_query", 10)
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.categories", []string{"cs.AI", "cs.LG", "cs.CL"})
	v.SetDefault("sources.arxiv.max_results", 50)

	v.SetDefault("relevance.min_combined_score", 0.4)
	v.SetDefault("relevance.max_topics", 15)
	v.SetDefault("redundancy.similarity_threshold", 0.85)

	v.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
}

// RequestTimeout parses the configured per-request timeout, falling back to
// 30 seconds when unset or malformed.
func (s Sources) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Lookback returns the configured lookback window as a duration.
func (s Sources) Lookback() time.Duration {
	days := s.LookbackDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}

// Fingerprint computes a stable hash over the configuration fields that
// affect run reproducibility: model name, arXiv categories, and lookback
// window. The first 16 hex characters of the SHA-256 digest are recorded on
// every run for auditing.
func (c *Config) Fingerprint() string {
	material := fmt.Sprintf("%s|%s|%d",
		c.AI.Gemini.Model,
		strings.Join(c.Sources.Arxiv.Categories, ","),
		c.Sources.LookbackDays,
	)
	sum := sha256.Sum256([]byte(material))
	return fmt.Sprintf("%x", sum)[:16]
}
