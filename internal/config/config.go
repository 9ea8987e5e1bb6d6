// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/praxis-search/ragline/internal/storage"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	RAG      RAGConfig      `mapstructure:"rag"`
	Provider ProviderConfig `mapstructure:"provider"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// CrawlerConfig governs crawl defaults applied when a request leaves them
// unset.
type CrawlerConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	MaxDepthDefault int    `mapstructure:"max_depth_default"`
	MaxPagesDefault int    `mapstructure:"max_pages_default"`
	DelayMs         int    `mapstructure:"delay_ms"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RespectRobots   bool   `mapstructure:"respect_robots"`
	FollowSitemap   bool   `mapstructure:"follow_sitemap"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// ArchiveConfig controls on-disk page snapshots.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	DSN       string `mapstructure:"dsn"`
	CacheSize int    `mapstructure:"cache_size"`
}

// IngestConfig holds the chunking knobs.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// RAGConfig governs retrieval and confidence behavior.
type RAGConfig struct {
	SimilarityGate float64 `mapstructure:"similarity_gate"`
	TopK           int     `mapstructure:"top_k"`
}

// ProviderConfig selects the embedding/completion provider credentials.
type ProviderConfig struct {
	APIKey        string `mapstructure:"api_key"`
	EmbedModel    string `mapstructure:"embed_model"`
	CompleteModel string `mapstructure:"complete_model"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAGLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("crawler.user_agent", "ragline-bot/1.0")
	v.SetDefault("crawler.max_depth_default", 2)
	v.SetDefault("crawler.max_pages_default", 25)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.follow_sitemap", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", "data/pages")
	v.SetDefault("storage.backend", storage.BackendMemory)
	v.SetDefault("storage.cache_size", 128)
	v.SetDefault("ingest.chunk_size", 1200)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("rag.similarity_gate", 0.3)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Storage.Backend != storage.BackendMemory && c.Storage.Backend != storage.BackendPostgres {
		return fmt.Errorf("storage.backend must be %q or %q", storage.BackendMemory, storage.BackendPostgres)
	}
	if c.Storage.Backend == storage.BackendPostgres && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set when storage.backend is %q", storage.BackendPostgres)
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir must be set when archive is enabled")
	}
	if c.RAG.SimilarityGate < 0 || c.RAG.SimilarityGate > 1 {
		return fmt.Errorf("rag.similarity_gate must be within [0, 1]")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be > 0")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	return nil
}

// CrawlTimeout converts the crawler timeout into a duration.
func (c Config) CrawlTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// CrawlDelay converts the configured delay into a duration.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// RequestTimeout converts the server request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}
