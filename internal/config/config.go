// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/feedlake/social-crawler/internal/platform/reddit"
	"github.com/feedlake/social-crawler/internal/queue/pubsub"
	"github.com/feedlake/social-crawler/internal/storage/gcs"
	"github.com/feedlake/social-crawler/internal/storage/local"
	"github.com/feedlake/social-crawler/internal/storage/minio"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Reddit  reddit.Config `mapstructure:"reddit"`
	Media   MediaConfig   `mapstructure:"media"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Results ResultsConfig `mapstructure:"results"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs dispatch and worker behavior.
type CrawlerConfig struct {
	Tier            string  `mapstructure:"tier"`
	Platform        string  `mapstructure:"platform"`
	Concurrency     int     `mapstructure:"concurrency"`
	ThrottleSeconds float64 `mapstructure:"throttle_seconds"`
	UserAgentsFile  string  `mapstructure:"user_agents_file"`
}

// RetryConfig configures the backoff policy for platform calls.
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries"`
	BaseSeconds int `mapstructure:"base_seconds"`
	MaxSeconds  int `mapstructure:"max_seconds"`
}

// MediaConfig controls media downloads.
type MediaConfig struct {
	DownloadDir    string `mapstructure:"download_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Tier    string       `mapstructure:"tier"`
	Local   local.Config `mapstructure:"local"`
	Minio   minio.Config `mapstructure:"minio"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// QueueConfig selects and configures the queue transport.
type QueueConfig struct {
	Transport string        `mapstructure:"transport"`
	Depth     int           `mapstructure:"depth"`
	PubSub    pubsub.Config `mapstructure:"pubsub"`
}

// ResultsConfig selects the work-result store backend.
type ResultsConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("crawler.tier", "bronze")
	v.SetDefault("crawler.platform", "reddit")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.throttle_seconds", 2.0)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_seconds", 5)
	v.SetDefault("retry.max_seconds", 60)
	v.SetDefault("reddit.page_size", 100)
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("media.download_dir", "/tmp/social-crawler/media")
	v.SetDefault("media.timeout_seconds", 30)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.metadata_dir", "/tmp/social-crawler/metadata")
	v.SetDefault("storage.local.media_dir", "/tmp/social-crawler/media-store")
	v.SetDefault("queue.transport", "memory")
	v.SetDefault("queue.depth", 256)
	v.SetDefault("results.backend", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Queue.Transport {
	case "memory":
	case "pubsub":
		if c.Queue.PubSub.ProjectID == "" || c.Queue.PubSub.TopicID == "" || c.Queue.PubSub.SubscriptionID == "" {
			return fmt.Errorf("queue.pubsub.project_id, topic_id and subscription_id are required")
		}
	default:
		return fmt.Errorf("unknown queue.transport %q", c.Queue.Transport)
	}
	switch c.Results.Backend {
	case "memory":
	case "postgres":
		if c.Results.DSN == "" {
			return fmt.Errorf("results.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown results.backend %q", c.Results.Backend)
	}
	return nil
}

// Throttle returns the configured base throttle interval.
func (c CrawlerConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleSeconds * float64(time.Second))
}

// MediaTimeout returns the media download timeout.
func (c MediaConfig) MediaTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
