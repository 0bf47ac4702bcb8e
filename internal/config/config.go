// Package config loads and validates venue scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Driver names accepted by the pluggable subsystems.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverLocal    = "local"
	DriverGCS      = "gcs"
	DriverPubSub   = "pubsub"
	DriverPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DB       DBConfig       `mapstructure:"db"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// WorkerConfig sizes the task worker pool.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// QueueConfig selects the task id queue.
type QueueConfig struct {
	Driver string `mapstructure:"driver"`
	Depth  int    `mapstructure:"depth"`
}

// RedisConfig points at the Redis list backing the queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// DBConfig controls access to the relational database. An empty DSN runs
// against the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ScraperConfig governs page fetching.
type ScraperConfig struct {
	UserAgent                 string  `mapstructure:"user_agent"`
	FetchTimeoutSeconds       int     `mapstructure:"fetch_timeout_seconds"`
	RespectRobots             bool    `mapstructure:"respect_robots"`
	DomainRPS                 float64 `mapstructure:"domain_rps"`
	DomainBurst               int     `mapstructure:"domain_burst"`
	HeadlessEnabled           bool    `mapstructure:"headless_enabled"`
	HeadlessMaxParallel       int     `mapstructure:"headless_max_parallel"`
	HeadlessNavTimeoutSeconds int     `mapstructure:"headless_nav_timeout_seconds"`
	HeadlessThreshold         int     `mapstructure:"headless_threshold"`
}

// SnapshotConfig sets where raw page HTML is kept.
type SnapshotConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LLMConfig configures the chat completion endpoint.
type LLMConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerSecond int     `mapstructure:"requests_per_second"`
}

// SweeperConfig controls the pending task reconciliation loop.
type SweeperConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	MinAgeSeconds   int  `mapstructure:"min_age_seconds"`
	Batch           int  `mapstructure:"batch"`
}

// NotifyConfig selects the completion event publisher.
type NotifyConfig struct {
	Driver    string `mapstructure:"driver"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

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

// bindLegacyEnv lets the bare GROQ_API_KEY and DATABASE_URL variables fill
// their keys when the prefixed form is absent.
func bindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("llm.api_key", "VENUE_LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return fmt.Errorf("bind llm.api_key: %w", err)
	}
	if err := v.BindEnv("db.dsn", "VENUE_DB_DSN", "DATABASE_URL"); err != nil {
		return fmt.Errorf("bind db.dsn: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("queue.driver", DriverMemory)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "venue:tasks")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("scraper.user_agent", "venue-scraper/0.1")
	v.SetDefault("scraper.fetch_timeout_seconds", 30)
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("scraper.domain_rps", 1.0)
	v.SetDefault("scraper.domain_burst", 1)
	v.SetDefault("scraper.headless_enabled", false)
	v.SetDefault("scraper.headless_max_parallel", 1)
	v.SetDefault("scraper.headless_nav_timeout_seconds", 25)
	v.SetDefault("scraper.headless_threshold", 500)
	v.SetDefault("snapshot.driver", DriverNone)
	v.SetDefault("snapshot.dir", "snapshots")
	v.SetDefault("snapshot.bucket", "")
	v.SetDefault("snapshot.prefix", "pages")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "openai/gpt-oss-20b")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval_seconds", 60)
	v.SetDefault("sweeper.min_age_seconds", 120)
	v.SetDefault("sweeper.batch", 50)
	v.SetDefault("notify.driver", DriverNone)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "venue-tasks")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Scraper.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.fetch_timeout_seconds must be > 0")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}
	if c.Scraper.HeadlessEnabled && c.Scraper.HeadlessMaxParallel <= 0 {
		return fmt.Errorf("scraper.headless_max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Queue.Driver {
	case DriverMemory:
		if c.Queue.Depth <= 0 {
			return fmt.Errorf("queue.depth must be > 0 for the memory queue")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be set when queue.driver is redis")
		}
	default:
		return fmt.Errorf("queue.driver %q is not supported", c.Queue.Driver)
	}
	switch c.Snapshot.Driver {
	case DriverNone, DriverMemory:
	case DriverLocal:
		if c.Snapshot.Dir == "" {
			return fmt.Errorf("snapshot.dir must be set when snapshot.driver is local")
		}
	case DriverGCS:
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket must be set when snapshot.driver is gcs")
		}
	default:
		return fmt.Errorf("snapshot.driver %q is not supported", c.Snapshot.Driver)
	}
	switch c.Notify.Driver {
	case DriverNone, DriverMemory:
	case DriverPubSub:
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify.driver is pubsub")
		}
	default:
		return fmt.Errorf("notify.driver %q is not supported", c.Notify.Driver)
	}
	if c.Sweeper.Enabled && c.Sweeper.IntervalSeconds <= 0 {
		return fmt.Errorf("sweeper.interval_seconds must be > 0 when the sweeper is enabled")
	}
	return nil
}

// StoreDriver reports which task store the DSN selects.
func (c Config) StoreDriver() string {
	if c.DB.DSN == "" {
		return DriverMemory
	}
	return DriverPostgres
}

// MissingConfiguration lists the settings a production deployment needs but
// that are currently empty.
func (c Config) MissingConfiguration() []string {
	var missing []string
	if c.DB.DSN == "" {
		missing = append(missing, "db.dsn")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key")
	}
	return missing
}

// FetchTimeout converts the fetch timeout to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.FetchTimeoutSeconds) * time.Second
}

// LLMTimeout converts the LLM call timeout to a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
