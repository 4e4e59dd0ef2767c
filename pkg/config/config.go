// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Storage, Redis, Kafka, Bot, Ingest, Verification, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Bot          BotConfig          `yaml:"bot"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Verification VerificationConfig `yaml:"verification"`
	Cleanup      CleanupConfig      `yaml:"cleanup"`
	RateLimits   RateLimitsConfig   `yaml:"rateLimits"`
	Shortener    ShortenerConfig    `yaml:"shortener"`
	Audit        AuditConfig        `yaml:"audit"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects the catalog store backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters. Redis backs the rate-limit
// buckets when RateLimits.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings for the audit event log.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AuditEvents string `yaml:"auditEvents"`
}

// BotConfig identifies the chat bot and its administrators. Username is
// embedded into deep-link URLs; only AdminIDs may submit bulk uploads.
type BotConfig struct {
	Username string  `yaml:"username"`
	AdminIDs []int64 `yaml:"adminIds"`
}

// IngestConfig controls the bulk upload queue's batch size and pacing.
type IngestConfig struct {
	BatchSize       int           `yaml:"batchSize"`
	InterBatchDelay time.Duration `yaml:"interBatchDelay"`
}

// VerificationConfig controls token lifetime, the access-window length, and
// how often overdue pending tokens are swept to the expired state.
type VerificationConfig struct {
	TokenTTL       time.Duration `yaml:"tokenTtl"`
	WindowDuration time.Duration `yaml:"windowDuration"`
	SweepInterval  time.Duration `yaml:"sweepInterval"`
}

// CleanupConfig controls the delay between a delivery and its deferred
// cleanup notification.
type CleanupConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// RateLimitsConfig holds per-action admission limits. Backend selects the
// bucket store: "memory" or "redis".
type RateLimitsConfig struct {
	Backend string                 `yaml:"backend"`
	Actions map[string]ActionLimit `yaml:"actions"`
}

// ActionLimit is one action's admission budget within a window.
type ActionLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// ShortenerConfig holds the external link-shortening API settings.
type ShortenerConfig struct {
	APIURL  string        `yaml:"apiUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig controls the audit event collector's batching.
type AuditConfig struct {
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks constraints that would otherwise surface at an awkward
// moment deep inside a background loop. Configuration errors are the only
// fatal error class in the process.
func (c *Config) Validate() error {
	if c.Bot.Username == "" {
		return fmt.Errorf("bot.username is required")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batchSize must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.InterBatchDelay < 0 {
		return fmt.Errorf("ingest.interBatchDelay must not be negative")
	}
	if c.Verification.TokenTTL <= 0 {
		return fmt.Errorf("verification.tokenTtl must be positive")
	}
	if c.Verification.WindowDuration <= 0 {
		return fmt.Errorf("verification.windowDuration must be positive")
	}
	if c.Cleanup.Delay < 0 {
		return fmt.Errorf("cleanup.delay must not be negative")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.RateLimits.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rateLimits.backend must be memory or redis, got %q", c.RateLimits.Backend)
	}
	for action, al := range c.RateLimits.Actions {
		if al.Limit <= 0 || al.Window <= 0 {
			return fmt.Errorf("rateLimits.actions.%s: limit and window must be positive", action)
		}
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "filegate",
			User:            "filegate",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Enabled: true,
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				AuditEvents: "filegate-audit-events",
			},
		},
		Bot: BotConfig{
			Username: "FileGateBot",
		},
		Ingest: IngestConfig{
			BatchSize:       5,
			InterBatchDelay: 500 * time.Millisecond,
		},
		Verification: VerificationConfig{
			TokenTTL:       24 * time.Hour,
			WindowDuration: 24 * time.Hour,
			SweepInterval:  time.Hour,
		},
		Cleanup: CleanupConfig{
			Delay: 10 * time.Minute,
		},
		RateLimits: RateLimitsConfig{
			Backend: "memory",
			Actions: map[string]ActionLimit{
				"search": {Limit: 10, Window: time.Minute},
				"upload": {Limit: 1000, Window: time.Hour},
			},
		},
		Shortener: ShortenerConfig{
			APIURL:  "https://inshorturl.com/api",
			Timeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FG_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("FG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FG_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("FG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FG_BOT_USERNAME"); v != "" {
		cfg.Bot.Username = v
	}
	if v := os.Getenv("FG_BOT_ADMIN_IDS"); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			cfg.Bot.AdminIDs = ids
		}
	}
	if v := os.Getenv("FG_SHORTENER_API_URL"); v != "" {
		cfg.Shortener.APIURL = v
	}
	if v := os.Getenv("FG_SHORTENER_API_KEY"); v != "" {
		cfg.Shortener.APIKey = v
	}
	if v := os.Getenv("FG_RATELIMITS_BACKEND"); v != "" {
		cfg.RateLimits.Backend = v
	}
	if v := os.Getenv("FG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
