// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete support desk configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Policy     PolicyConfig     `yaml:"policy"`
	Transcript TranscriptConfig `yaml:"transcript"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxMessageRunes int           `yaml:"max_message_runes"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Store     string        `yaml:"store"` // memory, redis
	TTL       time.Duration `yaml:"ttl"`   // redis only, 0 keeps sessions until deleted
	KeyPrefix string        `yaml:"key_prefix"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OracleConfig selects and tunes the language model backend.
type OracleConfig struct {
	Backend     string        `yaml:"backend"` // rules, openai, gemini
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    uint          `yaml:"attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Breaker     BreakerConfig `yaml:"circuit_breaker"`
	// MaxConcurrent caps in-flight oracle calls; 0 leaves them unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// BreakerConfig configures the circuit breaker around the oracle.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// KnowledgeConfig configures the knowledge responder.
type KnowledgeConfig struct {
	CorpusPath string        `yaml:"corpus_path"` // empty uses the built-in corpus
	CacheTTL   time.Duration `yaml:"cache_ttl"`   // 0 disables the answer cache
}

// PolicyConfig holds the escalation thresholds. It can be changed at runtime.
type PolicyConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	KnowledgeThreshold  float64  `yaml:"knowledge_threshold"`
	StreakLimit         int      `yaml:"streak_limit"`
	Keywords            []string `yaml:"keywords"`
}

// TranscriptConfig configures asynchronous turn persistence.
type TranscriptConfig struct {
	Sinks        []string        `yaml:"sinks"` // memory, postgres, s3
	QueueSize    int             `yaml:"queue_size"`
	Workers      int             `yaml:"workers"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	Postgres     PostgresConfig  `yaml:"postgres"`
	S3           S3ArchiveConfig `yaml:"s3"`
}

// PostgresConfig contains transcript database settings.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
	Migrate      bool          `yaml:"migrate"`
}

// S3ArchiveConfig contains settings for the JSONL transcript archive.
type S3ArchiveConfig struct {
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	AccessKeyID   string        `yaml:"access_key_id"`
	SecretKey     string        `yaml:"secret_access_key"`
	Endpoint      string        `yaml:"endpoint"`
	PathPrefix    string        `yaml:"path_prefix"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// RateLimitConfig defines per-session rate limiting parameters.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxMessageRunes: 4000,
		},
		Session: SessionConfig{
			Store:     "memory",
			KeyPrefix: "supportdesk:session",
			LockTTL:   60 * time.Second,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Oracle: OracleConfig{
			Backend:       "rules",
			Temperature:   0.4,
			MaxTokens:     512,
			Timeout:       10 * time.Second,
			Attempts:      2,
			RetryDelay:    200 * time.Millisecond,
			MaxConcurrent: 16,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Knowledge: KnowledgeConfig{
			CacheTTL: 10 * time.Minute,
		},
		Policy: PolicyConfig{
			ConfidenceThreshold: 0.4,
			KnowledgeThreshold:  0.5,
			StreakLimit:         2,
		},
		Transcript: TranscriptConfig{
			QueueSize:    1024,
			Workers:      2,
			WriteTimeout: 5 * time.Second,
			Postgres: PostgresConfig{
				MaxOpenConns: 10,
				MaxIdleConns: 2,
				ConnLifetime: 5 * time.Minute,
				Migrate:      true,
			},
			S3: S3ArchiveConfig{
				PathPrefix:    "supportdesk/transcripts",
				FlushInterval: 30 * time.Second,
				BatchSize:     100,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "supportdesk",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.MaxMessageRunes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_message_runes must be positive"))
	}

	switch c.Session.Store {
	case "memory", "":
	case "redis":
		if c.Session.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("session.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", c.Session.Store))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl cannot be negative"))
	}

	switch c.Oracle.Backend {
	case "rules", "":
	case "openai", "gemini":
		if c.Oracle.Model == "" && c.Oracle.Backend == "openai" {
			errs = append(errs, fmt.Errorf("oracle.model is required for the openai backend"))
		}
		if c.Oracle.APIKey == "" && c.Oracle.Backend == "gemini" {
			errs = append(errs, fmt.Errorf("oracle.api_key is required for the gemini backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown oracle.backend %q", c.Oracle.Backend))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout must be positive"))
	}
	if c.Oracle.Attempts == 0 {
		errs = append(errs, fmt.Errorf("oracle.attempts must be at least 1"))
	}
	if c.Oracle.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("oracle.max_concurrent cannot be negative"))
	}

	if c.Knowledge.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("knowledge.cache_ttl cannot be negative"))
	}

	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}

	for _, sink := range c.Transcript.Sinks {
		switch sink {
		case "memory":
		case "postgres":
			if c.Transcript.Postgres.DSN == "" {
				errs = append(errs, fmt.Errorf("transcript.postgres.dsn is required for the postgres sink"))
			}
		case "s3":
			if c.Transcript.S3.Bucket == "" {
				errs = append(errs, fmt.Errorf("transcript.s3.bucket is required for the s3 sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown transcript sink %q", sink))
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled"))
	}

	return errors.Join(errs...)
}

// Validate checks the escalation thresholds.
func (p PolicyConfig) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("policy.confidence_threshold must be within [0,1]")
	}
	if p.KnowledgeThreshold < 0 || p.KnowledgeThreshold > 1 {
		return fmt.Errorf("policy.knowledge_threshold must be within [0,1]")
	}
	if p.StreakLimit < 1 {
		return fmt.Errorf("policy.streak_limit must be at least 1")
	}
	return nil
}
