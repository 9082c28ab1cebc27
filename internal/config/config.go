// Package config loads and validates fetcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/fetcher/internal/fetcher"
	"github.com/JakeFAU/fetcher/internal/logging"
	"github.com/JakeFAU/fetcher/internal/sink"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sink      SinkConfig      `mapstructure:"sink"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxJobs        int           `mapstructure:"max_jobs"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// EngineConfig governs admission control and request defaults.
type EngineConfig struct {
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`
	HostPollInterval time.Duration `mapstructure:"host_poll_interval"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// TransportConfig tunes the shared HTTP transport.
type TransportConfig struct {
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SinkConfig selects where completed results are delivered.
type SinkConfig struct {
	Provider string             `mapstructure:"provider"`
	Postgres PostgresSinkConfig `mapstructure:"postgres"`
	GCS      GCSSinkConfig      `mapstructure:"gcs"`
	PubSub   PubSubSinkConfig   `mapstructure:"pubsub"`
}

// PostgresSinkConfig configures the Postgres result table.
type PostgresSinkConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	CreateTable     bool          `mapstructure:"create_table"`
}

// GCSSinkConfig configures the result bucket.
type GCSSinkConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubSinkConfig configures the result topic.
type PubSubSinkConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load builds a Config from .env, disk and environment, in increasing precedence.
// With an empty path it searches ./fetcher.yaml, /etc/fetcher and $HOME/.fetcher
// and falls back to defaults when none exists.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("FETCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("fetcher")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fetcher/")
		v.AddConfigPath("$HOME/.fetcher")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.max_jobs", 100)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("engine.max_concurrency", fetcher.DefaultMaxConcurrency)
	v.SetDefault("engine.default_timeout", fetcher.DefaultTimeout.String())
	v.SetDefault("engine.host_poll_interval", fetcher.DefaultHostPollInterval.String())
	v.SetDefault("engine.user_agent", "fetcher/0.1")
	v.SetDefault("transport.dial_timeout", "10s")
	v.SetDefault("transport.tls_handshake_timeout", "15s")
	v.SetDefault("transport.max_idle_conns", 100)
	v.SetDefault("transport.max_idle_conns_per_host", 10)
	v.SetDefault("transport.idle_conn_timeout", "90s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("sink.provider", sink.ProviderNone)
	v.SetDefault("sink.postgres.table", "fetch_results")
	v.SetDefault("sink.postgres.max_conns", 4)
	v.SetDefault("sink.postgres.create_table", false)
	v.SetDefault("sink.gcs.prefix", "results")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.Server.MaxJobs <= 0 {
		return fmt.Errorf("server.max_jobs must be > 0")
	}
	if c.Engine.MaxConcurrency <= 0 {
		return fmt.Errorf("engine.max_concurrency must be > 0")
	}
	if c.Engine.DefaultTimeout <= 0 {
		return fmt.Errorf("engine.default_timeout must be > 0")
	}
	if c.Engine.HostPollInterval <= 0 {
		return fmt.Errorf("engine.host_poll_interval must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch strings.ToLower(strings.TrimSpace(c.Sink.Provider)) {
	case "", sink.ProviderNone:
	case sink.ProviderPostgres:
		if c.Sink.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn must be set when sink.provider is postgres")
		}
	case sink.ProviderGCS:
		if c.Sink.GCS.Bucket == "" {
			return fmt.Errorf("sink.gcs.bucket must be set when sink.provider is gcs")
		}
	case sink.ProviderPubSub:
		if c.Sink.PubSub.ProjectID == "" || c.Sink.PubSub.TopicID == "" {
			return fmt.Errorf("sink.pubsub.project_id and topic_id must be set when sink.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown sink.provider %q", c.Sink.Provider)
	}
	return nil
}

// FetcherConfig converts the loaded settings into fetcher.Config.
func (c Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		MaxConcurrency:   c.Engine.MaxConcurrency,
		DefaultTimeout:   c.Engine.DefaultTimeout,
		HostPollInterval: c.Engine.HostPollInterval,
		UserAgent:        c.Engine.UserAgent,
		Transport: fetcher.TransportConfig{
			DialTimeout:         c.Transport.DialTimeout,
			TLSHandshakeTimeout: c.Transport.TLSHandshakeTimeout,
			MaxIdleConns:        c.Transport.MaxIdleConns,
			MaxIdleConnsPerHost: c.Transport.MaxIdleConnsPerHost,
			IdleConnTimeout:     c.Transport.IdleConnTimeout,
		},
	}
}

// LoggingOptions converts the logging section for logging.New.
func (c Config) LoggingOptions() logging.Config {
	return logging.Config{
		Development: c.Logging.Development,
		Level:       c.Logging.Level,
	}
}

// SinkOptions converts the sink section for sink.New.
func (c Config) SinkOptions() sink.Config {
	return sink.Config{
		Provider: c.Sink.Provider,
		Postgres: sink.PostgresConfig{
			DSN:             c.Sink.Postgres.DSN,
			Table:           c.Sink.Postgres.Table,
			MaxConns:        c.Sink.Postgres.MaxConns,
			MaxConnLifetime: c.Sink.Postgres.MaxConnLifetime,
			CreateTable:     c.Sink.Postgres.CreateTable,
		},
		GCS: sink.GCSConfig{
			Bucket: c.Sink.GCS.Bucket,
			Prefix: c.Sink.GCS.Prefix,
		},
		PubSub: sink.PubSubConfig{
			ProjectID: c.Sink.PubSub.ProjectID,
			TopicID:   c.Sink.PubSub.TopicID,
		},
	}
}
