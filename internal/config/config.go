// Package config defines the top-level configuration for the arbitrage agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Engine      EngineConfig   `toml:"engine"`
	HitBtc      HitBtcConfig   `toml:"hitbtc"`
	Paper       PaperConfig    `toml:"paper"`
	Redis       RedisConfig    `toml:"redis"`
	Postgres    PostgresConfig `toml:"postgres"`
	S3          S3Config       `toml:"s3"`
	Nats        NatsConfig     `toml:"nats"`
	Notify      NotifyConfig   `toml:"notify"`
	Server      ServerConfig   `toml:"server"`
	Environment string         `toml:"environment"`
	LogLevel    string         `toml:"log_level"`
}

// EngineConfig holds the arbitrage decision parameters.
type EngineConfig struct {
	// MaxSize caps the hide-side size of any leg, in normalized units.
	MaxSize float64 `toml:"max_size"`
	// MinProfit is both the eligibility threshold for a candidate and the
	// hysteresis band applied when the best leg pairing changes venue/side.
	MinProfit float64 `toml:"min_profit"`
	// StartActive starts the engine with the operator toggle on.
	StartActive bool `toml:"start_active"`
}

// HitBtcConfig holds HitBtc endpoints and credentials.
type HitBtcConfig struct {
	MarketDataURL string `toml:"market_data_url"`
	OrderEntryURL string `toml:"order_entry_url"`
	PullURL       string `toml:"pull_url"`
	ApiKey        string `toml:"api_key"`
	Secret        string `toml:"secret"`
	Symbol        string `toml:"symbol"`
	// OrderDestination routes live orders to "hitbtc" or, for dry runs, to
	// the in-process "paper" order gateway.
	OrderDestination string `toml:"order_destination"`
}

// PaperConfig holds parameters for the simulated second venue.
type PaperConfig struct {
	Enabled  bool    `toml:"enabled"`
	MakerFee float64 `toml:"maker_fee"`
	TakerFee float64 `toml:"taker_fee"`
	// Mid seeds the synthetic book's random walk.
	Mid float64 `toml:"mid"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the trade journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the fill
// archiver.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NatsConfig holds the optional market-data republisher parameters. Leave URL
// empty to disable.
type NatsConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ServerConfig holds HTTP server parameters for the operator API.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "24h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxSize:     0.025,
			MinProfit:   0.01,
			StartActive: false,
		},
		HitBtc: HitBtcConfig{
			MarketDataURL:    "wss://api.hitbtc.com/market",
			OrderEntryURL:    "wss://api.hitbtc.com/trading",
			PullURL:          "https://api.hitbtc.com",
			Symbol:           "BTCUSD",
			OrderDestination: "paper",
		},
		Paper: PaperConfig{
			Enabled:  true,
			MakerFee: 0,
			TakerFee: 0.002,
			Mid:      250,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "arbot-archive",
			UseSSL:          false,
			ForcePathStyle:  true,
			RetentionDays:   30,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Nats: NatsConfig{
			SubjectPrefix: "md",
		},
		Notify: NotifyConfig{
			Events: []string{"start", "stop", "arbfire", "error"},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Environment: "dev",
		LogLevel:    "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Environment) {
	case "dev", "prod":
	default:
		errs = append(errs, fmt.Sprintf("unknown environment %q (valid: dev, prod)", c.Environment))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.MaxSize <= 0 {
		errs = append(errs, "engine: max_size must be > 0")
	}
	if c.Engine.MinProfit < 0 {
		errs = append(errs, "engine: min_profit must be >= 0")
	}

	// HitBtc
	if c.HitBtc.MarketDataURL == "" {
		errs = append(errs, "hitbtc: market_data_url must not be empty")
	}
	if c.HitBtc.Symbol == "" {
		errs = append(errs, "hitbtc: symbol must not be empty")
	}
	switch c.HitBtc.OrderDestination {
	case "hitbtc":
		if c.HitBtc.ApiKey == "" || c.HitBtc.Secret == "" {
			errs = append(errs, "hitbtc: api_key and secret are required when order_destination is hitbtc")
		}
		if c.HitBtc.OrderEntryURL == "" {
			errs = append(errs, "hitbtc: order_entry_url must not be empty when order_destination is hitbtc")
		}
	case "paper":
	default:
		errs = append(errs, fmt.Sprintf("hitbtc: unknown order_destination %q (valid: hitbtc, paper)", c.HitBtc.OrderDestination))
	}

	// Paper
	if c.Paper.Enabled && c.Paper.Mid <= 0 {
		errs = append(errs, "paper: mid must be > 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: the fill archiver requires postgres.enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
