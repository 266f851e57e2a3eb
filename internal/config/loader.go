package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from the TOML file at path, applies ARBOT_*
// environment overrides, and validates the result. A .env file in the working
// directory is loaded first if present so local development can keep secrets
// out of the TOML file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from ARBOT_* environment variables. Only
// variables that are set and non-empty take effect.
func applyEnv(cfg *Config) {
	setStr("ARBOT_ENVIRONMENT", &cfg.Environment)
	setStr("ARBOT_LOG_LEVEL", &cfg.LogLevel)

	setFloat64("ARBOT_ENGINE_MAX_SIZE", &cfg.Engine.MaxSize)
	setFloat64("ARBOT_ENGINE_MIN_PROFIT", &cfg.Engine.MinProfit)
	setBool("ARBOT_ENGINE_START_ACTIVE", &cfg.Engine.StartActive)

	setStr("ARBOT_HITBTC_MARKET_DATA_URL", &cfg.HitBtc.MarketDataURL)
	setStr("ARBOT_HITBTC_ORDER_ENTRY_URL", &cfg.HitBtc.OrderEntryURL)
	setStr("ARBOT_HITBTC_PULL_URL", &cfg.HitBtc.PullURL)
	setStr("ARBOT_HITBTC_API_KEY", &cfg.HitBtc.ApiKey)
	setStr("ARBOT_HITBTC_SECRET", &cfg.HitBtc.Secret)
	setStr("ARBOT_HITBTC_SYMBOL", &cfg.HitBtc.Symbol)
	setStr("ARBOT_HITBTC_ORDER_DESTINATION", &cfg.HitBtc.OrderDestination)

	setBool("ARBOT_PAPER_ENABLED", &cfg.Paper.Enabled)
	setFloat64("ARBOT_PAPER_MAKER_FEE", &cfg.Paper.MakerFee)
	setFloat64("ARBOT_PAPER_TAKER_FEE", &cfg.Paper.TakerFee)
	setFloat64("ARBOT_PAPER_MID", &cfg.Paper.Mid)

	setStr("ARBOT_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("ARBOT_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("ARBOT_REDIS_DB", &cfg.Redis.DB)
	setInt("ARBOT_REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	setBool("ARBOT_REDIS_TLS_ENABLED", &cfg.Redis.TLSEnabled)

	setBool("ARBOT_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setStr("ARBOT_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("ARBOT_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("ARBOT_POSTGRES_PORT", &cfg.Postgres.Port)
	setStr("ARBOT_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setStr("ARBOT_POSTGRES_USER", &cfg.Postgres.User)
	setStr("ARBOT_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setBool("ARBOT_POSTGRES_RUN_MIGRATIONS", &cfg.Postgres.RunMigrations)

	setBool("ARBOT_S3_ENABLED", &cfg.S3.Enabled)
	setStr("ARBOT_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("ARBOT_S3_REGION", &cfg.S3.Region)
	setStr("ARBOT_S3_BUCKET", &cfg.S3.Bucket)
	setStr("ARBOT_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("ARBOT_S3_SECRET_KEY", &cfg.S3.SecretKey)
	setInt("ARBOT_S3_RETENTION_DAYS", &cfg.S3.RetentionDays)
	setDuration("ARBOT_S3_ARCHIVE_INTERVAL", &cfg.S3.ArchiveInterval.Duration)

	setStr("ARBOT_NATS_URL", &cfg.Nats.URL)
	setStr("ARBOT_NATS_SUBJECT_PREFIX", &cfg.Nats.SubjectPrefix)

	setStr("ARBOT_NOTIFY_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("ARBOT_NOTIFY_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("ARBOT_NOTIFY_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
	setStringSlice("ARBOT_NOTIFY_EVENTS", &cfg.Notify.Events)

	setBool("ARBOT_SERVER_ENABLED", &cfg.Server.Enabled)
	setInt("ARBOT_SERVER_PORT", &cfg.Server.Port)
}

func setStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
