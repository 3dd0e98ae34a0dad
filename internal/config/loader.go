package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TAXHARVEST_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Alternatives.normalize()

	return &cfg, nil
}

// normalize upper-cases every symbol in the mapping tables and applies the
// symmetric closure to the identical-symbols table, so lookups never depend on
// which side of a pair the operator happened to declare.
func (a *AlternativesConfig) normalize() {
	a.Symbols = upperKeysAndValues(a.Symbols)
	a.Sectors = lowerKeysUpperValues(a.Sectors)
	for i, s := range a.BroadMarket {
		a.BroadMarket[i] = strings.ToUpper(s)
	}

	identical := upperKeysAndValues(a.Identical)
	closed := make(map[string][]string, len(identical))
	add := func(k, v string) {
		for _, existing := range closed[k] {
			if existing == v {
				return
			}
		}
		closed[k] = append(closed[k], v)
	}
	for k, vs := range identical {
		for _, v := range vs {
			add(k, v)
			add(v, k)
		}
	}
	a.Identical = closed

	names := make(map[string]string, len(a.Names))
	for k, v := range a.Names {
		names[strings.ToUpper(k)] = v
	}
	a.Names = names
}

func upperKeysAndValues(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, vs := range m {
		up := make([]string, len(vs))
		for i, v := range vs {
			up[i] = strings.ToUpper(v)
		}
		out[strings.ToUpper(k)] = up
	}
	return out
}

func lowerKeysUpperValues(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, vs := range m {
		up := make([]string, len(vs))
		for i, v := range vs {
			up[i] = strings.ToUpper(v)
		}
		out[strings.ToLower(k)] = up
	}
	return out
}

// applyEnvOverrides reads well-known TAXHARVEST_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Harvest ──
	setFloat64(&cfg.Harvest.MinLossAmount, "TAXHARVEST_MIN_LOSS_AMOUNT")
	setFloat64(&cfg.Harvest.MinLossPct, "TAXHARVEST_MIN_LOSS_PERCENTAGE")
	setFloat64(&cfg.Harvest.TaxRate, "TAXHARVEST_TAX_RATE")
	setInt(&cfg.Harvest.WashSaleWindowDays, "TAXHARVEST_WASH_SALE_WINDOW_DAYS")
	setDuration(&cfg.Harvest.CacheTTL, "TAXHARVEST_OPPORTUNITY_CACHE_TTL")
	setDuration(&cfg.Harvest.OrderTimeout, "TAXHARVEST_ORDER_TIMEOUT")
	setDuration(&cfg.Harvest.OrderPollInterval, "TAXHARVEST_ORDER_POLL_INTERVAL")

	// ── Broker ──
	setStr(&cfg.Broker.BaseURL, "TAXHARVEST_BROKER_BASE_URL")
	setStr(&cfg.Broker.APIKey, "TAXHARVEST_BROKER_API_KEY")
	setStr(&cfg.Broker.APISecret, "TAXHARVEST_BROKER_API_SECRET")
	setBool(&cfg.Broker.Paper, "TAXHARVEST_BROKER_PAPER")

	// ── Database ──
	setStr(&cfg.Database.DSN, "TAXHARVEST_DATABASE_DSN")
	setStr(&cfg.Database.Host, "TAXHARVEST_DATABASE_HOST")
	setInt(&cfg.Database.Port, "TAXHARVEST_DATABASE_PORT")
	setStr(&cfg.Database.Database, "TAXHARVEST_DATABASE_NAME")
	setStr(&cfg.Database.User, "TAXHARVEST_DATABASE_USER")
	setStr(&cfg.Database.Password, "TAXHARVEST_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "TAXHARVEST_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "TAXHARVEST_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "TAXHARVEST_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "TAXHARVEST_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TAXHARVEST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TAXHARVEST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TAXHARVEST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TAXHARVEST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TAXHARVEST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TAXHARVEST_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TAXHARVEST_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TAXHARVEST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TAXHARVEST_S3_REGION")
	setStr(&cfg.S3.Bucket, "TAXHARVEST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TAXHARVEST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TAXHARVEST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TAXHARVEST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TAXHARVEST_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "TAXHARVEST_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TAXHARVEST_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "TAXHARVEST_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TAXHARVEST_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TAXHARVEST_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TAXHARVEST_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TAXHARVEST_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TAXHARVEST_MODE")
	setStr(&cfg.LogLevel, "TAXHARVEST_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
