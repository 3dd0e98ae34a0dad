// Package config defines the top-level configuration for the tax-loss
// harvesting service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TAXHARVEST_* environment variables.
type Config struct {
	Harvest      HarvestConfig      `toml:"harvest"`
	Alternatives AlternativesConfig `toml:"alternatives"`
	Broker       BrokerConfig       `toml:"broker"`
	Database     DatabaseConfig     `toml:"database"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Server       ServerConfig       `toml:"server"`
	Notify       NotifyConfig       `toml:"notify"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// HarvestConfig holds the decision-engine thresholds and execution timing.
type HarvestConfig struct {
	// MinLossAmount is the minimum absolute dollar loss worth harvesting.
	MinLossAmount float64 `toml:"min_loss_amount"`
	// MinLossPct is the minimum loss percentage worth harvesting (5 means 5%).
	MinLossPct float64 `toml:"min_loss_percentage"`
	// TaxRate is the single configured marginal rate used for savings.
	TaxRate float64 `toml:"tax_rate"`
	// WashSaleWindowDays is the look-back window for wash-sale checks.
	WashSaleWindowDays int `toml:"wash_sale_window_days"`
	// CacheTTL bounds how long a computed analysis report may be served.
	CacheTTL duration `toml:"opportunity_cache_ttl"`
	// OrderTimeout bounds the wait for a single brokerage order to fill.
	OrderTimeout duration `toml:"order_timeout"`
	// OrderPollInterval is the base interval for order-status polling.
	OrderPollInterval duration `toml:"order_poll_interval"`
	// LockTTL bounds how long an execution may hold its advisory lock.
	LockTTL duration `toml:"lock_ttl"`
}

// AlternativesConfig holds the substitute-instrument mapping tables. These are
// configuration, not algorithms: "substantially identical" and "similar but
// compliant" are both declared here.
type AlternativesConfig struct {
	// Symbols maps a symbol to its ordered compliant substitutes.
	Symbols map[string][]string `toml:"symbols"`
	// Sectors maps a sector to a default substitute set, used when no
	// symbol-level mapping exists.
	Sectors map[string][]string `toml:"sectors"`
	// BroadMarket is the fallback set for plain stocks with no sector mapping.
	BroadMarket []string `toml:"broad_market"`
	// Identical maps a symbol to symbols considered substantially identical to
	// it for wash-sale purposes. Applied symmetrically at load.
	Identical map[string][]string `toml:"identical"`
	// Names maps a symbol to its display name. Unknown symbols render as
	// "<SYM> ETF".
	Names map[string]string `toml:"names"`
}

// BrokerConfig holds brokerage execution API parameters.
type BrokerConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	// Paper routes orders to the paper-trading endpoint.
	Paper bool `toml:"paper"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values,
// including the stock alternative and identity tables.
func Defaults() Config {
	return Config{
		Harvest: HarvestConfig{
			MinLossAmount:      500.0,
			MinLossPct:         5.0,
			TaxRate:            0.27,
			WashSaleWindowDays: 30,
			CacheTTL:           duration{5 * time.Minute},
			OrderTimeout:       duration{30 * time.Second},
			OrderPollInterval:  duration{500 * time.Millisecond},
			LockTTL:            duration{2 * time.Minute},
		},
		Alternatives: AlternativesConfig{
			Symbols: map[string][]string{
				"SPY":  {"VOO", "IVV", "SWPPX"},
				"VOO":  {"SPY", "IVV", "SWPPX"},
				"IVV":  {"SPY", "VOO", "SWPPX"},
				"QQQ":  {"ONEQ", "QQQM", "FTEC"},
				"VTI":  {"ITOT", "SCHB", "SWTSX"},
				"ITOT": {"VTI", "SCHB", "SWTSX"},
				"VEA":  {"IXUS", "IEFA", "VXUS"},
				"VXUS": {"IXUS", "VEA", "IEFA"},
				"IXUS": {"VEA", "VXUS", "IEFA"},
				"BND":  {"AGG", "SCHZ", "VBTLX"},
				"AGG":  {"BND", "SCHZ", "VBTLX"},
				"GLD":  {"IAU", "SGOL", "OUNZ"},
				"IAU":  {"GLD", "SGOL", "OUNZ"},
				"VNQ":  {"SCHH", "USRT", "RWR"},
				"SCHH": {"VNQ", "USRT", "RWR"},
			},
			Sectors: map[string][]string{
				"technology":  {"XLK", "FTEC", "VGT"},
				"healthcare":  {"XLV", "VHT", "FHLC"},
				"financial":   {"XLF", "VFH", "FNCL"},
				"consumer":    {"XLY", "VCR", "FDIS"},
				"energy":      {"XLE", "VDE", "FENY"},
				"industrial":  {"XLI", "VIS", "FIDU"},
				"materials":   {"XLB", "VAW", "FMAT"},
				"utilities":   {"XLU", "VPU", "FUTY"},
				"real_estate": {"VNQ", "SCHH", "USRT"},
			},
			BroadMarket: []string{"VTI", "ITOT", "SCHB"},
			Identical: map[string][]string{
				// Share classes of the same underlying fund.
				"VOO": {"VFIAX"},
				"VTI": {"VTSAX"},
			},
			Names: map[string]string{
				"VTI":  "Vanguard Total Stock Market ETF",
				"ITOT": "iShares Core S&P Total Stock Market ETF",
				"SCHB": "Schwab U.S. Broad Market ETF",
				"VOO":  "Vanguard S&P 500 ETF",
				"IVV":  "iShares Core S&P 500 ETF",
				"SPY":  "SPDR S&P 500 ETF Trust",
			},
		},
		Broker: BrokerConfig{
			BaseURL: "https://api.alpaca.markets",
			Paper:   true,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "taxharvest",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "taxharvest-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"harvest_completed", "partial_execution", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"scan":   true,
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

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Harvest thresholds.
	if c.Harvest.MinLossAmount <= 0 {
		errs = append(errs, "harvest: min_loss_amount must be > 0")
	}
	if c.Harvest.MinLossPct <= 0 || c.Harvest.MinLossPct >= 100 {
		errs = append(errs, "harvest: min_loss_percentage must be in (0, 100)")
	}
	if c.Harvest.TaxRate <= 0 || c.Harvest.TaxRate >= 1 {
		errs = append(errs, "harvest: tax_rate must be in (0, 1)")
	}
	if c.Harvest.WashSaleWindowDays < 1 {
		errs = append(errs, "harvest: wash_sale_window_days must be >= 1")
	}
	if c.Harvest.CacheTTL.Duration <= 0 {
		errs = append(errs, "harvest: opportunity_cache_ttl must be > 0")
	}
	if c.Harvest.OrderTimeout.Duration <= 0 {
		errs = append(errs, "harvest: order_timeout must be > 0")
	}

	// Broker credentials are only required in server mode, where executions run.
	if strings.ToLower(c.Mode) == "server" {
		if c.Broker.BaseURL == "" {
			errs = append(errs, "broker: base_url must not be empty")
		}
		if c.Broker.APIKey == "" || c.Broker.APISecret == "" {
			errs = append(errs, "broker: api_key and api_secret are required for mode server")
		}
	}

	// Database.
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must be in [0, pool_max_conns]")
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server.
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
