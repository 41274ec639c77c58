package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"pumptrader/internal/logging"
	"pumptrader/internal/policy"
)

// Config materialises application configuration.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Logging       logging.Config     `mapstructure:"logging"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Rules         PolicyConfig       `mapstructure:"policy"`
	AutoTrade     AutoTradeConfig    `mapstructure:"auto_trade"`
	Scanner       ScannerConfig      `mapstructure:"scanner"`
	Venue         VenueConfig        `mapstructure:"venue"`
	Telegram      TelegramConfig     `mapstructure:"telegram"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Export        ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN keeps the ledger in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs cycle cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunImmediately  bool          `mapstructure:"run_immediately"`
}

// PolicyConfig holds the candidate thresholds and cooldown.
type PolicyConfig struct {
	SafetyThreshold float64         `mapstructure:"safety_threshold"`
	MinVolume       decimal.Decimal `mapstructure:"min_volume"`
	MinEngagement   float64         `mapstructure:"min_engagement"`
	Cooldown        time.Duration   `mapstructure:"cooldown"`
	MaxConcurrency  int             `mapstructure:"max_concurrency"`
}

// AutoTradeConfig toggles automatic buys.
type AutoTradeConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Amount  decimal.Decimal `mapstructure:"amount"`
}

// ScannerConfig points at the token feed.
type ScannerConfig struct {
	SourceURL      string        `mapstructure:"source_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// VenueConfig captures trade API connectivity.
type VenueConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig describes the bot used for notifications and commands.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Commands       bool          `mapstructure:"commands"`
	PollTimeout    int           `mapstructure:"poll_timeout"`
}

// Enabled reports whether a bot is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// NotificationConfig sizes the outbound message queue.
type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// CacheConfig selects the feed response cache. An empty RedisAddr uses process memory.
type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Prefix        string `mapstructure:"prefix"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUMPTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pumptrader")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70756d70))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_immediately", true)

	v.SetDefault("policy.safety_threshold", 70.0)
	v.SetDefault("policy.min_volume", "1000")
	v.SetDefault("policy.min_engagement", 10.0)
	v.SetDefault("policy.cooldown", "10m")
	v.SetDefault("policy.max_concurrency", 4)

	v.SetDefault("auto_trade.enabled", false)
	v.SetDefault("auto_trade.amount", "0")

	v.SetDefault("scanner.request_timeout", "10s")
	v.SetDefault("scanner.cache_ttl", "0s")
	v.SetDefault("scanner.user_agent", "pumptrader/1.0")

	v.SetDefault("venue.request_timeout", "15s")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")
	v.SetDefault("telegram.commands", true)
	v.SetDefault("telegram.poll_timeout", 30)

	v.SetDefault("notifications.queue_size", 256)

	v.SetDefault("cache.prefix", "pumptrader:")

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			decimalHookFunc(),
		)
	}
}

// decimalHookFunc decodes strings and YAML numbers into decimal.Decimal.
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case uint64:
			return decimal.NewFromUint64(v), nil
		case decimal.Decimal:
			return v, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into decimal", data)
		}
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s")
	}
	if c.Rules.SafetyThreshold < 0 || c.Rules.SafetyThreshold > 100 {
		return fmt.Errorf("policy.safety_threshold must be within [0, 100]")
	}
	if c.Rules.MinVolume.IsNegative() {
		return fmt.Errorf("policy.min_volume cannot be negative")
	}
	if c.Rules.MinEngagement < 0 {
		return fmt.Errorf("policy.min_engagement cannot be negative")
	}
	if c.Rules.Cooldown < 0 {
		return fmt.Errorf("policy.cooldown cannot be negative")
	}
	if c.Rules.MaxConcurrency <= 0 {
		return fmt.Errorf("policy.max_concurrency must be greater than zero")
	}
	if c.AutoTrade.Enabled {
		if !c.AutoTrade.Amount.IsPositive() {
			return fmt.Errorf("auto_trade.amount must be greater than zero when auto_trade is enabled")
		}
		if c.Venue.Endpoint == "" {
			return fmt.Errorf("venue.endpoint must be set when auto_trade is enabled")
		}
	}
	if c.Telegram.Enabled() && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id must be set when telegram.bot_token is configured")
	}
	if c.Notifications.QueueSize <= 0 {
		return fmt.Errorf("notifications.queue_size must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// Policy returns the immutable trading policy described by the configuration.
func (c *Config) Policy() policy.Policy {
	return policy.Policy{
		Thresholds: policy.Thresholds{
			SafetyScore:   c.Rules.SafetyThreshold,
			MinVolume:     c.Rules.MinVolume,
			MinEngagement: c.Rules.MinEngagement,
		},
		AutoTrade: policy.AutoTrade{
			Enabled: c.AutoTrade.Enabled,
			Amount:  c.AutoTrade.Amount,
		},
		Cooldown:       c.Rules.Cooldown,
		MaxConcurrency: c.Rules.MaxConcurrency,
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
