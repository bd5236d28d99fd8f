package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger         `mapstructure:"logger"`
	DB           Database       `mapstructure:"database"`
	API          API            `mapstructure:"api"`
	Scheduler    Scheduler      `mapstructure:"scheduler"`
	Pipeline     Pipeline       `mapstructure:"pipeline"`
	YahooFinance YahooFinance   `mapstructure:"yahoo_finance"`
	QuantWorker  QuantWorker    `mapstructure:"quant_worker"`
	Cache        Cache          `mapstructure:"cache"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	// Driver is either "postgres" or "sqlite".
	Driver          string `mapstructure:"driver"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type Scheduler struct {
	Enabled           bool          `mapstructure:"enabled"`
	Timezone          string        `mapstructure:"timezone"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	StaleRunThreshold time.Duration `mapstructure:"stale_run_threshold"`
	DefaultLogLimit   int           `mapstructure:"default_log_limit"`
	MaxLogLimit       int           `mapstructure:"max_log_limit"`
}

type Pipeline struct {
	MaxWorkers       int           `mapstructure:"max_workers"`
	CodeCacheTTL     time.Duration `mapstructure:"code_cache_ttl"`
	DefaultDaysBack  int           `mapstructure:"default_days_back"`
	PriceUpsertBatch int           `mapstructure:"price_upsert_batch"`
}

type API struct {
	Port      int       `mapstructure:"port"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
}

// RateLimit is the per-client budget of the admin API. A zero rate turns the
// limiter off.
type RateLimit struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	ExpiresIn         time.Duration `mapstructure:"expires_in"`
}

type YahooFinance struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

// QuantWorker is the HTTP service hosting feature computation, model
// training and fundamental collection.
type QuantWorker struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type TelegramConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	ChatID          int64         `mapstructure:"chat_id"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
	MaxAlertPerMin  int           `mapstructure:"max_alert_per_min"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "quant.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")

	v.SetDefault("api.port", 8000)
	v.SetDefault("api.rate_limit.requests_per_second", 5)
	v.SetDefault("api.rate_limit.burst", 20)
	v.SetDefault("api.rate_limit.expires_in", 3*time.Minute)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "Asia/Seoul")
	v.SetDefault("scheduler.shutdown_timeout", 30*time.Second)
	v.SetDefault("scheduler.stale_run_threshold", 6*time.Hour)
	v.SetDefault("scheduler.default_log_limit", 20)
	v.SetDefault("scheduler.max_log_limit", 100)

	v.SetDefault("pipeline.max_workers", 8)
	v.SetDefault("pipeline.code_cache_ttl", 10*time.Minute)
	v.SetDefault("pipeline.default_days_back", 30)
	v.SetDefault("pipeline.price_upsert_batch", 500)

	v.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("yahoo_finance.timeout", 15*time.Second)
	v.SetDefault("yahoo_finance.max_request_per_minute", 120)

	v.SetDefault("quant_worker.base_url", "http://localhost:8001")
	v.SetDefault("quant_worker.timeout", 2*time.Hour)

	v.SetDefault("cache.default_expiration", 10*time.Minute)
	v.SetDefault("cache.cleanup_interval", 30*time.Minute)

	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.max_alert_per_min", 20)
}

func Load() (*Config, error) {
	// .env is optional, real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline.max_workers must be positive")
	}
	return nil
}

// Location returns the scheduler timezone, falling back to UTC.
func (s Scheduler) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
