package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Orders    OrdersConfig    `yaml:"orders" mapstructure:"orders"`
	Mapping   MappingConfig   `yaml:"mapping" mapstructure:"mapping"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OrdersConfig locates the order export.
type OrdersConfig struct {
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
}

// MappingConfig locates the restaurant reference table.
type MappingConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RegistryConfig configures the inspection registry client.
type RegistryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	AppToken    string  `yaml:"app_token" mapstructure:"app_token"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRecords  int     `yaml:"max_records" mapstructure:"max_records"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig configures the inspection snapshot store.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxAgeDays  int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	// RefreshIntervalMins re-fetches every window in the background while
	// serving. Zero disables it.
	RefreshIntervalMins int `yaml:"refresh_interval_mins" mapstructure:"refresh_interval_mins"`
}

// AnalyticsConfig configures windows and list sizes.
type AnalyticsConfig struct {
	DefaultDays    int   `yaml:"default_days" mapstructure:"default_days"`
	WatchlistSize  int   `yaml:"watchlist_size" mapstructure:"watchlist_size"`
	AllowedWindows []int `yaml:"allowed_windows" mapstructure:"allowed_windows"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("orders.csv_path", "food_orders.csv")
	v.SetDefault("mapping.path", "data/restaurant_mapping.json")
	v.SetDefault("registry.base_url", "https://data.cityofnewyork.us/resource/43nn-pn8j.json")
	v.SetDefault("registry.app_token", "")
	v.SetDefault("registry.batch_size", 10000)
	v.SetDefault("registry.max_records", 200000)
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.rate_limit", 5.0)
	v.SetDefault("registry.max_retries", 3)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.database_url", "inspection-risk.db")
	v.SetDefault("cache.max_age_days", 7)
	v.SetDefault("cache.refresh_interval_mins", 0)
	v.SetDefault("analytics.default_days", 90)
	v.SetDefault("analytics.watchlist_size", 10)
	v.SetDefault("analytics.allowed_windows", []int{7, 30, 90})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "serve", "analyze" and "sync".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateInputs()...)
		errs = append(errs, c.validateRegistry()...)
		errs = append(errs, c.validateCache()...)
		errs = append(errs, c.validateAnalytics()...)
	case "analyze":
		errs = append(errs, c.validateInputs()...)
		errs = append(errs, c.validateRegistry()...)
		errs = append(errs, c.validateCache()...)
		errs = append(errs, c.validateAnalytics()...)
	case "sync":
		errs = append(errs, c.validateRegistry()...)
		errs = append(errs, c.validateCache()...)
		if c.Cache.Driver == "none" || c.Cache.Driver == "" {
			errs = append(errs, "cache.driver must not be none for sync")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateInputs() []string {
	var errs []string
	if c.Orders.CSVPath == "" {
		errs = append(errs, "orders.csv_path is required")
	}
	return errs
}

func (c *Config) validateRegistry() []string {
	var errs []string
	if c.Registry.BaseURL == "" {
		errs = append(errs, "registry.base_url is required")
	}
	if c.Registry.BatchSize < 1 || c.Registry.BatchSize > 50000 {
		errs = append(errs, "registry.batch_size must be between 1 and 50000")
	}
	if c.Registry.MaxRecords < 0 {
		errs = append(errs, "registry.max_records must be >= 0")
	}
	if c.Registry.RateLimit < 0 {
		errs = append(errs, "registry.rate_limit must be >= 0")
	}
	if c.Registry.MaxRetries < 0 {
		errs = append(errs, "registry.max_retries must be >= 0")
	}
	return errs
}

func (c *Config) validateCache() []string {
	var errs []string
	switch c.Cache.Driver {
	case "sqlite", "postgres":
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, "cache.database_url is required")
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of sqlite, postgres, none", c.Cache.Driver))
	}
	if c.Cache.MaxAgeDays < 0 {
		errs = append(errs, "cache.max_age_days must be >= 0")
	}
	if c.Cache.RefreshIntervalMins < 0 {
		errs = append(errs, "cache.refresh_interval_mins must be >= 0")
	}
	return errs
}

func (c *Config) validateAnalytics() []string {
	var errs []string
	if len(c.Analytics.AllowedWindows) == 0 {
		errs = append(errs, "analytics.allowed_windows must not be empty")
	}
	for _, w := range c.Analytics.AllowedWindows {
		if w <= 0 {
			errs = append(errs, "analytics.allowed_windows values must be > 0")
			break
		}
	}
	if len(c.Analytics.AllowedWindows) > 0 && !slices.Contains(c.Analytics.AllowedWindows, c.Analytics.DefaultDays) {
		errs = append(errs, "analytics.default_days must be one of analytics.allowed_windows")
	}
	if c.Analytics.WatchlistSize < 1 || c.Analytics.WatchlistSize > 100 {
		errs = append(errs, "analytics.watchlist_size must be between 1 and 100")
	}
	return errs
}

// CheckWindow reports whether days is one of the allowed analytics windows.
func (c *Config) CheckWindow(days int) error {
	if slices.Contains(c.Analytics.AllowedWindows, days) {
		return nil
	}
	windows := make([]string, len(c.Analytics.AllowedWindows))
	for i, w := range c.Analytics.AllowedWindows {
		windows[i] = fmt.Sprint(w)
	}
	return eris.Errorf("config: days must be one of %s (got %d)", strings.Join(windows, ", "), days)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
