package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	NASAPower   NASAPowerConfig   `yaml:"nasapower" mapstructure:"nasapower"`
	OpenWeather OpenWeatherConfig `yaml:"openweather" mapstructure:"openweather"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Resilience  ResilienceConfig  `yaml:"resilience" mapstructure:"resilience"`
	Crops       CropsConfig       `yaml:"crops" mapstructure:"crops"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
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

// FetchConfig bounds the collaborator fetches made per decision.
type FetchConfig struct {
	ContextTimeoutSecs int `yaml:"context_timeout_secs" mapstructure:"context_timeout_secs"`
	SoilTimeoutSecs    int `yaml:"soil_timeout_secs" mapstructure:"soil_timeout_secs"`
	WeatherTimeoutSecs int `yaml:"weather_timeout_secs" mapstructure:"weather_timeout_secs"`
	HistoryTimeoutSecs int `yaml:"history_timeout_secs" mapstructure:"history_timeout_secs"`
	ForecastDays       int `yaml:"forecast_days" mapstructure:"forecast_days"`
	HistoryDays        int `yaml:"history_days" mapstructure:"history_days"`
}

// CacheConfig configures the provider payload cache.
type CacheConfig struct {
	SoilTTLHours    int   `yaml:"soil_ttl_hours" mapstructure:"soil_ttl_hours"`
	WeatherTTLHours int   `yaml:"weather_ttl_hours" mapstructure:"weather_ttl_hours"`
	MaxCostBytes    int64 `yaml:"max_cost_bytes" mapstructure:"max_cost_bytes"`
	Disabled        bool  `yaml:"disabled" mapstructure:"disabled"`
}

// NASAPowerConfig holds NASA POWER API settings.
type NASAPowerConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	LookbackDays int     `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// OpenWeatherConfig holds OpenWeather API settings.
type OpenWeatherConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EngineConfig holds decision engine tunables.
type EngineConfig struct {
	DefaultFrequencyDays float64 `yaml:"default_frequency_days" mapstructure:"default_frequency_days"`
	DefaultEffectiveness float64 `yaml:"default_effectiveness" mapstructure:"default_effectiveness"`
	PlantsPerAcre        float64 `yaml:"plants_per_acre" mapstructure:"plants_per_acre"`
}

// ResilienceConfig configures retries and circuit breakers for provider calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CropsConfig points at an optional crop table override.
type CropsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ReportConfig configures the batch report.
type ReportConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Timeout converts a seconds setting to a duration.
func Timeout(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// Validate checks the settings a command mode depends on. Modes: "advise",
// "serve", "report".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Fetch.ForecastDays < 1 || c.Fetch.ForecastDays > 7 {
		errs = append(errs, "fetch.forecast_days must be between 1 and 7")
	}
	if c.Fetch.HistoryDays < 1 {
		errs = append(errs, "fetch.history_days must be > 0")
	}
	if c.Engine.DefaultEffectiveness < 0 || c.Engine.DefaultEffectiveness > 1 {
		errs = append(errs, "engine.default_effectiveness must be between 0 and 1")
	}
	if c.Engine.DefaultFrequencyDays <= 0 {
		errs = append(errs, "engine.default_frequency_days must be > 0")
	}

	switch mode {
	case "advise":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "report":
		if c.Report.Concurrency < 1 || c.Report.Concurrency > 32 {
			errs = append(errs, "report.concurrency must be between 1 and 32")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IRRIGATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "irrigation.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("fetch.context_timeout_secs", 10)
	v.SetDefault("fetch.soil_timeout_secs", 15)
	v.SetDefault("fetch.weather_timeout_secs", 10)
	v.SetDefault("fetch.history_timeout_secs", 10)
	v.SetDefault("fetch.forecast_days", 5)
	v.SetDefault("fetch.history_days", 14)
	v.SetDefault("cache.soil_ttl_hours", 6)
	v.SetDefault("cache.weather_ttl_hours", 3)
	v.SetDefault("cache.max_cost_bytes", 32<<20)
	v.SetDefault("cache.disabled", false)
	v.SetDefault("nasapower.base_url", "https://power.larc.nasa.gov/api/temporal/daily/point")
	v.SetDefault("nasapower.rate_limit", 2.0)
	v.SetDefault("nasapower.lookback_days", 3)
	v.SetDefault("openweather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("openweather.key", "")
	v.SetDefault("engine.default_frequency_days", 7.0)
	v.SetDefault("engine.default_effectiveness", 0.5)
	v.SetDefault("engine.plants_per_acre", 10000.0)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("crops.file", "")
	v.SetDefault("report.concurrency", 4)

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
