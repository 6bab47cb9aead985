package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/advisor"
	"github.com/kheti-labs/irrigation-advisor/internal/cache"
	"github.com/kheti-labs/irrigation-advisor/internal/config"
	"github.com/kheti-labs/irrigation-advisor/internal/cropwater"
	"github.com/kheti-labs/irrigation-advisor/internal/db"
	"github.com/kheti-labs/irrigation-advisor/internal/irrigation"
	"github.com/kheti-labs/irrigation-advisor/internal/resilience"
	"github.com/kheti-labs/irrigation-advisor/internal/store"
	"github.com/kheti-labs/irrigation-advisor/pkg/nasapower"
	"github.com/kheti-labs/irrigation-advisor/pkg/openweather"
)

// Provider names used for breakers and logs.
const (
	providerNASAPower   = "nasa_power"
	providerOpenWeather = "openweather"
)

// appEnv holds the initialized store, cache and advisor needed by the
// advise/serve/report commands.
type appEnv struct {
	Store    store.Store
	Memory   *cache.Memory // nil when caching is disabled
	Breakers *resilience.Breakers
	Advisor  *advisor.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Memory != nil {
		e.Memory.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "irrigation.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initEngine(c *config.Config) (*irrigation.Engine, error) {
	crops := cropwater.Default()
	if c.Crops.File != "" {
		m, err := cropwater.Load(c.Crops.File)
		if err != nil {
			return nil, eris.Wrap(err, "load crop tables")
		}
		crops = m
		zap.L().Info("crop tables loaded", zap.String("file", c.Crops.File))
	}

	opts := []irrigation.Option{irrigation.WithPlantsPerAcre(c.Engine.PlantsPerAcre)}
	if c.Engine.DefaultFrequencyDays > 0 {
		opts = append(opts, irrigation.WithPatternDefaults(irrigation.PatternDefaults{
			FrequencyDays: c.Engine.DefaultFrequencyDays,
			Effectiveness: c.Engine.DefaultEffectiveness,
		}))
	}
	return irrigation.NewEngine(crops, opts...), nil
}

// buildProviders wires the provider clients behind breakers and, unless
// disabled, the tiered payload cache.
func buildProviders(c *config.Config, st store.Store, mem *cache.Memory, breakers *resilience.Breakers) advisor.Providers {
	retry := resilience.FromRetryConfig(c.Resilience.MaxAttempts, c.Resilience.InitialBackoffMs, c.Resilience.MaxBackoffMs)

	var soil advisor.SoilMoistureProvider = nasapower.NewClient(
		nasapower.WithBaseURL(c.NASAPower.BaseURL),
		nasapower.WithRateLimit(c.NASAPower.RateLimit),
		nasapower.WithLookbackDays(c.NASAPower.LookbackDays),
		nasapower.WithGuard(resilience.NewGuard(breakers.Get(providerNASAPower), retry, providerNASAPower, "daily_point")),
	)

	var forecast advisor.ForecastProvider
	if c.OpenWeather.Key != "" {
		forecast = openweather.NewClient(c.OpenWeather.Key,
			openweather.WithBaseURL(c.OpenWeather.BaseURL),
			openweather.WithGuard(resilience.NewGuard(breakers.Get(providerOpenWeather), retry, providerOpenWeather, "forecast")),
		)
	} else {
		zap.L().Warn("IRRIGATION_OPENWEATHER_KEY not set, weather forecasts disabled")
	}

	if mem != nil {
		tiered := cache.NewTiered(mem, cache.NewPersistent(st), time.Hour)
		soil = advisor.CachedSoil{Next: soil, Cache: tiered, TTL: time.Duration(c.Cache.SoilTTLHours) * time.Hour}
		if forecast != nil {
			forecast = advisor.CachedForecast{Next: forecast, Cache: tiered, TTL: time.Duration(c.Cache.WeatherTTLHours) * time.Hour}
		}
	}

	return advisor.Providers{
		Contexts: st,
		Soil:     soil,
		Forecast: forecast,
		History:  advisor.StoreHistory{Lister: st},
	}
}

func advisorConfig(c *config.Config) advisor.Config {
	return advisor.Config{
		Timeouts: advisor.Timeouts{
			Context: config.Timeout(c.Fetch.ContextTimeoutSecs),
			Soil:    config.Timeout(c.Fetch.SoilTimeoutSecs),
			Weather: config.Timeout(c.Fetch.WeatherTimeoutSecs),
			History: config.Timeout(c.Fetch.HistoryTimeoutSecs),
		},
		ForecastDays: c.Fetch.ForecastDays,
		HistoryDays:  c.Fetch.HistoryDays,
	}
}

// initEnv validates config for mode, then opens the store and builds the
// advisor. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	engine, err := initEngine(cfg)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	env := &appEnv{
		Store:    st,
		Breakers: resilience.NewBreakers(resilience.FromBreakerConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs)),
	}

	if !cfg.Cache.Disabled {
		mem, err := cache.NewMemory(cfg.Cache.MaxCostBytes)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init memory cache")
		}
		env.Memory = mem
	}

	env.Advisor = advisor.NewService(engine, buildProviders(cfg, st, env.Memory, env.Breakers), advisorConfig(cfg))
	return env, nil
}
