package advisor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kheti-labs/irrigation-advisor/internal/irrigation"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Timeouts bound each collaborator fetch individually.
type Timeouts struct {
	Context time.Duration
	Soil    time.Duration
	Weather time.Duration
	History time.Duration
}

// Config tunes the fetch phase.
type Config struct {
	Timeouts     Timeouts
	ForecastDays int
	HistoryDays  int
}

// DefaultConfig matches the upstream HTTP timeouts.
func DefaultConfig() Config {
	return Config{
		Timeouts: Timeouts{
			Context: 10 * time.Second,
			Soil:    15 * time.Second,
			Weather: 10 * time.Second,
			History: 10 * time.Second,
		},
		ForecastDays: 5,
		HistoryDays:  14,
	}
}

// Providers groups the collaborators. Any of them may be nil, which reads
// as permanently unavailable.
type Providers struct {
	Contexts ContextProvider
	Soil     SoilMoistureProvider
	Forecast ForecastProvider
	History  HistoryProvider
}

// Service runs the fetch phase and the decision engine.
type Service struct {
	engine    *irrigation.Engine
	providers Providers
	cfg       Config
}

// NewService creates a Service. Zero durations and counts in cfg fall back
// to DefaultConfig.
func NewService(engine *irrigation.Engine, providers Providers, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Timeouts.Context <= 0 {
		cfg.Timeouts.Context = def.Timeouts.Context
	}
	if cfg.Timeouts.Soil <= 0 {
		cfg.Timeouts.Soil = def.Timeouts.Soil
	}
	if cfg.Timeouts.Weather <= 0 {
		cfg.Timeouts.Weather = def.Timeouts.Weather
	}
	if cfg.Timeouts.History <= 0 {
		cfg.Timeouts.History = def.Timeouts.History
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = def.ForecastDays
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	return &Service{engine: engine, providers: providers, cfg: cfg}
}

// Advise validates req, gathers inputs and returns the decision. Only
// invalid input produces an error; missing or slow data degrades the
// decision instead.
func (s *Service) Advise(ctx context.Context, req model.DecisionRequest) (*model.IrrigationDecision, error) {
	if err := irrigation.ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	in := s.Gather(ctx, req)

	d, err := s.engine.Evaluate(in)
	if err != nil {
		// Evaluate only rejects malformed inputs; keep the ValidationError intact.
		return nil, err
	}

	zap.L().Debug("advisor: advise complete",
		zap.String("farmer_id", req.FarmerID),
		zap.String("crop", req.CropName),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return d, nil
}

// Gather runs the up to four fetches concurrently. Failures and timeouts
// are logged and leave the corresponding input empty.
func (s *Service) Gather(ctx context.Context, req model.DecisionRequest) irrigation.Inputs {
	in := irrigation.Inputs{CropName: req.CropName}
	loc := model.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	p := s.providers

	g, gCtx := errgroup.WithContext(ctx)

	if p.Contexts != nil {
		g.Go(func() error {
			in.Context, _ = fetch(gCtx, "farming_context", s.cfg.Timeouts.Context,
				func(ctx context.Context) (*model.FarmingContext, error) {
					return p.Contexts.GetFarmingContext(ctx, req.FarmerID)
				})
			return nil
		})
	}

	if p.Soil != nil {
		g.Go(func() error {
			soil, _ := fetch(gCtx, "soil_moisture", s.cfg.Timeouts.Soil,
				func(ctx context.Context) (*model.SoilMoistureReading, error) {
					return p.Soil.SoilMoisture(ctx, req.Latitude, req.Longitude)
				})
			in.Soil = sanitizeSoil(soil)
			return nil
		})
	}

	if p.Forecast != nil {
		g.Go(func() error {
			days, _ := fetch(gCtx, "weather_forecast", s.cfg.Timeouts.Weather,
				func(ctx context.Context) ([]model.WeatherDayForecast, error) {
					return p.Forecast.Forecast(ctx, loc, s.cfg.ForecastDays)
				})
			in.Forecast = NormalizeForecast(days)
			return nil
		})
	}

	if p.History != nil {
		g.Go(func() error {
			in.History, _ = fetch(gCtx, "irrigation_history", s.cfg.Timeouts.History,
				func(ctx context.Context) ([]model.IrrigationHistoryEntry, error) {
					return p.History.IrrigationHistory(ctx, req.FarmerID, s.cfg.HistoryDays)
				})
			return nil
		})
	}

	// Fetch goroutines absorb their own errors.
	_ = g.Wait()
	return in
}

type result[T any] struct {
	val T
	err error
}

// fetch runs fn under its own deadline. It returns as soon as the deadline
// passes even if fn ignores its context; the abandoned call finishes in the
// background and its result is discarded.
func fetch[T any](ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil {
			zap.L().Warn("advisor: fetch failed, treating as unavailable",
				zap.String("source", name),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(r.err),
			)
			return zero, false
		}
		return r.val, true
	case <-ctx.Done():
		zap.L().Warn("advisor: fetch timed out, treating as unavailable",
			zap.String("source", name),
			zap.Duration("timeout", timeout),
			zap.Error(ctx.Err()),
		)
		return zero, false
	}
}
