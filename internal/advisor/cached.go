package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/cache"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Cache TTLs: satellite soil products refresh daily, forecasts every few hours.
const (
	DefaultSoilTTL    = 6 * time.Hour
	DefaultWeatherTTL = 3 * time.Hour
)

// CachedSoil serves soil readings from c before calling Next. Coordinates
// are rounded to three decimals (about 100 m) for the key.
type CachedSoil struct {
	Next  SoilMoistureProvider
	Cache cache.Cache
	TTL   time.Duration
}

func (s CachedSoil) SoilMoisture(ctx context.Context, lat, lon float64) (*model.SoilMoistureReading, error) {
	key := SoilCacheKey(lat, lon)
	if r, ok, err := cache.GetJSON[model.SoilMoistureReading](ctx, s.Cache, key); err != nil {
		zap.L().Debug("advisor: soil cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return r, nil
	}

	r, err := s.Next.SoilMoisture(ctx, lat, lon)
	if err != nil || r == nil {
		return r, err
	}
	if err := cache.SetJSON(ctx, s.Cache, key, r, ttlOr(s.TTL, DefaultSoilTTL)); err != nil {
		zap.L().Debug("advisor: soil cache write failed", zap.String("key", key), zap.Error(err))
	}
	return r, nil
}

// CachedForecast serves forecasts from c before calling Next. Empty results
// are not cached so a provider outage is retried on the next request.
type CachedForecast struct {
	Next  ForecastProvider
	Cache cache.Cache
	TTL   time.Duration
}

func (f CachedForecast) Forecast(ctx context.Context, loc model.Location, days int) ([]model.WeatherDayForecast, error) {
	key := ForecastCacheKey(loc, days)
	if r, ok, err := cache.GetJSON[[]model.WeatherDayForecast](ctx, f.Cache, key); err != nil {
		zap.L().Debug("advisor: forecast cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return *r, nil
	}

	r, err := f.Next.Forecast(ctx, loc, days)
	if err != nil || len(r) == 0 {
		return r, err
	}
	if err := cache.SetJSON(ctx, f.Cache, key, r, ttlOr(f.TTL, DefaultWeatherTTL)); err != nil {
		zap.L().Debug("advisor: forecast cache write failed", zap.String("key", key), zap.Error(err))
	}
	return r, nil
}

// SoilCacheKey is the cache key for a soil reading at a point.
func SoilCacheKey(lat, lon float64) string {
	return fmt.Sprintf("soil:%.3f:%.3f", lat, lon)
}

// ForecastCacheKey is the cache key for a forecast request.
func ForecastCacheKey(loc model.Location, days int) string {
	if name := strings.ToLower(strings.TrimSpace(loc.Name)); name != "" {
		return fmt.Sprintf("forecast:%s:%d", name, days)
	}
	return fmt.Sprintf("forecast:%.2f:%.2f:%d", loc.Latitude, loc.Longitude, days)
}

func ttlOr(ttl, def time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return def
}
