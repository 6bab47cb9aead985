package advisor

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/irrigation"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// MaxForecastDays caps how far ahead the engine looks.
const MaxForecastDays = 7

// NormalizeForecast drops malformed days, orders the rest by date, caps the
// horizon and derives ET0 for days the provider left without one. The input
// slice is not modified.
func NormalizeForecast(days []model.WeatherDayForecast) []model.WeatherDayForecast {
	out := make([]model.WeatherDayForecast, 0, len(days))
	for _, d := range days {
		if err := irrigation.ValidateForecastDay(d); err != nil {
			zap.L().Warn("advisor: dropping forecast day", zap.Time("date", d.Date), zap.Error(err))
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > MaxForecastDays {
		out = out[:MaxForecastDays]
	}

	for i := range out {
		if out[i].ET0 <= 0 {
			out[i].ET0 = irrigation.ET0(out[i].MeanTemperature(), out[i].Humidity, out[i].WindSpeed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeSoil treats an out-of-range provider reading as unavailable.
func sanitizeSoil(s *model.SoilMoistureReading) *model.SoilMoistureReading {
	if s == nil {
		return nil
	}
	if err := irrigation.ValidateSoil(s); err != nil {
		zap.L().Warn("advisor: discarding soil reading", zap.String("source", s.Source), zap.Error(err))
		return nil
	}
	return s
}
