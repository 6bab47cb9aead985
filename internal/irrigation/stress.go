package irrigation

import (
	"math"

	"github.com/kheti-labs/irrigation-advisor/internal/cropwater"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Stress is the composite water stress index with the parts it was built
// from. Value is meaningful only when Known is true.
type Stress struct {
	Value        float64 `json:"value"`
	Known        bool    `json:"known"`
	Moisture     float64 `json:"moisture"`
	HasMoisture  bool    `json:"has_moisture"`
	Weather      float64 `json:"weather"`
	HasWeather   bool    `json:"has_weather"`
	WaterBalance float64 `json:"water_balance"` // rain minus ET0 over the first three days, mm
	StageFactor  float64 `json:"stage_factor"`
}

// stress window and weighting
const (
	balanceWindowDays = 3
	moistureWeight    = 0.6
	weatherWeight     = 0.4
)

// StressCalculator scores crop water deficit in [0,1].
type StressCalculator struct {
	crops *cropwater.Model
}

// NewStressCalculator creates a calculator backed by crops.
func NewStressCalculator(crops *cropwater.Model) *StressCalculator {
	return &StressCalculator{crops: crops}
}

// Calculate combines a moisture sub-score and a forecast water balance
// sub-score, then scales by growth-stage sensitivity. When neither soil nor
// forecast is present the result is unknown.
func (c *StressCalculator) Calculate(crop string, stage model.CropStage, soil *model.SoilMoistureReading, forecast []model.WeatherDayForecast) Stress {
	var s Stress

	if soil != nil {
		s.Moisture = moistureScore(soil.RootZoneMoisture, c.crops.MoistureThresholds(crop))
		s.HasMoisture = true
	}

	if len(forecast) > 0 {
		s.WaterBalance = waterBalance(forecast, balanceWindowDays)
		s.Weather = weatherScore(s.WaterBalance)
		s.HasWeather = true
	}

	var raw float64
	switch {
	case s.HasMoisture && s.HasWeather:
		raw = moistureWeight*s.Moisture + weatherWeight*s.Weather
	case s.HasMoisture:
		raw = s.Moisture
	case s.HasWeather:
		raw = s.Weather
	default:
		return s
	}

	s.StageFactor = c.crops.StageSensitivity(stage)
	s.Value = clamp01(raw * s.StageFactor)
	s.Known = true
	return s
}

func moistureScore(value float64, t cropwater.Thresholds) float64 {
	switch {
	case value < t.Critical:
		return 1.0
	case value < t.Optimal:
		return (t.Optimal - value) / (t.Optimal - t.Critical)
	default:
		return 0.0
	}
}

func weatherScore(balance float64) float64 {
	switch {
	case balance < -10:
		return 0.8
	case balance < 0:
		return 0.4
	default:
		return 0.0
	}
}

// waterBalance is precipitation minus ET0 summed over the first n days.
func waterBalance(forecast []model.WeatherDayForecast, n int) float64 {
	var rain, et float64
	for _, f := range head(forecast, n) {
		rain += f.PrecipitationMM
		et += f.ET0
	}
	return rain - et
}

func head(forecast []model.WeatherDayForecast, n int) []model.WeatherDayForecast {
	if len(forecast) < n {
		return forecast
	}
	return forecast[:n]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
