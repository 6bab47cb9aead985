package irrigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kheti-labs/irrigation-advisor/internal/cropwater"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

func soilAt(root float64) *model.SoilMoistureReading {
	return &model.SoilMoistureReading{RootZoneMoisture: root, Source: "test"}
}

func dryForecast(days int) []model.WeatherDayForecast {
	out := make([]model.WeatherDayForecast, days)
	for i := range out {
		out[i] = model.WeatherDayForecast{TemperatureMax: 30, ET0: 5}
	}
	return out
}

func TestStress_BelowCritical(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	s := c.Calculate("rice", model.StageFlowering, soilAt(70), nil)
	assert.True(t, s.Known)
	assert.InDelta(t, 1.0, s.Moisture, 1e-9)
	assert.InDelta(t, 1.0, s.Value, 1e-9)
	assert.False(t, s.HasWeather)
}

func TestStress_Interpolates(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	// wheat critical=40 optimal=60: (60-50)/20 = 0.5, flowering factor 1.0
	s := c.Calculate("wheat", model.StageFlowering, soilAt(50), nil)
	assert.InDelta(t, 0.5, s.Value, 1e-9)
}

func TestStress_AtOrAboveOptimal(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	assert.InDelta(t, 0.0, c.Calculate("wheat", model.StageFlowering, soilAt(60), nil).Value, 1e-9)
	assert.InDelta(t, 0.0, c.Calculate("wheat", model.StageFlowering, soilAt(95), nil).Value, 1e-9)
}

func TestStress_WeatherOnly(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())

	// 3 days × 5mm ET0, no rain → balance -15 → 0.8; vegetative 0.6 → 0.48
	s := c.Calculate("wheat", model.StageVegetative, nil, dryForecast(5))
	assert.True(t, s.Known)
	assert.False(t, s.HasMoisture)
	assert.InDelta(t, -15.0, s.WaterBalance, 1e-9)
	assert.InDelta(t, 0.8, s.Weather, 1e-9)
	assert.InDelta(t, 0.48, s.Value, 1e-9)
}

func TestStress_WeatherBands(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	mild := []model.WeatherDayForecast{{ET0: 4, PrecipitationMM: 1}}
	assert.InDelta(t, 0.4, c.Calculate("wheat", model.StageFlowering, nil, mild).Weather, 1e-9)

	wet := []model.WeatherDayForecast{{ET0: 4, PrecipitationMM: 20}}
	assert.InDelta(t, 0.0, c.Calculate("wheat", model.StageFlowering, nil, wet).Weather, 1e-9)
}

func TestStress_OnlyFirstThreeDaysCount(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	f := dryForecast(3)
	f = append(f, model.WeatherDayForecast{PrecipitationMM: 100})
	assert.InDelta(t, -15.0, c.Calculate("wheat", model.StageFlowering, nil, f).WaterBalance, 1e-9)
}

func TestStress_Combined(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	// moisture 0.5, weather 0.8 → 0.6*0.5 + 0.4*0.8 = 0.62, fruiting 0.9 → 0.558
	s := c.Calculate("wheat", model.StageFruiting, soilAt(50), dryForecast(3))
	assert.InDelta(t, 0.558, s.Value, 1e-9)
	assert.InDelta(t, 0.9, s.StageFactor, 1e-9)
}

func TestStress_Unknown(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	s := c.Calculate("wheat", model.StageFlowering, nil, nil)
	assert.False(t, s.Known)
	assert.Equal(t, 0.0, s.Value)
}

func TestStress_UnlistedStageUsesDefaultFactor(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	s := c.Calculate("rice", model.StageHarvest, soilAt(10), nil)
	assert.InDelta(t, 0.6, s.Value, 1e-9)
}

func TestStress_AlwaysInUnitRange(t *testing.T) {
	c := NewStressCalculator(cropwater.Default())
	for _, crop := range []string{"rice", "wheat", "cotton", "tomato", "unknown"} {
		for _, st := range model.CropStages {
			for m := 0.0; m <= 100; m += 7.5 {
				s := c.Calculate(crop, st, soilAt(m), dryForecast(4))
				assert.GreaterOrEqual(t, s.Value, 0.0)
				assert.LessOrEqual(t, s.Value, 1.0)
			}
		}
	}
}
