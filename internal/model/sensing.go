package model

import "time"

// SoilMoistureReading is one soil moisture observation for a point. Moisture
// values are percentages in [0,100].
type SoilMoistureReading struct {
	SurfaceMoisture  float64   `json:"surface_moisture"`
	RootZoneMoisture float64   `json:"root_zone_moisture"`
	DeepMoisture     float64   `json:"deep_moisture"`
	Temperature      float64   `json:"temperature"`
	Timestamp        time.Time `json:"timestamp"`
	Source           string    `json:"source"`
}

// WeatherDayForecast is the forecast for a single calendar day.
type WeatherDayForecast struct {
	Date            time.Time `json:"date"`
	TemperatureMin  float64   `json:"temperature_min"`
	TemperatureMax  float64   `json:"temperature_max"`
	Humidity        float64   `json:"humidity"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	WindSpeed       float64   `json:"wind_speed"` // m/s
	ET0             float64   `json:"et0"`        // mm/day
	Confidence      float64   `json:"confidence"`
}

// MeanTemperature is the midpoint of the day's range.
func (f WeatherDayForecast) MeanTemperature() float64 {
	return (f.TemperatureMin + f.TemperatureMax) / 2
}
