package model

import "time"

// Recommendation is the headline outcome of an irrigation decision.
type Recommendation string

const (
	RecommendationUrgent      Recommendation = "urgent"
	RecommendationRecommended Recommendation = "recommended"
	RecommendationOptional    Recommendation = "optional"
	RecommendationNotNeeded   Recommendation = "not_needed"
	RecommendationAvoid       Recommendation = "avoid"
	RecommendationUnknown     Recommendation = "unknown"
)

// Valid reports whether r is one of the defined recommendations.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendationUrgent, RecommendationRecommended, RecommendationOptional,
		RecommendationNotNeeded, RecommendationAvoid, RecommendationUnknown:
		return true
	}
	return false
}

// Timing categories attached to a decision.
const (
	TimingImmediately  = "immediately"
	TimingWithin6Hours = "within 6 hours"
	TimingWaitForRain  = "wait for rain"
	TimingEvening      = "evening preferred"
	TimingCheckSources = "check data sources"
	TimingUnknown      = "unknown"
)

// DataAvailability flags which inputs reached the decision.
type DataAvailability struct {
	FarmingContext    bool `json:"farming_context"`
	SoilMoisture      bool `json:"soil_moisture"`
	WeatherForecast   bool `json:"weather_forecast"`
	IrrigationHistory bool `json:"irrigation_history"`
}

// Missing returns the keys of inputs that were not available, in a fixed order.
func (d DataAvailability) Missing() []string {
	var out []string
	if !d.FarmingContext {
		out = append(out, "farming_context")
	}
	if !d.SoilMoisture {
		out = append(out, "soil_moisture")
	}
	if !d.WeatherForecast {
		out = append(out, "weather_forecast")
	}
	if !d.IrrigationHistory {
		out = append(out, "irrigation_history")
	}
	return out
}

// IrrigationDecision is the structured recommendation returned to callers.
type IrrigationDecision struct {
	Recommendation     Recommendation   `json:"recommendation"`
	Confidence         float64          `json:"confidence"`
	WaterAmountLiters  float64          `json:"water_amount_liters"`
	Timing             string           `json:"timing"`
	Method             IrrigationMethod `json:"method"`
	Reasoning          []string         `json:"reasoning"`
	RiskFactors        []string         `json:"risk_factors"`
	NextCheckHours     int              `json:"next_check_hours"`
	AlternativeActions []string         `json:"alternative_actions"`
	DataAvailability   DataAvailability `json:"data_availability"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// DecisionRequest is the public call contract.
type DecisionRequest struct {
	FarmerID  string  `json:"farmer_id"`
	CropName  string  `json:"crop_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
