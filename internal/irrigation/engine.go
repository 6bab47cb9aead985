package irrigation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/cropwater"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Decision table thresholds.
const (
	urgentStress      = 0.8
	recommendedStress = 0.6
	significantRainMM = 10.0
	rainWindowDays    = 2
	heatWindowDays    = 2
	heatThresholdC    = 35.0
	heatMultiplier    = 1.2
	windThresholdMS   = 15.0
	dripMultiplier    = 0.7
	floodMultiplier   = 1.5

	defaultPlantsPerAcre = 10000
)

var alternativeActions = map[model.Recommendation][]string{
	model.RecommendationNotNeeded: {
		"Monitor soil moisture daily",
		"Check weather forecast for changes",
	},
	model.RecommendationUnknown: {
		"Check soil moisture manually",
		"Observe plant stress indicators",
		"Consult local weather forecast",
	},
}

var defaultAlternativeActions = []string{
	"Consider mulching to retain moisture",
	"Check for pest/disease issues",
}

// AlternativeActions returns the fixed guidance list for r. The slice is a copy.
func AlternativeActions(r model.Recommendation) []string {
	actions, ok := alternativeActions[r]
	if !ok {
		actions = defaultAlternativeActions
	}
	return append([]string(nil), actions...)
}

// NextCheckHours returns when the farmer should ask again.
func NextCheckHours(r model.Recommendation) int {
	switch r {
	case model.RecommendationUrgent, model.RecommendationRecommended:
		return 12
	case model.RecommendationUnknown:
		return 6
	default:
		return 24
	}
}

// Inputs is whatever the fetch phase managed to collect. Nil Context or Soil
// and empty Forecast or History mean the data was unavailable.
type Inputs struct {
	CropName string
	Context  *model.FarmingContext
	Soil     *model.SoilMoistureReading
	Forecast []model.WeatherDayForecast
	History  []model.IrrigationHistoryEntry
}

// Engine turns Inputs into an IrrigationDecision. It holds only immutable
// state and is safe for concurrent use.
type Engine struct {
	crops         *cropwater.Model
	stress        *StressCalculator
	defaults      PatternDefaults
	plantsPerAcre float64
	now           func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithPatternDefaults overrides the frequency/effectiveness placeholders.
func WithPatternDefaults(d PatternDefaults) Option {
	return func(e *Engine) {
		e.defaults = d
	}
}

// WithPlantsPerAcre sets the planting density used for water volume.
func WithPlantsPerAcre(n float64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.plantsPerAcre = n
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine over the given crop tables.
func NewEngine(crops *cropwater.Model, opts ...Option) *Engine {
	e := &Engine{
		crops:         crops,
		stress:        NewStressCalculator(crops),
		defaults:      DefaultPatternDefaults(),
		plantsPerAcre: defaultPlantsPerAcre,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate validates in, runs the stress calculator and pattern analyzer on
// whatever data arrived, and applies the decision table.
func (e *Engine) Evaluate(in Inputs) (*model.IrrigationDecision, error) {
	if strings.TrimSpace(in.CropName) == "" {
		return nil, invalid("crop_name", "is required")
	}
	// Without a profile the decision is UNKNOWN, so sensing data is not checked.
	if in.Context != nil {
		if err := ValidateContext(in.Context); err != nil {
			return nil, err
		}
		if in.Soil != nil {
			if err := ValidateSoil(in.Soil); err != nil {
				return nil, err
			}
		}
		if err := validateForecast(in.Forecast); err != nil {
			return nil, err
		}
	}

	var (
		stress  Stress
		pattern = AnalyzePattern(in.History, e.defaults)
	)
	if in.Context != nil {
		stress = e.stress.Calculate(in.CropName, in.Context.StageFor(in.CropName), in.Soil, in.Forecast)
	}

	d := e.Decide(in, stress, pattern)

	fields := []zap.Field{
		zap.String("crop", in.CropName),
		zap.String("recommendation", string(d.Recommendation)),
		zap.Float64("confidence", d.Confidence),
		zap.Float64("water_liters", d.WaterAmountLiters),
		zap.Bool("stress_known", stress.Known),
		zap.Float64("stress", stress.Value),
		zap.Strings("missing", d.DataAvailability.Missing()),
	}
	if in.Context != nil {
		fields = append(fields, zap.String("farmer_id", in.Context.FarmerID))
	}
	zap.L().Info("irrigation: decision", fields...)

	return d, nil
}

// Decide applies the priority-ordered decision table. The first matching
// branch wins; soil-driven urgency is checked before rain suppression, so
// incoming rain never downgrades an urgent moisture deficit.
func (e *Engine) Decide(in Inputs, stress Stress, pattern Pattern) *model.IrrigationDecision {
	avail := model.DataAvailability{
		FarmingContext:    in.Context != nil,
		SoilMoisture:      in.Soil != nil,
		WeatherForecast:   len(in.Forecast) > 0,
		IrrigationHistory: len(in.History) > 0,
	}

	if in.Context == nil {
		d := e.unknown(avail, model.MethodUnknown,
			"No farming profile available. Please complete your farming profile first",
			"Insufficient data for accurate recommendation")
		d.NextCheckHours = 24
		return d
	}

	method := in.Context.IrrigationMethod
	if method == "" {
		method = model.MethodManual
	}

	if in.Soil == nil && len(in.Forecast) == 0 {
		return e.unknown(avail, method,
			"Cannot make recommendation without soil moisture or weather data",
			"No real-time data available")
	}

	d := &model.IrrigationDecision{
		Method:           method,
		Reasoning:        []string{},
		RiskFactors:      []string{},
		DataAvailability: avail,
		GeneratedAt:      e.now(),
	}
	if missing := avail.Missing(); len(missing) > 0 {
		d.Reasoning = append(d.Reasoning, "Limited data available: "+strings.Join(missing, ", "))
	}

	switch {
	case in.Soil != nil && stress.Value > urgentStress:
		d.Recommendation = model.RecommendationUrgent
		d.Confidence = 0.9
		d.Timing = model.TimingImmediately
		d.Reasoning = append(d.Reasoning, fmt.Sprintf("High water stress detected (%.0f%%)", stress.Value*100))
		d.Reasoning = append(d.Reasoning, e.moistureReason(in.CropName, in.Soil))

	case in.Soil != nil && stress.Value > recommendedStress:
		d.Recommendation = model.RecommendationRecommended
		d.Confidence = 0.8
		d.Timing = model.TimingWithin6Hours
		d.Reasoning = append(d.Reasoning, fmt.Sprintf("Moderate water stress (%.0f%%)", stress.Value*100))

	case len(in.Forecast) > 0:
		rain := RainExpected(in.Forecast, rainWindowDays)
		if rain > significantRainMM {
			d.Recommendation = model.RecommendationNotNeeded
			d.Confidence = 0.7
			d.Timing = model.TimingWaitForRain
			d.Reasoning = append(d.Reasoning, fmt.Sprintf("Rain expected (%.1fmm in next %d days)", rain, rainWindowDays))
		} else {
			d.Recommendation = model.RecommendationOptional
			d.Confidence = 0.6
			d.Timing = model.TimingEvening
			d.Reasoning = append(d.Reasoning, "No significant rain expected, moderate irrigation recommended")
		}

	default:
		d.Recommendation = model.RecommendationUnknown
		d.Confidence = 0
		d.Timing = model.TimingCheckSources
		d.Reasoning = append(d.Reasoning, "Soil moisture is adequate but no forecast is available to confirm it; insufficient data for a recommendation")
	}

	if needsWater(d.Recommendation) {
		d.WaterAmountLiters = e.waterVolume(in, d)
	}
	e.weatherRisks(in.Forecast, d)

	if avail.IrrigationHistory {
		d.Reasoning = append(d.Reasoning, fmt.Sprintf("Irrigation history: %s pattern, every %.1f days on average", pattern.Label, pattern.FrequencyDays))
	}
	if last := in.Context.LastIrrigation; last != nil {
		days := int(math.Floor(d.GeneratedAt.Sub(*last).Hours() / 24))
		if days >= 0 {
			d.Reasoning = append(d.Reasoning, fmt.Sprintf("Last irrigated %d days ago", days))
		}
	}

	d.Confidence = clamp01(d.Confidence)
	d.WaterAmountLiters = math.Max(0, math.Round(d.WaterAmountLiters*100)/100)
	d.NextCheckHours = NextCheckHours(d.Recommendation)
	d.AlternativeActions = AlternativeActions(d.Recommendation)
	return d
}

func (e *Engine) unknown(avail model.DataAvailability, method model.IrrigationMethod, reason, risk string) *model.IrrigationDecision {
	return &model.IrrigationDecision{
		Recommendation:     model.RecommendationUnknown,
		Confidence:         0,
		WaterAmountLiters:  0,
		Timing:             model.TimingUnknown,
		Method:             method,
		Reasoning:          []string{reason},
		RiskFactors:        []string{risk},
		NextCheckHours:     NextCheckHours(model.RecommendationUnknown),
		AlternativeActions: AlternativeActions(model.RecommendationUnknown),
		DataAvailability:   avail,
		GeneratedAt:        e.now(),
	}
}

func (e *Engine) moistureReason(crop string, soil *model.SoilMoistureReading) string {
	t := e.crops.MoistureThresholds(crop)
	if soil.RootZoneMoisture < t.Critical {
		return fmt.Sprintf("Soil moisture below critical level (%.1f%% < %.0f%%)", soil.RootZoneMoisture, t.Critical)
	}
	return fmt.Sprintf("Root-zone soil moisture at %.1f%% (optimal %.0f%%)", soil.RootZoneMoisture, t.Optimal)
}

// waterVolume is daily need × planting density × farm size, adjusted for the
// delivery method and near-term heat.
func (e *Engine) waterVolume(in Inputs, d *model.IrrigationDecision) float64 {
	stage := in.Context.StageFor(in.CropName)
	liters := e.crops.DailyWaterNeed(in.CropName, stage) * e.plantsPerAcre * in.Context.FarmSizeAcres

	switch d.Method {
	case model.MethodDrip:
		liters *= dripMultiplier
		d.Reasoning = append(d.Reasoning, "Drip irrigation - reduced water requirement")
	case model.MethodFlood:
		liters *= floodMultiplier
		d.Reasoning = append(d.Reasoning, "Flood irrigation - increased water requirement")
	}

	if hotDays(in.Forecast) {
		liters *= heatMultiplier
	}
	return liters
}

func (e *Engine) weatherRisks(forecast []model.WeatherDayForecast, d *model.IrrigationDecision) {
	if hotDays(forecast) {
		if needsWater(d.Recommendation) {
			d.RiskFactors = append(d.RiskFactors, "High temperatures expected - water amount increased by 20%")
		} else {
			d.RiskFactors = append(d.RiskFactors, "High temperatures expected in the next 2 days")
		}
	}
	for _, f := range forecast {
		if f.WindSpeed > windThresholdMS {
			d.RiskFactors = append(d.RiskFactors, "High winds expected - avoid overhead irrigation")
			break
		}
	}
}

func hotDays(forecast []model.WeatherDayForecast) bool {
	for _, f := range head(forecast, heatWindowDays) {
		if f.TemperatureMax > heatThresholdC {
			return true
		}
	}
	return false
}

func needsWater(r model.Recommendation) bool {
	switch r {
	case model.RecommendationUrgent, model.RecommendationRecommended,
		model.RecommendationOptional, model.RecommendationAvoid:
		return true
	}
	return false
}

// RainExpected sums precipitation over the first n forecast days.
func RainExpected(forecast []model.WeatherDayForecast, n int) float64 {
	var total float64
	for _, f := range head(forecast, n) {
		total += f.PrecipitationMM
	}
	return total
}
