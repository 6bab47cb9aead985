package main

import (
	"math"
	"strings"
	"time"

	"github.com/kheti-labs/irrigation-advisor/internal/irrigation"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

func invalid(field, reason string) error {
	return &irrigation.ValidationError{Field: field, Reason: reason}
}

// checkProfile normalizes fc and rejects values the engine cannot use.
func checkProfile(fc *model.FarmingContext) error {
	fc.Normalize()
	if fc.FarmerID == "" {
		return invalid("farmer_id", "is required")
	}
	if err := irrigation.ValidateContext(fc); err != nil {
		return err
	}
	if fc.IrrigationMethod != "" {
		m, ok := model.ParseIrrigationMethod(string(fc.IrrigationMethod))
		if !ok {
			return invalid("irrigation_method", "must be one of drip, flood, manual, sprinkler")
		}
		fc.IrrigationMethod = m
	}
	for crop, st := range fc.CropStages {
		parsed, ok := model.ParseCropStage(string(st))
		if !ok {
			return invalid("crop_stages", "unknown stage "+string(st)+" for "+crop)
		}
		fc.CropStages[crop] = parsed
	}
	if fc.IrrigationFrequencyDays < 0 {
		return invalid("irrigation_frequency_days", "must be >= 0")
	}
	return nil
}

// checkEntry fills defaults on e and rejects malformed events.
func checkEntry(e *model.IrrigationHistoryEntry, now time.Time) error {
	e.FarmerID = strings.TrimSpace(e.FarmerID)
	e.CropName = strings.ToLower(strings.TrimSpace(e.CropName))
	if e.FarmerID == "" {
		return invalid("farmer_id", "is required")
	}
	if e.CropName == "" {
		return invalid("crop_name", "is required")
	}
	if e.Date.IsZero() {
		e.Date = now
	}
	if math.IsNaN(e.WaterAmountLiters) || math.IsInf(e.WaterAmountLiters, 0) || e.WaterAmountLiters < 0 {
		return invalid("water_amount_liters", "must be a non-negative number")
	}
	if e.Method != "" {
		m, ok := model.ParseIrrigationMethod(string(e.Method))
		if !ok {
			return invalid("method", "must be one of drip, flood, manual, sprinkler")
		}
		e.Method = m
	}
	if r := e.EffectivenessRating; r != nil && (*r < 1 || *r > 5) {
		return invalid("effectiveness_rating", "must be within [1, 5]")
	}
	for field, v := range map[string]*float64{
		"soil_moisture_before": e.SoilMoistureBefore,
		"soil_moisture_after":  e.SoilMoistureAfter,
	} {
		if v != nil && (math.IsNaN(*v) || *v < 0 || *v > 100) {
			return invalid(field, "must be a percentage within [0, 100]")
		}
	}
	return nil
}
