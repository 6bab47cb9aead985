// Package model defines the data types shared by the irrigation advisor.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// CropStage is a discrete phase of the crop lifecycle.
type CropStage string

const (
	StageSeedling   CropStage = "seedling"
	StageVegetative CropStage = "vegetative"
	StageFlowering  CropStage = "flowering"
	StageFruiting   CropStage = "fruiting"
	StageMaturity   CropStage = "maturity"
	StageHarvest    CropStage = "harvest"
)

// CropStages lists every known stage in lifecycle order.
var CropStages = []CropStage{
	StageSeedling, StageVegetative, StageFlowering, StageFruiting, StageMaturity, StageHarvest,
}

// ParseCropStage normalizes s and reports whether it names a known stage.
func ParseCropStage(s string) (CropStage, bool) {
	st := CropStage(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CropStages {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// IrrigationMethod is how water is delivered to the field.
type IrrigationMethod string

const (
	MethodDrip      IrrigationMethod = "drip"
	MethodFlood     IrrigationMethod = "flood"
	MethodManual    IrrigationMethod = "manual"
	MethodSprinkler IrrigationMethod = "sprinkler"
	MethodUnknown   IrrigationMethod = "unknown"
)

var irrigationMethods = []IrrigationMethod{MethodDrip, MethodFlood, MethodManual, MethodSprinkler}

// ParseIrrigationMethod normalizes s and reports whether it names a delivery
// method. Unknown is not accepted as input.
func ParseIrrigationMethod(s string) (IrrigationMethod, bool) {
	m := IrrigationMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range irrigationMethods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Location identifies a farm for provider lookups. Name is the free-text place
// the farmer registered; coordinates come from the request.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FarmingContext is the farmer profile owned by the host application.
type FarmingContext struct {
	FarmerID                string               `json:"farmer_id"`
	Location                string               `json:"location"`
	PrimaryCrops            []string             `json:"primary_crops,omitempty"`
	FarmSizeAcres           float64              `json:"farm_size_acres"`
	SoilType                string               `json:"soil_type,omitempty"`
	IrrigationMethod        IrrigationMethod     `json:"irrigation_method"`
	IrrigationFrequencyDays int                  `json:"irrigation_frequency_days"`
	LastIrrigation          *time.Time           `json:"last_irrigation,omitempty"`
	CropStages              map[string]CropStage `json:"crop_stages"`
	PlantingDates           map[string]time.Time `json:"planting_dates,omitempty"`
	HarvestDates            map[string]time.Time `json:"harvest_dates,omitempty"`
	UpdatedAt               time.Time            `json:"updated_at"`
}

// CropKey case-folds a crop name. Crop tables and profile maps are keyed by it.
func CropKey(crop string) string {
	return cases.Fold().String(strings.TrimSpace(crop))
}

// StageFor returns the growth stage recorded for crop, defaulting to
// vegetative when the profile does not track that crop. Keys match
// case-insensitively whether or not the profile was normalized.
func (c *FarmingContext) StageFor(crop string) CropStage {
	key := CropKey(crop)
	if st, ok := c.CropStages[key]; ok {
		return st
	}
	for k, st := range c.CropStages {
		if CropKey(k) == key {
			return st
		}
	}
	return StageVegetative
}

// Normalize folds crop keys so StageFor and the date maps agree with the
// case-insensitive crop lookup.
func (c *FarmingContext) Normalize() {
	c.FarmerID = strings.TrimSpace(c.FarmerID)
	c.CropStages = lowerKeys(c.CropStages)
	c.PlantingDates = lowerKeys(c.PlantingDates)
	c.HarvestDates = lowerKeys(c.HarvestDates)
	for i, crop := range c.PrimaryCrops {
		c.PrimaryCrops[i] = CropKey(crop)
	}
}

func lowerKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[CropKey(k)] = v
	}
	return out
}
