package model

import "time"

// IrrigationHistoryEntry records one irrigation event reported by the farmer.
type IrrigationHistoryEntry struct {
	ID                  string           `json:"id"`
	FarmerID            string           `json:"farmer_id"`
	CropName            string           `json:"crop_name"`
	Date                time.Time        `json:"date"`
	WaterAmountLiters   float64          `json:"water_amount_liters"`
	Method              IrrigationMethod `json:"method,omitempty"`
	SoilMoistureBefore  *float64         `json:"soil_moisture_before,omitempty"`
	SoilMoistureAfter   *float64         `json:"soil_moisture_after,omitempty"`
	EffectivenessRating *int             `json:"effectiveness_rating,omitempty"` // 1-5
	Notes               string           `json:"notes,omitempty"`
}
