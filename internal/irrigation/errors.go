package irrigation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// ValidationError reports malformed numeric or identity input at the public
// boundary. Callers treat it the same as insufficient data, but surface it as
// a client error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateRequest checks the call contract fields.
func ValidateRequest(req model.DecisionRequest) error {
	if strings.TrimSpace(req.FarmerID) == "" {
		return invalid("farmer_id", "is required")
	}
	if strings.TrimSpace(req.CropName) == "" {
		return invalid("crop_name", "is required")
	}
	if !finite(req.Latitude) || req.Latitude < -90 || req.Latitude > 90 {
		return invalid("latitude", "must be within [-90, 90]")
	}
	if !finite(req.Longitude) || req.Longitude < -180 || req.Longitude > 180 {
		return invalid("longitude", "must be within [-180, 180]")
	}
	return nil
}

// ValidateContext rejects a profile with a negative or non-finite farm size.
func ValidateContext(c *model.FarmingContext) error {
	if !finite(c.FarmSizeAcres) || c.FarmSizeAcres < 0 {
		return invalid("farm_size_acres", "must be a non-negative number")
	}
	return nil
}

// ValidateSoil rejects a reading whose root-zone moisture is not a percentage.
func ValidateSoil(s *model.SoilMoistureReading) error {
	if !finite(s.RootZoneMoisture) || s.RootZoneMoisture < 0 || s.RootZoneMoisture > 100 {
		return invalid("root_zone_moisture", "must be a percentage within [0, 100]")
	}
	return nil
}

// ValidateForecastDay rejects a day with negative or non-finite rainfall.
func ValidateForecastDay(f model.WeatherDayForecast) error {
	if !finite(f.PrecipitationMM) || f.PrecipitationMM < 0 {
		return invalid("precipitation_mm", "must be a non-negative number")
	}
	return nil
}

func validateForecast(forecast []model.WeatherDayForecast) error {
	for _, f := range forecast {
		if err := ValidateForecastDay(f); err != nil {
			return err
		}
	}
	return nil
}
