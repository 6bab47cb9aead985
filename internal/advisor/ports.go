// Package advisor assembles an irrigation decision: it fetches whatever
// collaborator data is available in parallel, each fetch under its own
// deadline, then hands the result to the decision engine.
package advisor

import (
	"context"
	"time"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/store"
)

// ContextProvider returns the farmer profile, or nil when there is none.
type ContextProvider interface {
	GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error)
}

// SoilMoistureProvider returns the latest soil reading for a point, or nil.
type SoilMoistureProvider interface {
	SoilMoisture(ctx context.Context, lat, lon float64) (*model.SoilMoistureReading, error)
}

// ForecastProvider returns daily forecasts, possibly empty.
type ForecastProvider interface {
	Forecast(ctx context.Context, loc model.Location, days int) ([]model.WeatherDayForecast, error)
}

// HistoryProvider returns the farmer's irrigation events over the last days.
type HistoryProvider interface {
	IrrigationHistory(ctx context.Context, farmerID string, days int) ([]model.IrrigationHistoryEntry, error)
}

// HistoryLister is the store method StoreHistory reads through.
type HistoryLister interface {
	ListIrrigationHistory(ctx context.Context, filter store.HistoryFilter) ([]model.IrrigationHistoryEntry, error)
}

// StoreHistory adapts the store's filtered listing to HistoryProvider.
type StoreHistory struct {
	Lister HistoryLister
	Now    func() time.Time
}

func (h StoreHistory) IrrigationHistory(ctx context.Context, farmerID string, days int) ([]model.IrrigationHistoryEntry, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	filter := store.HistoryFilter{FarmerID: farmerID}
	if days > 0 {
		filter.Since = now().AddDate(0, 0, -days)
	}
	return h.Lister.ListIrrigationHistory(ctx, filter)
}
