// Package store persists the data the advisor reads but does not own:
// farmer profiles, reported irrigation events and cached provider payloads.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// HistoryFilter selects irrigation events for one farmer.
type HistoryFilter struct {
	FarmerID string    `json:"farmer_id"`
	CropName string    `json:"crop_name,omitempty"`
	Since    time.Time `json:"since,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

const defaultHistoryLimit = 500

// Store defines the persistence interface behind the advisor's collaborators.
type Store interface {
	// Farming contexts. GetFarmingContext returns (nil, nil) when the farmer
	// has no profile.
	GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error)
	UpsertFarmingContext(ctx context.Context, fc *model.FarmingContext) error

	// Irrigation history. RecordIrrigation assigns an ID when empty and
	// advances the profile's last irrigation when the event is newer.
	RecordIrrigation(ctx context.Context, entry *model.IrrigationHistoryEntry) error
	ListIrrigationHistory(ctx context.Context, filter HistoryFilter) ([]model.IrrigationHistoryEntry, error)

	// Provider payload cache. GetCachedPayload returns a nil payload on a
	// miss or an expired row, otherwise the payload and when it expires.
	GetCachedPayload(ctx context.Context, key string) ([]byte, time.Time, error)
	SetCachedPayload(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteCachedPayload(ctx context.Context, key string) error
	DeleteExpiredCache(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func validateContext(fc *model.FarmingContext) error {
	if fc == nil {
		return eris.New("store: nil farming context")
	}
	if fc.FarmerID == "" {
		return eris.New("store: farming context requires farmer_id")
	}
	return nil
}

func validateEntry(e *model.IrrigationHistoryEntry) error {
	if e == nil {
		return eris.New("store: nil irrigation entry")
	}
	if e.FarmerID == "" {
		return eris.New("store: irrigation entry requires farmer_id")
	}
	if e.Date.IsZero() {
		return eris.New("store: irrigation entry requires date")
	}
	if e.EffectivenessRating != nil && (*e.EffectivenessRating < 1 || *e.EffectivenessRating > 5) {
		return eris.Errorf("store: effectiveness rating %d outside 1-5", *e.EffectivenessRating)
	}
	return nil
}

func historyLimit(n int) int {
	if n <= 0 {
		return defaultHistoryLimit
	}
	return n
}
