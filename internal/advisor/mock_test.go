package advisor

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/store"
)

type mockContexts struct {
	mock.Mock
}

func (m *mockContexts) GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error) {
	args := m.Called(ctx, farmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FarmingContext), args.Error(1)
}

type mockSoil struct {
	mock.Mock
}

func (m *mockSoil) SoilMoisture(ctx context.Context, lat, lon float64) (*model.SoilMoistureReading, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SoilMoistureReading), args.Error(1)
}

type mockForecast struct {
	mock.Mock
}

func (m *mockForecast) Forecast(ctx context.Context, loc model.Location, days int) ([]model.WeatherDayForecast, error) {
	args := m.Called(ctx, loc, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WeatherDayForecast), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) IrrigationHistory(ctx context.Context, farmerID string, days int) ([]model.IrrigationHistoryEntry, error) {
	args := m.Called(ctx, farmerID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IrrigationHistoryEntry), args.Error(1)
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListIrrigationHistory(ctx context.Context, filter store.HistoryFilter) ([]model.IrrigationHistoryEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IrrigationHistoryEntry), args.Error(1)
}

// slowSoil ignores its context and answers after delay.
type slowSoil struct {
	delay time.Duration
}

func (s slowSoil) SoilMoisture(context.Context, float64, float64) (*model.SoilMoistureReading, error) {
	time.Sleep(s.delay)
	return &model.SoilMoistureReading{RootZoneMoisture: 50}, nil
}
