package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testContext(farmerID string) *model.FarmingContext {
	return &model.FarmingContext{
		FarmerID:                farmerID,
		Location:                "Nashik",
		PrimaryCrops:            []string{"Tomato", "wheat"},
		FarmSizeAcres:           2,
		SoilType:                "loam",
		IrrigationMethod:        model.MethodDrip,
		IrrigationFrequencyDays: 5,
		CropStages:              map[string]model.CropStage{"Tomato": model.StageFlowering},
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// --- Farming contexts ---

func TestSQLite_FarmingContext_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	fc, err := st.GetFarmingContext(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, fc)
}

func TestSQLite_FarmingContext_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertFarmingContext(ctx, testContext("f1")))

	fc, err := st.GetFarmingContext(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, fc)
	assert.Equal(t, "Nashik", fc.Location)
	assert.Equal(t, model.MethodDrip, fc.IrrigationMethod)
	assert.Equal(t, []string{"tomato", "wheat"}, fc.PrimaryCrops)
	assert.Equal(t, model.StageFlowering, fc.StageFor("tomato"))
	assert.Nil(t, fc.LastIrrigation)
	assert.False(t, fc.UpdatedAt.IsZero())
}

func TestSQLite_FarmingContext_UpsertKeepsLastIrrigation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	last := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	fc := testContext("f1")
	fc.LastIrrigation = &last
	require.NoError(t, st.UpsertFarmingContext(ctx, fc))

	update := testContext("f1")
	update.FarmSizeAcres = 3
	require.NoError(t, st.UpsertFarmingContext(ctx, update))

	got, err := st.GetFarmingContext(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.FarmSizeAcres)
	require.NotNil(t, got.LastIrrigation)
	assert.True(t, last.Equal(*got.LastIrrigation))
}

func TestSQLite_FarmingContext_RequiresFarmerID(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpsertFarmingContext(context.Background(), testContext("  "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "farmer_id")
}

// --- Irrigation history ---

func TestSQLite_RecordIrrigation_AdvancesLastIrrigation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertFarmingContext(ctx, testContext("f1")))

	newer := time.Date(2026, 6, 8, 7, 0, 0, 0, time.UTC)
	older := time.Date(2026, 6, 2, 7, 0, 0, 0, time.UTC)

	e1 := &model.IrrigationHistoryEntry{FarmerID: "f1", CropName: "Tomato", Date: newer, WaterAmountLiters: 4000}
	require.NoError(t, st.RecordIrrigation(ctx, e1))
	assert.NotEmpty(t, e1.ID)

	e2 := &model.IrrigationHistoryEntry{FarmerID: "f1", CropName: "tomato", Date: older, WaterAmountLiters: 3500}
	require.NoError(t, st.RecordIrrigation(ctx, e2))

	fc, err := st.GetFarmingContext(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, fc.LastIrrigation)
	assert.True(t, newer.Equal(*fc.LastIrrigation))
}

func TestSQLite_RecordIrrigation_WithoutProfile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e := &model.IrrigationHistoryEntry{FarmerID: "f2", Date: time.Now()}
	require.NoError(t, st.RecordIrrigation(ctx, e))

	fc, err := st.GetFarmingContext(ctx, "f2")
	require.NoError(t, err)
	assert.Nil(t, fc)

	hist, err := st.ListIrrigationHistory(ctx, HistoryFilter{FarmerID: "f2"})
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestSQLite_RecordIrrigation_Validation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.Error(t, st.RecordIrrigation(ctx, &model.IrrigationHistoryEntry{Date: time.Now()}))
	assert.Error(t, st.RecordIrrigation(ctx, &model.IrrigationHistoryEntry{FarmerID: "f1"}))
	assert.Error(t, st.RecordIrrigation(ctx, &model.IrrigationHistoryEntry{
		FarmerID: "f1", Date: time.Now(), EffectivenessRating: intPtr(6),
	}))
}

func TestSQLite_ListIrrigationHistory_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	for i, crop := range []string{"rice", "rice", "wheat", "rice"} {
		require.NoError(t, st.RecordIrrigation(ctx, &model.IrrigationHistoryEntry{
			FarmerID:            "f1",
			CropName:            crop,
			Date:                base.AddDate(0, 0, i*3),
			WaterAmountLiters:   float64(1000 * (i + 1)),
			Method:              model.MethodFlood,
			SoilMoistureBefore:  floatPtr(40),
			EffectivenessRating: intPtr(4),
		}))
	}
	require.NoError(t, st.RecordIrrigation(ctx, &model.IrrigationHistoryEntry{FarmerID: "other", Date: base}))

	all, err := st.ListIrrigationHistory(ctx, HistoryFilter{FarmerID: "f1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].Date.After(all[1].Date), "newest first")
	assert.Equal(t, model.MethodFlood, all[0].Method)
	require.NotNil(t, all[0].SoilMoistureBefore)
	assert.Equal(t, 40.0, *all[0].SoilMoistureBefore)
	assert.Nil(t, all[0].SoilMoistureAfter)
	require.NotNil(t, all[0].EffectivenessRating)
	assert.Equal(t, 4, *all[0].EffectivenessRating)

	recent, err := st.ListIrrigationHistory(ctx, HistoryFilter{FarmerID: "f1", Since: base.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	rice, err := st.ListIrrigationHistory(ctx, HistoryFilter{FarmerID: "f1", CropName: "RICE"})
	require.NoError(t, err)
	assert.Len(t, rice, 3)

	limited, err := st.ListIrrigationHistory(ctx, HistoryFilter{FarmerID: "f1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Provider cache ---

func TestSQLite_Cache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	before := time.Now()
	require.NoError(t, st.SetCachedPayload(ctx, "soil:1", []byte(`{"root":42}`), time.Hour))

	data, expires, err := st.GetCachedPayload(ctx, "soil:1")
	require.NoError(t, err)
	assert.Equal(t, `{"root":42}`, string(data))
	assert.WithinDuration(t, before.Add(time.Hour), expires, 5*time.Second)
}

func TestSQLite_Cache_MissingAndExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	data, _, err := st.GetCachedPayload(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, st.SetCachedPayload(ctx, "old", []byte("x"), -time.Hour))
	data, _, err = st.GetCachedPayload(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Cache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPayload(ctx, "k", []byte("original"), time.Hour))
	require.NoError(t, st.SetCachedPayload(ctx, "k", []byte("updated"), time.Hour))

	data, _, err := st.GetCachedPayload(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))
}

func TestSQLite_Cache_DeleteAndPurge(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPayload(ctx, "live", []byte("a"), time.Hour))
	require.NoError(t, st.SetCachedPayload(ctx, "dead1", []byte("b"), -time.Minute))
	require.NoError(t, st.SetCachedPayload(ctx, "dead2", []byte("c"), -time.Hour))

	n, err := st.DeleteExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, st.DeleteCachedPayload(ctx, "live"))
	data, _, err := st.GetCachedPayload(ctx, "live")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
