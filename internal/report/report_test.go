package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("farms")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "farms.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV(t *testing.T) {
	in := `farmer_id, crop_name, latitude, longitude
f1, tomato, 19.99, 73.79
# comment line
f2, rice, north, 80.1

f3, wheat, 28.6, 77.2
`
	rows, err := ReadCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, model.DecisionRequest{FarmerID: "f1", CropName: "tomato", Latitude: 19.99, Longitude: 73.79}, rows[0].Request)
	assert.NoError(t, rows[0].Err)
	assert.Equal(t, 2, rows[0].Line)

	require.Error(t, rows[1].Err)
	assert.Contains(t, rows[1].Err.Error(), `bad lat "north"`)

	assert.Equal(t, "f3", rows[2].Request.FarmerID)
	assert.InDelta(t, 77.2, rows[2].Request.Longitude, 1e-9)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("farmer_id,crop\nf1,tomato\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lat, lon")
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("farmer_id,crop,lat,lon\n"))
	require.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Farmer", "Crop", "Lat", "Lng"},
		{"f1", "maize", "12.5", "77.6"},
		{"", "", "", ""},
		{"f2", "cotton", "21.1", "x"},
	})

	rows, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.DecisionRequest{FarmerID: "f1", CropName: "maize", Latitude: 12.5, Longitude: 77.6}, rows[0].Request)
	assert.Equal(t, 2, rows[0].Line)
	require.Error(t, rows[1].Err)
	assert.Contains(t, rows[1].Err.Error(), "line 4")
}

func TestReadFile_Unsupported(t *testing.T) {
	_, err := ReadFile(context.Background(), "farms.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input")
}

type fakeAdviser struct {
	inFlight, peak atomic.Int32
	mu             sync.Mutex
	seen           []string
}

func (f *fakeAdviser) Advise(_ context.Context, req model.DecisionRequest) (*model.IrrigationDecision, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, req.FarmerID)
	f.mu.Unlock()

	if req.CropName == "bad" {
		return nil, errors.New("invalid crop_name")
	}
	return &model.IrrigationDecision{
		Recommendation: model.RecommendationOptional,
		Confidence:     0.7,
		Timing:         model.TimingEvening,
		Method:         model.MethodDrip,
		Reasoning:      []string{"ok"},
	}, nil
}

func testRows() []Row {
	return []Row{
		{Line: 2, Request: model.DecisionRequest{FarmerID: "f1", CropName: "tomato"}},
		{Line: 3, Request: model.DecisionRequest{FarmerID: "f2", CropName: "bad"}},
		{Line: 4, Err: errors.New("line 4: bad lat")},
		{Line: 5, Request: model.DecisionRequest{FarmerID: "f4", CropName: "rice"}},
		{Line: 6, Request: model.DecisionRequest{FarmerID: "f5", CropName: "rice"}},
	}
}

func TestRun(t *testing.T) {
	adv := &fakeAdviser{}
	results := Run(context.Background(), adv, testRows(), 2)

	require.Len(t, results, 5)
	assert.NotNil(t, results[0].Decision)
	assert.Error(t, results[1].Err)
	assert.Error(t, results[2].Err)
	assert.Nil(t, results[2].Decision)
	assert.Equal(t, 6, results[4].Row.Line)
	assert.Len(t, adv.seen, 4, "rows with parse errors are not evaluated")
	assert.LessOrEqual(t, adv.peak.Load(), int32(2))

	counts := Recommendations(results)
	assert.Equal(t, 3, counts[model.RecommendationOptional])
	assert.Equal(t, 2, counts["error"])
}

func TestWriteXLSX(t *testing.T) {
	results := Run(context.Background(), &fakeAdviser{}, testRows(), 0)
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, results))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet[DecisionsSheet]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 6)
	assert.Equal(t, "farmer_id", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "f1", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "optional", sheet.Rows[1].Cells[5].String())
	assert.Equal(t, "drip", sheet.Rows[1].Cells[9].String())
	assert.Equal(t, "invalid crop_name", sheet.Rows[2].Cells[len(decisionHeader)-1].String())

	summary, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	assert.Equal(t, "error", summary.Rows[1].Cells[0].String())
	assert.Equal(t, "optional", summary.Rows[2].Cells[0].String())
}
