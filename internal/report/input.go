// Package report runs irrigation decisions for a batch of farms and writes
// the results to a spreadsheet. Input is a CSV or XLSX sheet with the
// columns farmer_id, crop, lat, lon.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Row is one parsed input line. Err is set when the line could not be
// turned into a request; such rows are reported, not evaluated.
type Row struct {
	Line    int
	Request model.DecisionRequest
	Err     error
}

// column aliases accepted in the header row
var columnAliases = map[string]string{
	"farmer_id": "farmer_id",
	"farmer":    "farmer_id",
	"crop":      "crop",
	"crop_name": "crop",
	"lat":       "lat",
	"latitude":  "lat",
	"lon":       "lon",
	"lng":       "lon",
	"longitude": "lon",
}

var requiredColumns = []string{"farmer_id", "crop", "lat", "lon"}

// ReadFile parses path by extension (.csv or .xlsx).
func ReadFile(ctx context.Context, path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "report: open input")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f)
	case ".xlsx":
		return ReadXLSX(ctx, path)
	default:
		return nil, eris.Errorf("report: unsupported input %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// ReadCSV parses a headered CSV stream.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.Comment = '#'

	var (
		cols  map[string]int
		rows  []Row
		line  int
		first = true
	)
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "report: csv cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "report: read csv row")
		}
		line++

		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		if first {
			first = false
			if cols, err = headerIndex(record); err != nil {
				return nil, err
			}
			continue
		}
		if blank(record) {
			continue
		}
		rows = append(rows, parseRow(line, record, cols))
	}
	return rows, nil
}

// ReadXLSX parses the first sheet of an XLSX workbook.
func ReadXLSX(ctx context.Context, path string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("report: xlsx has no sheets")
	}
	sheet := f.Sheets[0]

	var (
		cols map[string]int
		rows []Row
	)
	for i, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "report: xlsx cancelled")
		}
		cells := rowToStrings(row)
		if i == 0 {
			if cols, err = headerIndex(cells); err != nil {
				return nil, err
			}
			continue
		}
		if blank(cells) {
			continue
		}
		rows = append(rows, parseRow(i+1, cells, cols))
	}
	if cols == nil {
		return nil, eris.New("report: xlsx sheet is empty")
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		if name, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("report: header missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(line int, cells []string, cols map[string]int) Row {
	get := func(name string) string {
		if i := cols[name]; i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	row := Row{Line: line}
	row.Request.FarmerID = get("farmer_id")
	row.Request.CropName = get("crop")

	lat, err := strconv.ParseFloat(get("lat"), 64)
	if err != nil {
		row.Err = eris.Errorf("line %d: bad lat %q", line, get("lat"))
		return row
	}
	lon, err := strconv.ParseFloat(get("lon"), 64)
	if err != nil {
		row.Err = eris.Errorf("line %d: bad lon %q", line, get("lon"))
		return row
	}
	row.Request.Latitude = lat
	row.Request.Longitude = lon
	return row
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
