package report

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Sheet names in the output workbook.
const (
	DecisionsSheet = "decisions"
	SummarySheet   = "summary"
)

var decisionHeader = []string{
	"line", "farmer_id", "crop", "latitude", "longitude",
	"recommendation", "confidence", "water_liters", "timing", "method",
	"next_check_hours", "missing_data", "reasoning", "risks", "error",
}

// Workbook builds the report workbook: one row per result plus a summary of
// recommendation counts.
func Workbook(results []Result) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(DecisionsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add decisions sheet")
	}
	addStrings(sheet.AddRow(), decisionHeader...)

	counts := map[string]int{}
	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Row.Line)
		addStrings(row, r.Row.Request.FarmerID, r.Row.Request.CropName)
		row.AddCell().SetFloat(r.Row.Request.Latitude)
		row.AddCell().SetFloat(r.Row.Request.Longitude)

		if r.Err != nil || r.Decision == nil {
			counts["error"]++
			addStrings(row, "", "", "", "", "", "", "", "", "")
			msg := "no decision"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			addStrings(row, msg)
			continue
		}

		d := r.Decision
		counts[string(d.Recommendation)]++
		addStrings(row, string(d.Recommendation))
		row.AddCell().SetFloatWithFormat(d.Confidence, "0.00")
		row.AddCell().SetFloatWithFormat(d.WaterAmountLiters, "0.0")
		addStrings(row, d.Timing, string(d.Method))
		row.AddCell().SetInt(d.NextCheckHours)
		addStrings(row,
			strings.Join(d.DataAvailability.Missing(), ", "),
			strings.Join(d.Reasoning, "; "),
			strings.Join(d.RiskFactors, "; "),
			"",
		)
	}

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	addStrings(summary.AddRow(), "recommendation", "count")
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row := summary.AddRow()
		addStrings(row, k)
		row.AddCell().SetInt(counts[k])
	}
	row := summary.AddRow()
	addStrings(row, "generated_at", time.Now().UTC().Format(time.RFC3339))

	return f, nil
}

// WriteXLSX builds the workbook and saves it to path.
func WriteXLSX(path string, results []Result) error {
	f, err := Workbook(results)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}

// Recommendations counts results by recommendation; failures count as "error".
func Recommendations(results []Result) map[model.Recommendation]int {
	out := map[model.Recommendation]int{}
	for _, r := range results {
		if r.Err != nil || r.Decision == nil {
			out["error"]++
			continue
		}
		out[r.Decision.Recommendation]++
	}
	return out
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
