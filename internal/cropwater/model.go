// Package cropwater holds the static crop water knowledge: per-stage daily
// water need, root-zone moisture thresholds, and growth-stage sensitivity.
//
// A Model is immutable once loaded and safe for concurrent use.
package cropwater

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

//go:embed crops.yaml
var defaultTables []byte

// Thresholds are root-zone moisture levels in percent.
type Thresholds struct {
	Critical float64 `yaml:"critical" json:"critical"`
	Optimal  float64 `yaml:"optimal" json:"optimal"`
	Maximum  float64 `yaml:"maximum" json:"maximum"`
}

type cropTable struct {
	DailyLiters map[model.CropStage]float64 `yaml:"daily_liters"`
	Thresholds  Thresholds                  `yaml:"thresholds"`
}

type document struct {
	DefaultCrop             string                      `yaml:"default_crop"`
	DefaultDailyLiters      float64                     `yaml:"default_daily_liters"`
	DefaultStageSensitivity float64                     `yaml:"default_stage_sensitivity"`
	StageSensitivity        map[model.CropStage]float64 `yaml:"stage_sensitivity"`
	Crops                   map[string]cropTable        `yaml:"crops"`
}

// Model answers crop water questions. Lookups never fail: an unknown crop
// falls back to the default crop's table.
type Model struct {
	doc document
}

// Default returns the model built from the embedded tables.
func Default() *Model {
	m, err := Parse(defaultTables)
	if err != nil {
		panic("cropwater: embedded tables: " + err.Error())
	}
	return m
}

// Load reads tables from path, or the embedded tables when path is empty.
func Load(path string) (*Model, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cropwater: read %s", path)
	}
	return Parse(data)
}

// Parse builds a Model from a YAML document.
func Parse(data []byte) (*Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "cropwater: parse tables")
	}

	m := &Model{}
	normalized := make(map[string]cropTable, len(doc.Crops))
	for name, tbl := range doc.Crops {
		normalized[m.key(name)] = tbl
	}
	doc.Crops = normalized
	doc.DefaultCrop = m.key(doc.DefaultCrop)

	def, ok := doc.Crops[doc.DefaultCrop]
	if !ok {
		return nil, eris.Errorf("cropwater: default crop %q has no table", doc.DefaultCrop)
	}
	if err := validateThresholds(doc.DefaultCrop, def.Thresholds); err != nil {
		return nil, err
	}
	for name, tbl := range doc.Crops {
		if err := validateThresholds(name, tbl.Thresholds); err != nil {
			return nil, err
		}
	}
	if doc.DefaultStageSensitivity <= 0 {
		doc.DefaultStageSensitivity = 0.6
	}
	if doc.DefaultDailyLiters <= 0 {
		doc.DefaultDailyLiters = 3.0
	}

	m.doc = doc
	return m, nil
}

func validateThresholds(crop string, t Thresholds) error {
	if !(t.Critical < t.Optimal && t.Optimal <= t.Maximum) {
		return eris.Errorf("cropwater: crop %q thresholds must satisfy critical < optimal <= maximum", crop)
	}
	return nil
}

func (m *Model) key(crop string) string {
	return model.CropKey(crop)
}

func (m *Model) table(crop string) cropTable {
	if tbl, ok := m.doc.Crops[m.key(crop)]; ok {
		return tbl
	}
	return m.doc.Crops[m.doc.DefaultCrop]
}

// Known reports whether crop has its own table.
func (m *Model) Known(crop string) bool {
	_, ok := m.doc.Crops[m.key(crop)]
	return ok
}

// DefaultCrop names the crop whose table backs unknown crops.
func (m *Model) DefaultCrop() string { return m.doc.DefaultCrop }

// DailyWaterNeed returns liters per plant per day for crop at stage.
func (m *Model) DailyWaterNeed(crop string, stage model.CropStage) float64 {
	if l, ok := m.table(crop).DailyLiters[stage]; ok {
		return l
	}
	return m.doc.DefaultDailyLiters
}

// MoistureThresholds returns the root-zone thresholds for crop.
func (m *Model) MoistureThresholds(crop string) Thresholds {
	return m.table(crop).Thresholds
}

// StageSensitivity returns how strongly water deficit matters at stage.
func (m *Model) StageSensitivity(stage model.CropStage) float64 {
	if f, ok := m.doc.StageSensitivity[stage]; ok {
		return f
	}
	return m.doc.DefaultStageSensitivity
}
