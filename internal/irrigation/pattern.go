package irrigation

import (
	"math"
	"sort"
	"time"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Pattern labels.
const (
	PatternRegular   = "regular"
	PatternIrregular = "irregular"
)

// PatternDefaults are the placeholders used when history is too thin to
// measure. They are configuration, not derived values.
type PatternDefaults struct {
	FrequencyDays float64
	Effectiveness float64
}

// DefaultPatternDefaults returns 7 days and 0.5 effectiveness.
func DefaultPatternDefaults() PatternDefaults {
	return PatternDefaults{FrequencyDays: 7, Effectiveness: 0.5}
}

// Pattern summarizes irrigation history.
type Pattern struct {
	FrequencyDays float64 `json:"frequency_days"`
	Effectiveness float64 `json:"effectiveness"`
	Label         string  `json:"pattern"`
	Samples       int     `json:"samples"`
	RatedSamples  int     `json:"rated_samples"`
}

// AnalyzePattern returns the mean gap between consecutive irrigations and the
// mean effectiveness rating. Entries may arrive in any order.
func AnalyzePattern(history []model.IrrigationHistoryEntry, defaults PatternDefaults) Pattern {
	p := Pattern{
		FrequencyDays: defaults.FrequencyDays,
		Effectiveness: defaults.Effectiveness,
		Samples:       len(history),
	}

	if len(history) >= 2 {
		dates := make([]time.Time, len(history))
		for i, h := range history {
			dates[i] = h.Date
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		var total float64
		for i := 1; i < len(dates); i++ {
			total += math.Floor(dates[i].Sub(dates[i-1]).Hours() / 24)
		}
		p.FrequencyDays = total / float64(len(dates)-1)
	}

	var sum float64
	for _, h := range history {
		if h.EffectivenessRating != nil {
			sum += float64(*h.EffectivenessRating)
			p.RatedSamples++
		}
	}
	if p.RatedSamples > 0 {
		p.Effectiveness = sum / float64(p.RatedSamples)
	}

	if p.FrequencyDays >= 5 && p.FrequencyDays <= 10 {
		p.Label = PatternRegular
	} else {
		p.Label = PatternIrregular
	}
	return p
}
