package interaction

import (
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/series"
)

// SeriesValue is a dense series value shown in the tooltip.
type SeriesValue struct {
	Series    string
	Time      time.Time
	Value     float64
	Secondary bool
}

// EstimatedValue is a dense series value at an occurrence's time.
type EstimatedValue struct {
	Series   string
	Value    float64
	Measured bool
}

// OccurrenceDetail is one captured occurrence with the continuous values
// around it.
type OccurrenceDetail struct {
	Dataset    string
	Occurrence events.Occurrence
	Values     []EstimatedValue
}

// Tooltip is the merged payload for one pointer position.
type Tooltip struct {
	Values      []SeriesValue
	Delta       *float64
	Occurrences []OccurrenceDetail
	Cycles      []purge.Cycle
}

// Empty reports whether nothing was matched.
func (t Tooltip) Empty() bool {
	return len(t.Values) == 0 && len(t.Occurrences) == 0 && len(t.Cycles) == 0
}

// BuildTooltip merges query matches into a tooltip. Dense matches become
// continuous values and, when at least two share the primary value axis,
// their difference is reported as Delta (first minus second). Every sparse match carries its
// occurrence plus each dense series evaluated at the occurrence time:
// measured when a sample exists at that instant, interpolated otherwise.
// Purge-cycle markers are listed as cycles.
func BuildTooltip(matches []Match, dense []*series.Series) Tooltip {
	var tip Tooltip
	for _, m := range matches {
		switch m.Density {
		case Dense:
			tip.Values = append(tip.Values, SeriesValue{Series: m.Label, Time: m.Point.Time, Value: m.Point.Value, Secondary: m.Secondary})
		case Sparse:
			if m.Point.Cycle != nil {
				tip.Cycles = append(tip.Cycles, *m.Point.Cycle)
			}
			if m.Point.Occurrence == nil {
				continue
			}
			tip.Occurrences = append(tip.Occurrences, OccurrenceDetail{
				Dataset:    m.Label,
				Occurrence: *m.Point.Occurrence,
				Values:     valuesAt(dense, m.Point.Occurrence.Time),
			})
		}
	}
	var primary []float64
	for _, v := range tip.Values {
		if !v.Secondary {
			primary = append(primary, v.Value)
		}
	}
	if len(primary) >= 2 {
		d := primary[0] - primary[1]
		tip.Delta = &d
	}
	return tip
}

func valuesAt(dense []*series.Series, t time.Time) []EstimatedValue {
	var out []EstimatedValue
	for _, s := range dense {
		if v, ok := s.At(t); ok {
			out = append(out, EstimatedValue{Series: s.Name, Value: v, Measured: true})
			continue
		}
		v, err := s.ValueAt(t)
		if err != nil {
			continue
		}
		out = append(out, EstimatedValue{Series: s.Name, Value: v})
	}
	return out
}
