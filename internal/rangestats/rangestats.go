// Package rangestats summarises dense series over a selected time range and
// evaluates the differential-pressure threshold panel.
package rangestats

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/series"
)

// ErrNoDataInRange is returned when a selection covers no samples.
var ErrNoDataInRange = errors.New("no data in range")

// Summary describes one series within a range.
type Summary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Report is the result of Compute.
type Report struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Series []Summary `json:"series"`
	// MeanDelta is the mean of first-minus-second series over their shared
	// timestamps. HasDelta is false with fewer than two series or no overlap.
	MeanDelta float64 `json:"mean_delta"`
	HasDelta  bool    `json:"has_delta"`
}

// Compute summarises every dense series inside sel. Series without samples in
// the range are left out; ErrNoDataInRange is returned when none remain.
func Compute(dense []*series.Series, sel interaction.Selection) (Report, error) {
	r := Report{Start: sel.Start, End: sel.End}
	for _, s := range dense {
		in := s.Between(sel.Start, sel.End)
		if len(in) == 0 {
			continue
		}
		vals := make([]float64, len(in))
		for i, p := range in {
			vals[i] = p.Value
		}
		r.Series = append(r.Series, summarize(s.Name, vals))
	}
	if len(r.Series) == 0 {
		return Report{}, ErrNoDataInRange
	}

	if len(dense) >= 2 {
		a := &series.Series{Name: dense[0].Name, Samples: dense[0].Between(sel.Start, sel.End)}
		b := &series.Series{Name: dense[1].Name, Samples: dense[1].Between(sel.Start, sel.End)}
		if d := series.Difference("delta", a, b); d.Len() > 0 {
			r.MeanDelta = stat.Mean(d.Values(), nil)
			r.HasDelta = true
		}
	}
	return r, nil
}

func summarize(name string, vals []float64) Summary {
	return Summary{
		Name:   name,
		Count:  len(vals),
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
		Mean:   stat.Mean(vals, nil),
		Median: median(vals),
	}
}

// median averages the two middle values of an even-length input.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ThresholdReport is the differential-pressure panel.
type ThresholdReport struct {
	Threshold    float64 `json:"threshold"`
	Current      float64 `json:"current"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	PercentAbove float64 `json:"percent_above"`
	PercentBelow float64 `json:"percent_below"`
	// HoursAbove and HoursBelow split the series span in proportion to the
	// sample counts, assuming even sample spacing. Both are zero for a
	// single sample.
	HoursAbove float64 `json:"hours_above"`
	HoursBelow float64 `json:"hours_below"`
}

// Threshold evaluates s against threshold. Values at or above the threshold
// count as above. Current is the last sample.
func Threshold(s *series.Series, threshold float64) (ThresholdReport, error) {
	n := s.Len()
	if n == 0 {
		return ThresholdReport{}, ErrNoDataInRange
	}
	vals := s.Values()
	sum := summarize(s.Name, vals)

	above := 0
	for _, v := range vals {
		if v >= threshold {
			above++
		}
	}
	fracAbove := float64(above) / float64(n)
	r := ThresholdReport{
		Threshold:    threshold,
		Current:      vals[n-1],
		Min:          sum.Min,
		Max:          sum.Max,
		Mean:         sum.Mean,
		Median:       sum.Median,
		PercentAbove: fracAbove * 100,
		PercentBelow: (1 - fracAbove) * 100,
	}
	if first, last, ok := s.Bounds(); ok && n >= 2 {
		span := last.Sub(first).Hours()
		r.HoursAbove = fracAbove * span
		r.HoursBelow = span - r.HoursAbove
	}
	return r, nil
}
