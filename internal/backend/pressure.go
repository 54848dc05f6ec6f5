package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/series"
)

// Dense series names for pressure data.
const (
	SeriesTube = "Ptr"
	SeriesLine = "Pshl"
)

// Fill modes accepted by the pressure chart endpoint.
const (
	FillNone        = "none"
	FillForward     = "ffill"
	FillInterpolate = "interpolate"
)

// SeriesQuery selects aggregated pressure for one well.
type SeriesQuery struct {
	WellID          string
	Days            int
	IntervalMinutes int
	FilterZeros     bool
	FilterSpikes    bool
	FillMode        string
	MaxGapMinutes   int
}

func (q SeriesQuery) values() url.Values {
	v := url.Values{}
	v.Set("days", strconv.Itoa(q.Days))
	v.Set("interval", strconv.Itoa(q.IntervalMinutes))
	v.Set("filter_zeros", strconv.FormatBool(q.FilterZeros))
	v.Set("filter_spikes", strconv.FormatBool(q.FilterSpikes))
	fill := q.FillMode
	if fill == "" {
		fill = FillNone
	}
	v.Set("fill_mode", fill)
	if q.MaxGapMinutes > 0 {
		v.Set("max_gap", strconv.Itoa(q.MaxGapMinutes))
	}
	return v
}

// PressurePoint is one aggregation bucket. Either pressure may be missing.
type PressurePoint struct {
	Time time.Time
	Tube *float64
	Line *float64
}

// PressureSeries is the aggregated pressure for a window.
type PressureSeries struct {
	IntervalMinutes int
	Points          []PressurePoint
	FilterStats     map[string]any
	// Skipped counts buckets dropped for an unreadable timestamp.
	Skipped int
}

type pressureWire struct {
	IntervalMin int `json:"interval_min"`
	Points      *[]struct {
		T        string   `json:"t"`
		PTubeAvg *float64 `json:"p_tube_avg"`
		PLineAvg *float64 `json:"p_line_avg"`
	} `json:"points"`
	FilterStats map[string]any `json:"filter_stats"`
}

// PressureSeries fetches aggregated tube and line pressure.
func (c *Client) PressureSeries(ctx context.Context, q SeriesQuery) (PressureSeries, error) {
	var w pressureWire
	path := "/api/pressure/chart/" + url.PathEscape(q.WellID)
	if err := c.getJSON(ctx, "pressure series", path, q.values(), &w); err != nil {
		return PressureSeries{}, err
	}
	if w.Points == nil {
		return PressureSeries{}, fmt.Errorf("%w: pressure series: missing points", ErrMalformedResponse)
	}

	out := PressureSeries{IntervalMinutes: w.IntervalMin, FilterStats: w.FilterStats}
	for _, p := range *w.Points {
		t, err := events.ParseTime(p.T)
		if err != nil {
			out.Skipped++
			continue
		}
		out.Points = append(out.Points, PressurePoint{Time: t, Tube: p.PTubeAvg, Line: p.PLineAvg})
	}
	if out.Skipped > 0 {
		logf("pressure series %s: skipped %d buckets with bad timestamps", q.WellID, out.Skipped)
	}
	return out, nil
}

// Series splits the buckets into tube and line series, leaving out missing
// values. Duplicate bucket times are rejected.
func (p PressureSeries) Series() (tube, line *series.Series, err error) {
	var ts, ls []series.Sample
	for _, pt := range p.Points {
		if pt.Tube != nil {
			ts = append(ts, series.Sample{Time: pt.Time, Value: *pt.Tube})
		}
		if pt.Line != nil {
			ls = append(ls, series.Sample{Time: pt.Time, Value: *pt.Line})
		}
	}
	if tube, err = series.New(SeriesTube, ts); err != nil {
		return nil, nil, err
	}
	if line, err = series.New(SeriesLine, ls); err != nil {
		return nil, nil, err
	}
	return tube, line, nil
}

// PressureStats is the service's min/max/mean summary for one pressure.
type PressureStats struct {
	Avg *float64 `json:"avg"`
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// RangeStats is the service-side summary for a sub-range.
type RangeStats struct {
	Tube          PressureStats `json:"p_tube"`
	Line          PressureStats `json:"p_line"`
	TotalReadings int           `json:"total_readings"`
	TotalHours    int           `json:"total_hours"`
}

// RangeStats fetches the service's pressure summary for [start, end]. A
// range the service has no readings for returns ErrNoData.
func (c *Client) RangeStats(ctx context.Context, wellID string, start, end time.Time) (RangeStats, error) {
	if end.Before(start) {
		start, end = end, start
	}
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	var w struct {
		Data *RangeStats `json:"data"`
	}
	if err := c.getJSON(ctx, "range stats", "/api/pressure/stats/"+url.PathEscape(wellID), q, &w); err != nil {
		return RangeStats{}, err
	}
	if w.Data == nil {
		return RangeStats{}, ErrNoData
	}
	return *w.Data, nil
}
