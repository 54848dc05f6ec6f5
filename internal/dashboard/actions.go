package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/export"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/rangestats"
	"github.com/banshee-data/welldash/internal/series"
	"github.com/banshee-data/welldash/internal/trend"
	"github.com/banshee-data/welldash/internal/view"
)

// ErrNoSink is returned by file actions on a session without an export sink.
var ErrNoSink = errors.New("dashboard: no export destination configured")

// ActionResult is the outcome of a range action.
type ActionResult struct {
	Action    interaction.Action    `json:"action"`
	Selection interaction.Selection `json:"selection"`
	// File is where an export or image went.
	File  string       `json:"file,omitempty"`
	Stats *RangeReport `json:"stats,omitempty"`
}

// TrendReport is a straight-line fit over the first series in range.
type TrendReport struct {
	Series      string  `json:"series"`
	SlopePerDay float64 `json:"slope_per_day"`
	RSquared    float64 `json:"r_squared"`
	Direction   string  `json:"direction"`
	Threshold   float64 `json:"threshold,omitempty"`
	// HoursToThreshold is set when the line is heading for Threshold.
	HoursToThreshold *float64 `json:"hours_to_threshold,omitempty"`
}

// RangeReport is the range statistics popup.
type RangeReport struct {
	// Report is nil when the view has no dense samples in range.
	Report          *rangestats.Report          `json:"report,omitempty"`
	Threshold       *rangestats.ThresholdReport `json:"threshold,omitempty"`
	Trend           *TrendReport                `json:"trend,omitempty"`
	EventsInRange   int                         `json:"events_in_range"`
	Events          events.Counts               `json:"events"`
	DowntimeMinutes float64                     `json:"downtime_minutes"`
	// Service is the data service's own pressure summary, when it has one.
	Service *backend.RangeStats `json:"service,omitempty"`
}

// PerformRangeAction runs a menu action against the completed selection of a
// view. Export and image actions return the cursor to normal afterwards.
func (s *Session) PerformRangeAction(ctx context.Context, kind view.Kind, a interaction.Action) (ActionResult, error) {
	res := ActionResult{Action: a}
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		return v.Perform(a, func(sel interaction.Selection) error {
			res.Selection = sel
			switch a {
			case interaction.ActionExport:
				res.File, err = s.exportCSV(v, sel)
			case interaction.ActionSaveImage:
				res.File, err = s.exportPNG(v)
			case interaction.ActionRangeStats:
				res.Stats, err = s.rangeReport(v, sel)
			}
			return err
		})
	})
	if err != nil {
		return res, err
	}

	if a == interaction.ActionRangeStats && kind != view.KindFlowRate && kind != view.KindEvents {
		rs, err := s.cfg.Backend.RangeStats(ctx, s.cfg.WellID, res.Selection.Start, res.Selection.End)
		switch {
		case err == nil:
			res.Stats.Service = &rs
		case errors.Is(err, backend.ErrNoData):
		default:
			logf("%s: service range stats: %v", s.cfg.WellID, err)
		}
	}
	return res, nil
}

func (s *Session) exportCSV(v *view.View, sel interaction.Selection) (string, error) {
	if s.cfg.Sink == nil {
		return "", ErrNoSink
	}
	dense := v.Dense()
	if v.Kind() != view.KindFlowRate {
		dense = s.pressureData().Dense
	}
	return export.CSV(s.cfg.Sink, export.Table{
		WellID:      s.cfg.WellID,
		Selection:   sel,
		Dense:       dense,
		Occurrences: s.visibleOccurrences(),
		Location:    s.cfg.Location,
	})
}

func (s *Session) exportPNG(v *view.View) (string, error) {
	if s.cfg.Sink == nil {
		return "", ErrNoSink
	}
	c := v.Chart(chartTitle(v.Kind()))
	c.WidthPx, c.HeightPx = s.cfg.ChartWidthPx, s.cfg.ChartHeightPx
	return export.PNG(s.cfg.Sink, s.cfg.WellID, c, s.clock.Now())
}

func (s *Session) rangeReport(v *view.View, sel interaction.Selection) (*RangeReport, error) {
	occ := events.Between(s.visibleOccurrences(), sel.Start, sel.End)
	r := &RangeReport{
		EventsInRange:   len(occ),
		Events:          events.Summarize(occ),
		DowntimeMinutes: s.downtimeIn(sel),
	}

	dense := v.Dense()
	rep, err := rangestats.Compute(dense, sel)
	switch {
	case errors.Is(err, rangestats.ErrNoDataInRange):
		if len(occ) == 0 {
			return nil, err
		}
		return r, nil
	case err != nil:
		return nil, err
	}
	r.Report = &rep

	first := &series.Series{Name: dense[0].Name, Samples: dense[0].Between(sel.Start, sel.End)}
	th := v.Threshold()
	if v.Kind() == view.KindDelta && th != nil {
		if tr, err := rangestats.Threshold(first, *th); err == nil {
			r.Threshold = &tr
		}
	}
	r.Trend = fitTrend(first, th)
	return r, nil
}

// fitTrend fits a line to s, using its mean sample spacing as the cadence.
func fitTrend(s *series.Series, threshold *float64) *TrendReport {
	first, last, ok := s.Bounds()
	n := s.Len()
	if !ok || n < 2 {
		return nil
	}
	cadence := last.Sub(first).Minutes() / float64(n-1)
	m, err := trend.Fit(s.Values(), cadence)
	if err != nil {
		return nil
	}
	tr := &TrendReport{
		Series:      s.Name,
		SlopePerDay: m.SlopePerDay,
		RSquared:    m.RSquared,
		Direction:   m.Direction().String(),
	}
	if threshold != nil {
		tr.Threshold = *threshold
		if h, ok := trend.PredictHoursToThreshold(m, m.DurationHours, *threshold); ok {
			tr.HoursToThreshold = &h
		}
	}
	return tr
}

// downtimeIn sums the minutes of reported downtime overlapping sel.
func (s *Session) downtimeIn(sel interaction.Selection) float64 {
	if s.flowRate == nil {
		return 0
	}
	var total time.Duration
	for _, d := range s.flowRate.Downtime {
		start, end := d.Start, d.End
		if start.Before(sel.Start) {
			start = sel.Start
		}
		if end.After(sel.End) {
			end = sel.End
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return total.Minutes()
}
