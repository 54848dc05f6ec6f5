package backend

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/series"
)

// Dense series names for flow-rate data.
const (
	SeriesFlow       = "Flow rate"
	SeriesCumulative = "Cumulative"
)

// FlowRateQuery selects a flow-rate calculation.
type FlowRateQuery struct {
	WellID     string
	Days       int
	Smooth     bool
	Multiplier float64
	// ExcludePeriods is the comma-joined list of excluded cycle IDs.
	// Empty leaves the parameter off.
	ExcludePeriods string
}

func (q FlowRateQuery) values() url.Values {
	v := url.Values{}
	v.Set("days", strconv.Itoa(q.Days))
	v.Set("smooth", strconv.FormatBool(q.Smooth))
	if q.Multiplier > 0 {
		v.Set("multiplier", strconv.FormatFloat(q.Multiplier, 'f', -1, 64))
	}
	if q.ExcludePeriods != "" {
		v.Set("exclude_periods", q.ExcludePeriods)
	}
	return v
}

// FlowSummary holds the headline figures of a calculation.
type FlowSummary struct {
	ObservationDays    float64 `json:"observation_days"`
	MedianFlowRate     float64 `json:"median_flow_rate"`
	MeanFlowRate       float64 `json:"mean_flow_rate"`
	CumulativeFlow     float64 `json:"cumulative_flow"`
	EffectiveFlowRate  float64 `json:"effective_flow_rate"`
	DowntimeTotalHours float64 `json:"downtime_total_hours"`
	LossCoefficientPct float64 `json:"loss_coefficient_pct"`
	PurgeLossTotal     float64 `json:"purge_loss_total"`
	PurgeVentingCount  int     `json:"purge_venting_count"`
	PurgeVentingHours  float64 `json:"purge_venting_hours"`
	MedianDP           float64 `json:"median_dp"`
}

// DowntimePeriod is an interval with tube pressure below line pressure.
type DowntimePeriod struct {
	Start   time.Time
	End     time.Time
	Minutes float64
}

// ServiceCycle is a purge cycle detected by the data service.
type ServiceCycle struct {
	ID           string
	Source       string
	VentingStart time.Time
	VentingEnd   time.Time
	BuildupEnd   time.Time
	VentingMin   float64
	BuildupMin   float64
	TotalMin     float64
	Excluded     bool
}

// Cycle converts a service cycle into the dashboard's cycle model: venting
// start is the start, venting end the press marker and build-up end the
// stop.
func (s ServiceCycle) Cycle(wellID string) purge.Cycle {
	c := purge.Cycle{
		ID:           s.ID,
		WellID:       wellID,
		Start:        s.VentingStart,
		Stop:         s.BuildupEnd,
		TotalMinutes: int(math.Round(s.TotalMin)),
		Excluded:     s.Excluded,
	}
	if c.Stop.IsZero() {
		c.Stop = s.VentingEnd
	}
	if !s.VentingEnd.IsZero() {
		press := s.VentingEnd
		pm, sm := int(math.Round(s.VentingMin)), int(math.Round(s.BuildupMin))
		c.Press, c.PressMinutes, c.StopMinutes = &press, &pm, &sm
	}
	return c
}

// FlowRate is a completed calculation.
type FlowRate struct {
	Summary    FlowSummary
	Times      []time.Time
	Flow       []*float64
	Cumulative []*float64
	Downtime   []DowntimePeriod
	Cycles     []ServiceCycle
	DataPoints int
}

type flowWire struct {
	Summary *FlowSummary `json:"summary"`
	Chart   *struct {
		Timestamps     []string   `json:"timestamps"`
		FlowRate       []*float64 `json:"flow_rate"`
		CumulativeFlow []*float64 `json:"cumulative_flow"`
	} `json:"chart"`
	DowntimePeriods []struct {
		Start       string  `json:"start"`
		End         string  `json:"end"`
		DurationMin float64 `json:"duration_min"`
	} `json:"downtime_periods"`
	PurgeCycles []struct {
		ID                 cycleID `json:"id"`
		Source             string  `json:"source"`
		VentingStart       string  `json:"venting_start"`
		VentingEnd         string  `json:"venting_end"`
		BuildupEnd         string  `json:"buildup_end"`
		VentingDurationMin float64 `json:"venting_duration_min"`
		BuildupDurationMin float64 `json:"buildup_duration_min"`
		TotalDurationMin   float64 `json:"total_duration_min"`
		Excluded           bool    `json:"excluded"`
	} `json:"purge_cycles"`
	DataPoints int `json:"data_points"`
}

// FlowRate runs a flow-rate calculation on the service.
func (c *Client) FlowRate(ctx context.Context, q FlowRateQuery) (FlowRate, error) {
	var w flowWire
	path := "/api/flow-rate/calculate/" + url.PathEscape(q.WellID)
	if err := c.getJSON(ctx, "flow rate", path, q.values(), &w); err != nil {
		return FlowRate{}, err
	}
	if w.Summary == nil || w.Chart == nil {
		return FlowRate{}, fmt.Errorf("%w: flow rate: missing summary or chart", ErrMalformedResponse)
	}
	n := len(w.Chart.Timestamps)
	if len(w.Chart.FlowRate) != n || len(w.Chart.CumulativeFlow) != n {
		return FlowRate{}, fmt.Errorf("%w: flow rate: chart arrays differ in length", ErrMalformedResponse)
	}

	out := FlowRate{Summary: *w.Summary, DataPoints: w.DataPoints}
	for i, ts := range w.Chart.Timestamps {
		t, err := events.ParseTime(ts)
		if err != nil {
			continue
		}
		out.Times = append(out.Times, t)
		out.Flow = append(out.Flow, w.Chart.FlowRate[i])
		out.Cumulative = append(out.Cumulative, w.Chart.CumulativeFlow[i])
	}
	for _, d := range w.DowntimePeriods {
		start, err1 := events.ParseTime(d.Start)
		end, err2 := events.ParseTime(d.End)
		if err1 != nil || err2 != nil {
			continue
		}
		out.Downtime = append(out.Downtime, DowntimePeriod{Start: start, End: end, Minutes: d.DurationMin})
	}
	for _, pc := range w.PurgeCycles {
		start, err := events.ParseTime(pc.VentingStart)
		if err != nil || strings.TrimSpace(string(pc.ID)) == "" {
			continue
		}
		sc := ServiceCycle{
			ID:           string(pc.ID),
			Source:       pc.Source,
			VentingStart: start,
			VentingMin:   pc.VentingDurationMin,
			BuildupMin:   pc.BuildupDurationMin,
			TotalMin:     pc.TotalDurationMin,
			Excluded:     pc.Excluded,
		}
		sc.VentingEnd, _ = optionalTime(pc.VentingEnd)
		sc.BuildupEnd, _ = optionalTime(pc.BuildupEnd)
		out.Cycles = append(out.Cycles, sc)
	}
	return out, nil
}

func optionalTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := events.ParseTime(s)
	return t, err == nil
}

// Series returns the flow rate and cumulative volume as dense series,
// leaving out null values.
func (f FlowRate) Series() (flow, cumulative *series.Series, err error) {
	var fs, cs []series.Sample
	for i, t := range f.Times {
		if v := f.Flow[i]; v != nil {
			fs = append(fs, series.Sample{Time: t, Value: *v})
		}
		if v := f.Cumulative[i]; v != nil {
			cs = append(cs, series.Sample{Time: t, Value: *v})
		}
	}
	if flow, err = series.New(SeriesFlow, fs); err != nil {
		return nil, nil, err
	}
	if cumulative, err = series.New(SeriesCumulative, cs); err != nil {
		return nil, nil, err
	}
	return flow, cumulative, nil
}

// PurgeCycles converts the service cycles for wellID.
func (f FlowRate) PurgeCycles(wellID string) []purge.Cycle {
	out := make([]purge.Cycle, 0, len(f.Cycles))
	for _, sc := range f.Cycles {
		out = append(out, sc.Cycle(wellID))
	}
	return out
}
