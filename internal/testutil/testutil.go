// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the data-service payloads and HTTP helpers used
// by the backend, dashboard and api tests so each builds its fixtures the
// same way.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Epoch is the reference time fixtures are laid out from.
var Epoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request with an optional JSON body.
func NewTestRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// stamp formats t the way the data service does: naive local-less ISO.
func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// PressureJSON renders a pressure chart response with one bucket per step
// from start. A NaN-free fixture is assumed; use nil-able slices for gaps.
func PressureJSON(start time.Time, step time.Duration, tube, line []float64) string {
	type point struct {
		T    string   `json:"t"`
		Tube *float64 `json:"p_tube_avg"`
		Line *float64 `json:"p_line_avg"`
	}
	pts := make([]point, 0, len(tube))
	for i := range tube {
		p := point{T: stamp(start.Add(time.Duration(i) * step))}
		tv := tube[i]
		p.Tube = &tv
		if i < len(line) {
			lv := line[i]
			p.Line = &lv
		}
		pts = append(pts, p)
	}
	return mustJSON(map[string]any{
		"well_id":      17,
		"interval_min": int(step / time.Minute),
		"points":       pts,
		"count":        len(pts),
		"tz":           "UTC+5",
	})
}

// Cycle is a service-detected purge cycle fixture.
type Cycle struct {
	ID       string
	Start    time.Time
	Venting  time.Duration
	Buildup  time.Duration
	Excluded bool
}

// FlowRateJSON renders a flow-rate response. Cumulative flow is the running
// sum of flow.
func FlowRateJSON(start time.Time, step time.Duration, flow []float64, cycles []Cycle) string {
	ts := make([]string, len(flow))
	cum := make([]float64, len(flow))
	total := 0.0
	for i, f := range flow {
		ts[i] = stamp(start.Add(time.Duration(i) * step))
		total += f
		cum[i] = total
	}
	cs := make([]map[string]any, 0, len(cycles))
	for _, c := range cycles {
		ventEnd := c.Start.Add(c.Venting)
		cs = append(cs, map[string]any{
			"id":                   c.ID,
			"source":               "marker",
			"venting_start":        stamp(c.Start),
			"venting_end":          stamp(ventEnd),
			"buildup_start":        stamp(ventEnd),
			"buildup_end":          stamp(ventEnd.Add(c.Buildup)),
			"venting_duration_min": c.Venting.Minutes(),
			"buildup_duration_min": c.Buildup.Minutes(),
			"total_duration_min":   (c.Venting + c.Buildup).Minutes(),
			"excluded":             c.Excluded,
		})
	}
	return mustJSON(map[string]any{
		"summary": map[string]any{
			"observation_days":    float64(len(flow)) * step.Hours() / 24,
			"median_flow_rate":    flow[len(flow)/2],
			"cumulative_flow":     total,
			"purge_venting_count": len(cycles),
		},
		"chart": map[string]any{
			"timestamps":      ts,
			"flow_rate":       flow,
			"cumulative_flow": cum,
			"p_tube":          []float64{},
			"p_line":          []float64{},
		},
		"downtime_periods": []any{},
		"purge_cycles":     cs,
		"data_points":      len(flow),
	})
}

// Event is a timeline entry fixture.
type Event struct {
	ID          string
	At          time.Time
	Type        string
	PurgePhase  string
	Description string
	Reagent     string
	Qty         float64
	// RawTime, when set, replaces the formatted At on the wire.
	RawTime string
}

func (e Event) wire() map[string]any {
	m := map[string]any{"id": e.ID, "t": stamp(e.At)}
	if e.RawTime != "" {
		m["t"] = e.RawTime
	}
	if e.Type != "" {
		m["type"] = e.Type
	}
	if e.PurgePhase != "" {
		m["purge_phase"] = e.PurgePhase
	}
	if e.Description != "" {
		m["description"] = e.Description
	}
	if e.Reagent != "" {
		m["reagent"] = e.Reagent
		m["qty"] = e.Qty
	}
	return m
}

// OccurrencesJSON renders a well timeline response.
func OccurrencesJSON(serverNow time.Time, evs, injections []Event) string {
	we := make([]map[string]any, 0, len(evs))
	for _, e := range evs {
		we = append(we, e.wire())
	}
	wi := make([]map[string]any, 0, len(injections))
	for _, e := range injections {
		wi = append(wi, e.wire())
	}
	body := map[string]any{"events": we, "injections": wi}
	if !serverNow.IsZero() {
		body["server_now"] = serverNow.UTC().Format(time.RFC3339)
	}
	return mustJSON(body)
}

// PurgeCycleEvents returns start, press and stop purge entries at the given
// offsets from start, with IDs prefixed by id.
func PurgeCycleEvents(id string, start time.Time, press, stop time.Duration) []Event {
	return []Event{
		{ID: id + "-start", At: start, Type: "purge", PurgePhase: "start"},
		{ID: id + "-press", At: start.Add(press), Type: "purge", PurgePhase: "press"},
		{ID: id + "-stop", At: start.Add(stop), Type: "purge", PurgePhase: "stop"},
	}
}

// Ramp returns n values from first increasing by step.
func Ramp(n int, first, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = first + float64(i)*step
	}
	return out
}

// Constant returns n copies of v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
