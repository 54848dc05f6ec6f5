// Package view holds one rendered chart of the dashboard: its datasets, the
// surface they are drawn on, the cursor protocol and the zoom history. A view
// takes part in viewport synchronisation as a chartsync.Peer.
package view

import (
	"errors"
	"fmt"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/render"
	"github.com/banshee-data/welldash/internal/series"
)

var logf = monitoring.Component("view")

// Kind selects what a view plots.
type Kind string

const (
	// KindPressure plots tube and line pressure with event and injection markers.
	KindPressure Kind = "pressure"
	// KindDelta plots the tube minus line difference.
	KindDelta Kind = "delta"
	// KindFlowRate plots flow rate, cumulative volume and purge cycles.
	KindFlowRate Kind = "flow_rate"
	// KindEvents plots occurrences only, one lane per kind.
	KindEvents Kind = "events"
)

// Kinds lists every view kind in dashboard order.
var Kinds = []Kind{KindPressure, KindDelta, KindFlowRate, KindEvents}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown view kind %q", s)
}

// Status is the load state of a view.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusNoData
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusNoData:
		return "no_data"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MsgNoData is the placeholder shown when a load yields nothing to plot.
const MsgNoData = "no data"

// ErrNoHistory is returned by ZoomBack when there is nothing to go back to.
var ErrNoHistory = errors.New("view: zoom history is empty")

// Surface is the rendering surface a view draws on.
type Surface interface {
	ReplaceDatasets([]interaction.Dataset)
	SetBounds(chartsync.Viewport)
	Axis() interaction.Axis
	Destroy()
}

// Config describes a view at construction.
type Config struct {
	ID      string
	Kind    Kind
	WellID  string
	Surface Surface
	// Bus, when set, is joined at construction and receives completed gestures.
	Bus        *chartsync.ViewportBus
	MarkerSize int
}

// View is one chart. Not safe for concurrent use; all calls come from the
// session loop.
type View struct {
	id      string
	kind    Kind
	wellID  string
	surface Surface
	bus     *chartsync.ViewportBus
	leave   func()

	cursor *interaction.CursorMachine
	query  *interaction.ProximityQuery

	status     Status
	message    string
	generation uint64
	failed     bool // the current generation ended in Fail

	data     Data
	datasets []interaction.Dataset
	dense    []*series.Series

	viewport  chartsync.Viewport
	history   []chartsync.Viewport
	gestures  int
	threshold *float64

	markerSize int
}

// New builds a view and joins it to cfg.Bus.
func New(cfg Config) *View {
	v := &View{
		id:         cfg.ID,
		kind:       cfg.Kind,
		wellID:     cfg.WellID,
		surface:    cfg.Surface,
		bus:        cfg.Bus,
		cursor:     interaction.NewCursorMachine(),
		query:      interaction.NewProximityQuery(),
		markerSize: cfg.MarkerSize,
	}
	if v.id == "" {
		v.id = string(cfg.Kind)
	}
	if v.markerSize <= 0 {
		v.markerSize = 8
	}
	if v.bus != nil {
		v.leave = v.bus.Join(v)
	}
	return v
}

// PeerID identifies the view on the viewport bus.
func (v *View) PeerID() string { return v.id }

// ID returns the view identifier.
func (v *View) ID() string { return v.id }

// Kind returns what the view plots.
func (v *View) Kind() Kind { return v.kind }

// WellID returns the well the view belongs to.
func (v *View) WellID() string { return v.wellID }

// Status returns the load state and, for StatusNoData, the message shown in
// place of the chart.
func (v *View) Status() (Status, string) { return v.status, v.message }

// Generation returns the token of the most recent load.
func (v *View) Generation() uint64 { return v.generation }

// Cursor exposes the cursor machine, mainly for transition hooks.
func (v *View) Cursor() *interaction.CursorMachine { return v.cursor }

// Data returns the content of the last applied load.
func (v *View) Data() Data { return v.data }

// Datasets returns the datasets currently on the surface.
func (v *View) Datasets() []interaction.Dataset { return v.datasets }

// Dense returns the series tooltips read values from.
func (v *View) Dense() []*series.Series { return v.dense }

// BeginLoad starts a new load and returns its token. Results carrying an
// older token are discarded by Apply and Fail.
func (v *View) BeginLoad() uint64 {
	v.generation++
	v.failed = false
	v.status = StatusLoading
	v.message = ""
	return v.generation
}

// Apply installs the result of the load identified by token. It reports
// false, changing nothing, when a newer load has started since or when that
// load already failed.
func (v *View) Apply(token uint64, d Data) bool {
	if token != v.generation {
		logf("%s: discarding stale load %d (current %d)", v.id, token, v.generation)
		return false
	}
	if v.failed {
		logf("%s: load %d already failed, keeping no-data", v.id, token)
		return false
	}
	v.data = d
	v.datasets, v.dense = BuildDatasets(v.kind, d)
	if !hasPoints(v.datasets) {
		v.status, v.message = StatusNoData, MsgNoData
		v.datasets, v.dense = nil, nil
		v.surface.Destroy()
		return true
	}
	v.status, v.message = StatusReady, ""
	v.surface.ReplaceDatasets(v.datasets)
	return true
}

// Fail records a failed load. The view shows a no-data placeholder and keeps
// it until the next load; nothing is retried.
func (v *View) Fail(token uint64, err error) bool {
	if token != v.generation {
		logf("%s: discarding stale failure %d (current %d): %v", v.id, token, v.generation, err)
		return false
	}
	logf("%s: load failed: %v", v.id, err)
	v.failed = true
	v.data = Data{}
	v.datasets, v.dense = nil, nil
	v.status, v.message = StatusNoData, MsgNoData
	v.surface.Destroy()
	return true
}

// Rebuild re-derives datasets from the last applied data, for changes that
// do not need a reload such as an exclusion toggle. A failed load is left
// showing no data until the next BeginLoad.
func (v *View) Rebuild(d Data) {
	if v.failed || (v.status != StatusReady && v.status != StatusNoData) {
		return
	}
	v.Apply(v.generation, d)
}

func hasPoints(ds []interaction.Dataset) bool {
	for _, d := range ds {
		if len(d.Points) > 0 {
			return true
		}
	}
	return false
}

// Viewport returns the visible range.
func (v *View) Viewport() chartsync.Viewport { return v.viewport }

// SetViewportSilently updates the bounds without running the gesture handler.
func (v *View) SetViewportSilently(vp chartsync.Viewport) {
	v.viewport = vp.Normalize()
	v.surface.SetBounds(v.viewport)
}

// ResetViewport shows vp and forgets the zoom history. Used when the window
// changes.
func (v *View) ResetViewport(vp chartsync.Viewport) {
	v.history = nil
	v.SetViewportSilently(vp)
}

// GestureComplete is the handler for a finished pan or zoom. The previous
// range goes on the zoom history and the new one is mirrored to every peer.
// It returns the number of peers updated.
func (v *View) GestureComplete(vp chartsync.Viewport) int {
	v.gestures++
	v.history = append(v.history, v.viewport)
	v.SetViewportSilently(vp)
	return v.publish()
}

// Gestures counts GestureComplete calls.
func (v *View) Gestures() int { return v.gestures }

// ZoomBack returns to the range before the last gesture and mirrors it to
// every peer.
func (v *View) ZoomBack() (chartsync.Viewport, error) {
	if len(v.history) == 0 {
		return v.viewport, ErrNoHistory
	}
	prev := v.history[len(v.history)-1]
	v.history = v.history[:len(v.history)-1]
	v.SetViewportSilently(prev)
	v.publish()
	return prev, nil
}

// HistoryLen returns the depth of the zoom history.
func (v *View) HistoryLen() int { return len(v.history) }

// ClearHistory drops the zoom history.
func (v *View) ClearHistory() { v.history = nil }

func (v *View) publish() int {
	if v.bus == nil {
		return 0
	}
	return v.bus.Publish(v.id, v.viewport)
}

// CaptureRadius returns the sparse capture radius in pixels.
func (v *View) CaptureRadius() float64 { return v.query.Radius() }

// SetCaptureRadius changes the capture radius; invalid values are ignored.
func (v *View) SetCaptureRadius(r float64) bool { return v.query.SetRadius(r) }

// MarkerSize returns the sparse marker size in pixels.
func (v *View) MarkerSize() int { return v.markerSize }

// SetMarkerSize changes the sparse marker size; non-positive values are ignored.
func (v *View) SetMarkerSize(n int) {
	if n > 0 {
		v.markerSize = n
	}
}

// Threshold returns the horizontal reference line, if any.
func (v *View) Threshold() *float64 { return v.threshold }

// SetThreshold sets or, with nil, clears the reference line.
func (v *View) SetThreshold(th *float64) { v.threshold = th }

// PointerMove answers a pointer at horizontal pixel px and returns the
// tooltip to display. While the cursor is locked the frozen tooltip is
// returned unchanged.
func (v *View) PointerMove(px float64) interaction.Tooltip {
	matches := v.query.Query(v.surface.Axis(), v.datasets, px)
	return v.cursor.Move(interaction.BuildTooltip(matches, v.dense))
}

// Secondary advances the cursor protocol at pixel px.
func (v *View) Secondary(px float64) error {
	return v.cursor.Secondary(v.surface.Axis().TimeForPixel(px))
}

// Primary resets the cursor protocol, reporting whether it was active.
func (v *View) Primary(px float64) (bool, error) {
	return v.cursor.Primary(v.surface.Axis().TimeForPixel(px))
}

// Cancel resets the cursor protocol.
func (v *View) Cancel() error {
	return v.cursor.Cancel()
}

// Perform runs a range action against the current selection.
func (v *View) Perform(a interaction.Action, run func(interaction.Selection) error) error {
	return v.cursor.Perform(a, run)
}

// Chart describes the view for the HTML and PNG renderers.
func (v *View) Chart(title string) render.Chart {
	c := render.Chart{
		Title:      title,
		Subtitle:   v.wellID,
		Datasets:   v.datasets,
		Viewport:   v.viewport,
		Threshold:  v.threshold,
		MarkerSize: v.markerSize,
	}
	if sel, ok := v.cursor.Selection(); ok {
		c.Selection = &sel
	}
	return c
}

// Close leaves the bus and destroys the surface.
func (v *View) Close() {
	if v.leave != nil {
		v.leave()
		v.leave = nil
	}
	v.surface.Destroy()
}
