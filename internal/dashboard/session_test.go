package dashboard

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/export"
	"github.com/banshee-data/welldash/internal/fsutil"
	"github.com/banshee-data/welldash/internal/httputil"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/prefs"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/rangestats"
	"github.com/banshee-data/welldash/internal/testutil"
	"github.com/banshee-data/welldash/internal/timeutil"
	"github.com/banshee-data/welldash/internal/view"
)

func init() {
	monitoring.SetLogger(nil)
}

var (
	epoch     = testutil.Epoch
	serverNow = epoch.Add(48 * time.Hour)
	step      = 15 * time.Minute
)

func pressureBody(tube float64) string {
	return testutil.PressureJSON(epoch, step, testutil.Ramp(96, tube, 0.1), testutil.Constant(96, 10))
}

func flowBody(cycles []testutil.Cycle) string {
	return testutil.FlowRateJSON(epoch, step, testutil.Constant(96, 5), cycles)
}

var serviceCycles = []testutil.Cycle{
	{ID: "p1", Start: epoch.Add(4 * time.Hour), Venting: 10 * time.Minute, Buildup: 30 * time.Minute},
	{ID: "p2", Start: epoch.Add(20 * time.Hour), Venting: 10 * time.Minute, Buildup: 30 * time.Minute},
}

func occurrencesBody() string {
	evs := testutil.PurgeCycleEvents("c1", epoch.Add(4*time.Hour), 10*time.Minute, 40*time.Minute)
	return testutil.OccurrencesJSON(serverNow, evs, nil)
}

func newMock() *httputil.MockHTTPClient {
	return httputil.NewMockHTTPClient().
		Route("/api/pressure/chart/17", http.StatusOK, pressureBody(20)).
		Route("/api/flow-rate/calculate/17", http.StatusOK, flowBody(serviceCycles)).
		Route("/api/wells/17/events", http.StatusOK, occurrencesBody()).
		Route("/api/pressure/stats/17", http.StatusOK,
			`{"data":{"p_tube":{"avg":22.4,"min":21.2,"max":23.6},"p_line":{"avg":10},"total_readings":25,"total_hours":6}}`)
}

type recorder struct {
	changes []purge.ExclusionChange
}

func (r *recorder) RecordExclusionChange(c purge.ExclusionChange) error {
	r.changes = append(r.changes, c)
	return nil
}

type harness struct {
	s    *Session
	mock *httputil.MockHTTPClient
	fs   *fsutil.MemoryFileSystem
	rec  *recorder
	ctx  context.Context
}

func newHarness(t *testing.T, mock *httputil.MockHTTPClient, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{mock: mock, fs: fsutil.NewMemoryFileSystem(), rec: &recorder{}}
	cfg := Config{
		WellID:       "17",
		Window:       chartsync.Window{PeriodDays: 7, AggregationMinutes: 15},
		Backend:      backend.NewClient(mock, "http://data.local:8000"),
		Prefs:        prefs.NewMemoryStore(),
		Recorder:     h.rec,
		Sink:         &export.FileSink{FS: h.fs, Dir: "exports"},
		Clock:        timeutil.NewMockClock(serverNow),
		ChartWidthPx: 1200,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	h.s = s

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	h.ctx = context.Background()
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	require.NoError(t, h.s.Load(h.ctx))
	h.settle(t)
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, h.s.Settle(ctx))
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	st, err := h.s.State(h.ctx)
	require.NoError(t, err)
	return st
}

func viewState(st State, k view.Kind) ViewState {
	for _, v := range st.Views {
		if v.Kind == k {
			return v
		}
	}
	return ViewState{}
}

// selectRange zooms the pressure view onto the first day and selects
// 03:00 to 09:00 with three secondary clicks.
func (h *harness) selectRange(t *testing.T, kind view.Kind) {
	t.Helper()
	_, err := h.s.GestureComplete(h.ctx, kind, chartsync.NewViewport(epoch, epoch.Add(24*time.Hour)))
	require.NoError(t, err)
	for i, want := range []interaction.Mode{interaction.ModeLocked, interaction.ModeRangeStart, interaction.ModeRangeEnd} {
		px := 150.0
		if i == 2 {
			px = 450
		}
		mode, err := h.s.Secondary(h.ctx, kind, px)
		require.NoError(t, err)
		require.Equal(t, want, mode)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Backend: backend.NewClient(newMock(), "http://x")})
	assert.Error(t, err)
	_, err = New(Config{WellID: "17"})
	assert.Error(t, err)
	_, err = New(Config{WellID: "17", Backend: backend.NewClient(newMock(), "http://x")})
	assert.ErrorIs(t, err, chartsync.ErrInvalidWindow)
}

func TestLoad(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	st := h.state(t)
	assert.Equal(t, "17", st.WellID)
	assert.Equal(t, chartsync.Window{PeriodDays: 7, AggregationMinutes: 15}, st.Window)
	assert.True(t, st.ReferenceNow.Equal(serverNow))
	assert.True(t, st.Cutoff.Equal(serverNow.Add(-7*24*time.Hour)))
	assert.Equal(t, 3, st.Occurrences)
	assert.Equal(t, 3, st.Counts.Purges)
	assert.False(t, st.Loading)
	require.NotNil(t, st.Summary)
	assert.Equal(t, 2, st.Summary.PurgeVentingCount)

	for _, k := range view.Kinds {
		vs := viewState(st, k)
		assert.Equal(t, "ready", vs.Status, k)
		assert.Empty(t, vs.Error, k)
		assert.Positive(t, vs.Points, k)
		assert.True(t, vs.Viewport.XMin.Equal(st.Cutoff), k)
		assert.True(t, vs.Viewport.XMax.Equal(serverNow), k)
	}

	q := h.mock.RequestsTo("/api/pressure/chart/")[0].URL.Query()
	assert.Equal(t, "7", q.Get("days"))
	assert.Equal(t, "15", q.Get("interval"))
	fq := h.mock.RequestsTo("/api/flow-rate/")[0].URL.Query()
	assert.Equal(t, "7", fq.Get("days"))
	assert.False(t, fq.Has("exclude_periods"))

	require.Len(t, st.Cycles, 2)
	assert.Equal(t, "p1", st.Cycles[0].ID)
	assert.Equal(t, []string{}, st.Excluded)

	// cumulative flow is drawn on the flow-rate view's second axis
	var cum *interaction.Dataset
	require.NoError(t, h.s.do(h.ctx, func() error {
		for _, ds := range h.s.views[view.KindFlowRate].Datasets() {
			if ds.Label == backend.SeriesCumulative {
				cum = &ds
			}
		}
		return nil
	}))
	require.NotNil(t, cum)
	assert.True(t, cum.Secondary)
	require.Len(t, cum.Points, 96)
	assert.Equal(t, 5.0, cum.Points[0].Value)
	assert.Equal(t, 480.0, cum.Points[95].Value)
}

func TestSetWindowRefetches(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	_, err := h.s.GestureComplete(h.ctx, view.KindDelta, chartsync.NewViewport(epoch, epoch.Add(time.Hour)))
	require.NoError(t, err)

	w, err := h.s.SetWindow(h.ctx, chartsync.WindowChange{Days: chartsync.Ptr(30)})
	require.NoError(t, err)
	assert.Equal(t, chartsync.Window{PeriodDays: 30, AggregationMinutes: 15}, w)
	h.settle(t)

	reqs := h.mock.RequestsTo("/api/pressure/chart/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "30", reqs[1].URL.Query().Get("days"))
	flows := h.mock.RequestsTo("/api/flow-rate/")
	require.Len(t, flows, 2)
	assert.Equal(t, "30", flows[1].URL.Query().Get("days"))

	st := h.state(t)
	for _, k := range view.Kinds {
		vs := viewState(st, k)
		assert.Zero(t, vs.ZoomHistory, k)
		assert.True(t, vs.Viewport.XMin.Equal(serverNow.Add(-30*24*time.Hour)), k)
	}
}

func TestSetWindowSameValuesDoesNotRefetch(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	_, err := h.s.SetWindow(h.ctx, chartsync.WindowChange{Days: chartsync.Ptr(7)})
	require.NoError(t, err)
	h.settle(t)
	assert.Len(t, h.mock.RequestsTo("/api/pressure/chart/"), 1)
}

func TestSetWindowInvalid(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	w, err := h.s.SetWindow(h.ctx, chartsync.WindowChange{Days: chartsync.Ptr(0)})
	assert.ErrorIs(t, err, chartsync.ErrInvalidWindow)
	assert.Equal(t, 7, w.PeriodDays)
	h.settle(t)
	assert.Len(t, h.mock.RequestsTo("/api/pressure/chart/"), 1)
}

func TestToggleExclusion(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	excluded, err := h.s.ToggleExclusion(h.ctx, "p1")
	require.NoError(t, err)
	assert.True(t, excluded)
	h.settle(t)

	flows := h.mock.RequestsTo("/api/flow-rate/")
	require.Len(t, flows, 2)
	assert.Equal(t, "p1", flows[1].URL.Query().Get("exclude_periods"))

	st := h.state(t)
	assert.Equal(t, []string{"p1"}, st.Excluded)
	require.Len(t, st.Cycles, 2)
	assert.True(t, st.Cycles[0].Excluded)
	assert.False(t, st.Cycles[1].Excluded)

	excluded, err = h.s.ToggleExclusion(h.ctx, "p1")
	require.NoError(t, err)
	assert.False(t, excluded)
	h.settle(t)

	flows = h.mock.RequestsTo("/api/flow-rate/")
	require.Len(t, flows, 3)
	assert.False(t, flows[2].URL.Query().Has("exclude_periods"))

	require.Len(t, h.rec.changes, 2)
	assert.Equal(t, []string{"p1"}, h.rec.changes[0].Excluded)
	assert.Empty(t, h.rec.changes[1].Excluded)

	// pressure is untouched by exclusions
	assert.Len(t, h.mock.RequestsTo("/api/pressure/chart/"), 1)
}

func TestToggleExclusionBeforeLoad(t *testing.T) {
	h := newHarness(t, newMock())

	excluded, err := h.s.ToggleExclusion(h.ctx, "p1")
	require.NoError(t, err)
	assert.True(t, excluded)
	h.settle(t)

	flows := h.mock.RequestsTo("/api/flow-rate/")
	require.Len(t, flows, 1)
	assert.Equal(t, "7", flows[0].URL.Query().Get("days"))
	assert.Equal(t, "p1", flows[0].URL.Query().Get("exclude_periods"))
}

func TestCyclesFallBackToTimeline(t *testing.T) {
	mock := newMock().Route("/api/flow-rate/calculate/17", http.StatusOK, flowBody(nil))
	h := newHarness(t, mock)
	h.load(t)

	st := h.state(t)
	require.Len(t, st.Cycles, 1)
	c := st.Cycles[0]
	assert.True(t, c.Start.Equal(epoch.Add(4*time.Hour)))
	assert.Equal(t, 40, c.TotalMinutes)

	_, err := h.s.ToggleExclusion(h.ctx, c.ID)
	require.NoError(t, err)
	h.settle(t)
	assert.True(t, h.state(t).Cycles[0].Excluded)
}

func TestFailedLoadShowsNoData(t *testing.T) {
	mock := newMock().Route("/api/pressure/chart/17", http.StatusInternalServerError, `{"detail":"db down"}`)
	h := newHarness(t, mock)
	h.load(t)

	st := h.state(t)
	for _, k := range []view.Kind{view.KindPressure, view.KindDelta} {
		vs := viewState(st, k)
		assert.Equal(t, "no_data", vs.Status, k)
		assert.Equal(t, view.MsgNoData, vs.Message, k)
		assert.NotEmpty(t, vs.Error, k)
	}
	assert.Equal(t, "ready", viewState(st, view.KindFlowRate).Status)
	assert.Equal(t, "ready", viewState(st, view.KindEvents).Status)
}

func TestFailedLoadIgnoresLateOccurrences(t *testing.T) {
	gate := make(chan struct{})
	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/api/pressure/chart/"),
			strings.HasPrefix(req.URL.Path, "/api/flow-rate/"):
			return respondStatus(req, http.StatusInternalServerError, `{"detail":"db down"}`), nil
		default:
			<-gate
			return respond(req, occurrencesBody()), nil
		}
	}
	h := newHarness(t, mock)
	require.NoError(t, h.s.Load(h.ctx))

	failed := []view.Kind{view.KindPressure, view.KindDelta, view.KindFlowRate}
	require.Eventually(t, func() bool {
		st, err := h.s.State(h.ctx)
		if err != nil {
			return false
		}
		for _, k := range failed {
			if viewState(st, k).Status != "no_data" {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	// the timeline holds a purge cycle, enough to draw markers
	// on both the pressure and flow-rate views
	close(gate)
	h.settle(t)

	st := h.state(t)
	require.Equal(t, "ready", viewState(st, view.KindEvents).Status)
	for _, k := range failed {
		vs := viewState(st, k)
		assert.Equal(t, "no_data", vs.Status, k)
		assert.Equal(t, view.MsgNoData, vs.Message, k)
		assert.Zero(t, vs.Points, k)
		assert.NotEmpty(t, vs.Error, k)
	}
}

func respond(req *http.Request, body string) *http.Response {
	return respondStatus(req, http.StatusOK, body)
}

func respondStatus(req *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	var pressureCalls atomic.Int32
	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/api/pressure/chart/"):
			if pressureCalls.Add(1) == 1 {
				<-gate
				return respond(req, pressureBody(100)), nil
			}
			return respond(req, pressureBody(20)), nil
		case strings.HasPrefix(req.URL.Path, "/api/flow-rate/"):
			return respond(req, flowBody(serviceCycles)), nil
		default:
			return respond(req, occurrencesBody()), nil
		}
	}
	h := newHarness(t, mock)

	require.NoError(t, h.s.Load(h.ctx))
	_, err := h.s.SetWindow(h.ctx, chartsync.WindowChange{Days: chartsync.Ptr(14)})
	require.NoError(t, err)
	close(gate)
	h.settle(t)

	var first float64
	var gen uint64
	require.NoError(t, h.s.do(h.ctx, func() error {
		first = h.s.tube.Values()[0]
		gen = h.s.views[view.KindPressure].Generation()
		return nil
	}))
	assert.Equal(t, 20.0, first)
	assert.Equal(t, uint64(2), gen)
	assert.Equal(t, "ready", viewState(h.state(t), view.KindPressure).Status)
}

func TestPointerAndZoom(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	_, err := h.s.ZoomBack(h.ctx, view.KindPressure)
	assert.ErrorIs(t, err, view.ErrNoHistory)

	day := chartsync.NewViewport(epoch, epoch.Add(24*time.Hour))
	n, err := h.s.GestureComplete(h.ctx, view.KindPressure, day)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	st := h.state(t)
	for _, k := range view.Kinds {
		assert.True(t, viewState(st, k).Viewport.Equal(day), k)
	}
	assert.Equal(t, 1, viewState(st, view.KindPressure).ZoomHistory)
	assert.Zero(t, viewState(st, view.KindDelta).ZoomHistory)

	// 600px is noon on a 1200px-wide day
	tip, err := h.s.PointerMove(h.ctx, view.KindPressure, 600)
	require.NoError(t, err)
	require.Len(t, tip.Values, 2)
	assert.True(t, tip.Values[0].Time.Equal(epoch.Add(12*time.Hour)))
	require.NotNil(t, tip.Delta)
	assert.InDelta(t, 14.8, *tip.Delta, 1e-9)

	prev, err := h.s.ZoomBack(h.ctx, view.KindPressure)
	require.NoError(t, err)
	assert.True(t, prev.XMin.Equal(st.Cutoff))
	assert.True(t, viewState(h.state(t), view.KindFlowRate).Viewport.Equal(prev))

	_, err = h.s.GestureComplete(h.ctx, view.KindFlowRate, day)
	require.NoError(t, err)
	vp, err := h.s.ResetZoom(h.ctx)
	require.NoError(t, err)
	assert.True(t, vp.XMax.Equal(serverNow))
	assert.Zero(t, viewState(h.state(t), view.KindFlowRate).ZoomHistory)

	_, err = h.s.PointerMove(h.ctx, view.Kind("bogus"), 1)
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestCursorProtocol(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	reset, err := h.s.Primary(h.ctx, view.KindPressure, 10)
	require.NoError(t, err)
	assert.False(t, reset)

	h.selectRange(t, view.KindPressure)
	vs := viewState(h.state(t), view.KindPressure)
	assert.Equal(t, "range_end", vs.Cursor)
	require.NotNil(t, vs.Selection)
	assert.True(t, vs.Selection.Start.Equal(epoch.Add(3*time.Hour)))
	assert.True(t, vs.Selection.End.Equal(epoch.Add(9*time.Hour)))
	assert.Len(t, vs.Menu, 3)

	// other views keep their own cursor
	assert.Equal(t, "normal", viewState(h.state(t), view.KindDelta).Cursor)

	require.NoError(t, h.s.Cancel(h.ctx, view.KindPressure))
	assert.Equal(t, "normal", viewState(h.state(t), view.KindPressure).Cursor)

	_, err = h.s.PerformRangeAction(h.ctx, view.KindPressure, interaction.ActionExport)
	assert.ErrorIs(t, err, interaction.ErrNoSelection)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)
	h.selectRange(t, view.KindPressure)

	res, err := h.s.PerformRangeAction(h.ctx, view.KindPressure, interaction.ActionExport)
	require.NoError(t, err)
	assert.Equal(t, "exports/pressure_17_2026-03-01_2026-03-01.csv", res.File)

	data, err := h.fs.ReadFile(res.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Equal(t, "\ufeffTime;Ptr;Pshl;ΔP;Event;Type;Qty", lines[0])
	assert.Equal(t, "01.03.2026 03:00;21.200;10.000;11.200;;;", lines[1])
	assert.Contains(t, string(data), export.EventsHeading)
	assert.Len(t, lines, 1+25+2+3)

	assert.Equal(t, "normal", viewState(h.state(t), view.KindPressure).Cursor)
}

func TestSaveImage(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)
	h.selectRange(t, view.KindFlowRate)

	res, err := h.s.PerformRangeAction(h.ctx, view.KindFlowRate, interaction.ActionSaveImage)
	require.NoError(t, err)
	assert.Equal(t, "exports/chart_17_2026-03-03.png", res.File)
	data, err := h.fs.ReadFile(res.File)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestExportWithoutSink(t *testing.T) {
	h := newHarness(t, newMock(), func(c *Config) { c.Sink = nil })
	h.load(t)
	h.selectRange(t, view.KindPressure)

	_, err := h.s.PerformRangeAction(h.ctx, view.KindPressure, interaction.ActionExport)
	assert.ErrorIs(t, err, ErrNoSink)
	assert.Equal(t, "normal", viewState(h.state(t), view.KindPressure).Cursor)
}

func TestRangeStats(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)
	h.selectRange(t, view.KindPressure)

	res, err := h.s.PerformRangeAction(h.ctx, view.KindPressure, interaction.ActionRangeStats)
	require.NoError(t, err)
	require.NotNil(t, res.Stats)
	rep := res.Stats.Report
	require.NotNil(t, rep)
	require.Len(t, rep.Series, 2)
	assert.Equal(t, "Ptr", rep.Series[0].Name)
	assert.Equal(t, 25, rep.Series[0].Count)
	assert.InDelta(t, 21.2, rep.Series[0].Min, 1e-9)
	assert.InDelta(t, 23.6, rep.Series[0].Max, 1e-9)
	assert.InDelta(t, 22.4, rep.Series[0].Mean, 1e-9)
	assert.True(t, rep.HasDelta)
	assert.InDelta(t, 12.4, rep.MeanDelta, 1e-9)

	require.NotNil(t, res.Stats.Trend)
	assert.Equal(t, "rising", res.Stats.Trend.Direction)
	assert.InDelta(t, 9.6, res.Stats.Trend.SlopePerDay, 1e-6)
	assert.Nil(t, res.Stats.Trend.HoursToThreshold)

	assert.Equal(t, 3, res.Stats.EventsInRange)
	assert.Equal(t, 3, res.Stats.Events.Purges)
	require.NotNil(t, res.Stats.Service)
	assert.Equal(t, 25, res.Stats.Service.TotalReadings)

	// range statistics keep the selection
	assert.Equal(t, "range_end", viewState(h.state(t), view.KindPressure).Cursor)
}

func TestRangeStatsDeltaThreshold(t *testing.T) {
	th := 12.0
	h := newHarness(t, newMock(), func(c *Config) { c.DeltaThreshold = &th })
	h.load(t)
	h.selectRange(t, view.KindDelta)

	res, err := h.s.PerformRangeAction(h.ctx, view.KindDelta, interaction.ActionRangeStats)
	require.NoError(t, err)
	require.NotNil(t, res.Stats.Threshold)
	tr := res.Stats.Threshold
	assert.Equal(t, 12.0, tr.Threshold)
	assert.InDelta(t, 13.6, tr.Current, 1e-9)
	// 11.2 .. 13.6 in 0.1 steps: 17 of 25 values at or above 12
	assert.InDelta(t, 68.0, tr.PercentAbove, 1e-6)
	require.NotNil(t, res.Stats.Trend)
	assert.Nil(t, res.Stats.Trend.HoursToThreshold, "already above a rising threshold")
}

func TestRangeStatsFlowProjection(t *testing.T) {
	mock := newMock().Route("/api/flow-rate/calculate/17", http.StatusOK,
		testutil.FlowRateJSON(epoch, step, testutil.Ramp(96, 5, -0.01), serviceCycles))
	th := 4.0
	h := newHarness(t, mock, func(c *Config) { c.FlowTrendThreshold = &th })
	h.load(t)
	h.selectRange(t, view.KindFlowRate)

	res, err := h.s.PerformRangeAction(h.ctx, view.KindFlowRate, interaction.ActionRangeStats)
	require.NoError(t, err)
	tr := res.Stats.Trend
	require.NotNil(t, tr)
	assert.Equal(t, "falling", tr.Direction)
	require.NotNil(t, tr.HoursToThreshold)
	// 4.64 at 09:00, falling 0.04 per hour
	assert.InDelta(t, 16.0, *tr.HoursToThreshold, 1e-6)
	assert.Nil(t, res.Stats.Service)
}

func TestRangeStatsNoData(t *testing.T) {
	h := newHarness(t, newMock())
	h.load(t)

	_, err := h.s.GestureComplete(h.ctx, view.KindPressure, chartsync.NewViewport(epoch.Add(-48*time.Hour), epoch.Add(-24*time.Hour)))
	require.NoError(t, err)
	for _, px := range []float64{150, 150, 450} {
		_, err := h.s.Secondary(h.ctx, view.KindPressure, px)
		require.NoError(t, err)
	}
	_, err = h.s.PerformRangeAction(h.ctx, view.KindPressure, interaction.ActionRangeStats)
	assert.ErrorIs(t, err, rangestats.ErrNoDataInRange)
}

func TestSettings(t *testing.T) {
	store := prefs.NewMemoryStore()
	h := newHarness(t, newMock(), func(c *Config) { c.Prefs = store })
	h.load(t)

	ok, err := h.s.SetCaptureRadius(h.ctx, -3)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.s.SetCaptureRadius(h.ctx, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.s.SetMarkerSize(h.ctx, 14)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 14, prefs.MarkerSize(store, "17"))

	ok, err = h.s.SetBaseline(h.ctx, "12,5")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.s.SetBaseline(h.ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.s.SetDeltaThreshold(h.ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ref := epoch.Add(time.Hour)
	require.NoError(t, h.s.SetReferencePoint(h.ctx, ref))
	got, ok := prefs.ReferencePoint(store, "17")
	require.True(t, ok)
	assert.True(t, got.Equal(ref))

	st := h.state(t)
	for _, k := range view.Kinds {
		vs := viewState(st, k)
		assert.Equal(t, 30.0, vs.CaptureRadius, k)
		assert.Equal(t, 14, vs.MarkerSize, k)
	}
	require.NotNil(t, viewState(st, view.KindPressure).Threshold)
	assert.Equal(t, 12.5, *viewState(st, view.KindPressure).Threshold)
	assert.Equal(t, 3.0, *viewState(st, view.KindDelta).Threshold)

	// stored preferences survive into a new session
	h2 := newHarness(t, newMock(), func(c *Config) { c.Prefs = store })
	st2 := h2.state(t)
	assert.Equal(t, 14, viewState(st2, view.KindPressure).MarkerSize)
	assert.Equal(t, 12.5, *viewState(st2, view.KindPressure).Threshold)
}

func TestChart(t *testing.T) {
	h := newHarness(t, newMock(), func(c *Config) { c.ChartHeightPx = 300 })
	h.load(t)

	c, err := h.s.Chart(h.ctx, view.KindFlowRate)
	require.NoError(t, err)
	assert.Equal(t, "Flow rate", c.Title)
	assert.Equal(t, "17", c.Subtitle)
	assert.Equal(t, 1200, c.WidthPx)
	assert.Equal(t, 300, c.HeightPx)
	assert.NotEmpty(t, c.Datasets)

	_, err = h.s.Chart(h.ctx, view.Kind("nope"))
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestCallsAfterStop(t *testing.T) {
	s, err := New(Config{
		WellID:  "17",
		Window:  chartsync.Window{PeriodDays: 7, AggregationMinutes: 15},
		Backend: backend.NewClient(newMock(), "http://x"),
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	require.NoError(t, s.Close(context.Background()))
	cancel()
	<-done

	_, err = s.State(context.Background())
	assert.ErrorIs(t, err, ErrLoopStopped)
}
