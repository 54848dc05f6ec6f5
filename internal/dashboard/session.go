// Package dashboard runs one well's dashboard session: the time-window
// coordinator, the viewport bus, the four views and the exclusion store,
// all driven from a single event loop. Backend requests run in their own
// goroutines and post their results back to the loop.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/export"
	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/prefs"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/render"
	"github.com/banshee-data/welldash/internal/series"
	"github.com/banshee-data/welldash/internal/timeutil"
	"github.com/banshee-data/welldash/internal/view"
)

var logf = monitoring.Component("session")

// ErrUnknownView is returned for a view kind the session does not have.
var ErrUnknownView = errors.New("dashboard: unknown view")

// Backend is the data service the session reads from. *backend.Client
// implements it.
type Backend interface {
	PressureSeries(ctx context.Context, q backend.SeriesQuery) (backend.PressureSeries, error)
	FlowRate(ctx context.Context, q backend.FlowRateQuery) (backend.FlowRate, error)
	RangeStats(ctx context.Context, wellID string, start, end time.Time) (backend.RangeStats, error)
	Occurrences(ctx context.Context, wellID string) (backend.OccurrenceSet, error)
}

// ExclusionRecorder keeps a history of exclusion set changes.
type ExclusionRecorder interface {
	RecordExclusionChange(purge.ExclusionChange) error
}

// SeriesOptions are the pressure aggregation switches passed to the service.
type SeriesOptions struct {
	FilterZeros   bool
	FilterSpikes  bool
	FillMode      string
	MaxGapMinutes int
}

// Config describes a session.
type Config struct {
	WellID  string
	Window  chartsync.Window
	Backend Backend
	Prefs   prefs.Store
	// Recorder, when set, receives every exclusion change.
	Recorder ExclusionRecorder
	Sink     export.Sink
	Clock    timeutil.Clock

	Series         SeriesOptions
	SmoothFlow     bool
	FlowMultiplier float64

	ChartWidthPx    int
	ChartHeightPx   int
	CaptureRadiusPx float64
	DeltaThreshold  *float64
	// FlowTrendThreshold is the flow-rate level range statistics project
	// the fitted trend onto.
	FlowTrendThreshold *float64
	// Location formats export timestamps; nil means UTC.
	Location *time.Location
}

// Session owns every engine component of one dashboard. Its exported
// methods are safe for concurrent use: each runs on the session loop.
type Session struct {
	cfg   Config
	loop  *Loop
	clock timeutil.Clock

	coord    *chartsync.Coordinator
	bus      *chartsync.ViewportBus
	excl     *purge.ExclusionStore
	views    map[view.Kind]*view.View
	surfaces map[view.Kind]*render.Canvas

	runCtx context.Context
	update chartsync.WindowUpdate

	fetched     chartsync.Window
	haveFetched bool
	pressureSeq uint64
	flowSeq     uint64
	tube, line  *series.Series
	flowRate    *backend.FlowRate
	flowSeries  *series.Series
	cumulative  *series.Series
	lastErr     map[view.Kind]error

	inflight int
	settlers []chan struct{}
}

// New wires a session. It does not load anything until Load is called and
// Run is serving the loop.
func New(cfg Config) (*Session, error) {
	if cfg.WellID == "" {
		return nil, errors.New("dashboard: well ID is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("dashboard: backend is required")
	}
	if cfg.Prefs == nil {
		cfg.Prefs = prefs.NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.ChartWidthPx <= 0 {
		cfg.ChartWidthPx = 1200
	}

	coord, err := chartsync.NewCoordinator(cfg.Window, cfg.Clock)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		loop:     NewLoop(0),
		clock:    cfg.Clock,
		coord:    coord,
		bus:      chartsync.NewViewportBus(coord),
		excl:     purge.NewExclusionStore(cfg.Prefs),
		views:    make(map[view.Kind]*view.View, len(view.Kinds)),
		surfaces: make(map[view.Kind]*render.Canvas, len(view.Kinds)),
		lastErr:  make(map[view.Kind]error),
		runCtx:   context.Background(),
	}

	markerSize := prefs.MarkerSize(cfg.Prefs, cfg.WellID)
	for _, k := range view.Kinds {
		c := render.NewCanvas(cfg.ChartWidthPx)
		v := view.New(view.Config{Kind: k, WellID: cfg.WellID, Surface: c, Bus: s.bus, MarkerSize: markerSize})
		if cfg.CaptureRadiusPx > 0 {
			v.SetCaptureRadius(cfg.CaptureRadiusPx)
		}
		s.views[k] = v
		s.surfaces[k] = c
	}
	if cfg.DeltaThreshold != nil {
		th := *cfg.DeltaThreshold
		s.views[view.KindDelta].SetThreshold(&th)
	}
	if b, ok := prefs.Baseline(cfg.Prefs, cfg.WellID); ok {
		s.views[view.KindPressure].SetThreshold(&b)
	}
	if cfg.FlowTrendThreshold != nil {
		th := *cfg.FlowTrendThreshold
		s.views[view.KindFlowRate].SetThreshold(&th)
	}

	s.coord.Subscribe(s.onWindow)
	s.excl.Subscribe(s.onExclusion)
	s.update = s.coord.Current()
	s.bus.Reset()
	return s, nil
}

// Run serves the session loop until ctx is cancelled. Backend requests
// started by the session use ctx.
func (s *Session) Run(ctx context.Context) error {
	s.runCtx = ctx
	return s.loop.Run(ctx)
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// WellID returns the well the session shows.
func (s *Session) WellID() string {
	return s.cfg.WellID
}

// do runs fn on the loop and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	if cerr := s.loop.Call(ctx, func() { err = fn() }); cerr != nil {
		return cerr
	}
	return err
}

func (s *Session) view(kind view.Kind) (*view.View, error) {
	v, ok := s.views[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, kind)
	}
	return v, nil
}

// Load fetches the timeline and every series for the current window.
func (s *Session) Load(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.loadOccurrences()
		s.loadSeries()
		return nil
	})
}

// SetWindow changes the period and/or aggregation interval. Every view is
// reset to the new range and reloaded. Invalid values leave the window as
// it was and return chartsync.ErrInvalidWindow.
func (s *Session) SetWindow(ctx context.Context, change chartsync.WindowChange) (chartsync.Window, error) {
	var w chartsync.Window
	err := s.do(ctx, func() error {
		err := s.coord.SetWindow(change)
		w = s.coord.Window()
		return err
	})
	return w, err
}

// onWindow runs for every coordinator update.
func (s *Session) onWindow(u chartsync.WindowUpdate) {
	s.update = u
	s.bus.Reset()
	for _, v := range s.views {
		v.ClearHistory()
	}

	if !s.haveFetched || u.Window != s.fetched {
		s.loadSeries()
	} else {
		s.views[view.KindPressure].Rebuild(s.pressureData())
		s.views[view.KindDelta].Rebuild(s.pressureData())
		s.views[view.KindFlowRate].Rebuild(s.flowData())
	}

	ev := s.views[view.KindEvents]
	ev.Apply(ev.BeginLoad(), view.Data{Occurrences: u.Occurrences})
}

// ToggleExclusion flips a purge cycle's exclusion for the session's well and
// returns whether it is excluded afterwards. The flow-rate view is redrawn
// at once and its calculation re-requested with the new set.
func (s *Session) ToggleExclusion(ctx context.Context, cycleID string) (bool, error) {
	var excluded bool
	err := s.do(ctx, func() error {
		var err error
		excluded, err = s.excl.Toggle(s.cfg.WellID, cycleID)
		return err
	})
	return excluded, err
}

// Excluded returns the excluded cycle IDs of the session's well.
func (s *Session) Excluded(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.do(ctx, func() error {
		ids = s.excl.Excluded(s.cfg.WellID)
		return nil
	})
	return ids, err
}

func (s *Session) onExclusion(c purge.ExclusionChange) {
	if c.WellID != s.cfg.WellID {
		return
	}
	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.RecordExclusionChange(c); err != nil {
			logf("record exclusion change: %v", err)
		}
	}
	s.views[view.KindFlowRate].Rebuild(s.flowData())
	s.loadFlow()
}

// SetCaptureRadius changes the sparse capture radius of every view.
// Non-positive or non-finite values are ignored and reported false.
func (s *Session) SetCaptureRadius(ctx context.Context, r float64) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil
		}
		for _, v := range s.views {
			ok = v.SetCaptureRadius(r)
		}
		return nil
	})
	return ok, err
}

// SetMarkerSize stores and applies the occurrence marker size.
func (s *Session) SetMarkerSize(ctx context.Context, n int) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		if n <= 0 {
			return nil
		}
		if err := prefs.SetMarkerSize(s.cfg.Prefs, s.cfg.WellID, n); err != nil {
			return err
		}
		for _, v := range s.views {
			v.SetMarkerSize(n)
		}
		ok = true
		return nil
	})
	return ok, err
}

// SetBaseline parses and stores the pressure baseline, drawn as the pressure
// view's reference line. Unparseable input keeps the previous baseline.
func (s *Session) SetBaseline(ctx context.Context, text string) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		if ok = prefs.SetBaselineText(s.cfg.Prefs, s.cfg.WellID, text); ok {
			b, _ := prefs.Baseline(s.cfg.Prefs, s.cfg.WellID)
			s.views[view.KindPressure].SetThreshold(&b)
		}
		return nil
	})
	return ok, err
}

// SetReferencePoint stores the well's reference timestamp.
func (s *Session) SetReferencePoint(ctx context.Context, t time.Time) error {
	return s.do(ctx, func() error {
		return prefs.SetReferencePoint(s.cfg.Prefs, s.cfg.WellID, t)
	})
}

// SetDeltaThreshold moves the differential-pressure reference line.
// Non-finite values are ignored.
func (s *Session) SetDeltaThreshold(ctx context.Context, th float64) (bool, error) {
	if math.IsNaN(th) || math.IsInf(th, 0) {
		return false, nil
	}
	err := s.do(ctx, func() error {
		s.views[view.KindDelta].SetThreshold(&th)
		return nil
	})
	return err == nil, err
}

// Chart describes a view for the renderers.
func (s *Session) Chart(ctx context.Context, kind view.Kind) (render.Chart, error) {
	var c render.Chart
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		c = v.Chart(chartTitle(kind))
		c.WidthPx, c.HeightPx = s.cfg.ChartWidthPx, s.cfg.ChartHeightPx
		return nil
	})
	return c, err
}

func chartTitle(kind view.Kind) string {
	switch kind {
	case view.KindPressure:
		return "Pressure"
	case view.KindDelta:
		return "Differential pressure"
	case view.KindFlowRate:
		return "Flow rate"
	case view.KindEvents:
		return "Events"
	}
	return string(kind)
}

// visibleOccurrences returns the occurrences of the current window.
func (s *Session) visibleOccurrences() []events.Occurrence {
	return s.update.Occurrences
}
