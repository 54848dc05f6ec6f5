package dashboard

import (
	"context"
	"time"

	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/view"
)

// ViewState describes one view.
type ViewState struct {
	Kind          view.Kind              `json:"kind"`
	Status        string                 `json:"status"`
	Message       string                 `json:"message,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Generation    uint64                 `json:"generation"`
	Viewport      chartsync.Viewport     `json:"viewport"`
	ZoomHistory   int                    `json:"zoom_history"`
	Cursor        string                 `json:"cursor"`
	Selection     *interaction.Selection `json:"selection,omitempty"`
	Menu          []interaction.Action   `json:"menu,omitempty"`
	CaptureRadius float64                `json:"capture_radius"`
	MarkerSize    int                    `json:"marker_size"`
	Threshold     *float64               `json:"threshold,omitempty"`
	Points        int                    `json:"points"`
}

// State is a snapshot of the whole session.
type State struct {
	WellID       string               `json:"well_id"`
	Window       chartsync.Window     `json:"window"`
	ReferenceNow time.Time            `json:"reference_now"`
	Cutoff       time.Time            `json:"cutoff"`
	Occurrences  int                  `json:"occurrences"`
	Counts       events.Counts        `json:"counts"`
	Excluded     []string             `json:"excluded"`
	Cycles       []purge.Cycle        `json:"cycles"`
	Summary      *backend.FlowSummary `json:"flow_summary,omitempty"`
	Loading      bool                 `json:"loading"`
	Views        []ViewState          `json:"views"`
}

// State returns a snapshot of the session.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func() error {
		st = s.snapshot()
		return nil
	})
	return st, err
}

func (s *Session) snapshot() State {
	u := s.update
	st := State{
		WellID:       s.cfg.WellID,
		Window:       u.Window,
		ReferenceNow: u.ReferenceNow,
		Cutoff:       u.Cutoff,
		Occurrences:  len(u.Occurrences),
		Counts:       u.Counts,
		Excluded:     s.excl.Excluded(s.cfg.WellID),
		Cycles:       s.cycles(),
		Loading:      s.inflight > 0,
	}
	if st.Excluded == nil {
		st.Excluded = []string{}
	}
	if s.flowRate != nil {
		sum := s.flowRate.Summary
		st.Summary = &sum
	}
	for _, k := range view.Kinds {
		v := s.views[k]
		status, msg := v.Status()
		vs := ViewState{
			Kind:          k,
			Status:        status.String(),
			Message:       msg,
			Generation:    v.Generation(),
			Viewport:      v.Viewport(),
			ZoomHistory:   v.HistoryLen(),
			Cursor:        v.Cursor().Mode().String(),
			Menu:          v.Cursor().Menu(),
			CaptureRadius: v.CaptureRadius(),
			MarkerSize:    v.MarkerSize(),
			Threshold:     v.Threshold(),
		}
		if sel, ok := v.Cursor().Selection(); ok {
			vs.Selection = &sel
		}
		if err := s.errFor(k); err != nil {
			vs.Error = err.Error()
		}
		for _, ds := range v.Datasets() {
			vs.Points += len(ds.Points)
		}
		st.Views = append(st.Views, vs)
	}
	return st
}

func (s *Session) errFor(k view.Kind) error {
	if k == view.KindDelta {
		k = view.KindPressure
	}
	return s.lastErr[k]
}

// Close stops every view. The loop itself stops when Run's context is
// cancelled.
func (s *Session) Close(ctx context.Context) error {
	return s.do(ctx, func() error {
		for _, v := range s.views {
			v.Close()
		}
		return nil
	})
}
