package api

import (
	"bytes"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/httputil"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/render"
	"github.com/banshee-data/welldash/internal/version"
)

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	st, err := s.session.State(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, st)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.session.Load(ctx); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

type windowRequest struct {
	Days     *int `json:"days"`
	Interval *int `json:"interval"`
}

func (s *Server) setWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if !httputil.DecodeJSONBody(w, r, &req) {
		return
	}
	if req.Days == nil && req.Interval == nil {
		httputil.BadRequest(w, "days or interval is required")
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	win, err := s.session.SetWindow(ctx, chartsync.WindowChange{Days: req.Days, IntervalMinutes: req.Interval})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"days": win.PeriodDays, "interval": win.AggregationMinutes})
}

func (s *Server) resetZoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	vp, err := s.session.ResetZoom(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, vp)
}

type settingsRequest struct {
	CaptureRadius  *float64   `json:"capture_radius"`
	MarkerSize     *int       `json:"marker_size"`
	Baseline       *string    `json:"baseline"`
	DeltaThreshold *float64   `json:"delta_threshold"`
	ReferencePoint *time.Time `json:"reference_point"`
}

// updateSettings applies every field present. The response reports, per
// field, whether the value was accepted; rejected values leave the old
// setting in place.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !httputil.DecodeJSONBody(w, r, &req) {
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()

	applied := map[string]bool{}
	var err error
	if req.CaptureRadius != nil {
		if applied["capture_radius"], err = s.session.SetCaptureRadius(ctx, *req.CaptureRadius); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.MarkerSize != nil {
		if applied["marker_size"], err = s.session.SetMarkerSize(ctx, *req.MarkerSize); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Baseline != nil {
		if applied["baseline"], err = s.session.SetBaseline(ctx, *req.Baseline); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.DeltaThreshold != nil {
		if applied["delta_threshold"], err = s.session.SetDeltaThreshold(ctx, *req.DeltaThreshold); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.ReferencePoint != nil {
		if err = s.session.SetReferencePoint(ctx, *req.ReferencePoint); err != nil {
			writeError(w, err)
			return
		}
		applied["reference_point"] = !req.ReferencePoint.IsZero()
	}
	httputil.WriteJSONOK(w, applied)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) listExclusions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	ids, err := s.session.Excluded(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httputil.WriteJSONOK(w, map[string]any{"well_id": s.session.WellID(), "excluded": ids})
}

func (s *Server) exclusionHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		httputil.NotFound(w, "exclusion history is not recorded")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	changes, err := s.history.ExclusionHistory(s.session.WellID(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, changes)
}

func (s *Server) toggleExclusion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.context(r)
	defer cancel()
	excluded, err := s.session.ToggleExclusion(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"id": id, "excluded": excluded})
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) (render.Chart, bool) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return render.Chart{}, false
	}
	ctx, cancel := s.context(r)
	defer cancel()
	c, err := s.session.Chart(ctx, kind)
	if err != nil {
		writeError(w, err)
		return render.Chart{}, false
	}
	return c, true
}

func (s *Server) chartHTML(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.HTML(&buf, c); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) chartPNG(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	data, err := render.PNG(c)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

type pointerRequest struct {
	Px float64 `json:"px"`
}

func decodePointer(w http.ResponseWriter, r *http.Request) (pointerRequest, bool) {
	var req pointerRequest
	if !httputil.DecodeJSONBody(w, r, &req) {
		return req, false
	}
	if math.IsNaN(req.Px) || math.IsInf(req.Px, 0) {
		httputil.BadRequest(w, "px must be finite")
		return req, false
	}
	return req, true
}

func (s *Server) pointerMove(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, ok := decodePointer(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	tip, err := s.session.PointerMove(ctx, kind, req.Px)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tip)
}

type clickRequest struct {
	Button string  `json:"button"`
	Px     float64 `json:"px"`
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req clickRequest
	if !httputil.DecodeJSONBody(w, r, &req) {
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()

	switch req.Button {
	case "secondary":
		mode, err := s.session.Secondary(ctx, kind, req.Px)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"cursor": mode.String()})
	case "primary":
		reset, err := s.session.Primary(ctx, kind, req.Px)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]any{"cursor": interaction.ModeNormal.String(), "reset": reset})
	default:
		httputil.BadRequest(w, "button must be 'primary' or 'secondary'")
	}
}

func (s *Server) cancelCursor(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.session.Cancel(ctx, kind); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"cursor": interaction.ModeNormal.String()})
}

type gestureRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) gesture(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req gestureRequest
	if !httputil.DecodeJSONBody(w, r, &req) {
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || req.Start.Equal(req.End) {
		httputil.BadRequest(w, "start and end must be distinct times")
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	n, err := s.session.GestureComplete(ctx, kind, chartsync.NewViewport(req.Start, req.End))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"synced": n})
}

func (s *Server) zoomBack(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	vp, err := s.session.ZoomBack(ctx, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, vp)
}

func (s *Server) rangeAction(w http.ResponseWriter, r *http.Request) {
	kind, err := viewKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	action, err := interaction.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	res, err := s.session.PerformRangeAction(ctx, kind, action)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}
