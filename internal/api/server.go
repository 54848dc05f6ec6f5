// Package api serves a dashboard session over HTTP: JSON endpoints for the
// window, pointer, zoom, range actions, exclusions and settings, plus the
// rendered charts.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/dashboard"
	"github.com/banshee-data/welldash/internal/db"
	"github.com/banshee-data/welldash/internal/httputil"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/rangestats"
	"github.com/banshee-data/welldash/internal/view"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

var logf = monitoring.Component("api")

// ExclusionHistory lists recorded exclusion changes. *db.DB implements it.
type ExclusionHistory interface {
	ExclusionHistory(wellID string, limit int) ([]db.ExclusionChange, error)
}

type Server struct {
	session *dashboard.Session
	history ExclusionHistory
	// requestTimeout bounds how long a handler waits on the session loop.
	requestTimeout time.Duration
}

// NewServer serves session. history may be nil when the preference store
// keeps no change log.
func NewServer(session *dashboard.Session, history ExclusionHistory) *Server {
	return &Server{
		session:        session,
		history:        history,
		requestTimeout: 30 * time.Second,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.showState)
	mux.HandleFunc("POST /api/reload", s.reload)
	mux.HandleFunc("POST /api/window", s.setWindow)
	mux.HandleFunc("POST /api/zoom/reset", s.resetZoom)
	mux.HandleFunc("POST /api/settings", s.updateSettings)
	mux.HandleFunc("GET /api/version", s.showVersion)

	mux.HandleFunc("GET /api/exclusions", s.listExclusions)
	mux.HandleFunc("GET /api/exclusions/history", s.exclusionHistory)
	mux.HandleFunc("POST /api/exclusions/{id}/toggle", s.toggleExclusion)

	mux.HandleFunc("GET /api/views/{kind}/chart", s.chartHTML)
	mux.HandleFunc("GET /api/views/{kind}/chart.png", s.chartPNG)
	mux.HandleFunc("POST /api/views/{kind}/pointer", s.pointerMove)
	mux.HandleFunc("POST /api/views/{kind}/click", s.click)
	mux.HandleFunc("POST /api/views/{kind}/cancel", s.cancelCursor)
	mux.HandleFunc("POST /api/views/{kind}/gesture", s.gesture)
	mux.HandleFunc("POST /api/views/{kind}/zoom-back", s.zoomBack)
	mux.HandleFunc("POST /api/views/{kind}/actions/{action}", s.rangeAction)
	return mux
}

func (s *Server) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// writeError maps session errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrUnknownView):
		status = http.StatusNotFound
	case errors.Is(err, chartsync.ErrInvalidWindow),
		errors.Is(err, interaction.ErrUnknownAction):
		status = http.StatusBadRequest
	case errors.Is(err, view.ErrNoHistory),
		errors.Is(err, interaction.ErrNoSelection),
		errors.Is(err, interaction.ErrReentrantTransition):
		status = http.StatusConflict
	case errors.Is(err, rangestats.ErrNoDataInRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrNoSink):
		status = http.StatusNotImplemented
	case errors.Is(err, dashboard.ErrLoopStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logf("request failed: %v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

func viewKind(r *http.Request) (view.Kind, error) {
	k, err := view.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", errors.Join(dashboard.ErrUnknownView, err)
	}
	return k, nil
}
