package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/welldash/internal/api"
	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/config"
	"github.com/banshee-data/welldash/internal/dashboard"
	"github.com/banshee-data/welldash/internal/db"
	"github.com/banshee-data/welldash/internal/export"
	"github.com/banshee-data/welldash/internal/httputil"
	"github.com/banshee-data/welldash/internal/prefs"
	"github.com/banshee-data/welldash/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON or YAML dashboard config (defaults apply when empty)")
	wellID       = flag.String("well", "", "Well identifier to display (required)")
	listen       = flag.String("listen", "", "Listen address (overrides config)")
	backendURL   = flag.String("backend", "", "Backend data service base URL (overrides config)")
	storeBackend = flag.String("store", "", "Preference store: memory, sqlite or badger (overrides config)")
	storePath    = flag.String("store-path", "", "Preference store file or directory (overrides config)")
	exportDir    = flag.String("export-dir", "", "Directory for CSV and PNG exports (overrides config)")
	timezone     = flag.String("tz", "UTC", "IANA timezone used for export timestamps")
	filterZeros  = flag.Bool("filter-zeros", false, "Ask the backend to drop zero pressure readings")
	filterSpikes = flag.Bool("filter-spikes", false, "Ask the backend to drop pressure spikes")
	fillMode     = flag.String("fill", backend.FillNone, "Gap fill mode: none, ffill or interpolate")
	maxGap       = flag.Int("max-gap", 0, "Largest gap in minutes the backend may fill (0 for service default)")
	smoothFlow   = flag.Bool("smooth-flow", false, "Request smoothed flow rate")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// store is the opened preference backend. sqlite is set only for the
// sqlite backend, which also records exclusion history and serves the
// admin routes.
type store struct {
	prefs  prefs.Store
	sqlite *db.DB
	close  func() error
}

func openStore(backendName, path string) (*store, error) {
	switch backendName {
	case config.StoreMemory:
		return &store{prefs: prefs.NewMemoryStore(), close: func() error { return nil }}, nil
	case config.StoreBadger:
		b, err := prefs.OpenBadger(path)
		if err != nil {
			return nil, err
		}
		return &store{prefs: b, close: b.Close}, nil
	case config.StoreSQLite:
		d, err := db.NewDB(path)
		if err != nil {
			return nil, err
		}
		return &store{prefs: d, sqlite: d, close: d.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backendName)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.DashboardConfig, error) {
	cfg := config.EmptyDashboardConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadDashboardConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if *storeBackend != "" {
		cfg.StoreBackend = storeBackend
	}
	if *storePath != "" {
		cfg.StorePath = storePath
	}
	if *exportDir != "" {
		cfg.ExportDir = exportDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sessionConfig maps the dashboard config onto a session for one well.
func sessionConfig(cfg *config.DashboardConfig, well string, loc *time.Location) dashboard.Config {
	delta := cfg.GetDeltaThreshold()
	sc := dashboard.Config{
		WellID: well,
		Window: chartsync.Window{
			PeriodDays:         cfg.GetPeriodDays(),
			AggregationMinutes: cfg.GetIntervalMinutes(),
		},
		Series: dashboard.SeriesOptions{
			FilterZeros:   *filterZeros,
			FilterSpikes:  *filterSpikes,
			FillMode:      *fillMode,
			MaxGapMinutes: *maxGap,
		},
		SmoothFlow:      *smoothFlow,
		FlowMultiplier:  cfg.GetFlowMultiplier(),
		ChartWidthPx:    cfg.GetChartWidthPx(),
		ChartHeightPx:   cfg.GetChartHeightPx(),
		CaptureRadiusPx: cfg.GetCaptureRadiusPx(),
		DeltaThreshold:  &delta,
		Location:        loc,
	}
	if th, ok := cfg.GetFlowTrendThreshold(); ok {
		sc.FlowTrendThreshold = &th
	}
	return sc
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *wellID == "" {
		log.Fatal("Well identifier is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Fatalf("invalid timezone %q: %v", *timezone, err)
	}

	st, err := openStore(cfg.GetStoreBackend(), cfg.GetStorePath())
	if err != nil {
		log.Fatalf("failed to open preference store: %v", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	hc := httputil.NewStandardClient(&http.Client{Timeout: cfg.GetRequestTimeout()})
	sc := sessionConfig(cfg, *wellID, loc)
	sc.Backend = backend.NewClient(hc, cfg.GetBackendURL())
	sc.Prefs = st.prefs
	sc.Sink = export.NewFileSink(cfg.GetExportDir())

	var history api.ExclusionHistory
	if st.sqlite != nil {
		sc.Recorder = st.sqlite
		history = st.sqlite
	}

	session, err := dashboard.New(sc)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the session loop owns all engine state
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.Run(ctx)
		log.Print("session loop terminated")
	}()

	if err := session.Load(ctx); err != nil {
		log.Printf("initial load failed: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(session, history).ServeMux()
		if st.sqlite != nil {
			if err := st.sqlite.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("serving well %s on %s (backend %s)", *wellID, server.Addr, cfg.GetBackendURL())
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		closeCtx, cancelClose := context.WithTimeout(context.Background(), time.Second)
		defer cancelClose()
		if err := session.Close(closeCtx); err != nil && !errors.Is(err, dashboard.ErrLoopStopped) {
			log.Printf("session close error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
