package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical dashboard defaults file.
const DefaultConfigPath = "config/dashboard.defaults.json"

// Store backends accepted by StoreBackend.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
)

// DashboardConfig is the root configuration for a dashboard session. Every
// field is optional; the Get* methods supply defaults for fields left unset,
// so partial files are safe.
type DashboardConfig struct {
	// Backend data service
	BackendURL     *string `json:"backend_url,omitempty" yaml:"backend_url,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"` // duration string like "10s"

	// HTTP surface
	Listen *string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// Initial time window
	PeriodDays      *int `json:"period_days,omitempty" yaml:"period_days,omitempty"`
	IntervalMinutes *int `json:"interval_minutes,omitempty" yaml:"interval_minutes,omitempty"`

	// Interaction
	CaptureRadiusPx *float64 `json:"capture_radius_px,omitempty" yaml:"capture_radius_px,omitempty"`
	ChartWidthPx    *int     `json:"chart_width_px,omitempty" yaml:"chart_width_px,omitempty"`
	ChartHeightPx   *int     `json:"chart_height_px,omitempty" yaml:"chart_height_px,omitempty"`

	// Derived metrics
	DeltaThreshold     *float64 `json:"delta_threshold,omitempty" yaml:"delta_threshold,omitempty"`
	FlowMultiplier     *float64 `json:"flow_multiplier,omitempty" yaml:"flow_multiplier,omitempty"`
	FlowTrendThreshold *float64 `json:"flow_trend_threshold,omitempty" yaml:"flow_trend_threshold,omitempty"`

	// Persistence and exports
	StoreBackend *string `json:"store_backend,omitempty" yaml:"store_backend,omitempty"`
	StorePath    *string `json:"store_path,omitempty" yaml:"store_path,omitempty"`
	ExportDir    *string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDashboardConfig returns a DashboardConfig with all fields set to nil.
func EmptyDashboardConfig() *DashboardConfig {
	return &DashboardConfig{}
}

// LoadDashboardConfig loads a DashboardConfig from a JSON or YAML file.
// The format is chosen from the file extension (.json, .yaml or .yml) and the
// file must be under the max file size.
func LoadDashboardConfig(path string) (*DashboardConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDashboardConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *DashboardConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadDashboardConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DashboardConfig) Validate() error {
	if c.BackendURL != nil && *c.BackendURL != "" {
		u, err := url.Parse(*c.BackendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid backend_url %q", *c.BackendURL)
		}
	}

	if c.RequestTimeout != nil && *c.RequestTimeout != "" {
		if _, err := time.ParseDuration(*c.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", *c.RequestTimeout, err)
		}
	}

	if c.PeriodDays != nil && *c.PeriodDays <= 0 {
		return fmt.Errorf("period_days must be positive, got %d", *c.PeriodDays)
	}
	if c.IntervalMinutes != nil && *c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %d", *c.IntervalMinutes)
	}

	if c.CaptureRadiusPx != nil && *c.CaptureRadiusPx <= 0 {
		return fmt.Errorf("capture_radius_px must be positive, got %f", *c.CaptureRadiusPx)
	}
	if c.ChartWidthPx != nil && *c.ChartWidthPx < 100 {
		return fmt.Errorf("chart_width_px must be at least 100, got %d", *c.ChartWidthPx)
	}
	if c.ChartHeightPx != nil && *c.ChartHeightPx < 100 {
		return fmt.Errorf("chart_height_px must be at least 100, got %d", *c.ChartHeightPx)
	}

	if c.FlowMultiplier != nil && *c.FlowMultiplier <= 0 {
		return fmt.Errorf("flow_multiplier must be positive, got %f", *c.FlowMultiplier)
	}

	if c.StoreBackend != nil {
		switch *c.StoreBackend {
		case StoreMemory, StoreSQLite, StoreBadger:
		default:
			return fmt.Errorf("unknown store_backend %q", *c.StoreBackend)
		}
	}

	return nil
}

// GetBackendURL returns the backend base URL or the default.
func (c *DashboardConfig) GetBackendURL() string {
	if c.BackendURL == nil || *c.BackendURL == "" {
		return "http://localhost:8000"
	}
	return strings.TrimRight(*c.BackendURL, "/")
}

// GetRequestTimeout parses and returns RequestTimeout as a time.Duration.
func (c *DashboardConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 15 * time.Second // default
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil {
		return 15 * time.Second // default on parse error
	}
	return d
}

// GetListen returns the HTTP listen address or the default.
func (c *DashboardConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetPeriodDays returns the initial period length in days.
func (c *DashboardConfig) GetPeriodDays() int {
	if c.PeriodDays == nil {
		return 7
	}
	return *c.PeriodDays
}

// GetIntervalMinutes returns the initial aggregation interval in minutes.
func (c *DashboardConfig) GetIntervalMinutes() int {
	if c.IntervalMinutes == nil {
		return 5
	}
	return *c.IntervalMinutes
}

// GetCaptureRadiusPx returns the sparse capture radius in pixels.
func (c *DashboardConfig) GetCaptureRadiusPx() float64 {
	if c.CaptureRadiusPx == nil {
		return 60
	}
	return *c.CaptureRadiusPx
}

// GetChartWidthPx returns the rendered chart width in pixels.
func (c *DashboardConfig) GetChartWidthPx() int {
	if c.ChartWidthPx == nil {
		return 1200
	}
	return *c.ChartWidthPx
}

// GetChartHeightPx returns the rendered chart height in pixels.
func (c *DashboardConfig) GetChartHeightPx() int {
	if c.ChartHeightPx == nil {
		return 420
	}
	return *c.ChartHeightPx
}

// GetDeltaThreshold returns the critical ΔP threshold in atm.
func (c *DashboardConfig) GetDeltaThreshold() float64 {
	if c.DeltaThreshold == nil {
		return 0.5
	}
	return *c.DeltaThreshold
}

// GetFlowMultiplier returns the calibration multiplier sent to the flow-rate service.
func (c *DashboardConfig) GetFlowMultiplier() float64 {
	if c.FlowMultiplier == nil {
		return 4.1
	}
	return *c.FlowMultiplier
}

// GetFlowTrendThreshold returns the flow-rate level the trend projection
// is measured against, and whether one is configured.
func (c *DashboardConfig) GetFlowTrendThreshold() (float64, bool) {
	if c.FlowTrendThreshold == nil {
		return 0, false
	}
	return *c.FlowTrendThreshold, true
}

// GetStoreBackend returns the preference store backend.
func (c *DashboardConfig) GetStoreBackend() string {
	if c.StoreBackend == nil || *c.StoreBackend == "" {
		return StoreSQLite
	}
	return *c.StoreBackend
}

// GetStorePath returns the preference store location.
func (c *DashboardConfig) GetStorePath() string {
	if c.StorePath == nil || *c.StorePath == "" {
		return "welldash.db"
	}
	return *c.StorePath
}

// GetExportDir returns the directory export files are saved into.
func (c *DashboardConfig) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return "exports"
	}
	return *c.ExportDir
}
