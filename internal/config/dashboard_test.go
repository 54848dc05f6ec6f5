package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.GetPeriodDays() != 7 {
		t.Errorf("GetPeriodDays() = %d, want 7", cfg.GetPeriodDays())
	}
	if cfg.GetIntervalMinutes() != 5 {
		t.Errorf("GetIntervalMinutes() = %d, want 5", cfg.GetIntervalMinutes())
	}
	if cfg.GetCaptureRadiusPx() != 60 {
		t.Errorf("GetCaptureRadiusPx() = %f, want 60", cfg.GetCaptureRadiusPx())
	}
	if cfg.GetStoreBackend() != StoreSQLite {
		t.Errorf("GetStoreBackend() = %q, want %q", cfg.GetStoreBackend(), StoreSQLite)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyDashboardConfig()

	if got := cfg.GetBackendURL(); got != "http://localhost:8000" {
		t.Errorf("GetBackendURL() = %q", got)
	}
	if got := cfg.GetRequestTimeout(); got != 15*time.Second {
		t.Errorf("GetRequestTimeout() = %v", got)
	}
	if got := cfg.GetDeltaThreshold(); got != 0.5 {
		t.Errorf("GetDeltaThreshold() = %f", got)
	}
	if _, ok := cfg.GetFlowTrendThreshold(); ok {
		t.Error("GetFlowTrendThreshold() should be unset by default")
	}
	if got := cfg.GetExportDir(); got != "exports" {
		t.Errorf("GetExportDir() = %q", got)
	}
}

func TestGetBackendURLTrimsSlash(t *testing.T) {
	cfg := &DashboardConfig{BackendURL: ptrString("http://backend:8000/")}
	if got := cfg.GetBackendURL(); got != "http://backend:8000" {
		t.Errorf("GetBackendURL() = %q", got)
	}
}

func TestLoadDashboardConfigJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dash.json")

	testJSON := `{
  "period_days": 30,
  "interval_minutes": 15,
  "capture_radius_px": 40,
  "store_backend": "badger",
  "request_timeout": "3s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDashboardConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetPeriodDays() != 30 {
		t.Errorf("GetPeriodDays() = %d, want 30", cfg.GetPeriodDays())
	}
	if cfg.GetIntervalMinutes() != 15 {
		t.Errorf("GetIntervalMinutes() = %d, want 15", cfg.GetIntervalMinutes())
	}
	if cfg.GetCaptureRadiusPx() != 40 {
		t.Errorf("GetCaptureRadiusPx() = %f, want 40", cfg.GetCaptureRadiusPx())
	}
	if cfg.GetStoreBackend() != StoreBadger {
		t.Errorf("GetStoreBackend() = %q", cfg.GetStoreBackend())
	}
	if cfg.GetRequestTimeout() != 3*time.Second {
		t.Errorf("GetRequestTimeout() = %v", cfg.GetRequestTimeout())
	}
	// untouched fields keep defaults
	if cfg.GetChartWidthPx() != 1200 {
		t.Errorf("GetChartWidthPx() = %d, want 1200", cfg.GetChartWidthPx())
	}
}

func TestLoadDashboardConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dash.yaml")

	testYAML := "backend_url: http://data:9000\nperiod_days: 3\nflow_trend_threshold: 12.5\n"
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDashboardConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetBackendURL() != "http://data:9000" {
		t.Errorf("GetBackendURL() = %q", cfg.GetBackendURL())
	}
	if cfg.GetPeriodDays() != 3 {
		t.Errorf("GetPeriodDays() = %d", cfg.GetPeriodDays())
	}
	if v, ok := cfg.GetFlowTrendThreshold(); !ok || v != 12.5 {
		t.Errorf("GetFlowTrendThreshold() = %v, %v", v, ok)
	}
}

func TestLoadDashboardConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadDashboardConfig("/nonexistent/path/config.json"); err == nil {
		t.Error("expected error for missing file")
	}

	txt := filepath.Join(tmpDir, "config.txt")
	if err := os.WriteFile(txt, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDashboardConfig(txt); err == nil {
		t.Error("expected error for unsupported extension")
	}

	bad := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"period_days": "seven"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDashboardConfig(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}

	invalid := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"period_days": 0}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDashboardConfig(invalid); err == nil {
		t.Error("expected validation error for zero period")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *DashboardConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &DashboardConfig{}},
		{name: "valid values", cfg: &DashboardConfig{PeriodDays: ptrInt(14), CaptureRadiusPx: ptrFloat64(25)}},
		{name: "bad backend url", cfg: &DashboardConfig{BackendURL: ptrString("not a url")}, wantErr: true},
		{name: "bad timeout", cfg: &DashboardConfig{RequestTimeout: ptrString("soon")}, wantErr: true},
		{name: "negative interval", cfg: &DashboardConfig{IntervalMinutes: ptrInt(-5)}, wantErr: true},
		{name: "zero radius", cfg: &DashboardConfig{CaptureRadiusPx: ptrFloat64(0)}, wantErr: true},
		{name: "narrow chart", cfg: &DashboardConfig{ChartWidthPx: ptrInt(10)}, wantErr: true},
		{name: "zero multiplier", cfg: &DashboardConfig{FlowMultiplier: ptrFloat64(0)}, wantErr: true},
		{name: "unknown store", cfg: &DashboardConfig{StoreBackend: ptrString("redis")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
