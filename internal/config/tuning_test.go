package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetSamplePeriod() != 0.02 {
		t.Errorf("GetSamplePeriod() = %f, want 0.02", cfg.GetSamplePeriod())
	}
	if cfg.GetRangeIQRMultiplier() != 10 {
		t.Errorf("GetRangeIQRMultiplier() = %f, want 10", cfg.GetRangeIQRMultiplier())
	}
	if cfg.GetBearingIQRMultiplier() != 20 {
		t.Errorf("GetBearingIQRMultiplier() = %f, want 20", cfg.GetBearingIQRMultiplier())
	}
	if cfg.GetSimRobots() != 5 {
		t.Errorf("GetSimRobots() = %d, want 5", cfg.GetSimRobots())
	}
	if cfg.GetSimLandmarks() != 15 {
		t.Errorf("GetSimLandmarks() = %d, want 15", cfg.GetSimLandmarks())
	}
	if cfg.GetSimSteps() != 10000 {
		t.Errorf("GetSimSteps() = %d, want 10000", cfg.GetSimSteps())
	}
	if cfg.GetErrorPDFBinSize() != 0.001 {
		t.Errorf("GetErrorPDFBinSize() = %f, want 0.001", cfg.GetErrorPDFBinSize())
	}

	simCfg := cfg.SimConfig()
	if simCfg.ArenaWidth != 15.0 || simCfg.ArenaHeight != 8.0 {
		t.Errorf("SimConfig() arena = %fx%f, want 15x8", simCfg.ArenaWidth, simCfg.ArenaHeight)
	}
	if simCfg.Period != 0.02 {
		t.Errorf("SimConfig() period = %f, want 0.02", simCfg.Period)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "sample_period": 0.05,
  "range_iqr_multiplier": 6,
  "sim_robots": 3,
  "sim_steps": 2000,
  "max_range": 6.5,
  "measurement_subrate": 10
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetSamplePeriod() != 0.05 {
		t.Errorf("GetSamplePeriod() = %f, want 0.05", cfg.GetSamplePeriod())
	}
	if cfg.GetRangeIQRMultiplier() != 6 {
		t.Errorf("GetRangeIQRMultiplier() = %f, want 6", cfg.GetRangeIQRMultiplier())
	}
	// Unset fields keep defaults.
	if cfg.GetBearingIQRMultiplier() != 20 {
		t.Errorf("GetBearingIQRMultiplier() = %f, want default 20", cfg.GetBearingIQRMultiplier())
	}
	if cfg.GetSimLandmarks() != 15 {
		t.Errorf("GetSimLandmarks() = %d, want default 15", cfg.GetSimLandmarks())
	}

	simCfg := cfg.SimConfig()
	if simCfg.Robots != 3 || simCfg.Steps != 2000 {
		t.Errorf("SimConfig() robots/steps = %d/%d, want 3/2000", simCfg.Robots, simCfg.Steps)
	}
	if simCfg.MaxRange != 6.5 {
		t.Errorf("SimConfig() max range = %f, want 6.5", simCfg.MaxRange)
	}
	if simCfg.MeasurementSubrate != 10 {
		t.Errorf("SimConfig() subrate = %d, want 10", simCfg.MeasurementSubrate)
	}
	if simCfg.Period != 0.05 {
		t.Errorf("SimConfig() period = %f, want 0.05", simCfg.Period)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}
	if cfg.SamplePeriod != nil {
		t.Error("Expected SamplePeriod nil for empty config")
	}
	if cfg.GetSamplePeriod() != 0.02 {
		t.Errorf("GetSamplePeriod() = %f, want default 0.02", cfg.GetSamplePeriod())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("config.yaml")
	if err == nil {
		t.Fatal("Expected error for non-JSON extension")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"empty is valid", EmptyTuningConfig(), false},
		{"negative period", &TuningConfig{SamplePeriod: ptrFloat64(-0.02)}, true},
		{"zero period", &TuningConfig{SamplePeriod: ptrFloat64(0)}, true},
		{"negative range multiplier", &TuningConfig{RangeIQRMultiplier: ptrFloat64(-1)}, true},
		{"zero robots", &TuningConfig{SimRobots: ptrInt(0)}, true},
		{"one step", &TuningConfig{SimSteps: ptrInt(1)}, true},
		{"negative landmarks", &TuningConfig{SimLandmarks: ptrInt(-1)}, true},
		{"zero subrate", &TuningConfig{MeasurementSubrate: ptrInt(0)}, true},
		{"valid overrides", &TuningConfig{
			SamplePeriod: ptrFloat64(0.1),
			SimRobots:    ptrInt(2),
			SimSteps:     ptrInt(100),
		}, false},
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
