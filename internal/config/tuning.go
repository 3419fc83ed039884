package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldrobotics/mrclam/internal/errstats"
	"github.com/fieldrobotics/mrclam/internal/sim"
)

// TuningConfig represents the root configuration for processing and
// simulation parameters. Every field is optional: the Get* accessors fall
// back to the calibrated defaults, so partial JSON configs are safe.
type TuningConfig struct {
	// Pipeline params
	SamplePeriod *float64 `json:"sample_period,omitempty"` // seconds

	// Outlier-rejection params
	RangeIQRMultiplier   *float64 `json:"range_iqr_multiplier,omitempty"`
	BearingIQRMultiplier *float64 `json:"bearing_iqr_multiplier,omitempty"`

	// Simulation params
	SimRobots          *int     `json:"sim_robots,omitempty"`
	SimLandmarks       *int     `json:"sim_landmarks,omitempty"`
	SimSteps           *int     `json:"sim_steps,omitempty"`
	ArenaWidth         *float64 `json:"arena_width,omitempty"`
	ArenaHeight        *float64 `json:"arena_height,omitempty"`
	MaxForwardVelocity *float64 `json:"max_forward_velocity,omitempty"`
	MaxAngularVelocity *float64 `json:"max_angular_velocity,omitempty"`
	MaxRange           *float64 `json:"max_range,omitempty"`
	HalfFOV            *float64 `json:"half_fov,omitempty"`
	MeasurementSubrate *int     `json:"measurement_subrate,omitempty"`

	// Report params
	ErrorPDFBinSize *float64 `json:"error_pdf_bin_size,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil so
// every accessor falls back to its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SamplePeriod != nil && *c.SamplePeriod <= 0 {
		return fmt.Errorf("sample_period must be positive, got %f", *c.SamplePeriod)
	}
	if c.RangeIQRMultiplier != nil && *c.RangeIQRMultiplier < 0 {
		return fmt.Errorf("range_iqr_multiplier must be non-negative, got %f", *c.RangeIQRMultiplier)
	}
	if c.BearingIQRMultiplier != nil && *c.BearingIQRMultiplier < 0 {
		return fmt.Errorf("bearing_iqr_multiplier must be non-negative, got %f", *c.BearingIQRMultiplier)
	}
	if c.SimRobots != nil && *c.SimRobots < 1 {
		return fmt.Errorf("sim_robots must be at least 1, got %d", *c.SimRobots)
	}
	if c.SimLandmarks != nil && *c.SimLandmarks < 0 {
		return fmt.Errorf("sim_landmarks must be non-negative, got %d", *c.SimLandmarks)
	}
	if c.SimSteps != nil && *c.SimSteps < 2 {
		return fmt.Errorf("sim_steps must be at least 2, got %d", *c.SimSteps)
	}
	if c.ArenaWidth != nil && *c.ArenaWidth <= 0 {
		return fmt.Errorf("arena_width must be positive, got %f", *c.ArenaWidth)
	}
	if c.ArenaHeight != nil && *c.ArenaHeight <= 0 {
		return fmt.Errorf("arena_height must be positive, got %f", *c.ArenaHeight)
	}
	if c.MaxForwardVelocity != nil && *c.MaxForwardVelocity <= 0 {
		return fmt.Errorf("max_forward_velocity must be positive, got %f", *c.MaxForwardVelocity)
	}
	if c.MaxAngularVelocity != nil && *c.MaxAngularVelocity <= 0 {
		return fmt.Errorf("max_angular_velocity must be positive, got %f", *c.MaxAngularVelocity)
	}
	if c.MeasurementSubrate != nil && *c.MeasurementSubrate < 1 {
		return fmt.Errorf("measurement_subrate must be at least 1, got %d", *c.MeasurementSubrate)
	}
	if c.ErrorPDFBinSize != nil && *c.ErrorPDFBinSize <= 0 {
		return fmt.Errorf("error_pdf_bin_size must be positive, got %f", *c.ErrorPDFBinSize)
	}
	return nil
}

// GetSamplePeriod returns the sample_period value or the default.
func (c *TuningConfig) GetSamplePeriod() float64 {
	if c.SamplePeriod == nil {
		return 0.02 // 50 Hz, the dataset collection rate
	}
	return *c.SamplePeriod
}

// GetRangeIQRMultiplier returns the range_iqr_multiplier value or the default.
func (c *TuningConfig) GetRangeIQRMultiplier() float64 {
	if c.RangeIQRMultiplier == nil {
		return errstats.DefaultConfig().RangeIQRMultiplier
	}
	return *c.RangeIQRMultiplier
}

// GetBearingIQRMultiplier returns the bearing_iqr_multiplier value or the default.
func (c *TuningConfig) GetBearingIQRMultiplier() float64 {
	if c.BearingIQRMultiplier == nil {
		return errstats.DefaultConfig().BearingIQRMultiplier
	}
	return *c.BearingIQRMultiplier
}

// GetSimRobots returns the sim_robots value or the default.
func (c *TuningConfig) GetSimRobots() int {
	if c.SimRobots == nil {
		return sim.DefaultConfig().Robots
	}
	return *c.SimRobots
}

// GetSimLandmarks returns the sim_landmarks value or the default.
func (c *TuningConfig) GetSimLandmarks() int {
	if c.SimLandmarks == nil {
		return sim.DefaultConfig().Landmarks
	}
	return *c.SimLandmarks
}

// GetSimSteps returns the sim_steps value or the default.
func (c *TuningConfig) GetSimSteps() int {
	if c.SimSteps == nil {
		return sim.DefaultConfig().Steps
	}
	return *c.SimSteps
}

// GetErrorPDFBinSize returns the error_pdf_bin_size value or the default.
func (c *TuningConfig) GetErrorPDFBinSize() float64 {
	if c.ErrorPDFBinSize == nil {
		return 0.001
	}
	return *c.ErrorPDFBinSize
}

// StatsConfig builds the outlier-rejection configuration from the tuning
// values.
func (c *TuningConfig) StatsConfig() errstats.Config {
	return errstats.Config{
		RangeIQRMultiplier:   c.GetRangeIQRMultiplier(),
		BearingIQRMultiplier: c.GetBearingIQRMultiplier(),
	}
}

// SimConfig builds a simulator configuration by overlaying the tuning values
// on the calibrated defaults.
func (c *TuningConfig) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Robots = c.GetSimRobots()
	cfg.Landmarks = c.GetSimLandmarks()
	cfg.Steps = c.GetSimSteps()
	cfg.Period = c.GetSamplePeriod()
	if c.ArenaWidth != nil {
		cfg.ArenaWidth = *c.ArenaWidth
	}
	if c.ArenaHeight != nil {
		cfg.ArenaHeight = *c.ArenaHeight
	}
	if c.MaxForwardVelocity != nil {
		cfg.MaxForwardVelocity = *c.MaxForwardVelocity
	}
	if c.MaxAngularVelocity != nil {
		cfg.MaxAngularVelocity = *c.MaxAngularVelocity
	}
	if c.MaxRange != nil {
		cfg.MaxRange = *c.MaxRange
	}
	if c.HalfFOV != nil {
		cfg.HalfFOV = *c.HalfFOV
	}
	if c.MeasurementSubrate != nil {
		cfg.MeasurementSubrate = *c.MeasurementSubrate
	}
	return cfg
}
