package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/climbmate/fallcheck/internal/fall/events"
	"github.com/climbmate/fallcheck/internal/fall/height"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analysis tuning.
// Nil fields fall back to the built-in defaults via the Get* methods, so
// partial configs are safe.
type TuningConfig struct {
	// Event detector params
	MinAirtimeS       *float64 `json:"min_airtime_s,omitempty"`
	MaxRetries        *int     `json:"max_retries,omitempty"`
	BaseWindowS       *float64 `json:"base_window_s,omitempty"`
	DropSustainS      *float64 `json:"drop_sustain_s,omitempty"`
	DropVelocityFloor *float64 `json:"drop_velocity_floor,omitempty"`
	DropSigmaK        *float64 `json:"drop_sigma_k,omitempty"`
	DropAccelMin      *float64 `json:"drop_accel_min,omitempty"`

	// Touch criteria on the COM track
	TouchVPreMin      *float64 `json:"touch_v_pre_min,omitempty"`
	TouchVPostMax     *float64 `json:"touch_v_post_max,omitempty"`
	TouchDropMin      *float64 `json:"touch_drop_min,omitempty"`
	TouchDropRatioMax *float64 `json:"touch_drop_ratio_max,omitempty"`
	TouchDecelFactor  *float64 `json:"touch_decel_factor,omitempty"`
	TouchJerkFactor   *float64 `json:"touch_jerk_factor,omitempty"`
	TouchSustainS     *float64 `json:"touch_sustain_s,omitempty"`

	// Height estimator params
	CompressionMS   *float64 `json:"compression_ms,omitempty"`
	UseV0           *bool    `json:"use_v0,omitempty"`
	V0WindowS       *float64 `json:"v0_window_s,omitempty"`
	ScaleSigmaRatio *float64 `json:"scale_sigma_ratio,omitempty"`

	// Gate thresholds (meters)
	GateLowM  *float64 `json:"gate_low_m,omitempty"`
	GateHighM *float64 `json:"gate_high_m,omitempty"`

	// Pipeline
	ParallelContacts *bool `json:"parallel_contacts,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default.
func DefaultTuningConfig() *TuningConfig {
	ep := events.DefaultParams()
	hp := height.DefaultParams()
	g := height.DefaultGateThresholds()
	return &TuningConfig{
		MinAirtimeS:       ptrFloat64(ep.MinAirtimeS),
		MaxRetries:        ptrInt(ep.MaxRetries),
		BaseWindowS:       ptrFloat64(ep.BaseWindowS),
		DropSustainS:      ptrFloat64(ep.DropSustainS),
		DropVelocityFloor: ptrFloat64(ep.DropVelocityFloor),
		DropSigmaK:        ptrFloat64(ep.DropSigmaK),
		DropAccelMin:      ptrFloat64(ep.DropAccelMin),
		TouchVPreMin:      ptrFloat64(ep.Touch.VPreMin),
		TouchVPostMax:     ptrFloat64(ep.Touch.VPostMax),
		TouchDropMin:      ptrFloat64(ep.Touch.DropMin),
		TouchDropRatioMax: ptrFloat64(ep.Touch.DropRatioMax),
		TouchDecelFactor:  ptrFloat64(ep.Touch.DecelFactor),
		TouchJerkFactor:   ptrFloat64(ep.Touch.JerkFactor),
		TouchSustainS:     ptrFloat64(ep.Touch.SustainS),
		CompressionMS:     ptrFloat64(hp.CompressionMS),
		UseV0:             ptrBool(hp.UseV0),
		V0WindowS:         ptrFloat64(hp.V0WindowS),
		ScaleSigmaRatio:   ptrFloat64(hp.ScaleSigmaRatio),
		GateLowM:          ptrFloat64(g.LowM),
		GateHighM:         ptrFloat64(g.HighM),
		ParallelContacts:  ptrBool(false),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/fall/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"min_airtime_s", c.MinAirtimeS},
		{"base_window_s", c.BaseWindowS},
		{"drop_sustain_s", c.DropSustainS},
		{"drop_sigma_k", c.DropSigmaK},
		{"touch_decel_factor", c.TouchDecelFactor},
		{"touch_jerk_factor", c.TouchJerkFactor},
		{"touch_sustain_s", c.TouchSustainS},
		{"v0_window_s", c.V0WindowS},
	}
	for _, f := range positive {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", f.name, *f.v)
		}
	}

	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", *c.MaxRetries)
	}
	if c.CompressionMS != nil && *c.CompressionMS < 0 {
		return fmt.Errorf("compression_ms must be non-negative, got %f", *c.CompressionMS)
	}
	if c.TouchDropRatioMax != nil {
		if *c.TouchDropRatioMax < 0 || *c.TouchDropRatioMax > 1 {
			return fmt.Errorf("touch_drop_ratio_max must be between 0 and 1, got %f", *c.TouchDropRatioMax)
		}
	}
	if c.ScaleSigmaRatio != nil && *c.ScaleSigmaRatio < 0 {
		return fmt.Errorf("scale_sigma_ratio must be non-negative, got %f", *c.ScaleSigmaRatio)
	}

	if low, high := c.GetGateLowM(), c.GetGateHighM(); low < 0 || low >= high {
		return fmt.Errorf("gate thresholds must satisfy 0 <= gate_low_m < gate_high_m, got %f and %f", low, high)
	}

	return nil
}

// GetMinAirtimeS returns the min_airtime_s value or the default.
func (c *TuningConfig) GetMinAirtimeS() float64 {
	if c.MinAirtimeS == nil {
		return 0.20
	}
	return *c.MinAirtimeS
}

// GetMaxRetries returns the max_retries value or the default.
func (c *TuningConfig) GetMaxRetries() int {
	if c.MaxRetries == nil {
		return 3
	}
	return *c.MaxRetries
}

// GetBaseWindowS returns the base_window_s value or the default.
func (c *TuningConfig) GetBaseWindowS() float64 {
	if c.BaseWindowS == nil {
		return 0.40
	}
	return *c.BaseWindowS
}

// GetDropSustainS returns the drop_sustain_s value or the default.
func (c *TuningConfig) GetDropSustainS() float64 {
	if c.DropSustainS == nil {
		return 0.10
	}
	return *c.DropSustainS
}

// GetDropVelocityFloor returns the drop_velocity_floor value or the default.
func (c *TuningConfig) GetDropVelocityFloor() float64 {
	if c.DropVelocityFloor == nil {
		return 80
	}
	return *c.DropVelocityFloor
}

// GetDropSigmaK returns the drop_sigma_k value or the default.
func (c *TuningConfig) GetDropSigmaK() float64 {
	if c.DropSigmaK == nil {
		return 2
	}
	return *c.DropSigmaK
}

// GetDropAccelMin returns the drop_accel_min value or the default.
func (c *TuningConfig) GetDropAccelMin() float64 {
	if c.DropAccelMin == nil {
		return 600
	}
	return *c.DropAccelMin
}

// GetTouchCriteria returns the COM touch criteria, defaults filled in.
func (c *TuningConfig) GetTouchCriteria() events.TouchCriteria {
	tc := events.DefaultTouchCriteria()
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&tc.VPreMin, c.TouchVPreMin)
	set(&tc.VPostMax, c.TouchVPostMax)
	set(&tc.DropMin, c.TouchDropMin)
	set(&tc.DropRatioMax, c.TouchDropRatioMax)
	set(&tc.DecelFactor, c.TouchDecelFactor)
	set(&tc.JerkFactor, c.TouchJerkFactor)
	set(&tc.SustainS, c.TouchSustainS)
	return tc
}

// GetCompressionMS returns the compression_ms value or the default.
func (c *TuningConfig) GetCompressionMS() float64 {
	if c.CompressionMS == nil {
		return 60
	}
	return *c.CompressionMS
}

// GetUseV0 returns the use_v0 value or the default.
func (c *TuningConfig) GetUseV0() bool {
	if c.UseV0 == nil {
		return true
	}
	return *c.UseV0
}

// GetV0WindowS returns the v0_window_s value or the default.
func (c *TuningConfig) GetV0WindowS() float64 {
	if c.V0WindowS == nil {
		return 0.06
	}
	return *c.V0WindowS
}

// GetScaleSigmaRatio returns the scale_sigma_ratio value or the default.
func (c *TuningConfig) GetScaleSigmaRatio() float64 {
	if c.ScaleSigmaRatio == nil {
		return 0.03
	}
	return *c.ScaleSigmaRatio
}

// GetGateLowM returns the gate_low_m value or the default.
func (c *TuningConfig) GetGateLowM() float64 {
	if c.GateLowM == nil {
		return 0.5
	}
	return *c.GateLowM
}

// GetGateHighM returns the gate_high_m value or the default.
func (c *TuningConfig) GetGateHighM() float64 {
	if c.GateHighM == nil {
		return 1.2
	}
	return *c.GateHighM
}

// GetParallelContacts returns the parallel_contacts value or the default.
func (c *TuningConfig) GetParallelContacts() bool {
	if c.ParallelContacts == nil {
		return false // default: serial contact search
	}
	return *c.ParallelContacts
}

// EventsParams builds detector params from the config.
func (c *TuningConfig) EventsParams() events.Params {
	p := events.DefaultParams()
	p.MinAirtimeS = c.GetMinAirtimeS()
	p.MaxRetries = c.GetMaxRetries()
	p.BaseWindowS = c.GetBaseWindowS()
	p.DropSustainS = c.GetDropSustainS()
	p.DropVelocityFloor = c.GetDropVelocityFloor()
	p.DropSigmaK = c.GetDropSigmaK()
	p.DropAccelMin = c.GetDropAccelMin()
	p.Touch = c.GetTouchCriteria()
	return p
}

// HeightParams builds height estimator params from the config.
func (c *TuningConfig) HeightParams() height.Params {
	p := height.DefaultParams()
	p.CompressionMS = c.GetCompressionMS()
	p.UseV0 = c.GetUseV0()
	p.V0WindowS = c.GetV0WindowS()
	p.ScaleSigmaRatio = c.GetScaleSigmaRatio()
	return p
}

// GateThresholds builds the height gate from the config.
func (c *TuningConfig) GateThresholds() height.GateThresholds {
	return height.GateThresholds{LowM: c.GetGateLowM(), HighM: c.GetGateHighM()}
}
