package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema is flat so a partial file only overrides what it names.
type TuningConfig struct {
	// Statistical detector
	StatKHigh              *float64 `json:"stat_k_high,omitempty"`
	StatKLow               *float64 `json:"stat_k_low,omitempty"`
	StatMinArea            *float64 `json:"stat_min_area,omitempty"`
	StatMaxArea            *float64 `json:"stat_max_area,omitempty"`
	StatMinWidth           *int     `json:"stat_min_width,omitempty"`
	StatMaxWidth           *int     `json:"stat_max_width,omitempty"`
	StatMinHeight          *int     `json:"stat_min_height,omitempty"`
	StatMaxHeight          *int     `json:"stat_max_height,omitempty"`
	StatMinIntensityDelta  *float64 `json:"stat_min_intensity_delta,omitempty"`
	StatMinAspect          *float64 `json:"stat_min_aspect,omitempty"`
	StatMaxAspect          *float64 `json:"stat_max_aspect,omitempty"`
	StatMinSolidity        *float64 `json:"stat_min_solidity,omitempty"`
	StatMinCompactness     *float64 `json:"stat_min_compactness,omitempty"`
	NearFieldMin           *float64 `json:"near_field_min,omitempty"` // fraction of canvas height from the origin
	NearFieldMax           *float64 `json:"near_field_max,omitempty"`
	CanvasSize             *int     `json:"canvas_size,omitempty"`
	BlurSigma              *float64 `json:"blur_sigma,omitempty"`
	StatisticalEnabled     *bool    `json:"statistical_enabled,omitempty"`
	NeuralEnabled          *bool    `json:"neural_enabled,omitempty"`
	DetectionEnabledAtBoot *bool    `json:"detection_enabled,omitempty"`

	// Neural postprocessor
	NeuralLayout        *string  `json:"neural_layout,omitempty"` // "box_first" or "interleaved"
	NeuralNumClasses    *int     `json:"neural_num_classes,omitempty"`
	NeuralConfThreshold *float64 `json:"neural_conf_threshold,omitempty"`
	NeuralIoUThreshold  *float64 `json:"neural_iou_threshold,omitempty"`
	NeuralTopN          *int     `json:"neural_top_n,omitempty"`
	NeuralClassAwareNMS *bool    `json:"neural_class_aware_nms,omitempty"`
	NeuralMinAspect     *float64 `json:"neural_min_aspect,omitempty"`
	NeuralMaxAspect     *float64 `json:"neural_max_aspect,omitempty"`
	NeuralMinArea       *float64 `json:"neural_min_area,omitempty"`
	NeuralMaxArea       *float64 `json:"neural_max_area,omitempty"`
	NeuralMinSquareness *float64 `json:"neural_min_squareness,omitempty"`
	NeuralRangeMin      *float64 `json:"neural_range_min,omitempty"`
	NeuralRangeMax      *float64 `json:"neural_range_max,omitempty"`
	NeuralOriginY       *float64 `json:"neural_origin_y,omitempty"`
	LetterboxSize       *int     `json:"letterbox_size,omitempty"`
	LetterboxPad        *int     `json:"letterbox_pad,omitempty"`

	// Transport
	DataPollTimeout    *string `json:"data_poll_timeout,omitempty"` // duration string like "2000ms"
	ControlPollTimeout *string `json:"control_poll_timeout,omitempty"`
	TimeoutAfter       *string `json:"timeout_after,omitempty"`
	ReconnectDelay     *string `json:"reconnect_delay,omitempty"`
	ShutdownWait       *string `json:"shutdown_wait,omitempty"`
	ResyncPolicy       *string `json:"resync_policy,omitempty"` // "drop_all" or "scan_forward"
	MaxPayloadBytes    *int    `json:"max_payload_bytes,omitempty"`

	// Fire command, re-sent after every ping
	FireMasterMode   *int     `json:"fire_master_mode,omitempty"` // 1 = 750 kHz wide, 2 = high frequency narrow
	FirePingRate     *int     `json:"fire_ping_rate,omitempty"`   // device rate code, 0..5
	FireNetworkSpeed *int     `json:"fire_network_speed,omitempty"`
	FireGamma        *int     `json:"fire_gamma,omitempty"`
	FireRange        *float64 `json:"fire_range,omitempty"` // metres
	FireGain         *float64 `json:"fire_gain,omitempty"`  // percent
	FireSpeedOfSound *float64 `json:"fire_speed_of_sound,omitempty"`
	FireSalinity     *float64 `json:"fire_salinity,omitempty"` // ppt
	FireGainAssist   *bool    `json:"fire_gain_assist,omitempty"`
	FireUse512Beams  *bool    `json:"fire_512_beams,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		StatKHigh:              ptrFloat64(e.GetStatKHigh()),
		StatKLow:               ptrFloat64(e.GetStatKLow()),
		StatMinArea:            ptrFloat64(e.GetStatMinArea()),
		StatMaxArea:            ptrFloat64(e.GetStatMaxArea()),
		StatMinWidth:           ptrInt(e.GetStatMinWidth()),
		StatMaxWidth:           ptrInt(e.GetStatMaxWidth()),
		StatMinHeight:          ptrInt(e.GetStatMinHeight()),
		StatMaxHeight:          ptrInt(e.GetStatMaxHeight()),
		StatMinIntensityDelta:  ptrFloat64(e.GetStatMinIntensityDelta()),
		StatMinAspect:          ptrFloat64(e.GetStatMinAspect()),
		StatMaxAspect:          ptrFloat64(e.GetStatMaxAspect()),
		StatMinSolidity:        ptrFloat64(e.GetStatMinSolidity()),
		StatMinCompactness:     ptrFloat64(e.GetStatMinCompactness()),
		NearFieldMin:           ptrFloat64(e.GetNearFieldMin()),
		NearFieldMax:           ptrFloat64(e.GetNearFieldMax()),
		CanvasSize:             ptrInt(e.GetCanvasSize()),
		BlurSigma:              ptrFloat64(e.GetBlurSigma()),
		StatisticalEnabled:     ptrBool(e.GetStatisticalEnabled()),
		NeuralEnabled:          ptrBool(e.GetNeuralEnabled()),
		DetectionEnabledAtBoot: ptrBool(e.GetDetectionEnabled()),

		NeuralLayout:        ptrString(e.GetNeuralLayout()),
		NeuralNumClasses:    ptrInt(e.GetNeuralNumClasses()),
		NeuralConfThreshold: ptrFloat64(e.GetNeuralConfThreshold()),
		NeuralIoUThreshold:  ptrFloat64(e.GetNeuralIoUThreshold()),
		NeuralTopN:          ptrInt(e.GetNeuralTopN()),
		NeuralClassAwareNMS: ptrBool(e.GetNeuralClassAwareNMS()),
		NeuralMinAspect:     ptrFloat64(e.GetNeuralMinAspect()),
		NeuralMaxAspect:     ptrFloat64(e.GetNeuralMaxAspect()),
		NeuralMinArea:       ptrFloat64(e.GetNeuralMinArea()),
		NeuralMaxArea:       ptrFloat64(e.GetNeuralMaxArea()),
		NeuralMinSquareness: ptrFloat64(e.GetNeuralMinSquareness()),
		NeuralRangeMin:      ptrFloat64(e.GetNeuralRangeMin()),
		NeuralRangeMax:      ptrFloat64(e.GetNeuralRangeMax()),
		NeuralOriginY:       ptrFloat64(e.GetNeuralOriginY()),
		LetterboxSize:       ptrInt(e.GetLetterboxSize()),
		LetterboxPad:        ptrInt(e.GetLetterboxPad()),

		DataPollTimeout:    ptrString("2000ms"),
		ControlPollTimeout: ptrString("20ms"),
		TimeoutAfter:       ptrString("3s"),
		ReconnectDelay:     ptrString("500ms"),
		ShutdownWait:       ptrString("500ms"),
		ResyncPolicy:       ptrString(e.GetResyncPolicy()),
		MaxPayloadBytes:    ptrInt(e.GetMaxPayloadBytes()),

		FireMasterMode:   ptrInt(e.GetFireMasterMode()),
		FirePingRate:     ptrInt(e.GetFirePingRate()),
		FireNetworkSpeed: ptrInt(e.GetFireNetworkSpeed()),
		FireGamma:        ptrInt(e.GetFireGamma()),
		FireRange:        ptrFloat64(e.GetFireRange()),
		FireGain:         ptrFloat64(e.GetFireGain()),
		FireSpeedOfSound: ptrFloat64(e.GetFireSpeedOfSound()),
		FireSalinity:     ptrFloat64(e.GetFireSalinity()),
		FireGainAssist:   ptrBool(e.GetFireGainAssist()),
		FireUse512Beams:  ptrBool(e.GetFireUse512Beams()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
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
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/sonar/l4detect/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Values that
// would reach geometry code as NaN, negative sizes or inverted ranges are
// rejected here rather than clamped later.
func (c *TuningConfig) Validate() error {
	if err := nonNegative("stat_k_high", c.StatKHigh); err != nil {
		return err
	}
	if err := nonNegative("stat_k_low", c.StatKLow); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"stat_min_area", c.StatMinArea}, {"stat_max_area", c.StatMaxArea},
		{"stat_min_intensity_delta", c.StatMinIntensityDelta},
		{"stat_min_aspect", c.StatMinAspect}, {"stat_max_aspect", c.StatMaxAspect},
		{"blur_sigma", c.BlurSigma},
		{"neural_min_aspect", c.NeuralMinAspect}, {"neural_max_aspect", c.NeuralMaxAspect},
		{"neural_min_area", c.NeuralMinArea}, {"neural_max_area", c.NeuralMaxArea},
	} {
		if err := nonNegative(f.name, f.v); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"stat_min_solidity", c.StatMinSolidity}, {"stat_min_compactness", c.StatMinCompactness},
		{"near_field_min", c.NearFieldMin}, {"near_field_max", c.NearFieldMax},
		{"neural_conf_threshold", c.NeuralConfThreshold}, {"neural_iou_threshold", c.NeuralIoUThreshold},
		{"neural_min_squareness", c.NeuralMinSquareness},
		{"neural_range_min", c.NeuralRangeMin}, {"neural_range_max", c.NeuralRangeMax},
		{"neural_origin_y", c.NeuralOriginY},
	} {
		if err := fraction(f.name, f.v); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"stat_min_width", c.StatMinWidth}, {"stat_max_width", c.StatMaxWidth},
		{"stat_min_height", c.StatMinHeight}, {"stat_max_height", c.StatMaxHeight},
		{"neural_top_n", c.NeuralTopN}, {"max_payload_bytes", c.MaxPayloadBytes},
	} {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.v)
		}
	}

	if c.GetStatMinArea() > c.GetStatMaxArea() {
		return fmt.Errorf("stat_min_area %v exceeds stat_max_area %v", c.GetStatMinArea(), c.GetStatMaxArea())
	}
	if c.GetStatMinWidth() > c.GetStatMaxWidth() {
		return fmt.Errorf("stat_min_width %d exceeds stat_max_width %d", c.GetStatMinWidth(), c.GetStatMaxWidth())
	}
	if c.GetStatMinHeight() > c.GetStatMaxHeight() {
		return fmt.Errorf("stat_min_height %d exceeds stat_max_height %d", c.GetStatMinHeight(), c.GetStatMaxHeight())
	}
	if c.GetStatMinAspect() > c.GetStatMaxAspect() {
		return fmt.Errorf("stat_min_aspect %v exceeds stat_max_aspect %v", c.GetStatMinAspect(), c.GetStatMaxAspect())
	}
	if c.GetNearFieldMin() > c.GetNearFieldMax() {
		return fmt.Errorf("near_field_min %v exceeds near_field_max %v", c.GetNearFieldMin(), c.GetNearFieldMax())
	}
	if c.GetNeuralMinAspect() > c.GetNeuralMaxAspect() {
		return fmt.Errorf("neural_min_aspect %v exceeds neural_max_aspect %v", c.GetNeuralMinAspect(), c.GetNeuralMaxAspect())
	}
	if c.GetNeuralMinArea() > c.GetNeuralMaxArea() {
		return fmt.Errorf("neural_min_area %v exceeds neural_max_area %v", c.GetNeuralMinArea(), c.GetNeuralMaxArea())
	}
	if c.GetNeuralRangeMin() > c.GetNeuralRangeMax() {
		return fmt.Errorf("neural_range_min %v exceeds neural_range_max %v", c.GetNeuralRangeMin(), c.GetNeuralRangeMax())
	}

	if c.CanvasSize != nil && *c.CanvasSize <= 0 {
		return fmt.Errorf("canvas_size must be positive, got %d", *c.CanvasSize)
	}
	if c.LetterboxSize != nil && *c.LetterboxSize <= 0 {
		return fmt.Errorf("letterbox_size must be positive, got %d", *c.LetterboxSize)
	}
	if c.LetterboxPad != nil && (*c.LetterboxPad < 0 || *c.LetterboxPad > 255) {
		return fmt.Errorf("letterbox_pad must be between 0 and 255, got %d", *c.LetterboxPad)
	}
	if c.NeuralNumClasses != nil && *c.NeuralNumClasses <= 0 {
		return fmt.Errorf("neural_num_classes must be positive, got %d", *c.NeuralNumClasses)
	}
	if c.NeuralLayout != nil {
		switch *c.NeuralLayout {
		case "box_first", "interleaved":
		default:
			return fmt.Errorf("neural_layout must be box_first or interleaved, got %q", *c.NeuralLayout)
		}
	}
	if c.ResyncPolicy != nil {
		switch *c.ResyncPolicy {
		case "drop_all", "scan_forward":
		default:
			return fmt.Errorf("resync_policy must be drop_all or scan_forward, got %q", *c.ResyncPolicy)
		}
	}

	if m := c.GetFireMasterMode(); m != 1 && m != 2 {
		return fmt.Errorf("fire_master_mode must be 1 or 2, got %d", m)
	}
	if r := c.GetFirePingRate(); r < 0 || r > 5 {
		return fmt.Errorf("fire_ping_rate must be between 0 and 5, got %d", r)
	}
	for _, f := range []struct {
		name string
		v    *int
	}{{"fire_network_speed", c.FireNetworkSpeed}, {"fire_gamma", c.FireGamma}} {
		if f.v != nil && (*f.v < 0 || *f.v > 255) {
			return fmt.Errorf("%s must be between 0 and 255, got %d", f.name, *f.v)
		}
	}
	if c.FireRange != nil && (math.IsNaN(*c.FireRange) || math.IsInf(*c.FireRange, 0) || *c.FireRange <= 0) {
		return fmt.Errorf("fire_range must be a positive number of metres, got %v", *c.FireRange)
	}
	if c.FireGain != nil && (math.IsNaN(*c.FireGain) || *c.FireGain < 0 || *c.FireGain > 100) {
		return fmt.Errorf("fire_gain must be between 0 and 100, got %v", *c.FireGain)
	}
	if err := nonNegative("fire_speed_of_sound", c.FireSpeedOfSound); err != nil {
		return err
	}
	if c.FireSalinity != nil && (math.IsNaN(*c.FireSalinity) || *c.FireSalinity < 0 || *c.FireSalinity > 50) {
		return fmt.Errorf("fire_salinity must be between 0 and 50 ppt, got %v", *c.FireSalinity)
	}

	for _, d := range []struct {
		name string
		v    *string
	}{
		{"data_poll_timeout", c.DataPollTimeout},
		{"control_poll_timeout", c.ControlPollTimeout},
		{"timeout_after", c.TimeoutAfter},
		{"reconnect_delay", c.ReconnectDelay},
		{"shutdown_wait", c.ShutdownWait},
	} {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}

	return nil
}

func nonNegative(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return fmt.Errorf("%s must be a non-negative number, got %v", name, *v)
	}
	return nil
}

func fraction(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, *v)
	}
	return nil
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func getBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetStatKHigh returns the bright-mask sigma multiplier or the default.
func (c *TuningConfig) GetStatKHigh() float64 {
	return getFloat(c.StatKHigh, 1.65)
}

// GetStatKLow returns the shadow-mask sigma multiplier or the default.
func (c *TuningConfig) GetStatKLow() float64 {
	return getFloat(c.StatKLow, 1.65)
}

// GetStatMinArea returns the stat_min_area value or the default.
func (c *TuningConfig) GetStatMinArea() float64 {
	return getFloat(c.StatMinArea, 450)
}

// GetStatMaxArea returns the stat_max_area value or the default.
func (c *TuningConfig) GetStatMaxArea() float64 {
	return getFloat(c.StatMaxArea, 25000)
}

// GetStatMinWidth returns the stat_min_width value or the default.
func (c *TuningConfig) GetStatMinWidth() int {
	return getInt(c.StatMinWidth, 25)
}

// GetStatMaxWidth returns the stat_max_width value or the default.
func (c *TuningConfig) GetStatMaxWidth() int {
	return getInt(c.StatMaxWidth, 400)
}

// GetStatMinHeight returns the stat_min_height value or the default.
func (c *TuningConfig) GetStatMinHeight() int {
	return getInt(c.StatMinHeight, 25)
}

// GetStatMaxHeight returns the stat_max_height value or the default.
func (c *TuningConfig) GetStatMaxHeight() int {
	return getInt(c.StatMaxHeight, 400)
}

// GetStatMinIntensityDelta returns the minimum |blob mean - canvas mean|.
func (c *TuningConfig) GetStatMinIntensityDelta() float64 {
	return getFloat(c.StatMinIntensityDelta, 20)
}

// GetStatMinAspect returns the stat_min_aspect value or the default.
func (c *TuningConfig) GetStatMinAspect() float64 {
	return getFloat(c.StatMinAspect, 0.3)
}

// GetStatMaxAspect returns the stat_max_aspect value or the default.
func (c *TuningConfig) GetStatMaxAspect() float64 {
	return getFloat(c.StatMaxAspect, 3.0)
}

// GetStatMinSolidity returns the stat_min_solidity value or the default.
func (c *TuningConfig) GetStatMinSolidity() float64 {
	return getFloat(c.StatMinSolidity, 0.3)
}

// GetStatMinCompactness returns the stat_min_compactness value or the default.
func (c *TuningConfig) GetStatMinCompactness() float64 {
	return getFloat(c.StatMinCompactness, 0.2)
}

// GetNearFieldMin returns the lower edge of the near-field exclusion band.
// The band is disabled by default (0..0).
func (c *TuningConfig) GetNearFieldMin() float64 {
	return getFloat(c.NearFieldMin, 0)
}

// GetNearFieldMax returns the upper edge of the near-field exclusion band.
func (c *TuningConfig) GetNearFieldMax() float64 {
	return getFloat(c.NearFieldMax, 0)
}

// GetCanvasSize returns the canvas_size value or the default.
func (c *TuningConfig) GetCanvasSize() int {
	return getInt(c.CanvasSize, 640)
}

// GetBlurSigma returns the blur_sigma value or the default.
func (c *TuningConfig) GetBlurSigma() float64 {
	return getFloat(c.BlurSigma, 1.0)
}

// GetStatisticalEnabled returns the statistical_enabled value or the default.
func (c *TuningConfig) GetStatisticalEnabled() bool {
	return getBool(c.StatisticalEnabled, true)
}

// GetNeuralEnabled returns the neural_enabled value or the default.
func (c *TuningConfig) GetNeuralEnabled() bool {
	return getBool(c.NeuralEnabled, true)
}

// GetDetectionEnabled returns whether detection runs from startup.
func (c *TuningConfig) GetDetectionEnabled() bool {
	return getBool(c.DetectionEnabledAtBoot, true)
}

// GetNeuralLayout returns the tensor layout name for the loaded model.
func (c *TuningConfig) GetNeuralLayout() string {
	if c.NeuralLayout == nil || *c.NeuralLayout == "" {
		return "box_first"
	}
	return *c.NeuralLayout
}

// GetNeuralNumClasses returns the neural_num_classes value or the default.
func (c *TuningConfig) GetNeuralNumClasses() int {
	return getInt(c.NeuralNumClasses, 1)
}

// GetNeuralConfThreshold returns the neural_conf_threshold value or the default.
func (c *TuningConfig) GetNeuralConfThreshold() float64 {
	return getFloat(c.NeuralConfThreshold, 0.25)
}

// GetNeuralIoUThreshold returns the neural_iou_threshold value or the default.
func (c *TuningConfig) GetNeuralIoUThreshold() float64 {
	return getFloat(c.NeuralIoUThreshold, 0.45)
}

// GetNeuralTopN returns the neural_top_n value or the default.
func (c *TuningConfig) GetNeuralTopN() int {
	return getInt(c.NeuralTopN, 100)
}

// GetNeuralClassAwareNMS returns the neural_class_aware_nms value or the default.
func (c *TuningConfig) GetNeuralClassAwareNMS() bool {
	return getBool(c.NeuralClassAwareNMS, true)
}

// GetNeuralMinAspect returns the neural_min_aspect value or the default.
func (c *TuningConfig) GetNeuralMinAspect() float64 {
	return getFloat(c.NeuralMinAspect, 0.2)
}

// GetNeuralMaxAspect returns the neural_max_aspect value or the default.
func (c *TuningConfig) GetNeuralMaxAspect() float64 {
	return getFloat(c.NeuralMaxAspect, 2.5)
}

// GetNeuralMinArea returns the neural_min_area value or the default.
func (c *TuningConfig) GetNeuralMinArea() float64 {
	return getFloat(c.NeuralMinArea, 150)
}

// GetNeuralMaxArea returns the neural_max_area value or the default.
func (c *TuningConfig) GetNeuralMaxArea() float64 {
	return getFloat(c.NeuralMaxArea, 10000)
}

// GetNeuralMinSquareness returns the neural_min_squareness value or the default.
func (c *TuningConfig) GetNeuralMinSquareness() float64 {
	return getFloat(c.NeuralMinSquareness, 0.15)
}

// GetNeuralRangeMin returns the nearest accepted box centre as a fraction
// of canvas height measured from the origin row.
func (c *TuningConfig) GetNeuralRangeMin() float64 {
	return getFloat(c.NeuralRangeMin, 0.20)
}

// GetNeuralRangeMax returns the neural_range_max value or the default.
func (c *TuningConfig) GetNeuralRangeMax() float64 {
	return getFloat(c.NeuralRangeMax, 1.00)
}

// GetNeuralOriginY returns the origin row as a fraction of canvas height
// (1.0 is the bottom edge).
func (c *TuningConfig) GetNeuralOriginY() float64 {
	return getFloat(c.NeuralOriginY, 1.0)
}

// GetLetterboxSize returns the letterbox_size value or the default.
func (c *TuningConfig) GetLetterboxSize() int {
	return getInt(c.LetterboxSize, 640)
}

// GetLetterboxPad returns the letterbox_pad value or the default.
func (c *TuningConfig) GetLetterboxPad() int {
	return getInt(c.LetterboxPad, 114)
}

// GetDataPollTimeout returns the read deadline used on the data port.
func (c *TuningConfig) GetDataPollTimeout() time.Duration {
	return getDuration(c.DataPollTimeout, 2000*time.Millisecond)
}

// GetControlPollTimeout returns the read deadline used on the control port.
func (c *TuningConfig) GetControlPollTimeout() time.Duration {
	return getDuration(c.ControlPollTimeout, 20*time.Millisecond)
}

// GetTimeoutAfter returns how long without data before the link is
// considered timed out.
func (c *TuningConfig) GetTimeoutAfter() time.Duration {
	return getDuration(c.TimeoutAfter, 3*time.Second)
}

// GetReconnectDelay returns the pause between closing and redialing.
func (c *TuningConfig) GetReconnectDelay() time.Duration {
	return getDuration(c.ReconnectDelay, 500*time.Millisecond)
}

// GetShutdownWait returns how long Close waits for the reader to exit.
func (c *TuningConfig) GetShutdownWait() time.Duration {
	return getDuration(c.ShutdownWait, 500*time.Millisecond)
}

// GetResyncPolicy returns the framer behaviour on a bad sync marker.
func (c *TuningConfig) GetResyncPolicy() string {
	if c.ResyncPolicy == nil || *c.ResyncPolicy == "" {
		return "drop_all"
	}
	return *c.ResyncPolicy
}

// GetMaxPayloadBytes returns the largest payload the framer accepts.
func (c *TuningConfig) GetMaxPayloadBytes() int {
	return getInt(c.MaxPayloadBytes, 16<<20)
}

// GetFireMasterMode returns the transducer mode sent with each fire.
func (c *TuningConfig) GetFireMasterMode() int {
	return getInt(c.FireMasterMode, 1)
}

// GetFirePingRate returns the device ping rate code (1 is 15 Hz).
func (c *TuningConfig) GetFirePingRate() int {
	return getInt(c.FirePingRate, 1)
}

// GetFireNetworkSpeed returns the network speed limit byte (255 is unlimited).
func (c *TuningConfig) GetFireNetworkSpeed() int {
	return getInt(c.FireNetworkSpeed, 255)
}

func (c *TuningConfig) GetFireGamma() int {
	return getInt(c.FireGamma, 150)
}

// GetFireRange returns the requested range in metres.
func (c *TuningConfig) GetFireRange() float64 {
	return getFloat(c.FireRange, 10)
}

func (c *TuningConfig) GetFireGain() float64 {
	return getFloat(c.FireGain, 60)
}

// GetFireSpeedOfSound returns the speed of sound to use; 0 lets the head
// derive it from salinity.
func (c *TuningConfig) GetFireSpeedOfSound() float64 {
	return getFloat(c.FireSpeedOfSound, 0)
}

// GetFireSalinity returns the water salinity in ppt (0 fresh, 35 salt).
func (c *TuningConfig) GetFireSalinity() float64 {
	return getFloat(c.FireSalinity, 0)
}

func (c *TuningConfig) GetFireGainAssist() bool {
	return getBool(c.FireGainAssist, true)
}

func (c *TuningConfig) GetFireUse512Beams() bool {
	return getBool(c.FireUse512Beams, true)
}
