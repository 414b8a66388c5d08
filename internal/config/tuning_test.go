package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.StatKHigh == nil || *cfg.StatKHigh != 1.65 {
		t.Errorf("Expected StatKHigh 1.65, got %v", cfg.StatKHigh)
	}
	if cfg.ResyncPolicy == nil || *cfg.ResyncPolicy != "drop_all" {
		t.Errorf("Expected ResyncPolicy drop_all, got %v", cfg.ResyncPolicy)
	}
	if cfg.DataPollTimeout == nil || *cfg.DataPollTimeout != "2000ms" {
		t.Errorf("Expected DataPollTimeout '2000ms', got %v", cfg.DataPollTimeout)
	}
	if cfg.NearFieldMax == nil || *cfg.NearFieldMax != 0 {
		t.Errorf("Expected NearFieldMax 0 (band disabled), got %v", cfg.NearFieldMax)
	}

	// Every pointer field is populated.
	v := reflect.ValueOf(cfg).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			t.Errorf("DefaultTuningConfig leaves %s nil", v.Type().Field(i).Name)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig() does not validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "stat_k_high": 2.0,
  "stat_min_area": 300,
  "near_field_min": 0.0,
  "near_field_max": 0.1,
  "neural_layout": "interleaved",
  "data_poll_timeout": "1500ms",
  "resync_policy": "scan_forward"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetStatKHigh(); got != 2.0 {
		t.Errorf("GetStatKHigh() = %v, want 2.0", got)
	}
	if got := cfg.GetStatMinArea(); got != 300 {
		t.Errorf("GetStatMinArea() = %v, want 300", got)
	}
	if got := cfg.GetNearFieldMax(); got != 0.1 {
		t.Errorf("GetNearFieldMax() = %v, want 0.1", got)
	}
	if got := cfg.GetNeuralLayout(); got != "interleaved" {
		t.Errorf("GetNeuralLayout() = %q, want interleaved", got)
	}
	if got := cfg.GetDataPollTimeout(); got != 1500*time.Millisecond {
		t.Errorf("GetDataPollTimeout() = %v, want 1.5s", got)
	}
	if got := cfg.GetResyncPolicy(); got != "scan_forward" {
		t.Errorf("GetResyncPolicy() = %q, want scan_forward", got)
	}
	// Untouched fields keep their defaults.
	if got := cfg.GetStatKLow(); got != 1.65 {
		t.Errorf("GetStatKLow() = %v, want default 1.65", got)
	}
	if got := cfg.GetControlPollTimeout(); got != 20*time.Millisecond {
		t.Errorf("GetControlPollTimeout() = %v, want default 20ms", got)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "stat_k_high": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")
	if err := os.WriteFile(configPath, []byte(`{"stat_min_area": 500, "stat_max_area": 100}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error for inverted area bounds, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig()},
		{name: "empty config is valid", cfg: &TuningConfig{}},
		{name: "negative k high", cfg: &TuningConfig{StatKHigh: ptrFloat64(-1)}, wantErr: true},
		{name: "NaN k low", cfg: &TuningConfig{StatKLow: ptrFloat64(math.NaN())}, wantErr: true},
		{name: "infinite area", cfg: &TuningConfig{StatMaxArea: ptrFloat64(math.Inf(1))}, wantErr: true},
		{name: "min width above default max", cfg: &TuningConfig{StatMinWidth: ptrInt(500)}, wantErr: true},
		{name: "negative height", cfg: &TuningConfig{StatMinHeight: ptrInt(-1)}, wantErr: true},
		{name: "solidity above one", cfg: &TuningConfig{StatMinSolidity: ptrFloat64(1.5)}, wantErr: true},
		{name: "near field inverted", cfg: &TuningConfig{NearFieldMin: ptrFloat64(0.3), NearFieldMax: ptrFloat64(0.1)}, wantErr: true},
		{name: "near field band", cfg: &TuningConfig{NearFieldMin: ptrFloat64(0.0), NearFieldMax: ptrFloat64(0.15)}},
		{name: "zero canvas", cfg: &TuningConfig{CanvasSize: ptrInt(0)}, wantErr: true},
		{name: "pad out of range", cfg: &TuningConfig{LetterboxPad: ptrInt(300)}, wantErr: true},
		{name: "iou above one", cfg: &TuningConfig{NeuralIoUThreshold: ptrFloat64(1.2)}, wantErr: true},
		{name: "range band inverted", cfg: &TuningConfig{NeuralRangeMin: ptrFloat64(0.9), NeuralRangeMax: ptrFloat64(0.5)}, wantErr: true},
		{name: "unknown layout", cfg: &TuningConfig{NeuralLayout: ptrString("auto")}, wantErr: true},
		{name: "zero classes", cfg: &TuningConfig{NeuralNumClasses: ptrInt(0)}, wantErr: true},
		{name: "unknown resync", cfg: &TuningConfig{ResyncPolicy: ptrString("search")}, wantErr: true},
		{name: "invalid poll timeout", cfg: &TuningConfig{DataPollTimeout: ptrString("invalid")}, wantErr: true},
		{name: "negative reconnect delay", cfg: &TuningConfig{ReconnectDelay: ptrString("-1s")}, wantErr: true},
		{name: "negative payload cap", cfg: &TuningConfig{MaxPayloadBytes: ptrInt(-5)}, wantErr: true},
		{name: "fire mode 3", cfg: &TuningConfig{FireMasterMode: ptrInt(3)}, wantErr: true},
		{name: "fire ping rate unknown", cfg: &TuningConfig{FirePingRate: ptrInt(6)}, wantErr: true},
		{name: "fire gamma above a byte", cfg: &TuningConfig{FireGamma: ptrInt(256)}, wantErr: true},
		{name: "fire zero range", cfg: &TuningConfig{FireRange: ptrFloat64(0)}, wantErr: true},
		{name: "fire gain over 100", cfg: &TuningConfig{FireGain: ptrFloat64(101)}, wantErr: true},
		{name: "fire salt water", cfg: &TuningConfig{FireSalinity: ptrFloat64(35), FireMasterMode: ptrInt(2)}},
		{name: "fire negative sound speed", cfg: &TuningConfig{FireSpeedOfSound: ptrFloat64(-1)}, wantErr: true},
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

func TestGetDurations(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		get  func(*TuningConfig) time.Duration
		want time.Duration
	}{
		{"data poll default", &TuningConfig{}, (*TuningConfig).GetDataPollTimeout, 2 * time.Second},
		{"control poll default", &TuningConfig{}, (*TuningConfig).GetControlPollTimeout, 20 * time.Millisecond},
		{"timeout default", &TuningConfig{}, (*TuningConfig).GetTimeoutAfter, 3 * time.Second},
		{"reconnect default", &TuningConfig{}, (*TuningConfig).GetReconnectDelay, 500 * time.Millisecond},
		{"shutdown default", &TuningConfig{}, (*TuningConfig).GetShutdownWait, 500 * time.Millisecond},
		{"empty string returns default", &TuningConfig{ShutdownWait: ptrString("")}, (*TuningConfig).GetShutdownWait, 500 * time.Millisecond},
		{"invalid returns default", &TuningConfig{TimeoutAfter: ptrString("soon")}, (*TuningConfig).GetTimeoutAfter, 3 * time.Second},
		{"override", &TuningConfig{ReconnectDelay: ptrString("2s")}, (*TuningConfig).GetReconnectDelay, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(tt.cfg); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	// The file and the Get* fallbacks must agree.
	want, err := json.Marshal(DefaultTuningConfig())
	if err != nil {
		t.Fatal(err)
	}
	got, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var wantMap, gotMap map[string]interface{}
	if err := json.Unmarshal(want, &wantMap); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(got, &gotMap); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(wantMap, gotMap) {
		t.Errorf("tuning.defaults.json differs from DefaultTuningConfig():\nfile: %v\ncode: %v", gotMap, wantMap)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetCanvasSize() != 640 {
		t.Errorf("GetCanvasSize() = %d, want 640", cfg.GetCanvasSize())
	}
}

func TestLoadTuningConfigRejectsPathTraversal(t *testing.T) {
	// Path traversal with ".." is allowed since this is a CLI-only flag,
	// but the file must still have a .json extension.
	_, err := LoadTuningConfig("../../etc/passwd")
	if err == nil {
		t.Error("Expected error for non-.json path, got nil")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	floatTests := []struct {
		name string
		got  float64
		want float64
	}{
		{"StatKHigh", cfg.GetStatKHigh(), 1.65},
		{"StatKLow", cfg.GetStatKLow(), 1.65},
		{"StatMinArea", cfg.GetStatMinArea(), 450},
		{"StatMaxArea", cfg.GetStatMaxArea(), 25000},
		{"StatMinIntensityDelta", cfg.GetStatMinIntensityDelta(), 20},
		{"StatMinAspect", cfg.GetStatMinAspect(), 0.3},
		{"StatMaxAspect", cfg.GetStatMaxAspect(), 3.0},
		{"StatMinSolidity", cfg.GetStatMinSolidity(), 0.3},
		{"StatMinCompactness", cfg.GetStatMinCompactness(), 0.2},
		{"BlurSigma", cfg.GetBlurSigma(), 1.0},
		{"NeuralConfThreshold", cfg.GetNeuralConfThreshold(), 0.25},
		{"NeuralIoUThreshold", cfg.GetNeuralIoUThreshold(), 0.45},
		{"NeuralMinAspect", cfg.GetNeuralMinAspect(), 0.2},
		{"NeuralMaxAspect", cfg.GetNeuralMaxAspect(), 2.5},
		{"NeuralMinArea", cfg.GetNeuralMinArea(), 150},
		{"NeuralMaxArea", cfg.GetNeuralMaxArea(), 10000},
		{"NeuralMinSquareness", cfg.GetNeuralMinSquareness(), 0.15},
		{"NeuralRangeMin", cfg.GetNeuralRangeMin(), 0.20},
		{"NeuralRangeMax", cfg.GetNeuralRangeMax(), 1.00},
		{"NeuralOriginY", cfg.GetNeuralOriginY(), 1.0},
		{"FireRange", cfg.GetFireRange(), 10},
		{"FireGain", cfg.GetFireGain(), 60},
		{"FireSpeedOfSound", cfg.GetFireSpeedOfSound(), 0},
		{"FireSalinity", cfg.GetFireSalinity(), 0},
	}
	for _, tt := range floatTests {
		if tt.got != tt.want {
			t.Errorf("Get%s() = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	intTests := []struct {
		name string
		got  int
		want int
	}{
		{"StatMinWidth", cfg.GetStatMinWidth(), 25},
		{"StatMaxWidth", cfg.GetStatMaxWidth(), 400},
		{"StatMinHeight", cfg.GetStatMinHeight(), 25},
		{"StatMaxHeight", cfg.GetStatMaxHeight(), 400},
		{"CanvasSize", cfg.GetCanvasSize(), 640},
		{"NeuralNumClasses", cfg.GetNeuralNumClasses(), 1},
		{"NeuralTopN", cfg.GetNeuralTopN(), 100},
		{"LetterboxSize", cfg.GetLetterboxSize(), 640},
		{"LetterboxPad", cfg.GetLetterboxPad(), 114},
		{"MaxPayloadBytes", cfg.GetMaxPayloadBytes(), 16 << 20},
		{"FireMasterMode", cfg.GetFireMasterMode(), 1},
		{"FirePingRate", cfg.GetFirePingRate(), 1},
		{"FireNetworkSpeed", cfg.GetFireNetworkSpeed(), 255},
		{"FireGamma", cfg.GetFireGamma(), 150},
	}
	for _, tt := range intTests {
		if tt.got != tt.want {
			t.Errorf("Get%s() = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	if !cfg.GetNeuralClassAwareNMS() || !cfg.GetStatisticalEnabled() || !cfg.GetNeuralEnabled() || !cfg.GetDetectionEnabled() ||
		!cfg.GetFireGainAssist() || !cfg.GetFireUse512Beams() {
		t.Error("boolean defaults should all be true")
	}
	if cfg.GetNeuralLayout() != "box_first" {
		t.Errorf("GetNeuralLayout() = %q, want box_first", cfg.GetNeuralLayout())
	}
	if cfg.GetResyncPolicy() != "drop_all" {
		t.Errorf("GetResyncPolicy() = %q, want drop_all", cfg.GetResyncPolicy())
	}
}
