package l5neural

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
)

// Config holds the neural postprocessing thresholds.
type Config struct {
	Layout     Layout
	NumClasses int // box_first score rows; 0 takes whatever the tensor has

	ConfThreshold float64
	IoUThreshold  float64
	TopN          int // 0 keeps every survivor
	ClassAware    bool

	// Filter is applied in original-image pixels with canvasH set to the
	// original image height. Its area bound is the box area.
	Filter l4detect.GeometryFilter

	LetterboxSize int
	LetterboxPad  uint8
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The layout
// name has already been checked by TuningConfig.Validate; an unknown name
// falls back to box_first.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	layout, err := ParseLayout(cfg.GetNeuralLayout())
	if err != nil {
		opsf("%v, using %v", err, LayoutBoxFirst)
		layout = LayoutBoxFirst
	}
	pad := cfg.GetLetterboxPad()
	if pad < 0 {
		pad = 0
	} else if pad > 255 {
		pad = 255
	}
	return Config{
		Layout:        layout,
		NumClasses:    cfg.GetNeuralNumClasses(),
		ConfThreshold: cfg.GetNeuralConfThreshold(),
		IoUThreshold:  cfg.GetNeuralIoUThreshold(),
		TopN:          cfg.GetNeuralTopN(),
		ClassAware:    cfg.GetNeuralClassAwareNMS(),
		Filter: l4detect.GeometryFilter{
			MinArea:       cfg.GetNeuralMinArea(),
			MaxArea:       cfg.GetNeuralMaxArea(),
			MinAspect:     cfg.GetNeuralMinAspect(),
			MaxAspect:     cfg.GetNeuralMaxAspect(),
			MinSquareness: cfg.GetNeuralMinSquareness(),
			RangeMin:      cfg.GetNeuralRangeMin(),
			RangeMax:      cfg.GetNeuralRangeMax(),
			OriginY:       cfg.GetNeuralOriginY(),
			NearFieldMin:  cfg.GetNearFieldMin(),
			NearFieldMax:  cfg.GetNearFieldMax(),
		},
		LetterboxSize: cfg.GetLetterboxSize(),
		LetterboxPad:  uint8(pad),
	}
}

// Validate checks if the config is usable.
func (c Config) Validate() error {
	if _, ok := layoutNames[c.Layout]; !ok {
		return fmt.Errorf("unsupported layout %v", c.Layout)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"ConfThreshold", c.ConfThreshold},
		{"IoUThreshold", c.IoUThreshold},
	} {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", f.name, f.v)
		}
	}
	if c.NumClasses < 0 {
		return fmt.Errorf("NumClasses must be non-negative, got %d", c.NumClasses)
	}
	if c.TopN < 0 {
		return fmt.Errorf("TopN must be non-negative, got %d", c.TopN)
	}
	if c.LetterboxSize <= 0 {
		return fmt.Errorf("LetterboxSize must be positive, got %d", c.LetterboxSize)
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("geometry filter: %w", err)
	}
	return nil
}

// WithThresholds sets the confidence and IoU thresholds.
func (c Config) WithThresholds(conf, iou float64) Config {
	c.ConfThreshold, c.IoUThreshold = conf, iou
	return c
}

// WithLayout sets the tensor layout and class count.
func (c Config) WithLayout(l Layout, numClasses int) Config {
	c.Layout, c.NumClasses = l, numClasses
	return c
}

// WithFilter replaces the geometry filter.
func (c Config) WithFilter(f l4detect.GeometryFilter) Config {
	c.Filter = f
	return c
}
