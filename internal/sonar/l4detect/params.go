package l4detect

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/config"
)

// Params holds the statistical detector thresholds. All of them are run-time
// configuration; see ParamsFromTuning.
type Params struct {
	KHigh float64 // bright mask: p > mean + KHigh*std
	KLow  float64 // shadow mask: p < mean - KLow*std

	MinArea           float64 // filled pixel area
	MaxArea           float64
	MinWidth          int
	MaxWidth          int
	MinHeight         int
	MaxHeight         int
	MinIntensityDelta float64
	MinAspect         float64 // width / height
	MaxAspect         float64
	MinSolidity       float64
	MinCompactness    float64

	// Near-field exclusion band as fractions of canvas height measured up
	// from the bottom (origin) row. Disabled when NearFieldMax <= NearFieldMin.
	NearFieldMin float64
	NearFieldMax float64

	CanvasSize int
	BlurSigma  float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return ParamsFromTuning(config.EmptyTuningConfig())
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		KHigh:             cfg.GetStatKHigh(),
		KLow:              cfg.GetStatKLow(),
		MinArea:           cfg.GetStatMinArea(),
		MaxArea:           cfg.GetStatMaxArea(),
		MinWidth:          cfg.GetStatMinWidth(),
		MaxWidth:          cfg.GetStatMaxWidth(),
		MinHeight:         cfg.GetStatMinHeight(),
		MaxHeight:         cfg.GetStatMaxHeight(),
		MinIntensityDelta: cfg.GetStatMinIntensityDelta(),
		MinAspect:         cfg.GetStatMinAspect(),
		MaxAspect:         cfg.GetStatMaxAspect(),
		MinSolidity:       cfg.GetStatMinSolidity(),
		MinCompactness:    cfg.GetStatMinCompactness(),
		NearFieldMin:      cfg.GetNearFieldMin(),
		NearFieldMax:      cfg.GetNearFieldMax(),
		CanvasSize:        cfg.GetCanvasSize(),
		BlurSigma:         cfg.GetBlurSigma(),
	}
}

// Validate checks if the parameters are usable. Nothing is clamped.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"KHigh", p.KHigh}, {"KLow", p.KLow},
		{"MinArea", p.MinArea}, {"MaxArea", p.MaxArea},
		{"MinIntensityDelta", p.MinIntensityDelta},
		{"MinAspect", p.MinAspect}, {"MaxAspect", p.MaxAspect},
		{"MinSolidity", p.MinSolidity}, {"MinCompactness", p.MinCompactness},
		{"NearFieldMin", p.NearFieldMin}, {"NearFieldMax", p.NearFieldMax},
		{"BlurSigma", p.BlurSigma},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	if p.MinWidth < 0 || p.MinHeight < 0 {
		return fmt.Errorf("MinWidth/MinHeight must be non-negative, got %d/%d", p.MinWidth, p.MinHeight)
	}
	if p.MinArea > p.MaxArea {
		return fmt.Errorf("MinArea %v exceeds MaxArea %v", p.MinArea, p.MaxArea)
	}
	if p.MinWidth > p.MaxWidth {
		return fmt.Errorf("MinWidth %d exceeds MaxWidth %d", p.MinWidth, p.MaxWidth)
	}
	if p.MinHeight > p.MaxHeight {
		return fmt.Errorf("MinHeight %d exceeds MaxHeight %d", p.MinHeight, p.MaxHeight)
	}
	if p.MinAspect > p.MaxAspect {
		return fmt.Errorf("MinAspect %v exceeds MaxAspect %v", p.MinAspect, p.MaxAspect)
	}
	if p.MinSolidity > 1 || p.MinCompactness > 1 {
		return fmt.Errorf("MinSolidity/MinCompactness must be in [0, 1], got %v/%v", p.MinSolidity, p.MinCompactness)
	}
	if p.NearFieldMin > 1 || p.NearFieldMax > 1 {
		return fmt.Errorf("near-field band must be in [0, 1], got %v..%v", p.NearFieldMin, p.NearFieldMax)
	}
	if p.CanvasSize <= 0 {
		return fmt.Errorf("CanvasSize must be positive, got %d", p.CanvasSize)
	}
	return p.Filter().Validate()
}

// Filter returns the geometry part of p as a GeometryFilter.
func (p Params) Filter() GeometryFilter {
	return GeometryFilter{
		MinArea:      p.MinArea,
		MaxArea:      p.MaxArea,
		MinWidth:     p.MinWidth,
		MaxWidth:     p.MaxWidth,
		MinHeight:    p.MinHeight,
		MaxHeight:    p.MaxHeight,
		MinAspect:    p.MinAspect,
		MaxAspect:    p.MaxAspect,
		NearFieldMin: p.NearFieldMin,
		NearFieldMax: p.NearFieldMax,
	}
}

// WithThresholds sets the bright and shadow sigma multipliers.
func (p Params) WithThresholds(kHigh, kLow float64) Params {
	p.KHigh, p.KLow = kHigh, kLow
	return p
}

// WithNearField sets the near-field exclusion band.
func (p Params) WithNearField(lo, hi float64) Params {
	p.NearFieldMin, p.NearFieldMax = lo, hi
	return p
}

// WithCanvas sets the canvas size and blur.
func (p Params) WithCanvas(size int, blurSigma float64) Params {
	p.CanvasSize, p.BlurSigma = size, blurSigma
	return p
}
