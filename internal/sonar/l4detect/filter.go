package l4detect

import (
	"fmt"
	"image"
	"math"
)

// GeometryFilter rejects boxes by size, shape and vertical position on the
// canvas. It is shared by both detectors. Lower bounds of zero accept
// everything. Validate rejects an upper bound set below its lower bound.
type GeometryFilter struct {
	MinArea   float64
	MaxArea   float64 // 0 leaves area unbounded
	MinWidth  int
	MaxWidth  int // 0 leaves width unbounded
	MinHeight int
	MaxHeight int     // 0 leaves height unbounded
	MinAspect float64 // width / height
	MaxAspect float64 // 0 leaves aspect unbounded

	// MinSquareness is min(w,h)/max(w,h).
	MinSquareness float64

	// Range band: the box centre's distance from the origin row, as a
	// fraction of canvas height, must lie in [RangeMin, RangeMax]. OriginY
	// is the origin row as a fraction of height (1 is the bottom edge).
	// Disabled when RangeMax is zero.
	RangeMin float64
	RangeMax float64
	OriginY  float64

	// Near-field band, measured up from the bottom row. Boxes centred
	// inside it are rejected. Disabled when NearFieldMax <= NearFieldMin.
	NearFieldMin float64
	NearFieldMax float64
}

// Validate rejects negative or NaN bounds and any set upper bound that lies
// below its lower bound, which would otherwise reject every box.
func (f GeometryFilter) Validate() error {
	for _, b := range []struct {
		name     string
		min, max float64
	}{
		{"Area", f.MinArea, f.MaxArea},
		{"Width", float64(f.MinWidth), float64(f.MaxWidth)},
		{"Height", float64(f.MinHeight), float64(f.MaxHeight)},
		{"Aspect", f.MinAspect, f.MaxAspect},
		{"Range", f.RangeMin, f.RangeMax},
	} {
		if math.IsNaN(b.min) || math.IsNaN(b.max) || b.min < 0 || b.max < 0 {
			return fmt.Errorf("%s bounds must be non-negative, got %v..%v", b.name, b.min, b.max)
		}
		if b.max > 0 && b.min > b.max {
			return fmt.Errorf("Min%s %v exceeds Max%s %v", b.name, b.min, b.name, b.max)
		}
	}
	if math.IsNaN(f.MinSquareness) || f.MinSquareness < 0 || f.MinSquareness > 1 {
		return fmt.Errorf("MinSquareness must be in [0, 1], got %v", f.MinSquareness)
	}
	return nil
}

// Check returns "" when box passes, otherwise the name of the first failed
// test. area is the caller's notion of area (filled pixels or box area).
func (f GeometryFilter) Check(box image.Rectangle, area float64, canvasH int) string {
	w, h := box.Dx(), box.Dy()
	if w <= 0 || h <= 0 {
		return "empty"
	}
	if area < f.MinArea || (f.MaxArea > 0 && area > f.MaxArea) {
		return "area"
	}
	if w < f.MinWidth || (f.MaxWidth > 0 && w > f.MaxWidth) {
		return "width"
	}
	if h < f.MinHeight || (f.MaxHeight > 0 && h > f.MaxHeight) {
		return "height"
	}
	aspect := float64(w) / float64(h)
	if aspect < f.MinAspect || (f.MaxAspect > 0 && aspect > f.MaxAspect) {
		return "aspect"
	}
	if f.MinSquareness > 0 {
		sq := math.Min(float64(w), float64(h)) / math.Max(float64(w), float64(h))
		if sq < f.MinSquareness {
			return "squareness"
		}
	}
	if canvasH <= 0 {
		return ""
	}
	cy := float64(box.Min.Y+box.Max.Y) / 2
	H := float64(canvasH)
	if f.RangeMax > 0 {
		frac := math.Abs(f.OriginY*H-cy) / H
		if frac < f.RangeMin || frac > f.RangeMax {
			return "range_band"
		}
	}
	if f.NearFieldMax > f.NearFieldMin {
		fromBottom := (H - cy) / H
		if fromBottom >= f.NearFieldMin && fromBottom <= f.NearFieldMax {
			return "near_field"
		}
	}
	return ""
}

// Accept reports whether box passes every check.
func (f GeometryFilter) Accept(box image.Rectangle, area float64, canvasH int) bool {
	return f.Check(box, area, canvasH) == ""
}

func (f GeometryFilter) String() string {
	return fmt.Sprintf("area=%g..%g w=%d..%d h=%d..%d aspect=%g..%g sq>=%g range=%g..%g@%g near=%g..%g",
		f.MinArea, f.MaxArea, f.MinWidth, f.MaxWidth, f.MinHeight, f.MaxHeight,
		f.MinAspect, f.MaxAspect, f.MinSquareness, f.RangeMin, f.RangeMax, f.OriginY,
		f.NearFieldMin, f.NearFieldMax)
}
