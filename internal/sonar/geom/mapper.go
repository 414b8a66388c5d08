package geom

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrTransformMismatch is returned when a canvas is not the size its
	// declared transform produces.
	ErrTransformMismatch = errors.New("canvas does not match declared transform")
	// ErrNoBearings is returned for an empty bearing table or one whose
	// length differs from the beam rows of the transform.
	ErrNoBearings = errors.New("bearing table does not match beam count")
)

// BearingRadians converts a table entry in hundredths of a degree.
func BearingRadians(v int16) float64 {
	return float64(v) * 0.01 * math.Pi / 180.0
}

// Map converts canvas pixel (px, py) to a world position in metres, X to
// starboard and Y forward. t must be the transform that produced the
// canvasW x canvasH canvas; bearings holds one entry per beam row of t.
func Map(px, py float64, canvasW, canvasH int, t Transform, bearings []int16, maxRange float64) (x, y float64, err error) {
	fx, fy, err := Fractions(px, py, canvasW, canvasH, t)
	if err != nil {
		return 0, 0, err
	}
	if len(bearings) == 0 || len(bearings) != t.SrcH {
		return 0, 0, fmt.Errorf("%w: %d entries, %d beams", ErrNoBearings, len(bearings), t.SrcH)
	}
	beams := len(bearings)
	b := int(math.Round(fx * float64(beams-1)))
	if b < 0 {
		b = 0
	} else if b > beams-1 {
		b = beams - 1
	}
	bearing := BearingRadians(bearings[b])
	d := fy * maxRange
	return d * math.Sin(bearing), d * math.Cos(bearing), nil
}

// Fractions inverts t for canvas pixel (px, py) and returns the bearing-axis
// fraction fx and range-axis fraction fy, both clamped to [0, 1].
func Fractions(px, py float64, canvasW, canvasH int, t Transform) (fx, fy float64, err error) {
	w, h := t.Size()
	if w != canvasW || h != canvasH {
		return 0, 0, fmt.Errorf("%w: canvas %dx%d, transform %s gives %dx%d",
			ErrTransformMismatch, canvasW, canvasH, t, w, h)
	}
	r, b := t.Invert(px, py)
	if t.SrcW > 1 {
		fy = clampf(r/float64(t.SrcW-1), 0, 1)
	}
	if t.SrcH > 1 {
		fx = clampf(b/float64(t.SrcH-1), 0, 1)
	}
	return fx, fy, nil
}

// Mapper binds a transform to one ping's bearing table and range.
type Mapper struct {
	Transform Transform
	Bearings  []int16
	MaxRange  float64
}

// NewMapper returns a Mapper for canvases produced by t.
func NewMapper(t Transform, bearings []int16, maxRange float64) *Mapper {
	return &Mapper{Transform: t, Bearings: bearings, MaxRange: maxRange}
}

// Map maps one canvas pixel on a canvas of the transform's output size.
func (m *Mapper) Map(px, py float64) (x, y float64, err error) {
	w, h := m.Transform.Size()
	return Map(px, py, w, h, m.Transform, m.Bearings, m.MaxRange)
}

// Forward returns the canvas pixel for beam index beam at rangeFrac of the
// way out along the beam.
func (m *Mapper) Forward(beam int, rangeFrac float64) (px, py float64) {
	r := rangeFrac * float64(m.Transform.SrcW-1)
	return m.Transform.Apply(r, float64(beam))
}

// WorldBox is a canvas box mapped to world space.
type WorldBox struct {
	X, Y          float64 // centre
	Width, Height float64
}

// MapBox maps a canvas box to its world centre and the world extent covered
// by its corners. Box edges follow image.Rectangle: Max is exclusive.
func (m *Mapper) MapBox(box image.Rectangle) (WorldBox, error) {
	if box.Empty() {
		return WorldBox{}, fmt.Errorf("empty box %v", box)
	}
	x0, y0 := float64(box.Min.X), float64(box.Min.Y)
	x1, y1 := float64(box.Max.X-1), float64(box.Max.Y-1)

	cx, cy, err := m.Map((x0+x1)/2, (y0+y1)/2)
	if err != nil {
		return WorldBox{}, err
	}
	minX, maxX, minY, maxY := cx, cx, cy, cy
	for _, p := range [][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		wx, wy, err := m.Map(p[0], p[1])
		if err != nil {
			return WorldBox{}, err
		}
		minX, maxX = math.Min(minX, wx), math.Max(maxX, wx)
		minY, maxY = math.Min(minY, wy), math.Max(maxY, wy)
	}
	return WorldBox{X: cx, Y: cy, Width: maxX - minX, Height: maxY - minY}, nil
}
