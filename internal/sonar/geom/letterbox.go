package geom

import "math"

// LetterboxParams describes an aspect-preserving fit of a SrcW x SrcH image
// into a Size x Size square. The content is scaled by Scale, truncated to
// whole pixels and centred with PadX/PadY pixels on the leading edges.
type LetterboxParams struct {
	SrcW, SrcH int
	Size       int
	Scale      float64
	PadX, PadY int
	ContentW   int
	ContentH   int
}

// NewLetterboxParams computes the fit of a w x h image into size x size.
func NewLetterboxParams(w, h, size int) LetterboxParams {
	lb := LetterboxParams{SrcW: w, SrcH: h, Size: size}
	if w <= 0 || h <= 0 || size <= 0 {
		return lb
	}
	lb.Scale = math.Min(float64(size)/float64(w), float64(size)/float64(h))
	lb.ContentW = int(float64(w) * lb.Scale)
	lb.ContentH = int(float64(h) * lb.Scale)
	lb.PadX = (size - lb.ContentW) / 2
	lb.PadY = (size - lb.ContentH) / 2
	return lb
}

// Apply maps an edge coordinate in the source image to the square.
func (lb LetterboxParams) Apply(x, y float64) (float64, float64) {
	return x*lb.Scale + float64(lb.PadX), y*lb.Scale + float64(lb.PadY)
}

// Invert maps an edge coordinate in the square back to the source image:
// x = (x' - padX) / scale. A zero scale returns the input unchanged.
func (lb LetterboxParams) Invert(x, y float64) (float64, float64) {
	if lb.Scale == 0 {
		return x, y
	}
	return (x - float64(lb.PadX)) / lb.Scale, (y - float64(lb.PadY)) / lb.Scale
}
