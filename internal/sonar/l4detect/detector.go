package l4detect

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l3canvas"
)

// MIN_STD is the canvas standard deviation below which nothing can stand
// out from the background.
const MIN_STD = 1e-6

// Candidate is a detection in canvas pixel coordinates, before mapping to
// world space. ClassID is -1 for the statistical detector.
type Candidate struct {
	Box            image.Rectangle
	Area           float64
	Solidity       float64
	Compactness    float64
	IntensityDelta float64
	Confidence     float64
	ClassID        int
}

// Result is one statistical detection pass.
type Result struct {
	Canvas     *l3canvas.Canvas
	Mean       float64
	Std        float64
	Components int // before filtering
	Candidates []Candidate
}

// Detect builds the canvas for rec and runs the detector on it.
func Detect(rec *l2pings.PingRecord, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector params: %w", err)
	}
	c, err := l3canvas.Build(rec, p.CanvasSize, p.BlurSigma)
	if err != nil {
		return nil, err
	}
	res := DetectCanvas(c, p)
	tracef("ping %d: mean=%.2f std=%.2f components=%d candidates=%d",
		rec.PingID, res.Mean, res.Std, res.Components, len(res.Candidates))
	return res, nil
}

// DetectCanvas runs threshold, morphology, labelling and filtering on an
// already built canvas. Candidates are ordered by confidence, highest first.
func DetectCanvas(c *l3canvas.Canvas, p Params) *Result {
	img := c.Img
	w, h := img.Rect.Dx(), img.Rect.Dy()
	res := &Result{Canvas: c}
	res.Mean, res.Std = l3canvas.Stats(img)
	if res.Std < MIN_STD {
		return res
	}

	hi := res.Mean + p.KHigh*res.Std
	lo := res.Mean - p.KLow*res.Std
	gray := packed(img)
	mask := make([]bool, w*h)
	for i, v := range gray {
		f := float64(v)
		mask[i] = f > hi || f < lo
	}
	mask = openClose(mask, w, h)

	comps := labelComponents(mask, w, h)
	res.Components = len(comps)
	filter := p.Filter()
	for _, comp := range comps {
		// Cheap box checks first; most speckle fails on size.
		if reason := filter.Check(comp.box, float64(len(comp.pixels)), 0); reason == "width" || reason == "height" {
			continue
		}
		comp.measure(gray, w)
		if reason := filter.Check(comp.box, comp.filledArea, h); reason != "" {
			tracef("reject %v: %s", comp.box, reason)
			continue
		}
		if comp.compactness < p.MinCompactness {
			tracef("reject %v: compactness %.3f", comp.box, comp.compactness)
			continue
		}
		if comp.solidity < p.MinSolidity {
			tracef("reject %v: solidity %.3f", comp.box, comp.solidity)
			continue
		}
		delta := math.Abs(comp.meanValue - res.Mean)
		if delta < p.MinIntensityDelta {
			tracef("reject %v: intensity delta %.1f", comp.box, delta)
			continue
		}
		res.Candidates = append(res.Candidates, Candidate{
			Box:            comp.box,
			Area:           comp.filledArea,
			Solidity:       comp.solidity,
			Compactness:    comp.compactness,
			IntensityDelta: delta,
			Confidence:     math.Min(1, delta/100),
			ClassID:        -1,
		})
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Confidence > res.Candidates[j].Confidence
	})
	return res
}

// packed returns the canvas pixels with stride equal to width.
func packed(img *image.Gray) []uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w && img.Rect.Min == (image.Point{}) {
		return img.Pix[:w*h]
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):])
	}
	return out
}
