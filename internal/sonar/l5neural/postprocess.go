package l5neural

import (
	"image"
	"math"

	"github.com/banshee-data/sonar.report/internal/sonar/geom"
	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
)

// prediction is one decoded row of the tensor in model-input pixels.
type prediction struct {
	cx, cy, w, h float64
	score        float64
	class        int
}

// Postprocess decodes a detector tensor into candidates in the pixel space
// of the origW x origH image that was letterboxed into the model input.
// Malformed or empty tensors give an empty result.
func Postprocess(t Tensor, layout Layout, origW, origH int, lb geom.LetterboxParams, cfg Config) []l4detect.Candidate {
	if t.Empty() || origW <= 0 || origH <= 0 {
		return nil
	}
	n, classes, err := layout.predictions(t)
	if err != nil {
		diagf("dropping tensor: %v", err)
		return nil
	}
	if layout == LayoutBoxFirst && cfg.NumClasses > 0 && classes != cfg.NumClasses {
		diagf("dropping tensor: %d score rows, configured for %d classes", classes, cfg.NumClasses)
		return nil
	}

	bounds := image.Rect(0, 0, origW, origH)
	var cands []l4detect.Candidate
	var rejected int
	for i := 0; i < n; i++ {
		p := decode(t.Data, layout, n, classes, i)
		if math.IsNaN(p.score) || p.score < cfg.ConfThreshold {
			continue
		}
		box, ok := unletterbox(p, lb, bounds)
		if !ok {
			rejected++
			continue
		}
		area := float64(box.Dx() * box.Dy())
		if reason := cfg.Filter.Check(box, area, origH); reason != "" {
			tracef("reject %v score=%.3f: %s", box, p.score, reason)
			rejected++
			continue
		}
		cands = append(cands, l4detect.Candidate{
			Box:        box,
			Area:       area,
			Confidence: math.Min(1, p.score),
			ClassID:    p.class,
		})
	}
	kept := NMS(cands, cfg.IoUThreshold, cfg.ClassAware, cfg.TopN)
	tracef("%d predictions: %d above threshold, %d rejected, %d kept",
		n, len(cands)+rejected, rejected, len(kept))
	return kept
}

func decode(data []float32, layout Layout, n, classes, i int) prediction {
	if layout == LayoutInterleaved {
		row := data[i*6 : i*6+6]
		return prediction{
			cx: float64(row[0]), cy: float64(row[1]),
			w: float64(row[2]), h: float64(row[3]),
			score: sigmoid(float64(row[4])),
			class: int(row[5]),
		}
	}
	p := prediction{
		cx: float64(data[i]), cy: float64(data[n+i]),
		w: float64(data[2*n+i]), h: float64(data[3*n+i]),
		score: math.Inf(-1),
	}
	for c := 0; c < classes; c++ {
		if s := float64(data[(4+c)*n+i]); s > p.score {
			p.score, p.class = s, c
		}
	}
	return p
}

// unletterbox maps a model-input box to original-image pixels and clamps it
// to bounds. ok is false when nothing of positive size is left.
func unletterbox(p prediction, lb geom.LetterboxParams, bounds image.Rectangle) (image.Rectangle, bool) {
	if !(p.w > 0 && p.h > 0) {
		return image.Rectangle{}, false
	}
	x0, y0 := lb.Invert(p.cx-p.w/2, p.cy-p.h/2)
	x1, y1 := lb.Invert(p.cx+p.w/2, p.cy+p.h/2)
	box := image.Rect(
		int(math.Round(clamp(x0, 0, float64(bounds.Max.X)))),
		int(math.Round(clamp(y0, 0, float64(bounds.Max.Y)))),
		int(math.Round(clamp(x1, 0, float64(bounds.Max.X)))),
		int(math.Round(clamp(y1, 0, float64(bounds.Max.Y)))),
	)
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return image.Rectangle{}, false
	}
	return box, true
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
