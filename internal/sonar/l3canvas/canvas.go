package l3canvas

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/sonar.report/internal/sonar/geom"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
)

const (
	DEFAULT_CANVAS_SIZE = 640
	DEFAULT_BLUR_SIGMA  = 1.0
)

// Canvas is a range-outward detection image plus the transform that
// produced it from the ping grid.
type Canvas struct {
	Img       *image.Gray
	Transform geom.Transform
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.Img.Rect.Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.Img.Rect.Dy() }

// Mapper returns a mapper for this canvas and rec's bearings and range.
func (c *Canvas) Mapper(rec *l2pings.PingRecord) *geom.Mapper {
	return geom.NewMapper(c.Transform, rec.Bearings, rec.MaxRange())
}

// Grid wraps the beam-major intensity grid of rec as an image: one row per
// beam, one column per range sample. The pixels alias rec.Intensity.
func Grid(rec *l2pings.PingRecord) *image.Gray {
	return &image.Gray{
		Pix:    rec.Intensity,
		Stride: rec.Ranges,
		Rect:   image.Rect(0, 0, rec.Ranges, rec.Beams),
	}
}

// Build reorients rec so beams run left to right and range grows upward,
// stretches it to size x size and blurs it with blurSigma (0 disables).
func Build(rec *l2pings.PingRecord, size int, blurSigma float64) (*Canvas, error) {
	if rec == nil || rec.Beams <= 0 || rec.Ranges <= 0 {
		return nil, fmt.Errorf("empty ping grid")
	}
	if len(rec.Intensity) < rec.Beams*rec.Ranges {
		return nil, fmt.Errorf("grid %dx%d has %d samples", rec.Beams, rec.Ranges, len(rec.Intensity))
	}
	if size <= 0 {
		return nil, fmt.Errorf("canvas size %d must be positive", size)
	}
	if blurSigma < 0 {
		return nil, fmt.Errorf("blur sigma %v must not be negative", blurSigma)
	}

	img := imaging.Transpose(Grid(rec))
	img = imaging.FlipV(img)
	img = imaging.Resize(img, size, size, imaging.Linear)
	if blurSigma > 0 {
		img = imaging.Blur(img, blurSigma)
	}
	return &Canvas{
		Img:       toGray(img),
		Transform: geom.CanvasTransform(rec.Ranges, rec.Beams, size),
	}, nil
}

// toGray keeps the red channel; every canvas source is grey already.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[di+x] = src.Pix[si+4*x]
		}
	}
	return dst
}
