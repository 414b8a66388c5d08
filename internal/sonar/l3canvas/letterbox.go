package l3canvas

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/sonar.report/internal/sonar/geom"
)

const (
	DEFAULT_LETTERBOX_SIZE = 640
	DEFAULT_LETTERBOX_PAD  = 114
)

// Letterbox fits img into a size x size square without distortion and fills
// the margins with grey level pad. The returned params invert the fit.
func Letterbox(img image.Image, size int, pad uint8) (*image.NRGBA, geom.LetterboxParams) {
	b := img.Bounds()
	lb := geom.NewLetterboxParams(b.Dx(), b.Dy(), size)
	dst := imaging.New(size, size, color.NRGBA{R: pad, G: pad, B: pad, A: 255})
	if lb.ContentW <= 0 || lb.ContentH <= 0 {
		return dst, lb
	}
	content := imaging.Resize(img, lb.ContentW, lb.ContentH, imaging.Linear)
	return imaging.Paste(dst, content, image.Pt(lb.PadX, lb.PadY)), lb
}
