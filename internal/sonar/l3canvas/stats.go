package l3canvas

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Stats returns the population mean and standard deviation of img.
func Stats(img *image.Gray) (mean, std float64) {
	b := img.Bounds()
	if b.Empty() {
		return 0, 0
	}
	vals := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, p := range row {
			vals = append(vals, float64(p))
		}
	}
	return stat.PopMeanStdDev(vals, nil)
}

// Histogram counts pixels per intensity level.
func Histogram(img *image.Gray) [256]int {
	var h [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, p := range row {
			h[p]++
		}
	}
	return h
}
