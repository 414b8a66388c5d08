package l4detect

import (
	"image"
	"math/rand"
	"testing"

	"github.com/anthonynsimon/bild/effect"
	"github.com/stretchr/testify/assert"
)

// wholeOpenClose is openClose without tiling.
func wholeOpenClose(mask []bool, w, h int) []bool {
	r := image.Rect(0, 0, w, h)
	img := maskImage(make([]uint8, w*h), mask, w, r)
	opened := effect.Dilate(effect.Erode(img, MORPH_RADIUS), MORPH_RADIUS)
	closed := effect.Erode(effect.Dilate(opened, MORPH_RADIUS), MORPH_RADIUS)
	out := make([]bool, w*h)
	pasteTile(out, w, closed, r, r)
	return out
}

func fillRect(mask []bool, w int, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			mask[y*w+x] = true
		}
	}
}

func TestOpenClose_TilesMatchWholeCanvas(t *testing.T) {
	const w, h = 200, 150
	tests := []struct {
		name string
		fill func(mask []bool, rng *rand.Rand)
	}{
		{"empty", func([]bool, *rand.Rand) {}},
		{"sparse speckle", func(m []bool, rng *rand.Rand) {
			for i := range m {
				m[i] = rng.Float64() < 0.02
			}
		}},
		{"dense noise", func(m []bool, rng *rand.Rand) {
			for i := range m {
				m[i] = rng.Float64() < 0.45
			}
		}},
		{"blob across tile seams", func(m []bool, _ *rand.Rand) {
			fillRect(m, w, image.Rect(58, 55, 75, 70))
			m[62*w+66] = false
		}},
		{"shapes on the canvas edges", func(m []bool, _ *rand.Rand) {
			fillRect(m, w, image.Rect(0, 0, 9, 5))
			fillRect(m, w, image.Rect(190, 140, 200, 150))
			fillRect(m, w, image.Rect(127, 0, 131, 150))
		}},
		{"gap bridged near a seam", func(m []bool, _ *rand.Rand) {
			fillRect(m, w, image.Rect(40, 100, 63, 110))
			fillRect(m, w, image.Rect(64, 100, 90, 110))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := make([]bool, w*h)
			tt.fill(mask, rand.New(rand.NewSource(7)))
			want := wholeOpenClose(mask, w, h)
			got := openClose(mask, w, h)
			var diff []image.Point
			for i := range want {
				if want[i] != got[i] {
					diff = append(diff, image.Pt(i%w, i/w))
				}
			}
			assert.Empty(t, diff, "pixels that differ from the whole-canvas filter")
		})
	}
}

func TestOpenClose_RemovesSpeckleAndBridgesGaps(t *testing.T) {
	const w, h = 40, 40
	mask := make([]bool, w*h)
	mask[3*w+3] = true
	fillRect(mask, w, image.Rect(10, 10, 20, 20))
	mask[15*w+15] = false

	out := openClose(mask, w, h)
	assert.False(t, out[3*w+3], "isolated pixel removed")
	assert.True(t, out[15*w+15], "one pixel hole closed")
	assert.True(t, out[12*w+12])
	assert.False(t, out[25*w+25])
}

func TestHasCore(t *testing.T) {
	const w, h = 10, 8
	mask := make([]bool, w*h)
	fillRect(mask, w, image.Rect(4, 3, 7, 6))
	mask[0*w+9] = true

	tests := []struct {
		name string
		r    image.Rectangle
		want bool
	}{
		{"block centre", image.Rect(5, 4, 6, 5), true},
		{"block edge only", image.Rect(4, 3, 5, 6), false},
		{"lone pixel", image.Rect(8, 0, 10, 2), false},
		{"whole canvas", image.Rect(0, 0, w, h), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasCore(mask, w, h, tt.r))
		})
	}

	// A window clipped by the canvas edge only needs its in-canvas part set.
	corner := make([]bool, w*h)
	fillRect(corner, w, image.Rect(0, 0, 2, 2))
	assert.True(t, hasCore(corner, w, h, image.Rect(0, 0, 1, 1)))
}
