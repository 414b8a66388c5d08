package l4detect

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// MORPH_RADIUS is the structuring element radius; 1 gives a 3x3 window.
const MORPH_RADIUS = 1

// MORPH_TILE is the side of the square tiles the mask is filtered in.
const MORPH_TILE = 64

// morphHalo is how far the four passes of openClose can carry a pixel. A tile
// filtered with this much context around it matches a whole-canvas run.
const morphHalo = 4 * MORPH_RADIUS

// maskImage renders the r part of mask as black/white into buf, so the bild
// filters can run on it. buf is reused between tiles.
func maskImage(buf []uint8, mask []bool, w int, r image.Rectangle) *image.Gray {
	dx, dy := r.Dx(), r.Dy()
	img := &image.Gray{Pix: buf[:dx*dy], Stride: dx, Rect: image.Rect(0, 0, dx, dy)}
	for y := 0; y < dy; y++ {
		row := mask[(r.Min.Y+y)*w+r.Min.X:]
		for x := 0; x < dx; x++ {
			if row[x] {
				img.Pix[y*dx+x] = 255
			} else {
				img.Pix[y*dx+x] = 0
			}
		}
	}
	return img
}

// hasCore reports whether some pixel in r would survive erosion, meaning its
// window, clipped to the w x h canvas, is fully set. Opening leaves nothing
// where no pixel survives erosion, and closing cannot create pixels from an
// empty neighbourhood.
func hasCore(mask []bool, w, h int, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask[y*w+x] && fullWindow(mask, w, h, x, y) {
				return true
			}
		}
	}
	return false
}

func fullWindow(mask []bool, w, h, x, y int) bool {
	for wy := max(y-MORPH_RADIUS, 0); wy <= min(y+MORPH_RADIUS, h-1); wy++ {
		for wx := max(x-MORPH_RADIUS, 0); wx <= min(x+MORPH_RADIUS, w-1); wx++ {
			if !mask[wy*w+wx] {
				return false
			}
		}
	}
	return true
}

// pasteTile thresholds the tile part of a filter result, which covers reach,
// back into out.
func pasteTile(out []bool, w int, img *image.RGBA, reach, tile image.Rectangle) {
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		row := img.Pix[(y-reach.Min.Y)*img.Stride:]
		for x := tile.Min.X; x < tile.Max.X; x++ {
			out[y*w+x] = row[4*(x-reach.Min.X)] >= 128
		}
	}
}

// openClose removes speckle (open) and then bridges small gaps (close).
// Tiles with no erosion survivor within morphHalo stay empty without
// filtering, so scattered speckle costs a scan rather than a bild pass.
func openClose(mask []bool, w, h int) []bool {
	out := make([]bool, w*h)
	canvas := image.Rect(0, 0, w, h)
	side := MORPH_TILE + 2*morphHalo
	buf := make([]uint8, side*side)
	for ty := 0; ty < h; ty += MORPH_TILE {
		for tx := 0; tx < w; tx += MORPH_TILE {
			tile := image.Rect(tx, ty, tx+MORPH_TILE, ty+MORPH_TILE).Intersect(canvas)
			reach := tile.Inset(-morphHalo).Intersect(canvas)
			if !hasCore(mask, w, h, reach) {
				continue
			}
			img := maskImage(buf, mask, w, reach)
			opened := effect.Dilate(effect.Erode(img, MORPH_RADIUS), MORPH_RADIUS)
			closed := effect.Erode(effect.Dilate(opened, MORPH_RADIUS), MORPH_RADIUS)
			pasteTile(out, w, closed, reach, tile)
		}
	}
	return out
}
