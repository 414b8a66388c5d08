package geom

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearBearings(beams int, spanDeg float64) []int16 {
	out := make([]int16, beams)
	for i := range out {
		deg := -spanDeg/2 + spanDeg*float64(i)/float64(beams-1)
		out[i] = int16(math.Round(deg * 100))
	}
	return out
}

func TestTransform_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
	}{
		{"identity", NewTransform(7, 5)},
		{"transpose", NewTransform(7, 5, Transpose())},
		{"flips", NewTransform(7, 5, FlipX(), FlipY())},
		{"rotations", NewTransform(7, 5, Rotate90(), Rotate180(), Rotate270(), Rotate90())},
		{"canvas", CanvasTransform(500, 256, 640)},
		{"canvas+letterbox", NewTransform(500, 256, Transpose(), FlipY(), Resize(640, 480), Letterbox(320))},
	}
	points := [][2]float64{{0, 0}, {3, 2}, {6, 4}, {2.25, 0.75}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.tr.Validate())
			for _, p := range points {
				cx, cy := tt.tr.Apply(p[0], p[1])
				x, y := tt.tr.Invert(cx, cy)
				assert.InDelta(t, p[0], x, 1e-9, "x for %v", p)
				assert.InDelta(t, p[1], y, 1e-9, "y for %v", p)
			}
		})
	}
}

func TestTransform_Size(t *testing.T) {
	w, h := NewTransform(500, 256, Transpose()).Size()
	assert.Equal(t, [2]int{256, 500}, [2]int{w, h})

	w, h = CanvasTransform(500, 256, 640).Size()
	assert.Equal(t, [2]int{640, 640}, [2]int{w, h})

	w, h = NewTransform(500, 256, Rotate90(), Letterbox(320)).Size()
	assert.Equal(t, [2]int{320, 320}, [2]int{w, h})

	assert.Error(t, NewTransform(0, 3).Validate())
	assert.Error(t, NewTransform(3, 3, Resize(0, 4)).Validate())
	assert.Equal(t, "500x256[transpose,flip_y,resize(640x640)]", CanvasTransform(500, 256, 640).String())
}

// The pixel-exact ops must agree with the image operations that build
// canvases, or boxes land on the wrong beam.
func TestTransform_MatchesImaging(t *testing.T) {
	const w, h = 6, 4
	src := image.NewGray(image.Rect(0, 0, w, h))
	px, py := 4, 1
	src.SetGray(px, py, color.Gray{Y: 255})

	tests := []struct {
		op  Op
		img image.Image
	}{
		{Transpose(), imaging.Transpose(src)},
		{FlipX(), imaging.FlipH(src)},
		{FlipY(), imaging.FlipV(src)},
		{Rotate90(), imaging.Rotate90(src)},
		{Rotate180(), imaging.Rotate180(src)},
		{Rotate270(), imaging.Rotate270(src)},
	}
	for _, tt := range tests {
		t.Run(tt.op.Kind.String(), func(t *testing.T) {
			tr := NewTransform(w, h, tt.op)
			tw, th := tr.Size()
			require.Equal(t, image.Rect(0, 0, tw, th), tt.img.Bounds())

			gx, gy := tr.Apply(float64(px), float64(py))
			r, _, _, _ := tt.img.At(int(gx), int(gy)).RGBA()
			assert.Equal(t, uint32(0xffff), r, "bright pixel expected at (%v,%v)", gx, gy)
		})
	}
}

func TestCanvasTransform_HeadAtBottom(t *testing.T) {
	tr := NewTransform(10, 4, Transpose(), FlipY())
	x, y := tr.Apply(0, 0)
	assert.Equal(t, [2]float64{0, 9}, [2]float64{x, y}, "range 0 of beam 0 is bottom-left")
	x, y = tr.Apply(9, 3)
	assert.Equal(t, [2]float64{3, 0}, [2]float64{x, y}, "last sample of last beam is top-right")
}

func TestBearingRadians_Hundredths(t *testing.T) {
	tests := []struct {
		v    int16
		want float64
	}{
		{0, 0},
		{9000, math.Pi / 2},
		{-4500, -math.Pi / 4},
		{6500, 65 * math.Pi / 180},
		{1, math.Pi / 18000},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, BearingRadians(tt.v), 1e-12, "entry %d", tt.v)
	}
}

func TestMapper_RoundTrip(t *testing.T) {
	bearings := linearBearings(256, 130)
	m := NewMapper(CanvasTransform(500, 256, 640), bearings, 10)

	for _, beam := range []int{0, 37, 128, 200, 255} {
		for _, frac := range []float64{0, 0.1, 0.5, 0.93, 1} {
			px, py := m.Forward(beam, frac)
			x, y, err := m.Map(px, py)
			require.NoError(t, err)

			assert.InDelta(t, frac*10, math.Hypot(x, y), 1e-9, "distance beam=%d frac=%v", beam, frac)
			if frac > 0 {
				assert.InDelta(t, BearingRadians(bearings[beam]), math.Atan2(x, y), 1e-9, "bearing beam=%d", beam)
			}
		}
	}
}

func TestMap_CentreOfScenarioCanvas(t *testing.T) {
	bearings := linearBearings(256, 130)
	require.Equal(t, int16(-6500), bearings[0])
	require.Equal(t, int16(6500), bearings[255])

	x, y, err := Map(320, 320, 640, 640, CanvasTransform(500, 256, 640), bearings, 10)
	require.NoError(t, err)
	// Mid-bearing, mid-range: straight ahead at half the maximum range.
	assert.InDelta(t, 0, x, 0.05)
	assert.InDelta(t, 5, y, 0.05)
}

func TestMap_Errors(t *testing.T) {
	tr := CanvasTransform(500, 256, 640)
	bearings := linearBearings(256, 130)

	_, _, err := Map(10, 10, 320, 320, tr, bearings, 10)
	assert.True(t, errors.Is(err, ErrTransformMismatch), "got %v", err)

	_, _, err = Map(10, 10, 640, 640, tr, bearings[:10], 10)
	assert.True(t, errors.Is(err, ErrNoBearings), "got %v", err)

	_, _, err = Map(10, 10, 640, 640, tr, nil, 10)
	assert.True(t, errors.Is(err, ErrNoBearings), "got %v", err)
}

func TestMap_ClampsOutsideCanvas(t *testing.T) {
	m := NewMapper(CanvasTransform(500, 256, 640), linearBearings(256, 130), 10)
	for _, p := range [][2]float64{{-50, -50}, {700, 700}, {-1, 320}, {639.5, -0.5}} {
		x, y, err := m.Map(p[0], p[1])
		require.NoError(t, err)
		assert.False(t, math.IsNaN(x) || math.IsNaN(y))
		assert.LessOrEqual(t, math.Hypot(x, y), 10+1e-9)
	}
	// Far left, top: first beam at full range.
	x, y, err := m.Map(-50, -50)
	require.NoError(t, err)
	assert.InDelta(t, 10*math.Sin(BearingRadians(-6500)), x, 1e-9)
	assert.InDelta(t, 10*math.Cos(BearingRadians(-6500)), y, 1e-9)
}

func TestMap_SingleBeam(t *testing.T) {
	m := NewMapper(CanvasTransform(100, 1, 64), []int16{0}, 4)
	x, y, err := m.Map(10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, x, 1e-12)
	assert.Greater(t, y, 3.9)
}

func TestMapper_MapBox(t *testing.T) {
	m := NewMapper(CanvasTransform(500, 256, 640), linearBearings(256, 130), 10)

	wb, err := m.MapBox(image.Rect(300, 300, 341, 341))
	require.NoError(t, err)
	cx, cy, err := m.Map(320, 320)
	require.NoError(t, err)
	assert.InDelta(t, cx, wb.X, 1e-9)
	assert.InDelta(t, cy, wb.Y, 1e-9)
	assert.Greater(t, wb.Width, 0.0)
	// 40 of 640 rows is 1/16 of the 10 m range.
	assert.InDelta(t, 40.0/640*10, wb.Height, 0.1)

	_, err = m.MapBox(image.Rectangle{})
	assert.Error(t, err)
}

func TestLetterboxParams(t *testing.T) {
	lb := NewLetterboxParams(640, 480, 640)
	assert.Equal(t, 1.0, lb.Scale)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 80, lb.PadY)
	x, y := lb.Invert(100, 180)
	assert.Equal(t, [2]float64{100, 100}, [2]float64{x, y})

	lb = NewLetterboxParams(1280, 640, 640)
	assert.Equal(t, 0.5, lb.Scale)
	assert.Equal(t, 160, lb.PadY)
	x, y = lb.Apply(lb.Invert(400, 300))
	assert.InDelta(t, 400, x, 1e-9)
	assert.InDelta(t, 300, y, 1e-9)

	assert.Equal(t, 0.0, NewLetterboxParams(0, 10, 640).Scale)
}
