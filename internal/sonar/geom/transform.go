package geom

import (
	"fmt"
	"math"
	"strings"
)

// OpKind names one geometric step in a canvas transform.
type OpKind int

const (
	OpTranspose OpKind = iota
	OpFlipX            // mirror left/right
	OpFlipY            // mirror top/bottom
	OpRotate90         // counter-clockwise, like imaging.Rotate90
	OpRotate180
	OpRotate270 // counter-clockwise, i.e. 90 clockwise
	OpResize
	OpLetterbox
)

func (k OpKind) String() string {
	switch k {
	case OpTranspose:
		return "transpose"
	case OpFlipX:
		return "flip_x"
	case OpFlipY:
		return "flip_y"
	case OpRotate90:
		return "rotate90"
	case OpRotate180:
		return "rotate180"
	case OpRotate270:
		return "rotate270"
	case OpResize:
		return "resize"
	case OpLetterbox:
		return "letterbox"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one step. W and H are the target size for OpResize; W is the square
// size for OpLetterbox.
type Op struct {
	Kind OpKind
	W, H int
}

func Transpose() Op      { return Op{Kind: OpTranspose} }
func FlipX() Op          { return Op{Kind: OpFlipX} }
func FlipY() Op          { return Op{Kind: OpFlipY} }
func Rotate90() Op       { return Op{Kind: OpRotate90} }
func Rotate180() Op      { return Op{Kind: OpRotate180} }
func Rotate270() Op      { return Op{Kind: OpRotate270} }
func Resize(w, h int) Op { return Op{Kind: OpResize, W: w, H: h} }
func Letterbox(size int) Op {
	return Op{Kind: OpLetterbox, W: size, H: size}
}

// outSize returns the image size after op is applied to a w x h image.
func (o Op) outSize(w, h int) (int, int) {
	switch o.Kind {
	case OpTranspose, OpRotate90, OpRotate270:
		return h, w
	case OpResize, OpLetterbox:
		return o.W, o.H
	default:
		return w, h
	}
}

// apply maps a point through op on a w x h image. Points are continuous
// pixel coordinates: pixel (i, j) has its centre at (i, j).
func (o Op) apply(x, y float64, w, h int) (float64, float64) {
	fw, fh := float64(w), float64(h)
	switch o.Kind {
	case OpTranspose:
		return y, x
	case OpFlipX:
		return fw - 1 - x, y
	case OpFlipY:
		return x, fh - 1 - y
	case OpRotate90:
		return y, fw - 1 - x
	case OpRotate180:
		return fw - 1 - x, fh - 1 - y
	case OpRotate270:
		return fh - 1 - y, x
	case OpResize:
		return (x+0.5)*float64(o.W)/fw - 0.5, (y+0.5)*float64(o.H)/fh - 0.5
	case OpLetterbox:
		lb := NewLetterboxParams(w, h, o.W)
		ex, ey := lb.Apply(x+0.5, y+0.5)
		return ex - 0.5, ey - 0.5
	}
	return x, y
}

// invert is the inverse of apply. w and h are the size of the image the op
// was applied to, not its output.
func (o Op) invert(x, y float64, w, h int) (float64, float64) {
	fw, fh := float64(w), float64(h)
	switch o.Kind {
	case OpTranspose:
		return y, x
	case OpFlipX:
		return fw - 1 - x, y
	case OpFlipY:
		return x, fh - 1 - y
	case OpRotate90:
		return fw - 1 - y, x
	case OpRotate180:
		return fw - 1 - x, fh - 1 - y
	case OpRotate270:
		return y, fh - 1 - x
	case OpResize:
		return (x+0.5)*fw/float64(o.W) - 0.5, (y+0.5)*fh/float64(o.H) - 0.5
	case OpLetterbox:
		lb := NewLetterboxParams(w, h, o.W)
		ex, ey := lb.Invert(x+0.5, y+0.5)
		return ex - 0.5, ey - 0.5
	}
	return x, y
}

// Transform declares how a canvas was produced from a source grid. The
// source grid is SrcW range samples wide and SrcH beams tall: row b is beam
// b, which is exactly the beam-major intensity layout.
//
// A detector that builds its own canvas must hand the matching Transform to
// the mapper. Map refuses a canvas whose size disagrees with Size().
type Transform struct {
	SrcW int
	SrcH int
	Ops  []Op
}

// NewTransform returns the transform for a srcW x srcH source and ops.
func NewTransform(srcW, srcH int, ops ...Op) Transform {
	return Transform{SrcW: srcW, SrcH: srcH, Ops: append([]Op(nil), ops...)}
}

// CanvasTransform is the standard detection chain for a ping with R range
// samples and B beams: transpose so beams run across, flip so range grows
// upward with the head at the bottom, then stretch to size x size.
func CanvasTransform(ranges, beams, size int) Transform {
	return NewTransform(ranges, beams, Transpose(), FlipY(), Resize(size, size))
}

// Then returns a copy of t with ops appended.
func (t Transform) Then(ops ...Op) Transform {
	out := Transform{SrcW: t.SrcW, SrcH: t.SrcH}
	out.Ops = make([]Op, 0, len(t.Ops)+len(ops))
	out.Ops = append(out.Ops, t.Ops...)
	out.Ops = append(out.Ops, ops...)
	return out
}

// Size returns the width and height of the canvas t produces.
func (t Transform) Size() (int, int) {
	w, h := t.SrcW, t.SrcH
	for _, op := range t.Ops {
		w, h = op.outSize(w, h)
	}
	return w, h
}

// sizes returns the input size of every op, plus the final output size.
func (t Transform) sizes() [][2]int {
	out := make([][2]int, 0, len(t.Ops)+1)
	w, h := t.SrcW, t.SrcH
	out = append(out, [2]int{w, h})
	for _, op := range t.Ops {
		w, h = op.outSize(w, h)
		out = append(out, [2]int{w, h})
	}
	return out
}

// Apply maps a source point (range sample, beam row) to canvas pixels.
func (t Transform) Apply(x, y float64) (float64, float64) {
	s := t.sizes()
	for i, op := range t.Ops {
		x, y = op.apply(x, y, s[i][0], s[i][1])
	}
	return x, y
}

// Invert maps a canvas pixel back to source coordinates.
func (t Transform) Invert(x, y float64) (float64, float64) {
	s := t.sizes()
	for i := len(t.Ops) - 1; i >= 0; i-- {
		x, y = t.Ops[i].invert(x, y, s[i][0], s[i][1])
	}
	return x, y
}

// Validate rejects non-positive sizes anywhere in the chain.
func (t Transform) Validate() error {
	if t.SrcW <= 0 || t.SrcH <= 0 {
		return fmt.Errorf("source grid %dx%d must be positive", t.SrcW, t.SrcH)
	}
	for _, op := range t.Ops {
		if (op.Kind == OpResize || op.Kind == OpLetterbox) && (op.W <= 0 || op.H <= 0) {
			return fmt.Errorf("%s to %dx%d must be positive", op.Kind, op.W, op.H)
		}
	}
	return nil
}

func (t Transform) String() string {
	parts := make([]string, 0, len(t.Ops))
	for _, op := range t.Ops {
		switch op.Kind {
		case OpResize, OpLetterbox:
			parts = append(parts, fmt.Sprintf("%s(%dx%d)", op.Kind, op.W, op.H))
		default:
			parts = append(parts, op.Kind.String())
		}
	}
	return fmt.Sprintf("%dx%d[%s]", t.SrcW, t.SrcH, strings.Join(parts, ","))
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
