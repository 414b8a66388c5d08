package l5neural

import (
	"fmt"
	"strings"
)

// Tensor is a dense row-major float32 tensor as returned by an engine.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Empty reports whether t holds no values.
func (t Tensor) Empty() bool {
	return len(t.Shape) == 0 || len(t.Data) == 0
}

// Len is the element count implied by Shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Layout names the arrangement of predictions in a detector tensor. It is
// always configured per model, never guessed from the shape.
type Layout int

const (
	// LayoutBoxFirst is [1, 4+C, N]: rows cx, cy, w, h then one score row
	// per class. Coordinates are pixels of the square model input.
	LayoutBoxFirst Layout = iota
	// LayoutInterleaved is [N, 6]: cx, cy, w, h, logit, class per row.
	// The logit goes through a sigmoid to become a confidence.
	LayoutInterleaved
)

var layoutNames = map[Layout]string{
	LayoutBoxFirst:    "box_first",
	LayoutInterleaved: "interleaved",
}

func (l Layout) String() string {
	if s, ok := layoutNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// ParseLayout accepts the names used in tuning files.
func ParseLayout(s string) (Layout, error) {
	for l, name := range layoutNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown tensor layout %q (want box_first or interleaved)", s)
}

// predictions returns the prediction count and class count of t under
// layout l, or an error when the shape does not fit.
func (l Layout) predictions(t Tensor) (n, classes int, err error) {
	if t.Len() != len(t.Data) {
		return 0, 0, fmt.Errorf("shape %v implies %d values, have %d", t.Shape, t.Len(), len(t.Data))
	}
	switch l {
	case LayoutBoxFirst:
		if len(t.Shape) != 3 || t.Shape[0] != 1 || t.Shape[1] < 5 {
			return 0, 0, fmt.Errorf("box_first wants [1, 4+C, N], got %v", t.Shape)
		}
		return t.Shape[2], t.Shape[1] - 4, nil
	case LayoutInterleaved:
		shape := t.Shape
		if len(shape) == 3 && shape[0] == 1 {
			shape = shape[1:]
		}
		if len(shape) != 2 || shape[1] != 6 {
			return 0, 0, fmt.Errorf("interleaved wants [N, 6], got %v", t.Shape)
		}
		return shape[0], 0, nil
	}
	return 0, 0, fmt.Errorf("unsupported layout %v", l)
}
