package l4detect

import (
	"image"
	"math"
	"sort"
)

// component is one 8-connected region of set mask pixels.
type component struct {
	pixels []image.Point
	box    image.Rectangle

	filledArea  float64 // pixels plus enclosed holes
	hullArea    float64
	perimeter   float64 // crack length of the filled outline
	meanValue   float64
	solidity    float64
	compactness float64
}

var neighbours8 = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

var neighbours4 = [4]image.Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// labelComponents finds the 8-connected regions of mask (non-zero pixels),
// in scan order of their first pixel.
func labelComponents(mask []bool, w, h int) []*component {
	seen := make([]bool, len(mask))
	var out []*component
	var stack []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !mask[i] || seen[i] {
				continue
			}
			c := &component{box: image.Rect(x, y, x+1, y+1)}
			seen[i] = true
			stack = append(stack[:0], image.Pt(x, y))
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				c.pixels = append(c.pixels, p)
				c.box = c.box.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, d := range neighbours8 {
					q := p.Add(d)
					if q.X < 0 || q.Y < 0 || q.X >= w || q.Y >= h {
						continue
					}
					j := q.Y*w + q.X
					if mask[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, q)
					}
				}
			}
			out = append(out, c)
		}
	}
	return out
}

// measure fills in the shape descriptors of c. gray holds the canvas
// pixels (row stride w) used for the mean intensity.
func (c *component) measure(gray []uint8, w int) {
	// Local grid with a one pixel border so the outside is connected.
	bw, bh := c.box.Dx()+2, c.box.Dy()+2
	ox, oy := c.box.Min.X-1, c.box.Min.Y-1
	filled := make([]bool, bw*bh)
	var sum float64
	for _, p := range c.pixels {
		filled[(p.Y-oy)*bw+(p.X-ox)] = true
		sum += float64(gray[p.Y*w+p.X])
	}
	c.meanValue = sum / float64(len(c.pixels))

	// Background reachable from the border (4-connected) is outside; all
	// else is the component or one of its holes.
	outside := make([]bool, bw*bh)
	stack := []image.Point{{0, 0}}
	outside[0] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range neighbours4 {
			q := p.Add(d)
			if q.X < 0 || q.Y < 0 || q.X >= bw || q.Y >= bh {
				continue
			}
			j := q.Y*bw + q.X
			if !filled[j] && !outside[j] {
				outside[j] = true
				stack = append(stack, q)
			}
		}
	}
	var area, perim int
	for y := 0; y < bh; y++ {
		for x := 0; x < bw; x++ {
			if outside[y*bw+x] {
				continue
			}
			area++
			for _, d := range neighbours4 {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= bw || ny >= bh || outside[ny*bw+nx] {
					perim++
				}
			}
		}
	}
	c.filledArea = float64(area)
	c.perimeter = float64(perim)
	c.hullArea = polygonArea(convexHull(rowCorners(c.pixels)))

	if c.hullArea > 0 {
		c.solidity = math.Min(1, c.filledArea/c.hullArea)
	}
	if c.perimeter > 0 {
		c.compactness = 4 * math.Pi * c.filledArea / (c.perimeter * c.perimeter)
	}
}

// rowCorners returns the outer pixel corners of each row's leftmost and
// rightmost pixel. Their hull equals the hull of every pixel square.
func rowCorners(pixels []image.Point) []image.Point {
	type span struct{ lo, hi int }
	rows := make(map[int]span)
	for _, p := range pixels {
		s, ok := rows[p.Y]
		if !ok {
			rows[p.Y] = span{p.X, p.X}
			continue
		}
		if p.X < s.lo {
			s.lo = p.X
		}
		if p.X > s.hi {
			s.hi = p.X
		}
		rows[p.Y] = s
	}
	pts := make([]image.Point, 0, 4*len(rows))
	for y, s := range rows {
		pts = append(pts,
			image.Pt(s.lo, y), image.Pt(s.lo, y+1),
			image.Pt(s.hi+1, y), image.Pt(s.hi+1, y+1))
	}
	return pts
}

// convexHull returns the hull of pts in counter-clockwise order using
// Andrew's monotone chain. Collinear points are dropped.
func convexHull(pts []image.Point) []image.Point {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	hull := make([]image.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// polygonArea is the shoelace area of a simple polygon.
func polygonArea(poly []image.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	var twice int
	for i := range poly {
		j := (i + 1) % len(poly)
		twice += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(float64(twice)) / 2
}
