package rectify

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type Point struct {
	X float64
	Y float64
}

// Quad holds board corners in the order top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// ParseQuad reads "x1,y1,x2,y2,x3,y3,x4,y4" in any corner order.
func ParseQuad(s string) (Quad, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	if len(fields) != 8 {
		return Quad{}, fmt.Errorf("corners: want 8 numbers, got %d", len(fields))
	}
	var vals [8]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Quad{}, fmt.Errorf("corners: %q: %w", f, err)
		}
		vals[i] = v
	}
	q := Quad{
		{X: vals[0], Y: vals[1]},
		{X: vals[2], Y: vals[3]},
		{X: vals[4], Y: vals[5]},
		{X: vals[6], Y: vals[7]},
	}
	return q.Ordered(), nil
}

func (q Quad) String() string {
	parts := make([]string, 0, 8)
	for _, p := range q {
		parts = append(parts, strconv.FormatFloat(p.X, 'f', -1, 64), strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// Ordered returns the corners as TL, TR, BR, BL.
func (q Quad) Ordered() Quad {
	sorted := q
	pts := sorted[:]
	sort.Slice(pts, func(i, j int) bool {
		return pts[i].Y < pts[j].Y
	})
	top := []Point{pts[0], pts[1]}
	bottom := []Point{pts[2], pts[3]}
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return Quad{top[0], top[1], bottom[1], bottom[0]}
}

// Area is the shoelace area of the polygon.
func (q Quad) Area() float64 {
	var sum float64
	for i := range q {
		a, b := q[i], q[(i+1)%4]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// Convex reports whether the corners form a convex, non-degenerate polygon.
func (q Quad) Convex() bool {
	sign := 0
	for i := range q {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if cross == 0 {
			return false
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}

// AspectRatio compares the mean horizontal edge length with the mean vertical one.
func (q Quad) AspectRatio() float64 {
	top := dist(q[0], q[1])
	bottom := dist(q[3], q[2])
	left := dist(q[0], q[3])
	right := dist(q[1], q[2])
	v := (left + right) / 2
	if v == 0 {
		return math.Inf(1)
	}
	return ((top + bottom) / 2) / v
}

func (q Quad) scale(sx, sy float64) Quad {
	for i := range q {
		q[i].X *= sx
		q[i].Y *= sy
	}
	return q
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
