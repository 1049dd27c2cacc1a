package bin

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"tracefinity/pkg/geometry"
)

// evenOddRegion is a 2D signed distance field over several closed contours.
// A point is inside when a ray from it crosses the contours an odd number
// of times, so nested contours alternate between solid and hole.
type evenOddRegion struct {
	edges [][2]r2.Vec
	bb    r2.Box
}

func newEvenOddRegion(contours [][]geometry.Point2D) *evenOddRegion {
	r := &evenOddRegion{
		bb: r2.Box{
			Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
			Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
		},
	}
	for _, c := range contours {
		if len(c) < 3 {
			continue
		}
		for i := range c {
			a, b := c[i], c[(i+1)%len(c)]
			r.edges = append(r.edges, [2]r2.Vec{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
			r.bb.Min.X = math.Min(r.bb.Min.X, a.X)
			r.bb.Min.Y = math.Min(r.bb.Min.Y, a.Y)
			r.bb.Max.X = math.Max(r.bb.Max.X, a.X)
			r.bb.Max.Y = math.Max(r.bb.Max.Y, a.Y)
		}
	}
	if len(r.edges) == 0 {
		panic("region has no contour with 3 or more vertices")
	}
	return r
}

func (r *evenOddRegion) Evaluate(p r2.Vec) float64 {
	dd := math.MaxFloat64
	inside := false
	for _, e := range r.edges {
		a, b := e[0], e[1]
		ab := r2.Sub(b, a)
		ap := r2.Sub(p, a)
		t := 0.0
		if l2 := r2.Dot(ab, ab); l2 > 0 {
			t = math.Max(0, math.Min(1, r2.Dot(ap, ab)/l2))
		}
		dd = math.Min(dd, r2.Norm2(r2.Sub(ap, r2.Scale(t, ab))))

		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < ab.X*(p.Y-a.Y)/ab.Y+a.X {
			inside = !inside
		}
	}
	d := math.Sqrt(dd)
	if inside {
		return -d
	}
	return d
}

func (r *evenOddRegion) Bounds() r2.Box { return r.bb }
