// Package outline holds traced cavity outlines and the operations that turn
// pixel tracings into clean millimetre polygons: scaling, clearance,
// simplification and smoothing.
//
// Every operation is total. It returns a Result whose Polygon is either the
// transformed shape or the unmodified input; callers must use the returned
// polygon rather than assume the operation applied.
package outline

import (
	"math"

	"tracefinity/pkg/geometry"
)

// Shape is a finger-hole cutter shape.
type Shape string

const (
	ShapeCircle    Shape = "circle"
	ShapeSquare    Shape = "square"
	ShapeRectangle Shape = "rectangle"
)

// FingerHole is a lift-out recess at the edge of a cavity. Rotation is in
// degrees.
type FingerHole struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Shape    Shape   `json:"shape,omitempty"`
	Rotation float64 `json:"rotation"`
}

// Kind returns the cutter shape; unknown or empty shapes are circles.
func (h FingerHole) Kind() Shape {
	switch h.Shape {
	case ShapeSquare, ShapeRectangle:
		return h.Shape
	}
	return ShapeCircle
}

// Extent returns the cutter footprint. Squares are 2r on a side; rectangle
// sides fall back to 2r when unset.
func (h FingerHole) Extent() (w, d float64) {
	switch h.Kind() {
	case ShapeSquare:
		return 2 * h.Radius, 2 * h.Radius
	case ShapeRectangle:
		w, d = h.Width, h.Height
		if w <= 0 {
			w = 2 * h.Radius
		}
		if d <= 0 {
			d = 2 * h.Radius
		}
		return w, d
	}
	return 2 * h.Radius, 2 * h.Radius
}

// Polygon is a traced cavity: an exterior ring, optional holes, and finger
// holes. Rings are implicitly closed.
type Polygon struct {
	ID          string               `json:"id"`
	Points      []geometry.Point2D   `json:"points"`
	Holes       [][]geometry.Point2D `json:"interior_rings,omitempty"`
	Label       string               `json:"label"`
	FingerHoles []FingerHole         `json:"finger_holes,omitempty"`
}

// Clone returns a deep copy.
func (p Polygon) Clone() Polygon {
	out := p
	out.Points = geometry.ClonePoints(p.Points)
	if p.Holes != nil {
		out.Holes = make([][]geometry.Point2D, len(p.Holes))
		for i, h := range p.Holes {
			out.Holes[i] = geometry.ClonePoints(h)
		}
	}
	if p.FingerHoles != nil {
		out.FingerHoles = append([]FingerHole(nil), p.FingerHoles...)
	}
	return out
}

// Area returns the exterior area minus the hole areas.
func (p Polygon) Area() float64 {
	a := geometry.Area(p.Points)
	for _, h := range p.Holes {
		a -= geometry.Area(h)
	}
	return a
}

// Rings returns the exterior followed by the holes.
func (p Polygon) Rings() [][]geometry.Point2D {
	rings := make([][]geometry.Point2D, 0, 1+len(p.Holes))
	rings = append(rings, p.Points)
	return append(rings, p.Holes...)
}

// withRings returns a copy of p with new geometry and the same metadata.
func (p Polygon) withRings(exterior []geometry.Point2D, holes [][]geometry.Point2D) Polygon {
	out := p.Clone()
	out.Points = exterior
	out.Holes = holes
	return out
}

// IsValid reports whether the exterior and every hole are simple rings,
// each hole lies inside the exterior, and no two rings touch.
func (p Polygon) IsValid() bool {
	if !geometry.IsSimpleRing(p.Points) {
		return false
	}
	for i, h := range p.Holes {
		if !geometry.IsSimpleRing(h) || !geometry.PointInPolygon(h[0], p.Points) {
			return false
		}
		if geometry.RingsTouch(p.Points, h) {
			return false
		}
		for _, other := range p.Holes[i+1:] {
			if geometry.RingsTouch(h, other) {
				return false
			}
		}
	}
	return true
}

// Result is the outcome of a geometry operation. When Applied is false,
// Polygon is the unmodified input and Reason says why.
type Result struct {
	Polygon Polygon
	Applied bool
	Reason  string
}

func applied(p Polygon) Result {
	return Result{Polygon: p, Applied: true}
}

func unchanged(p Polygon, reason string) Result {
	return Result{Polygon: p, Reason: reason}
}

// dedupe drops consecutive repeated vertices, including a closing vertex
// equal to the first.
func dedupe(ring []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(ring))
	for _, pt := range ring {
		if len(out) > 0 && samePoint(out[len(out)-1], pt) {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && samePoint(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func samePoint(a, b geometry.Point2D) bool {
	return math.Abs(a.X-b.X) < 1e-12 && math.Abs(a.Y-b.Y) < 1e-12
}
