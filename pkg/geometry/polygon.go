package geometry

import (
	"math"
)

// SignedArea returns the shoelace area of a closed ring. Positive when the
// ring is counter-clockwise in a y-up frame.
func SignedArea(ring []Point2D) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}

// Area returns the unsigned area of a closed ring.
func Area(ring []Point2D) float64 {
	return math.Abs(SignedArea(ring))
}

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// SegmentsIntersect reports whether segment a1-a2 touches segment b1-b2,
// including collinear overlap and shared endpoints.
func SegmentsIntersect(a1, a2, b1, b2 Point2D) bool {
	d1 := crossProduct(b1, b2, a1)
	d2 := crossProduct(b1, b2, a2)
	d3 := crossProduct(a1, a2, b1)
	d4 := crossProduct(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(b1, b2, a1):
		return true
	case d2 == 0 && onSegment(b1, b2, a2):
		return true
	case d3 == 0 && onSegment(a1, a2, b1):
		return true
	case d4 == 0 && onSegment(a1, a2, b2):
		return true
	}
	return false
}

// IsSimpleRing reports whether a closed ring has at least three vertices,
// non-zero area and no two non-adjacent edges touching.
func IsSimpleRing(ring []Point2D) bool {
	n := len(ring)
	if n < 3 || Area(ring) == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		if a1 == a2 {
			return false
		}
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if SegmentsIntersect(a1, a2, ring[j], ring[(j+1)%n]) {
				return false
			}
		}
	}
	return true
}

// RingsTouch reports whether any edge of ring a touches any edge of ring b.
func RingsTouch(a, b []Point2D) bool {
	for i := range a {
		a1, a2 := a[i], a[(i+1)%len(a)]
		for j := range b {
			if SegmentsIntersect(a1, a2, b[j], b[(j+1)%len(b)]) {
				return true
			}
		}
	}
	return false
}

// SegmentDistance returns the distance from p to the segment a-b.
func SegmentDistance(p, a, b Point2D) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Distance(a)
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(a.Lerp(b, t))
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// onSegment reports whether collinear point p lies within the box of a-b.
func onSegment(a, b, p Point2D) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
