package outline

import (
	"math"

	"tracefinity/pkg/geometry"
)

const (
	smoothMinFraction = 0.002
	smoothMaxFraction = 0.008
	chaikinRounds     = 3
	// smoothCleanup is the tolerance of the pass that drops the collinear
	// runs corner cutting leaves behind.
	smoothCleanup = 0.05
)

// Smooth rounds the exterior ring. level in [0,1] picks a pre-simplify
// tolerance between 0.2% and 0.8% of the bounding-box diagonal; three rounds
// of Chaikin corner cutting follow. Holes pass through unchanged.
func Smooth(p Polygon, level float64) Result {
	if len(p.Points) < 4 {
		return unchanged(p, "outline has fewer than 4 vertices")
	}
	level = math.Max(0, math.Min(1, level))
	diag := geometry.BoundingBox(p.Points).Diagonal()
	tol := diag * (smoothMinFraction + (smoothMaxFraction-smoothMinFraction)*level)

	base := Simplify(p, tol).Polygon
	pts := dedupe(base.Points)
	for i := 0; i < chaikinRounds; i++ {
		pts = chaikin(pts)
	}
	smoothed := base.withRings(pts, base.Holes)
	if !smoothed.IsValid() {
		return unchanged(p, "smoothing produced an invalid outline")
	}
	return applied(Simplify(smoothed, smoothCleanup).Polygon)
}

// chaikin replaces every edge of a closed ring with points at 1/4 and 3/4
// of its length.
func chaikin(ring []geometry.Point2D) []geometry.Point2D {
	n := len(ring)
	out := make([]geometry.Point2D, 0, 2*n)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		out = append(out, a.Lerp(b, 0.25), a.Lerp(b, 0.75))
	}
	return out
}
