package outline

import (
	"fmt"

	"tracefinity/pkg/geometry"
)

const (
	// simplifyMinVertices is the size at or below which a hole-free outline
	// is left alone.
	simplifyMinVertices = 8
	// minExteriorVertices is the smallest exterior accepted from
	// simplification.
	minExteriorVertices = 4
	maxRefinePasses     = 64
)

// Simplify reduces vertex count with a Douglas-Peucker pass that keeps the
// rings simple and non-crossing. A tolerance of zero only drops repeated
// vertices. Invalid outlines are repaired first; the input comes back
// unchanged if repair splits it, the result would be degenerate, or a hole
// would no longer lie inside the exterior.
func Simplify(p Polygon, tolerance float64) Result {
	if len(p.Points) <= simplifyMinVertices && len(p.Holes) == 0 {
		return unchanged(p, "outline is already small")
	}
	fixed, ok := repaired(p)
	if !ok {
		return unchanged(p, "outline splits into several pieces")
	}

	rings := make([][]geometry.Point2D, 0, 1+len(fixed.Holes))
	for _, r := range fixed.Rings() {
		rings = append(rings, dedupe(r))
	}
	out, ok := simplifyRings(rings, tolerance)
	if !ok {
		return unchanged(p, "simplification could not keep rings apart")
	}
	if len(out[0]) < minExteriorVertices {
		return unchanged(p, fmt.Sprintf("exterior would keep %d vertices", len(out[0])))
	}

	var holes [][]geometry.Point2D
	if len(out) > 1 {
		holes = out[1:]
	}
	result := fixed.withRings(out[0], holes)
	if !result.IsValid() {
		return unchanged(p, "a hole would leave the simplified exterior")
	}
	return applied(result)
}

// segment is an edge between two kept vertices of one ring. Indices refer to
// the original ring; end may wrap past zero.
type segment struct {
	ring, start, end int
}

// simplifyRings runs Douglas-Peucker on every ring, then repeatedly restores
// the farthest dropped vertex under any simplified edge that crosses another
// edge, until no edges cross.
func simplifyRings(rings [][]geometry.Point2D, tolerance float64) ([][]geometry.Point2D, bool) {
	keep := make([][]bool, len(rings))
	for i, r := range rings {
		keep[i] = douglasPeuckerRing(r, tolerance)
	}

	for pass := 0; pass < maxRefinePasses; pass++ {
		segs := keptSegments(rings, keep)
		bad := crossingSegments(rings, segs)
		if len(bad) == 0 {
			return collectKept(rings, keep), true
		}
		progress := false
		for _, s := range bad {
			if idx, ok := farthestBetween(rings[s.ring], s.start, s.end); ok {
				keep[s.ring][idx] = true
				progress = true
			}
		}
		if !progress {
			return nil, false
		}
	}
	return nil, false
}

// douglasPeuckerRing marks the vertices of a closed ring to keep. The ring
// is split at vertex 0 and the vertex farthest from it.
func douglasPeuckerRing(ring []geometry.Point2D, tolerance float64) []bool {
	n := len(ring)
	keep := make([]bool, n)
	if n <= 3 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	far, best := 0, -1.0
	for i := 1; i < n; i++ {
		if d := ring[0].Distance(ring[i]); d > best {
			far, best = i, d
		}
	}
	keep[0], keep[far] = true, true

	var dp func(lo, hi int)
	dp = func(lo, hi int) {
		if hi-lo < 2 {
			return
		}
		a, b := ring[lo%n], ring[hi%n]
		idx, maxD := -1, tolerance
		for i := lo + 1; i < hi; i++ {
			if d := geometry.SegmentDistance(ring[i%n], a, b); d > maxD {
				idx, maxD = i, d
			}
		}
		if idx < 0 {
			return
		}
		keep[idx%n] = true
		dp(lo, idx)
		dp(idx, hi)
	}
	dp(0, far)
	dp(far, n)
	keepTriangle(ring, keep, far)
	return keep
}

// keepTriangle restores the vertex farthest from the 0-far chord when the
// pass kept only those two, so every ring stays a polygon.
func keepTriangle(ring []geometry.Point2D, keep []bool, far int) {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept >= 3 {
		return
	}
	idx, best := -1, -1.0
	for i, pt := range ring {
		if keep[i] {
			continue
		}
		if d := geometry.SegmentDistance(pt, ring[0], ring[far]); d > best {
			idx, best = i, d
		}
	}
	if idx >= 0 {
		keep[idx] = true
	}
}

func keptSegments(rings [][]geometry.Point2D, keep [][]bool) []segment {
	var segs []segment
	for r := range rings {
		var idx []int
		for i, k := range keep[r] {
			if k {
				idx = append(idx, i)
			}
		}
		for i, start := range idx {
			end := idx[(i+1)%len(idx)]
			if end <= start {
				end += len(rings[r])
			}
			segs = append(segs, segment{ring: r, start: start, end: end})
		}
	}
	return segs
}

// crossingSegments returns every segment that touches a non-adjacent
// segment of any ring.
func crossingSegments(rings [][]geometry.Point2D, segs []segment) []segment {
	pts := func(s segment) (geometry.Point2D, geometry.Point2D) {
		r := rings[s.ring]
		return r[s.start%len(r)], r[s.end%len(r)]
	}
	marked := make([]bool, len(segs))
	for i := range segs {
		a1, a2 := pts(segs[i])
		for j := i + 1; j < len(segs); j++ {
			if adjacent(segs[i], segs[j], len(rings[segs[i].ring])) {
				continue
			}
			b1, b2 := pts(segs[j])
			if geometry.SegmentsIntersect(a1, a2, b1, b2) {
				marked[i], marked[j] = true, true
			}
		}
	}
	var bad []segment
	for i, m := range marked {
		if m {
			bad = append(bad, segs[i])
		}
	}
	return bad
}

func adjacent(a, b segment, n int) bool {
	if a.ring != b.ring {
		return false
	}
	return a.end%n == b.start%n || b.end%n == a.start%n
}

// farthestBetween returns the dropped vertex strictly between start and end
// farthest from the chord joining them.
func farthestBetween(ring []geometry.Point2D, start, end int) (int, bool) {
	n := len(ring)
	a, b := ring[start%n], ring[end%n]
	idx, best := -1, -1.0
	for i := start + 1; i < end; i++ {
		if d := geometry.SegmentDistance(ring[i%n], a, b); d > best {
			idx, best = i%n, d
		}
	}
	return idx, idx >= 0
}

func collectKept(rings [][]geometry.Point2D, keep [][]bool) [][]geometry.Point2D {
	out := make([][]geometry.Point2D, len(rings))
	for r, ring := range rings {
		for i, pt := range ring {
			if keep[r][i] {
				out[r] = append(out[r], pt)
			}
		}
	}
	return out
}
