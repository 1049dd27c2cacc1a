package outline

import (
	"math"

	"tracefinity/pkg/geometry"
)

// ScaleToMM multiplies every coordinate and finger-hole dimension by
// factor. Rotations are unchanged.
func ScaleToMM(polygons []Polygon, factor float64) []Polygon {
	out := make([]Polygon, len(polygons))
	for i, p := range polygons {
		s := p.Clone()
		s.Points = scaleRing(p.Points, factor)
		for j, h := range p.Holes {
			s.Holes[j] = scaleRing(h, factor)
		}
		for j, fh := range p.FingerHoles {
			fh.X *= factor
			fh.Y *= factor
			fh.Radius *= factor
			fh.Width *= factor
			fh.Height *= factor
			s.FingerHoles[j] = fh
		}
		out[i] = s
	}
	return out
}

func scaleRing(ring []geometry.Point2D, factor float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(ring))
	for i, pt := range ring {
		out[i] = pt.Scale(factor)
	}
	return out
}

// ComputeBoundingBox returns the width and height enclosing the exterior
// rings of all polygons, or zero for an empty set.
func ComputeBoundingBox(polygons []Polygon) geometry.Size {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polygons {
		for _, pt := range p.Points {
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return geometry.Size{}
	}
	return geometry.Size{Width: maxX - minX, Height: maxY - minY}
}
