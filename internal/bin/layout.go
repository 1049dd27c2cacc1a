package bin

import (
	"tracefinity/internal/outline"
	"tracefinity/pkg/geometry"
)

// toBin maps a point from layout millimetres (origin at the bin's top-left
// corner, y down) to build coordinates (origin at the bin centre, y up).
func toBin(cfg Config, p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: p.X - cfg.Width()/2, Y: -(p.Y - cfg.Depth()/2)}
}

func ringToBin(cfg Config, ring []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(ring))
	for i, p := range ring {
		out[i] = toBin(cfg, p)
	}
	return out
}

// CenterPolygons maps layout polygons into build coordinates. Rings,
// holes and finger-hole centres move; everything else is copied.
func CenterPolygons(cfg Config, polygons []outline.Polygon) []outline.Polygon {
	out := make([]outline.Polygon, len(polygons))
	for i, p := range polygons {
		c := p.Clone()
		c.Points = ringToBin(cfg, p.Points)
		for j, h := range p.Holes {
			c.Holes[j] = ringToBin(cfg, h)
		}
		for j, fh := range p.FingerHoles {
			pt := toBin(cfg, geometry.Point2D{X: fh.X, Y: fh.Y})
			fh.X, fh.Y = pt.X, pt.Y
			c.FingerHoles[j] = fh
		}
		out[i] = c
	}
	return out
}
