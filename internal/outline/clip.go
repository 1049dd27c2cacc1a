package outline

import (
	"math"

	clipper "github.com/ctessum/go.clipper"

	"tracefinity/pkg/geometry"
)

// clipScale converts millimetres to clipper integer units (10 nm).
const clipScale = 1e5

func toPath(ring []geometry.Point2D) clipper.Path {
	path := make(clipper.Path, 0, len(ring))
	for _, pt := range ring {
		path = append(path, clipper.NewIntPoint(
			clipper.CInt(math.Round(pt.X*clipScale)),
			clipper.CInt(math.Round(pt.Y*clipScale)),
		))
	}
	return path
}

func fromPath(path clipper.Path) []geometry.Point2D {
	ring := make([]geometry.Point2D, len(path))
	for i, ip := range path {
		ring[i] = geometry.Point2D{X: float64(ip.X) / clipScale, Y: float64(ip.Y) / clipScale}
	}
	return ring
}

// oriented returns the path wound so that Orientation reports want.
func oriented(path clipper.Path, want bool) clipper.Path {
	if clipper.Orientation(path) == want {
		return path
	}
	out := make(clipper.Path, len(path))
	for i, ip := range path {
		out[len(path)-1-i] = ip
	}
	return out
}

// shapePaths returns the polygon as clipper paths with the exterior wound
// positive and holes negative. Invalid polygons are repaired by an even-odd
// union first, which may yield several outers.
func shapePaths(p Polygon) clipper.Paths {
	if p.IsValid() {
		paths := clipper.Paths{oriented(toPath(p.Points), true)}
		for _, h := range p.Holes {
			paths = append(paths, oriented(toPath(h), false))
		}
		return paths
	}

	c := clipper.NewClipper(clipper.IoStrictlySimple)
	for _, ring := range p.Rings() {
		if r := dedupe(ring); len(r) >= 3 {
			c.AddPath(toPath(r), clipper.PtSubject, true)
		}
	}
	tree, ok := c.Execute2(clipper.CtUnion, clipper.PftEvenOdd, clipper.PftEvenOdd)
	if !ok || tree == nil {
		return nil
	}
	var paths clipper.Paths
	collect(&tree.PolyNode, &paths)
	return paths
}

func collect(node *clipper.PolyNode, out *clipper.Paths) {
	for _, child := range node.Childs() {
		if len(child.Contour()) >= 3 {
			*out = append(*out, oriented(child.Contour(), !child.IsHole()))
		}
		collect(child, out)
	}
}

// singleShape extracts one outer ring and its holes from tree. It fails
// when the tree holds no outer, several outers, or islands inside holes.
func singleShape(tree *clipper.PolyTree) (exterior []geometry.Point2D, holes [][]geometry.Point2D, ok bool) {
	if tree == nil || tree.ChildCount() != 1 {
		return nil, nil, false
	}
	outer := tree.Childs()[0]
	if len(outer.Contour()) < 3 {
		return nil, nil, false
	}
	exterior = fromPath(outer.Contour())
	for _, h := range outer.Childs() {
		if h.ChildCount() > 0 {
			return nil, nil, false
		}
		if len(h.Contour()) >= 3 {
			holes = append(holes, fromPath(h.Contour()))
		}
	}
	return exterior, holes, true
}

// repaired returns p as a single valid polygon, unioning self-intersections
// away. ok is false when repair leaves more than one piece.
func repaired(p Polygon) (Polygon, bool) {
	if p.IsValid() {
		return p, true
	}
	c := clipper.NewClipper(clipper.IoStrictlySimple)
	c.AddPaths(shapePaths(p), clipper.PtSubject, true)
	tree, ok := c.Execute2(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return p, false
	}
	ext, holes, ok := singleShape(tree)
	if !ok {
		return p, false
	}
	return p.withRings(ext, holes), true
}
