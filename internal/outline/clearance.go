package outline

import (
	"fmt"

	clipper "github.com/ctessum/go.clipper"
)

// miterLimit bounds how far a sharp corner may extend, as a multiple of the
// offset distance.
const miterLimit = 5.0

// AddClearance grows the polygon outward by c millimetres with mitred
// corners. Holes shrink by the same amount. Finger holes are carried over
// unchanged. The input is returned as-is when c is not positive or when the
// offset does not produce exactly one polygon.
func AddClearance(p Polygon, c float64) Result {
	if c <= 0 {
		return unchanged(p, "clearance is not positive")
	}
	paths := shapePaths(p)
	if len(paths) == 0 {
		return unchanged(p, "outline has no area")
	}

	co := clipper.NewClipperOffset()
	co.MiterLimit = miterLimit
	co.AddPaths(paths, clipper.JtMiter, clipper.EtClosedPolygon)
	tree := co.Execute2(c * clipScale)

	ext, holes, ok := singleShape(tree)
	if !ok {
		n := 0
		if tree != nil {
			n = tree.ChildCount()
		}
		return unchanged(p, fmt.Sprintf("offset produced %d pieces", n))
	}
	return applied(p.withRings(ext, holes))
}
