package bin

import (
	"fmt"
	"math"

	"github.com/soypat/sdf"
	"github.com/soypat/sdf/form2/must2"
	"github.com/soypat/sdf/form3/must3"
	"github.com/soypat/sdf/render"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"tracefinity/pkg/geometry"
)

// Solid is an opaque CSG value. The zero Solid is empty.
type Solid struct {
	shape sdf.SDF3
	box   r3.Box
}

// Empty reports whether the solid has no shape.
func (s Solid) Empty() bool { return s.shape == nil }

// Bounds returns a box containing the solid.
func (s Solid) Bounds() r3.Box { return s.box }

// Evaluate returns the signed distance from p to the solid's surface,
// negative inside. An empty solid is infinitely far away.
func (s Solid) Evaluate(p r3.Vec) float64 {
	if s.shape == nil {
		return math.Inf(1)
	}
	return s.shape.Evaluate(p)
}

func solidOf(shape sdf.SDF3) Solid {
	return Solid{shape: shape, box: shape.Bounds()}
}

// Engine is a boolean-solid kernel over parametrised primitives. Angles are
// in degrees about +Z.
type Engine interface {
	Box(center, size r3.Vec, rotation float64) (Solid, error)
	// Slab is a box whose vertical edges are rounded by radius.
	Slab(center, size r3.Vec, radius float64) (Solid, error)
	// Taper blends from a rounded rectangle at the bottom to another at the
	// top, centred on center.
	Taper(center r3.Vec, bottom, top r2.Vec, bottomRadius, topRadius, height float64) (Solid, error)
	Cylinder(center r3.Vec, radius, height float64) (Solid, error)
	Sphere(center r3.Vec, radius float64) (Solid, error)
	// Prism extrudes the even-odd region of contours from z0 upward.
	Prism(contours [][]geometry.Point2D, z0, height float64) (Solid, error)

	Union(solids ...Solid) (Solid, error)
	Subtract(base Solid, tools ...Solid) (Solid, error)
	// Cut keeps the part of s on the side of the plane that normal points to.
	Cut(s Solid, point, normal r3.Vec) (Solid, error)

	Mesh(s Solid) ([]r3.Triangle, error)
	// Occupied reports whether any sampled point lies inside s.
	Occupied(s Solid) bool
}

// SDFEngine implements Engine with signed distance fields. Kernel panics
// are returned as errors.
type SDFEngine struct {
	// MeshCells is the octree resolution along the longest axis.
	MeshCells int
	// SampleCells is the grid resolution used by Occupied.
	SampleCells int
}

// NewSDFEngine returns an engine meshing at the given resolution.
func NewSDFEngine(meshCells int) *SDFEngine {
	if meshCells < 2 {
		meshCells = 2
	}
	return &SDFEngine{MeshCells: meshCells, SampleCells: 48}
}

// guard runs a kernel call, converting a panic into an error.
func guard(op string, fn func() Solid) (s Solid, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = Solid{}, fmt.Errorf("%s: %v", op, r)
		}
	}()
	return fn(), nil
}

func translate(shape sdf.SDF3, v r3.Vec) sdf.SDF3 {
	return sdf.Transform3D(shape, sdf.Translate3D(v))
}

func (e *SDFEngine) Box(center, size r3.Vec, rotation float64) (Solid, error) {
	return guard("box", func() Solid {
		m := sdf.Translate3D(center).Mul(sdf.RotateZ(rotation * math.Pi / 180))
		return solidOf(sdf.Transform3D(must3.Box(size, 0), m))
	})
}

func (e *SDFEngine) Slab(center, size r3.Vec, radius float64) (Solid, error) {
	return guard("slab", func() Solid {
		base := must2.Box(r2.Vec{X: size.X, Y: size.Y}, radius)
		return solidOf(translate(sdf.Extrude3D(base, size.Z), center))
	})
}

func (e *SDFEngine) Taper(center r3.Vec, bottom, top r2.Vec, bottomRadius, topRadius, height float64) (Solid, error) {
	return guard("taper", func() Solid {
		if height <= 0 {
			panic("taper height must be positive")
		}
		loft := sdf.Loft3D(must2.Box(bottom, bottomRadius), must2.Box(top, topRadius), height, 0)
		return solidOf(translate(loft, center))
	})
}

func (e *SDFEngine) Cylinder(center r3.Vec, radius, height float64) (Solid, error) {
	return guard("cylinder", func() Solid {
		return solidOf(translate(must3.Cylinder(height, radius, 0), center))
	})
}

func (e *SDFEngine) Sphere(center r3.Vec, radius float64) (Solid, error) {
	return guard("sphere", func() Solid {
		return solidOf(translate(must3.Sphere(radius), center))
	})
}

func (e *SDFEngine) Prism(contours [][]geometry.Point2D, z0, height float64) (Solid, error) {
	return guard("prism", func() Solid {
		if height <= 0 {
			panic("prism height must be positive")
		}
		var region sdf.SDF2
		if len(contours) == 1 {
			region = must2.Polygon(toVecs(contours[0]))
		} else {
			region = newEvenOddRegion(contours)
		}
		return solidOf(translate(sdf.Extrude3D(region, height), r3.Vec{Z: z0 + height/2}))
	})
}

func (e *SDFEngine) Union(solids ...Solid) (Solid, error) {
	shapes := make([]sdf.SDF3, 0, len(solids))
	for _, s := range solids {
		if !s.Empty() {
			shapes = append(shapes, s)
		}
	}
	switch len(shapes) {
	case 0:
		return Solid{}, nil
	case 1:
		return shapes[0].(Solid), nil
	}
	return guard("union", func() Solid { return solidOf(sdf.Union3D(shapes...)) })
}

func (e *SDFEngine) Subtract(base Solid, tools ...Solid) (Solid, error) {
	if base.Empty() {
		return Solid{}, nil
	}
	tool, err := e.Union(tools...)
	if err != nil {
		return Solid{}, err
	}
	if tool.Empty() {
		return base, nil
	}
	return guard("subtract", func() Solid {
		return Solid{shape: sdf.Difference3D(base, tool), box: base.box}
	})
}

func (e *SDFEngine) Cut(s Solid, point, normal r3.Vec) (Solid, error) {
	if s.Empty() {
		return Solid{}, nil
	}
	return guard("cut", func() Solid {
		return Solid{shape: sdf.Cut3D(s, point, normal), box: clipBox(s.box, point, normal)}
	})
}

func (e *SDFEngine) Mesh(s Solid) (tris []r3.Triangle, err error) {
	if s.Empty() {
		return nil, fmt.Errorf("mesh: empty solid")
	}
	defer func() {
		if r := recover(); r != nil {
			tris, err = nil, fmt.Errorf("mesh: %v", r)
		}
	}()
	return render.RenderAll(render.NewOctreeRenderer(s, e.MeshCells))
}

func (e *SDFEngine) Occupied(s Solid) bool {
	if s.Empty() {
		return false
	}
	b := s.box
	size := r3.Sub(b.Max, b.Min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return false
	}
	n := e.SampleCells
	if n < 2 {
		n = 2
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := r3.Vec{
					X: b.Min.X + size.X*(float64(i)+0.5)/float64(n),
					Y: b.Min.Y + size.Y*(float64(j)+0.5)/float64(n),
					Z: b.Min.Z + size.Z*(float64(k)+0.5)/float64(n),
				}
				if s.Evaluate(p) < 0 {
					return true
				}
			}
		}
	}
	return false
}

// clipBox trims b to the half-space a cut keeps, for axis-aligned planes.
// Other planes leave b as it is.
func clipBox(b r3.Box, point, normal r3.Vec) r3.Box {
	n := r3.Unit(normal)
	const eps = 1e-9
	switch {
	case math.Abs(n.X-1) < eps:
		b.Min.X = math.Max(b.Min.X, point.X)
	case math.Abs(n.X+1) < eps:
		b.Max.X = math.Min(b.Max.X, point.X)
	case math.Abs(n.Y-1) < eps:
		b.Min.Y = math.Max(b.Min.Y, point.Y)
	case math.Abs(n.Y+1) < eps:
		b.Max.Y = math.Min(b.Max.Y, point.Y)
	case math.Abs(n.Z-1) < eps:
		b.Min.Z = math.Max(b.Min.Z, point.Z)
	case math.Abs(n.Z+1) < eps:
		b.Max.Z = math.Min(b.Max.Z, point.Z)
	}
	return b
}

func toVecs(ring []geometry.Point2D) []r2.Vec {
	out := make([]r2.Vec, len(ring))
	for i, p := range ring {
		out[i] = r2.Vec{X: p.X, Y: p.Y}
	}
	return out
}
