package bin

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shell profile in millimetres. Each cell stands on a foot that steps from
// footBottom at z=0 to the full cell size at BaseHeight.
const (
	cellClearance = 0.5
	outerRadius   = 3.75

	footBottom       = 35.6
	footMiddle       = 37.2
	footChamferLow   = 0.8
	footStraight     = 1.8
	footChamferHigh  = 2.15
	footBottomRadius = 0.8
	footMiddleRadius = 1.6

	floorThickness = 1.0
	lipHeight      = 4.4
	lipWidth       = 2.6
)

// cellCenters returns the XY centre of every grid cell, with the bin
// centred on the origin.
func cellCenters(cfg Config) []r2.Vec {
	out := make([]r2.Vec, 0, cfg.GridX*cfg.GridY)
	x0 := -cfg.Width()/2 + GridUnit/2
	y0 := -cfg.Depth()/2 + GridUnit/2
	for j := 0; j < cfg.GridY; j++ {
		for i := 0; i < cfg.GridX; i++ {
			out = append(out, r2.Vec{X: x0 + float64(i)*GridUnit, Y: y0 + float64(j)*GridUnit})
		}
	}
	return out
}

// buildShell returns the empty bin: a foot under every cell, the walled
// body above the base, and the stacking lip when enabled.
func buildShell(e Engine, cfg Config) (Solid, error) {
	var parts []Solid

	top := GridUnit - cellClearance
	for _, c := range cellCenters(cfg) {
		low, err := e.Taper(r3.Vec{X: c.X, Y: c.Y, Z: footChamferLow / 2},
			r2.Vec{X: footBottom, Y: footBottom}, r2.Vec{X: footMiddle, Y: footMiddle},
			footBottomRadius, footMiddleRadius, footChamferLow)
		if err != nil {
			return Solid{}, err
		}
		mid, err := e.Slab(r3.Vec{X: c.X, Y: c.Y, Z: footChamferLow + footStraight/2},
			r3.Vec{X: footMiddle, Y: footMiddle, Z: footStraight}, footMiddleRadius)
		if err != nil {
			return Solid{}, err
		}
		z := footChamferLow + footStraight
		high, err := e.Taper(r3.Vec{X: c.X, Y: c.Y, Z: z + footChamferHigh/2},
			r2.Vec{X: footMiddle, Y: footMiddle}, r2.Vec{X: top, Y: top},
			footMiddleRadius, outerRadius, footChamferHigh)
		if err != nil {
			return Solid{}, err
		}
		parts = append(parts, low, mid, high)
	}

	w := cfg.Width() - cellClearance
	d := cfg.Depth() - cellClearance
	wallTop := cfg.WallTop()
	bodyHeight := wallTop - BaseHeight
	if bodyHeight <= floorThickness {
		return Solid{}, fmt.Errorf("wall top %.2f leaves no room above the base", wallTop)
	}

	outer, err := e.Slab(r3.Vec{Z: BaseHeight + bodyHeight/2}, r3.Vec{X: w, Y: d, Z: bodyHeight}, outerRadius)
	if err != nil {
		return Solid{}, err
	}
	innerRadius := math.Max(outerRadius-cfg.WallThickness, 0.5)
	innerHeight := bodyHeight - floorThickness + 1
	inner, err := e.Slab(r3.Vec{Z: BaseHeight + floorThickness + innerHeight/2},
		r3.Vec{X: w - 2*cfg.WallThickness, Y: d - 2*cfg.WallThickness, Z: innerHeight}, innerRadius)
	if err != nil {
		return Solid{}, err
	}
	walls, err := e.Subtract(outer, inner)
	if err != nil {
		return Solid{}, err
	}
	parts = append(parts, walls)

	if cfg.StackingLip {
		lip, err := buildLip(e, w, d, wallTop)
		if err != nil {
			return Solid{}, fmt.Errorf("stacking lip: %w", err)
		}
		parts = append(parts, lip)
	}
	return e.Union(parts...)
}

func buildLip(e Engine, w, d, wallTop float64) (Solid, error) {
	center := r3.Vec{Z: wallTop + lipHeight/2}
	outer, err := e.Slab(center, r3.Vec{X: w, Y: d, Z: lipHeight}, outerRadius)
	if err != nil {
		return Solid{}, err
	}
	inner, err := e.Slab(center, r3.Vec{X: w - 2*lipWidth, Y: d - 2*lipWidth, Z: lipHeight + 1},
		math.Max(outerRadius-lipWidth, 0.5))
	if err != nil {
		return Solid{}, err
	}
	return e.Subtract(outer, inner)
}

// magnetHoles returns the magnet pockets under every cell: a 2x2 pattern
// on magnetSpacing centres, open at the bottom face.
func magnetHoles(e Engine, cfg Config) ([]Solid, error) {
	var holes []Solid
	h := MagnetDepth + cutOvershoot
	for _, c := range cellCenters(cfg) {
		for _, dx := range []float64{-magnetSpacing / 2, magnetSpacing / 2} {
			for _, dy := range []float64{-magnetSpacing / 2, magnetSpacing / 2} {
				cyl, err := e.Cylinder(r3.Vec{X: c.X + dx, Y: c.Y + dy, Z: MagnetDepth - h/2}, MagnetDiameter/2, h)
				if err != nil {
					return nil, err
				}
				holes = append(holes, cyl)
			}
		}
	}
	return holes, nil
}
