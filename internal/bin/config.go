// Package bin builds modular storage bins with traced cavities as CSG solids,
// exports them as meshes, and splits oversized bins into printable pieces.
package bin

import (
	"errors"
	"fmt"
	"math"
)

// Modular grid dimensions in millimetres.
const (
	GridUnit   = 42.0
	HeightUnit = 7.0
	BaseHeight = 4.75

	MagnetDiameter = 6.0
	MagnetDepth    = 2.4
	// magnetSpacing is the distance between magnet centres within a cell.
	magnetSpacing = 26.0

	minPocketDepth    = 5.0
	pocketFloorMargin = 2.0
	infillClearance   = 0.5
	cutOvershoot      = 0.01
)

var (
	// ErrInvalidConfig is returned for configurations that cannot describe a
	// bin.
	ErrInvalidConfig = errors.New("invalid bin config")
	// ErrBuildFailed is returned when the shell, magnets or infill cannot be
	// built. Per-cavity, finger-hole and label failures are not fatal.
	ErrBuildFailed = errors.New("bin build failed")
)

// TextLabel is a line of text on the bin's top surface. Position is in bin
// millimetres with the origin at the bin's top-left corner, y down.
type TextLabel struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	FontSize float64 `json:"font_size"`
	Depth    float64 `json:"depth"`
	Emboss   bool    `json:"emboss"`
}

// Config describes a bin.
type Config struct {
	GridX         int         `json:"grid_x"`
	GridY         int         `json:"grid_y"`
	HeightUnits   int         `json:"height_units"`
	WallThickness float64     `json:"wall_thickness"`
	CutoutDepth   float64     `json:"cutout_depth"`
	Magnets       bool        `json:"magnets"`
	StackingLip   bool        `json:"stacking_lip"`
	TextLabels    []TextLabel `json:"text_labels,omitempty"`
}

// DefaultConfig returns a 2x2 bin, 3 units tall, with magnets and a lip.
func DefaultConfig() Config {
	return Config{
		GridX:         2,
		GridY:         2,
		HeightUnits:   3,
		WallThickness: 1.2,
		CutoutDepth:   20,
		Magnets:       true,
		StackingLip:   true,
	}
}

// Validate checks that every dimension is positive.
func (c Config) Validate() error {
	switch {
	case c.GridX < 1 || c.GridY < 1:
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidConfig, c.GridX, c.GridY)
	case c.HeightUnits < 1:
		return fmt.Errorf("%w: height units %d", ErrInvalidConfig, c.HeightUnits)
	case c.WallThickness <= 0:
		return fmt.Errorf("%w: wall thickness %g", ErrInvalidConfig, c.WallThickness)
	case c.CutoutDepth <= 0:
		return fmt.Errorf("%w: cutout depth %g", ErrInvalidConfig, c.CutoutDepth)
	}
	for _, l := range c.TextLabels {
		if l.FontSize <= 0 || l.Depth <= 0 {
			return fmt.Errorf("%w: label %q needs positive font size and depth", ErrInvalidConfig, l.ID)
		}
	}
	return nil
}

// Width is the nominal X extent of the bin.
func (c Config) Width() float64 { return float64(c.GridX) * GridUnit }

// Depth is the nominal Y extent of the bin.
func (c Config) Depth() float64 { return float64(c.GridY) * GridUnit }

// WallTop is the height of the top of the walls, excluding any lip.
func (c Config) WallTop() float64 { return float64(c.HeightUnits) * HeightUnit }

// PocketDepth is the cavity depth: the requested cutout depth, limited to
// leave a floor above the base, and never shallower than 5 mm.
func (c Config) PocketDepth() float64 {
	maxDepth := c.WallTop() - BaseHeight - pocketFloorMargin
	return math.Max(minPocketDepth, math.Min(c.CutoutDepth, maxDepth))
}

// PocketFloor is the height of the cavity floor.
func (c Config) PocketFloor() float64 { return c.WallTop() - c.PocketDepth() }
