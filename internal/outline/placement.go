package outline

import (
	"math"
	"time"

	"tracefinity/pkg/geometry"
)

// Tool is a library outline in millimetres, centred on its own origin.
type Tool struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Points          []geometry.Point2D   `json:"points"`
	Holes           [][]geometry.Point2D `json:"interior_rings,omitempty"`
	FingerHoles     []FingerHole         `json:"finger_holes,omitempty"`
	Smoothed        bool                 `json:"smoothed"`
	SmoothLevel     float64              `json:"smooth_level"`
	SourceSessionID string               `json:"source_session_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Polygon returns the tool outline as a cavity polygon.
func (t Tool) Polygon() Polygon {
	return Polygon{
		ID:          t.ID,
		Points:      geometry.ClonePoints(t.Points),
		Holes:       Polygon{Holes: t.Holes}.Clone().Holes,
		Label:       t.Name,
		FingerHoles: append([]FingerHole(nil), t.FingerHoles...),
	}
}

// Placement is a tool positioned inside a bin. Its geometry is the library
// outline rotated about the library centroid by Rotation degrees and then
// translated so that centroid lands at (X, Y).
type Placement struct {
	ID          string               `json:"id"`
	ToolID      string               `json:"tool_id"`
	Name        string               `json:"name"`
	X           float64              `json:"x"`
	Y           float64              `json:"y"`
	Rotation    float64              `json:"rotation"`
	Points      []geometry.Point2D   `json:"points"`
	Holes       [][]geometry.Point2D `json:"interior_rings,omitempty"`
	FingerHoles []FingerHole         `json:"finger_holes,omitempty"`
}

// Polygon returns the placed outline as a cavity polygon.
func (pl Placement) Polygon() Polygon {
	return Polygon{
		ID:          pl.ID,
		Points:      geometry.ClonePoints(pl.Points),
		Holes:       Polygon{Holes: pl.Holes}.Clone().Holes,
		Label:       pl.Name,
		FingerHoles: append([]FingerHole(nil), pl.FingerHoles...),
	}
}

// transform maps library coordinates to bin coordinates.
func (pl Placement) transform(origin geometry.Point2D) geometry.AffineTransform {
	rad := pl.Rotation * math.Pi / 180
	return geometry.Translation(pl.X-origin.X, pl.Y-origin.Y).
		Compose(geometry.RotationAbout(origin, rad))
}

// Place positions lib at (x, y) with the given rotation in degrees.
func Place(id string, lib Tool, x, y, rotation float64) Placement {
	pl := Placement{ID: id, ToolID: lib.ID, Name: lib.Name, X: x, Y: y, Rotation: rotation}
	synced, _ := SyncPlacement(pl, lib)
	return synced
}

// SyncPlacement re-derives a placement's geometry and name from the current
// library tool. changed reports whether anything differs from pl.
func SyncPlacement(pl Placement, lib Tool) (out Placement, changed bool) {
	origin := geometry.Centroid(lib.Points)
	tf := pl.transform(origin)
	out = pl
	out.Name = lib.Name
	out.Points = tf.ApplyAll(lib.Points)
	out.Holes = nil
	for _, h := range lib.Holes {
		out.Holes = append(out.Holes, tf.ApplyAll(h))
	}
	out.FingerHoles = make([]FingerHole, len(lib.FingerHoles))
	for i, fh := range lib.FingerHoles {
		c := tf.Apply(geometry.Point2D{X: fh.X, Y: fh.Y})
		fh.X, fh.Y = c.X, c.Y
		fh.Rotation = math.Mod(fh.Rotation+pl.Rotation, 360)
		out.FingerHoles[i] = fh
	}

	changed = out.Name != pl.Name ||
		!samePoints(out.Points, pl.Points) ||
		len(out.Holes) != len(pl.Holes) ||
		!sameFingerHoles(out.FingerHoles, pl.FingerHoles)
	if !changed {
		for i := range out.Holes {
			if !samePoints(out.Holes[i], pl.Holes[i]) {
				changed = true
				break
			}
		}
	}
	return out, changed
}

// SyncPlacements syncs every placement whose tool is in library. Placements
// of tools that no longer exist are kept as they are.
func SyncPlacements(placements []Placement, library map[string]Tool) ([]Placement, bool) {
	out := make([]Placement, len(placements))
	changedAny := false
	for i, pl := range placements {
		lib, ok := library[pl.ToolID]
		if !ok {
			out[i] = pl
			continue
		}
		synced, changed := SyncPlacement(pl, lib)
		out[i] = synced
		changedAny = changedAny || changed
	}
	return out, changedAny
}

const syncEpsilon = 1e-9

func samePoints(a, b []geometry.Point2D) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].X-b[i].X) > syncEpsilon || math.Abs(a[i].Y-b[i].Y) > syncEpsilon {
			return false
		}
	}
	return true
}

func sameFingerHoles(a, b []FingerHole) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Kind() != y.Kind() ||
			math.Abs(x.X-y.X) > syncEpsilon || math.Abs(x.Y-y.Y) > syncEpsilon ||
			math.Abs(x.Radius-y.Radius) > syncEpsilon ||
			math.Abs(x.Width-y.Width) > syncEpsilon || math.Abs(x.Height-y.Height) > syncEpsilon ||
			math.Abs(x.Rotation-y.Rotation) > syncEpsilon {
			return false
		}
	}
	return true
}
