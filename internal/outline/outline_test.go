package outline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracefinity/pkg/geometry"
)

func square(x, y, size float64) []geometry.Point2D {
	return []geometry.Point2D{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

func circle(cx, cy, r float64, n int, phase float64) []geometry.Point2D {
	pts := make([]geometry.Point2D, n)
	for i := range pts {
		a := 2*math.Pi*float64(i)/float64(n) + phase
		pts[i] = geometry.Point2D{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

// subdivided returns a square with extra collinear vertices along each edge.
func subdivided(size float64, perEdge int) []geometry.Point2D {
	corners := square(0, 0, size)
	var pts []geometry.Point2D
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		for k := 0; k < perEdge; k++ {
			pts = append(pts, a.Lerp(b, float64(k)/float64(perEdge)))
		}
	}
	return pts
}

func TestFingerHole_KindAndExtent(t *testing.T) {
	assert.Equal(t, ShapeCircle, FingerHole{Shape: "hexagon"}.Kind())
	assert.Equal(t, ShapeCircle, FingerHole{}.Kind())

	w, d := FingerHole{Radius: 5, Shape: ShapeRectangle, Width: 30}.Extent()
	assert.Equal(t, 30.0, w)
	assert.Equal(t, 10.0, d)

	w, d = FingerHole{Radius: 4, Shape: ShapeSquare, Width: 30}.Extent()
	assert.Equal(t, 8.0, w)
	assert.Equal(t, 8.0, d)
}

func TestPolygon_IsValid(t *testing.T) {
	assert.True(t, Polygon{Points: square(0, 0, 20), Holes: [][]geometry.Point2D{square(5, 5, 5)}}.IsValid())
	assert.False(t, Polygon{Points: square(0, 0, 20), Holes: [][]geometry.Point2D{square(30, 0, 5)}}.IsValid())
	assert.False(t, Polygon{Points: square(0, 0, 20), Holes: [][]geometry.Point2D{square(0, 0, 5)}}.IsValid(), "hole touches exterior")
}

func TestScaleToMM_RoundTrip(t *testing.T) {
	in := []Polygon{{
		ID:          "a",
		Points:      square(100, 200, 50),
		Holes:       [][]geometry.Point2D{square(110, 210, 10)},
		FingerHoles: []FingerHole{{ID: "f", X: 120, Y: 210, Radius: 15, Width: 40, Rotation: 30}},
	}}

	mm := ScaleToMM(in, 0.1)
	require.Len(t, mm, 1)
	assert.InDelta(t, 10.0, mm[0].Points[0].X, 1e-9)
	assert.InDelta(t, 1.5, mm[0].FingerHoles[0].Radius, 1e-9)
	assert.InDelta(t, 4.0, mm[0].FingerHoles[0].Width, 1e-9)
	assert.Equal(t, 30.0, mm[0].FingerHoles[0].Rotation)
	assert.Equal(t, 100.0, in[0].Points[0].X, "input must not be modified")

	back := ScaleToMM(mm, 10)
	for i := range in[0].Points {
		assert.InDelta(t, in[0].Points[i].X, back[0].Points[i].X, 1e-9)
		assert.InDelta(t, in[0].Points[i].Y, back[0].Points[i].Y, 1e-9)
	}
	assert.InDelta(t, 15.0, back[0].FingerHoles[0].Radius, 1e-9)
}

func TestComputeBoundingBox(t *testing.T) {
	assert.Equal(t, geometry.Size{}, ComputeBoundingBox(nil))

	size := ComputeBoundingBox([]Polygon{
		{Points: square(10, 10, 20)},
		{Points: square(50, -5, 10)},
	})
	assert.InDelta(t, 50, size.Width, 1e-9)
	assert.InDelta(t, 35, size.Height, 1e-9)
}

func TestAddClearance_GrowsSquare(t *testing.T) {
	p := Polygon{ID: "sq", Points: square(0, 0, 10), FingerHoles: []FingerHole{{ID: "f", Radius: 3}}}

	res := AddClearance(p, 1)
	require.True(t, res.Applied, res.Reason)
	assert.InDelta(t, 144, res.Polygon.Area(), 0.01, "mitred corners keep the square square")
	assert.Equal(t, "sq", res.Polygon.ID)
	assert.Equal(t, p.FingerHoles, res.Polygon.FingerHoles)
	assert.GreaterOrEqual(t, res.Polygon.Area(), p.Area())
}

func TestAddClearance_ShrinksHoles(t *testing.T) {
	p := Polygon{Points: square(0, 0, 20), Holes: [][]geometry.Point2D{square(6, 6, 8)}}

	res := AddClearance(p, 1)
	require.True(t, res.Applied, res.Reason)
	require.Len(t, res.Polygon.Holes, 1)
	assert.InDelta(t, 22*22-6*6, res.Polygon.Area(), 0.01)
}

func TestAddClearance_ZeroIsIdentity(t *testing.T) {
	p := Polygon{Points: circle(0, 0, 10, 32, 0)}
	for _, c := range []float64{0, -2} {
		res := AddClearance(p, c)
		assert.False(t, res.Applied)
		assert.Equal(t, p, res.Polygon)
	}
}

func TestAddClearance_SeveralPiecesLeavesInput(t *testing.T) {
	// A "hole" far outside the exterior repairs into two separate squares.
	p := Polygon{Points: square(0, 0, 10), Holes: [][]geometry.Point2D{square(100, 100, 10)}}

	res := AddClearance(p, 1)
	assert.False(t, res.Applied)
	assert.Contains(t, res.Reason, "2 pieces")
	assert.Equal(t, p, res.Polygon)
}

func TestAddClearance_RepairsBowtie(t *testing.T) {
	bowtie := Polygon{Points: []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}}}

	res := AddClearance(bowtie, 2)
	require.True(t, res.Applied, res.Reason)
	assert.True(t, res.Polygon.IsValid())
	assert.Greater(t, res.Polygon.Area(), 50.0)
}

func TestSimplify_SmallOutlineUntouched(t *testing.T) {
	p := Polygon{Points: circle(0, 0, 10, 8, 0)}
	res := Simplify(p, 1)
	assert.False(t, res.Applied)
	assert.Equal(t, p, res.Polygon)
}

func TestSimplify_DropsCollinearVertices(t *testing.T) {
	res := Simplify(Polygon{Points: subdivided(10, 5)}, 0.01)
	require.True(t, res.Applied, res.Reason)
	assert.Len(t, res.Polygon.Points, 4)
	assert.InDelta(t, 100, res.Polygon.Area(), 1e-9)
}

func TestSimplify_Idempotent(t *testing.T) {
	p := Polygon{Points: circle(50, 50, 50, 200, 0)}

	once := Simplify(p, 0.5)
	require.True(t, once.Applied, once.Reason)
	assert.Less(t, len(once.Polygon.Points), 200)
	assert.InEpsilon(t, p.Area(), once.Polygon.Area(), 0.02)

	twice := Simplify(once.Polygon, 0.5)
	assert.Equal(t, once.Polygon.Points, twice.Polygon.Points)
}

func TestSimplify_DegenerateResultRejected(t *testing.T) {
	p := Polygon{Points: circle(0, 0, 10, 50, 0)}
	res := Simplify(p, 100)
	assert.False(t, res.Applied)
	assert.Equal(t, p, res.Polygon)
}

func TestSimplify_KeepsHoleInside(t *testing.T) {
	step := 2 * math.Pi / 200
	p := Polygon{
		Points: circle(0, 0, 50, 200, 0),
		Holes:  [][]geometry.Point2D{circle(0, 0, 47.5, 200, 12*step)},
	}
	require.True(t, p.IsValid())

	res := Simplify(p, 8)
	require.True(t, res.Applied, res.Reason)
	assert.True(t, res.Polygon.IsValid(), "rings must not cross after simplification")
	assert.Greater(t, len(res.Polygon.Points), 8, "crossing edges get refined")
	require.Len(t, res.Polygon.Holes, 1)
}

func TestSimplify_HoleInsideDroppedBumpLeavesOutlineUnchanged(t *testing.T) {
	// The 2 mm bump falls under tolerance and the hole sits inside it.
	p := Polygon{
		Points: []geometry.Point2D{
			{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100},
			{X: 60, Y: 100}, {X: 55, Y: 102}, {X: 50, Y: 100}, {X: 0, Y: 100},
		},
		Holes: [][]geometry.Point2D{{{X: 54, Y: 100.5}, {X: 56, Y: 100.5}, {X: 55, Y: 101.2}}},
	}
	require.True(t, p.IsValid())

	res := Simplify(p, 5)
	assert.False(t, res.Applied)
	assert.Contains(t, res.Reason, "hole")
	assert.Equal(t, p, res.Polygon)
}

func TestSimplify_TinyHoleKeepsThreeVertices(t *testing.T) {
	p := Polygon{
		Points: square(0, 0, 100),
		Holes:  [][]geometry.Point2D{circle(50, 50, 1, 12, 0)},
	}

	res := Simplify(p, 5)
	require.True(t, res.Applied, res.Reason)
	require.Len(t, res.Polygon.Holes, 1)
	assert.Len(t, res.Polygon.Holes[0], 3)
	assert.True(t, res.Polygon.IsValid())
}

func TestSmooth_StaysInsideHull(t *testing.T) {
	p := Polygon{Points: subdivided(10, 10), Holes: [][]geometry.Point2D{square(4, 4, 2)}}

	res := Smooth(p, 0.5)
	require.True(t, res.Applied, res.Reason)
	for _, pt := range res.Polygon.Points {
		assert.True(t, pt.X >= -1e-9 && pt.X <= 10+1e-9 && pt.Y >= -1e-9 && pt.Y <= 10+1e-9, "%v outside hull", pt)
	}
	area := geometry.Area(res.Polygon.Points)
	assert.Greater(t, area, 80.0)
	assert.Less(t, area, 100.0)
	assert.Equal(t, p.Holes, res.Polygon.Holes)
}

func TestSmooth_LevelClamped(t *testing.T) {
	p := Polygon{Points: circle(0, 0, 30, 120, 0)}
	high := Smooth(p, 1)
	over := Smooth(p, 7)
	assert.Equal(t, high.Polygon.Points, over.Polygon.Points)
}

func TestSmooth_TooFewVertices(t *testing.T) {
	p := Polygon{Points: []geometry.Point2D{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 0, Y: 5}}}
	res := Smooth(p, 0.5)
	assert.False(t, res.Applied)
	assert.Equal(t, p, res.Polygon)
}

func TestSyncPlacement(t *testing.T) {
	lib := Tool{
		ID:          "t1",
		Name:        "pliers",
		Points:      []geometry.Point2D{{X: -10, Y: -5}, {X: 10, Y: -5}, {X: 10, Y: 5}, {X: -10, Y: 5}},
		FingerHoles: []FingerHole{{ID: "f", X: 0, Y: 5, Radius: 4, Rotation: 10}},
	}

	pl := Place("p1", lib, 50, 60, 90)
	assert.Equal(t, "pliers", pl.Name)
	assert.InDelta(t, 55, pl.Points[0].X, 1e-9)
	assert.InDelta(t, 50, pl.Points[0].Y, 1e-9)
	assert.InDelta(t, 45, pl.FingerHoles[0].X, 1e-9)
	assert.InDelta(t, 60, pl.FingerHoles[0].Y, 1e-9)
	assert.InDelta(t, 100, pl.FingerHoles[0].Rotation, 1e-9)

	_, changed := SyncPlacement(pl, lib)
	assert.False(t, changed)

	lib.Name = "long nose pliers"
	synced, changed := SyncPlacement(pl, lib)
	assert.True(t, changed)
	assert.Equal(t, "long nose pliers", synced.Name)

	all, changed := SyncPlacements([]Placement{pl, {ID: "orphan", ToolID: "gone"}}, map[string]Tool{"t1": lib})
	assert.True(t, changed)
	assert.Equal(t, "orphan", all[1].ID)
}
