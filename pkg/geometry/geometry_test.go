package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) []Point2D {
	return []Point2D{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}}
}

func TestSignedArea_Orientation(t *testing.T) {
	ccw := square(0, 0, 10)
	assert.InDelta(t, 100, SignedArea(ccw), 1e-9)

	cw := []Point2D{ccw[3], ccw[2], ccw[1], ccw[0]}
	assert.InDelta(t, -100, SignedArea(cw), 1e-9)
	assert.InDelta(t, 100, Area(cw), 1e-9)
}

func TestIsSimpleRing(t *testing.T) {
	assert.True(t, IsSimpleRing(square(0, 0, 5)))

	bowtie := []Point2D{{0, 0}, {10, 10}, {10, 0}, {0, 10}}
	assert.False(t, IsSimpleRing(bowtie))

	assert.False(t, IsSimpleRing([]Point2D{{0, 0}, {1, 1}}))
	assert.False(t, IsSimpleRing([]Point2D{{0, 0}, {1, 1}, {2, 2}}), "zero area")
}

func TestSegmentDistance(t *testing.T) {
	a, b := Point2D{0, 0}, Point2D{10, 0}
	assert.InDelta(t, 3, SegmentDistance(Point2D{5, 3}, a, b), 1e-9)
	assert.InDelta(t, 5, SegmentDistance(Point2D{13, 4}, a, b), 1e-9)
}

func TestRotationAbout(t *testing.T) {
	rot := RotationAbout(Point2D{5, 5}, math.Pi/2)
	p := rot.Apply(Point2D{10, 5})
	assert.InDelta(t, 5, p.X, 1e-9)
	assert.InDelta(t, 10, p.Y, 1e-9)
}

func TestHomographyFromPoints_MapsCorners(t *testing.T) {
	src := [4]Point2D{{102, 87}, {512, 110}, {530, 690}, {80, 660}}
	dst := [4]Point2D{{0, 0}, {2099, 0}, {2099, 2969}, {0, 2969}}

	h, err := HomographyFromPoints(src, dst)
	require.NoError(t, err)

	for i := range src {
		got := h.Apply(src[i])
		assert.InDelta(t, dst[i].X, got.X, 1e-6)
		assert.InDelta(t, dst[i].Y, got.Y, 1e-6)
	}
}

func TestHomography_ComposeAppliesRightFirst(t *testing.T) {
	src := [4]Point2D{{0, 0}, {10, 0}, {10, 20}, {0, 20}}
	dst := [4]Point2D{{0, 0}, {100, 0}, {100, 200}, {0, 200}}
	h, err := HomographyFromPoints(src, dst)
	require.NoError(t, err)

	full := TranslationHomography(7, -3).Compose(h)
	got := full.Apply(Point2D{10, 20})
	assert.InDelta(t, 107, got.X, 1e-9)
	assert.InDelta(t, 197, got.Y, 1e-9)
}
