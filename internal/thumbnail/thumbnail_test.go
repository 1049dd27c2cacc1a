package thumbnail

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracefinity/pkg/geometry"
)

func box(x0, y0, x1, y1 float64) []geometry.Point2D {
	return []geometry.Point2D{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestCrop_PadsAndClamps(t *testing.T) {
	img := imaging.New(400, 300, color.White)

	crop, err := Crop(img, box(100, 100, 150, 180))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(90, 120), crop.Bounds().Size())

	crop, err = Crop(img, box(5, 10, 50, 200))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(70, 220), crop.Bounds().Size(), "clamped to the image")
}

func TestCrop_DownscalesLongSide(t *testing.T) {
	img := imaging.New(1200, 800, color.White)

	crop, err := Crop(img, box(100, 100, 1100, 600))
	require.NoError(t, err)
	size := crop.Bounds().Size()
	assert.Equal(t, MaxSide, size.X)
	assert.Equal(t, 133, size.Y, "aspect ratio kept")
}

func TestCrop_Errors(t *testing.T) {
	img := imaging.New(100, 100, color.White)

	_, err := Crop(img, nil)
	assert.Error(t, err)
	_, err = Crop(img, box(500, 500, 600, 600))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(400, 300, color.NRGBA{R: 200, A: 255})
	path := filepath.Join(dir, "tool.jpg")

	require.True(t, Generate(img, box(100, 100, 150, 180), path))
	thumb, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(90, 120), thumb.Bounds().Size())

	assert.False(t, Generate(img, box(100, 100, 150, 180), filepath.Join(dir, "missing", "tool.jpg")))
	assert.False(t, GenerateFromFile(filepath.Join(dir, "nope.png"), box(0, 0, 1, 1), path))
}
