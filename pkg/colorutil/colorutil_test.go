package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRGBToHSV(t *testing.T) {
	h, s, v := RGBToHSV(255, 0, 0)
	assert.InDelta(t, 0, h, 1e-9)
	assert.InDelta(t, 255, s, 1e-9)
	assert.InDelta(t, 255, v, 1e-9)

	h, _, _ = RGBToHSV(0, 0, 255)
	assert.InDelta(t, 120, h, 1e-9, "OpenCV hue range is 0-180")

	_, s, v = RGBToHSV(128, 128, 128)
	assert.Zero(t, s)
	assert.InDelta(t, 128, v, 1e-9)
}

func TestPaperLike(t *testing.T) {
	assert.True(t, PaperLike(White))
	assert.True(t, PaperLike(color.RGBA{R: 235, G: 230, B: 220, A: 255}), "warm white under indoor light")
	assert.False(t, PaperLike(color.RGBA{R: 40, G: 60, B: 160, A: 255}))
}
