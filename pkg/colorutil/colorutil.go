// Package colorutil provides shared colours and colour-space helpers for
// detection and its debug images.
package colorutil

import (
	"image/color"
	"math"
)

// Overlay colours for debug images.
var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// PaperSaturationMax is the highest HSV saturation (0-255) still treated
// as plain paper. White and gray sheets sit well below it under most
// lighting; coloured backgrounds sit above.
const PaperSaturationMax = 30

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0

	if maxC != 0 {
		s = (diff / maxC) * 255.0
	}

	switch {
	case diff == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/diff, 6)
	case maxC == g:
		h = 60 * ((b-r)/diff + 2)
	default:
		h = 60 * ((r-g)/diff + 4)
	}
	if h < 0 {
		h += 360
	}
	return h / 2, s, v
}

// PaperLike reports whether c is unsaturated enough to be the sheet.
func PaperLike(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	_, s, _ := RGBToHSV(float64(r>>8), float64(g>>8), float64(b>>8))
	return s <= PaperSaturationMax
}
