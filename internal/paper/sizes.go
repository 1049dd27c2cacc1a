package paper

import (
	"errors"
	"fmt"
	"strings"
)

// PixelsPerMM is the fixed resolution of rectified output.
const PixelsPerMM = 10

// ErrUnknownPaperSize is returned for a paper selector other than a4 or letter.
var ErrUnknownPaperSize = errors.New("unknown paper size")

// Size is a reference sheet in portrait orientation.
type Size struct {
	Name     string
	WidthMM  float64
	HeightMM float64
}

var (
	A4     = Size{Name: "a4", WidthMM: 210, HeightMM: 297}
	Letter = Size{Name: "letter", WidthMM: 215.9, HeightMM: 279.4}
)

// ParseSize resolves a paper selector.
func ParseSize(name string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "a4":
		return A4, nil
	case "letter":
		return Letter, nil
	}
	return Size{}, fmt.Errorf("%w: %q", ErrUnknownPaperSize, name)
}

// Landscape returns the size with width and height swapped.
func (s Size) Landscape() Size {
	return Size{Name: s.Name, WidthMM: s.HeightMM, HeightMM: s.WidthMM}
}

// Pixels returns the sheet dimensions at PixelsPerMM, truncated.
func (s Size) Pixels() (w, h int) {
	return int(s.WidthMM * PixelsPerMM), int(s.HeightMM * PixelsPerMM)
}
