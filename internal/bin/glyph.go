package bin

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"tracefinity/pkg/geometry"
)

// glyphPPEM is the em size glyphs are loaded at before scaling to the
// requested font size.
const glyphPPEM = 1024

var (
	fontOnce sync.Once
	fontFace *sfnt.Font
	fontErr  error
)

func labelFont() (*sfnt.Font, error) {
	fontOnce.Do(func() {
		fontFace, fontErr = sfnt.Parse(goregular.TTF)
	})
	return fontFace, fontErr
}

// TextContours returns the outlines of text set at size millimetres per em,
// centred on the origin with y up. Outlines nest: counters such as the hole
// in "o" are separate contours inside their glyph.
func TextContours(text string, size float64) ([][]geometry.Point2D, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size %g", size)
	}
	f, err := labelFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	var buf sfnt.Buffer
	ppem := fixed.I(glyphPPEM)
	scale := size / glyphPPEM

	var contours [][]geometry.Point2D
	var penX fixed.Int26_6
	prev, hasPrev := sfnt.GlyphIndex(0), false
	for _, r := range text {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			continue
		}
		if hasPrev {
			if k, err := f.Kern(&buf, prev, idx, ppem, font.HintingNone); err == nil {
				penX += k
			}
		}
		segs, err := f.LoadGlyph(&buf, idx, ppem, nil)
		if err != nil {
			return nil, fmt.Errorf("load glyph %q: %w", r, err)
		}
		contours = append(contours, flatten(segs, penX, scale)...)

		adv, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			return nil, fmt.Errorf("advance %q: %w", r, err)
		}
		penX += adv
		prev, hasPrev = idx, true
	}
	if len(contours) == 0 {
		return nil, errors.New("text has no visible glyphs")
	}

	var all []geometry.Point2D
	for _, c := range contours {
		all = append(all, c...)
	}
	center := geometry.BoundingBox(all).Center()
	for _, c := range contours {
		for i := range c {
			c[i] = c[i].Sub(center)
		}
	}
	return contours, nil
}

const curveSteps = 6

// flatten converts glyph segments to polylines in millimetres, flipping the
// y-down glyph space to y up.
func flatten(segs sfnt.Segments, penX fixed.Int26_6, scale float64) [][]geometry.Point2D {
	pt := func(p fixed.Point26_6) geometry.Point2D {
		return geometry.Point2D{
			X: float64(p.X+penX) / 64 * scale,
			Y: -float64(p.Y) / 64 * scale,
		}
	}

	var out [][]geometry.Point2D
	var cur []geometry.Point2D
	closeContour := func() {
		if len(cur) > 1 && cur[0] == cur[len(cur)-1] {
			cur = cur[:len(cur)-1]
		}
		if len(cur) >= 3 {
			out = append(out, cur)
		}
		cur = nil
	}

	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			closeContour()
			cur = append(cur, pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			cur = append(cur, pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			p0 := cur[len(cur)-1]
			p1, p2 := pt(s.Args[0]), pt(s.Args[1])
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				cur = append(cur, p0.Lerp(p1, t).Lerp(p1.Lerp(p2, t), t))
			}
		case sfnt.SegmentOpCubeTo:
			p0 := cur[len(cur)-1]
			p1, p2, p3 := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				a, b, c := p0.Lerp(p1, t), p1.Lerp(p2, t), p2.Lerp(p3, t)
				cur = append(cur, a.Lerp(b, t).Lerp(b.Lerp(c, t), t))
			}
		}
	}
	closeContour()
	return out
}

// placeContours rotates contours by degrees about the origin and moves them
// to at.
func placeContours(contours [][]geometry.Point2D, at geometry.Point2D, degrees float64) [][]geometry.Point2D {
	tf := geometry.Translation(at.X, at.Y).Compose(geometry.Rotation(degrees * math.Pi / 180))
	out := make([][]geometry.Point2D, len(contours))
	for i, c := range contours {
		out[i] = tf.ApplyAll(c)
	}
	return out
}
