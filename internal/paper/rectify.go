package paper

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"tracefinity/pkg/geometry"

	"gocv.io/x/gocv"
)

// extentLimit caps how far past the sheet the warped photo may extend,
// in multiples of the sheet's longer side.
const extentLimit = 3

// Rectified is a photo warped so the sheet is axis-aligned at PixelsPerMM.
type Rectified struct {
	Image gocv.Mat
	// Paper is the sheet's region within Image.
	Paper image.Rectangle
	// Size is the sheet as placed, with landscape already applied.
	Size Size
	// Transform maps source pixels to Image pixels.
	Transform geometry.Homography
	// Scale is millimetres per output pixel.
	Scale float64
}

// Close releases the rectified image.
func (r *Rectified) Close() {
	r.Image.Close()
}

// Rectify warps img so the quadrilateral corners (TL, TR, BR, BL) become a
// metric rectangle. The whole photo is kept, not only the sheet, so outlines
// that overhang the sheet survive; the kept extent is clamped to
// extentLimit times the sheet's longer side.
func Rectify(img gocv.Mat, corners [4]geometry.Point2D, size Size) (*Rectified, error) {
	if img.Empty() {
		return nil, fmt.Errorf("rectify: empty image")
	}

	top := corners[1].Distance(corners[0])
	left := corners[3].Distance(corners[0])
	if top > left {
		size = size.Landscape()
	}
	paperW, paperH := size.Pixels()

	dst := [4]geometry.Point2D{
		{X: 0, Y: 0},
		{X: float64(paperW - 1), Y: 0},
		{X: float64(paperW - 1), Y: float64(paperH - 1)},
		{X: 0, Y: float64(paperH - 1)},
	}
	m, err := geometry.HomographyFromPoints(corners, dst)
	if err != nil {
		return nil, fmt.Errorf("rectify: %w", err)
	}

	w, h := float64(img.Cols()), float64(img.Rows())
	limit := float64(max(paperW, paperH) * extentLimit)

	minX, minY := 0.0, 0.0
	maxX, maxY := float64(paperW), float64(paperH)
	for _, c := range []geometry.Point2D{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}} {
		p := m.Apply(c)
		p.X = clamp(p.X, -limit, limit)
		p.Y = clamp(p.Y, -limit, limit)
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	// Whole-pixel offset so the sheet lands exactly on Paper.
	tx, ty := math.Ceil(-minX), math.Ceil(-minY)
	full := geometry.TranslationHomography(tx, ty).Compose(m)
	outW := int(math.Ceil(maxX + tx))
	outH := int(math.Ceil(maxY + ty))

	hm := homographyMat(full)
	defer hm.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(img, &warped, hm, image.Point{X: outW, Y: outH})

	ox, oy := int(tx), int(ty)
	return &Rectified{
		Image:     warped,
		Paper:     image.Rect(ox, oy, ox+paperW, oy+paperH),
		Size:      size,
		Transform: full,
		Scale:     1.0 / PixelsPerMM,
	}, nil
}

// RectifyFile rectifies the photo at path and writes the result to the
// sibling processed directory as <stem>_corrected<ext>. It returns the
// output path and the scale in millimetres per pixel.
func RectifyFile(path string, corners [4]geometry.Point2D, size Size) (string, float64, error) {
	img, err := ReadMat(path)
	if err != nil {
		return "", 0, err
	}
	defer img.Close()

	r, err := Rectify(img, corners, size)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	out := RectifiedPath(path)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", 0, fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteMat(out, r.Image); err != nil {
		return "", 0, err
	}
	return out, r.Scale, nil
}

// RectifiedPath returns where the rectified copy of path is written:
// <dir>/../processed/<stem>_corrected<ext>.
func RectifiedPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	parent := filepath.Dir(filepath.Dir(path))
	return filepath.Join(parent, "processed", stem+"_corrected"+ext)
}

func homographyMat(h geometry.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r][c])
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
