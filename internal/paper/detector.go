// Package paper locates a reference sheet in a photo and rectifies the photo
// to a metric top-down view.
package paper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"time"

	"tracefinity/pkg/colorutil"
	"tracefinity/pkg/geometry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// ErrNotFound is returned when no strategy locates the sheet.
var ErrNotFound = errors.New("paper not found")

// Detection bounds, as fractions of the image.
const (
	minAreaFraction   = 0.05
	maxAreaFraction   = 0.85
	marginFraction    = 0.02
	candidatesPerPass = 10
)

// Frame is the shared, read-only input to every strategy.
type Frame struct {
	Image   gocv.Mat // BGR
	Gray    gocv.Mat
	Width   int
	Height  int
	MinArea float64
	MaxArea float64
	Margin  int
}

// NewFrame prepares a BGR photo for detection. The frame borrows img;
// Close releases only what the frame allocated.
func NewFrame(img gocv.Mat) (*Frame, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if img.Channels() != 3 {
		return nil, fmt.Errorf("expected 3-channel BGR image, got %d channels", img.Channels())
	}

	w, h := img.Cols(), img.Rows()
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	area := float64(w * h)
	return &Frame{
		Image:   img,
		Gray:    gray,
		Width:   w,
		Height:  h,
		MinArea: area * minAreaFraction,
		MaxArea: area * maxAreaFraction,
		Margin:  int(float64(min(w, h)) * marginFraction),
	}, nil
}

// Close releases the frame's derived images.
func (f *Frame) Close() {
	f.Gray.Close()
}

// Strategy is one way of finding the sheet.
type Strategy interface {
	Name() string
	Attempt(f *Frame) ([4]geometry.Point2D, bool)
}

// Detector runs strategies in order; the first success wins.
type Detector struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewDetector builds a detector over the given strategies, or the default
// cascade when none are given.
func NewDetector(strategies ...Strategy) *Detector {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Detector{
		strategies: strategies,
		log:        log.With().Str("component", "paper").Logger(),
	}
}

// DefaultStrategies returns the brightness pass followed by the edge
// fallbacks: three Canny threshold pairs, adaptive threshold, saturation.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&BrightnessStrategy{Thresholds: []float32{200, 190, 180}},
		&EdgeStrategy{Edges: CannyEdges(50, 150)},
		&EdgeStrategy{Edges: CannyEdges(30, 100)},
		&EdgeStrategy{Edges: CannyEdges(75, 200)},
		&EdgeStrategy{Edges: AdaptiveEdges()},
		&EdgeStrategy{Edges: SaturationEdges()},
	}
}

// Strategies returns the detector's cascade in order.
func (d *Detector) Strategies() []Strategy {
	return append([]Strategy(nil), d.strategies...)
}

// Detect returns the sheet's corners ordered TL, TR, BR, BL in image pixels.
func (d *Detector) Detect(img gocv.Mat) ([4]geometry.Point2D, error) {
	frame, err := NewFrame(img)
	if err != nil {
		return [4]geometry.Point2D{}, err
	}
	defer frame.Close()

	start := time.Now()
	for _, s := range d.strategies {
		t := time.Now()
		corners, ok := s.Attempt(frame)
		d.log.Debug().Str("strategy", s.Name()).Bool("found", ok).
			Dur("elapsed", time.Since(t)).Msg("detection attempt")
		if ok {
			d.log.Info().Str("strategy", s.Name()).Dur("elapsed", time.Since(start)).Msg("paper detected")
			if c := SheetColor(img, corners); !colorutil.PaperLike(c) {
				d.log.Warn().Uint8("r", c.R).Uint8("g", c.G).Uint8("b", c.B).
					Msg("detected sheet is strongly coloured, check the corners")
			}
			return corners, nil
		}
	}
	return [4]geometry.Point2D{}, ErrNotFound
}

// DetectFile loads a photo and runs Detect on it.
func (d *Detector) DetectFile(path string) ([4]geometry.Point2D, error) {
	img, err := ReadMat(path)
	if err != nil {
		return [4]geometry.Point2D{}, err
	}
	defer img.Close()
	return d.Detect(img)
}

// SheetColor returns the mean colour of img inside the quad corners.
func SheetColor(img gocv.Mat, corners [4]geometry.Point2D) color.RGBA {
	mask := gocv.Zeros(img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()

	quad := make([]image.Point, len(corners))
	for i, c := range corners {
		quad[i] = image.Pt(int(math.Round(c.X)), int(math.Round(c.Y)))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{quad})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, white)

	mean := img.MeanWithMask(mask)
	return color.RGBA{
		R: uint8(math.Round(mean.Val3)),
		G: uint8(math.Round(mean.Val2)),
		B: uint8(math.Round(mean.Val1)),
		A: 255,
	}
}

// largestContours returns the indexes of up to n contours sorted by area,
// largest first, together with their areas.
func largestContours(contours gocv.PointsVector, n int) ([]int, []float64) {
	idx := make([]int, contours.Size())
	areas := make([]float64, contours.Size())
	for i := range idx {
		idx[i] = i
		areas[i] = gocv.ContourArea(contours.At(i))
	}
	sort.SliceStable(idx, func(a, b int) bool { return areas[idx[a]] > areas[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}
	return idx, areas
}

// toPoints converts image points to float points.
func toPoints(pts []image.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

// OrderCorners orders four points as top-left, top-right, bottom-right,
// bottom-left: TL minimises x+y, BR maximises it, TR minimises y-x and
// BL maximises it.
func OrderCorners(pts [4]geometry.Point2D) [4]geometry.Point2D {
	var out [4]geometry.Point2D
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		s, d := p.X+p.Y, p.Y-p.X
		if s < minSum {
			minSum, out[0] = s, p
		}
		if s > maxSum {
			maxSum, out[2] = s, p
		}
		if d < minDiff {
			minDiff, out[1] = d, p
		}
		if d > maxDiff {
			maxDiff, out[3] = d, p
		}
	}
	return out
}

// isRoughlyRectangular reports whether every interior angle of the quad is
// within 30 degrees of a right angle.
func isRoughlyRectangular(q [4]geometry.Point2D) bool {
	for i := 0; i < 4; i++ {
		p1, p2, p3 := q[i], q[(i+1)%4], q[(i+2)%4]
		v1 := p1.Sub(p2)
		v2 := p3.Sub(p2)
		cos := v1.Dot(v2) / (v1.Norm()*v2.Norm() + 1e-6)
		if math.Abs(cos) > 0.5 {
			return false
		}
	}
	return true
}
