package paper

import (
	"fmt"
	"image"

	"tracefinity/pkg/colorutil"
	"tracefinity/pkg/geometry"

	"gocv.io/x/gocv"
)

// Acceptance limits for the brightness pass.
const (
	minBrightFraction = 0.7
	minPaperAspect    = 0.55 // short/long; A4 is 0.707, Letter 0.773
	maxPaperAspect    = 0.85
)

var white = colorutil.White

// BrightnessStrategy finds the sheet as the brightest large region. Each
// threshold is tried in order and the first passing candidate is accepted.
type BrightnessStrategy struct {
	Thresholds []float32
}

// Name implements Strategy.
func (s *BrightnessStrategy) Name() string {
	return fmt.Sprintf("brightness%v", s.Thresholds)
}

// Attempt implements Strategy.
func (s *BrightnessStrategy) Attempt(f *Frame) ([4]geometry.Point2D, bool) {
	for _, t := range s.Thresholds {
		if corners, ok := s.attemptThreshold(f, t); ok {
			return corners, true
		}
	}
	return [4]geometry.Point2D{}, false
}

func (s *BrightnessStrategy) attemptThreshold(f *Frame, threshold float32) ([4]geometry.Point2D, bool) {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(f.Gray, &binary, threshold, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{3, 3})
	defer kernel.Close()
	gocv.MorphologyEx(binary, &binary, gocv.MorphClose, kernel)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	order, areas := largestContours(contours, candidatesPerPass)
	boxMargin := f.Margin * 2

	for _, i := range order {
		if areas[i] < f.MinArea || areas[i] > f.MaxArea {
			continue
		}

		rect := gocv.MinAreaRect(contours.At(i))
		if len(rect.Points) != 4 || rect.Width == 0 || rect.Height == 0 {
			continue
		}
		if !pointsInside(rect.Points, boxMargin, f.Width, f.Height) {
			continue
		}
		if brightFraction(binary, rect.Points) < minBrightFraction {
			continue
		}

		short, long := float64(min(rect.Width, rect.Height)), float64(max(rect.Width, rect.Height))
		aspect := short / long
		if aspect < minPaperAspect || aspect > maxPaperAspect {
			continue
		}

		var quad [4]geometry.Point2D
		copy(quad[:], toPoints(rect.Points))
		return OrderCorners(quad), true
	}
	return [4]geometry.Point2D{}, false
}

// pointsInside reports whether every point keeps margin pixels from the border.
func pointsInside(pts []image.Point, margin, w, h int) bool {
	for _, p := range pts {
		if p.X < margin || p.X > w-margin || p.Y < margin || p.Y > h-margin {
			return false
		}
	}
	return true
}

// brightFraction returns the share of the quad's pixels set in binary.
func brightFraction(binary gocv.Mat, quad []image.Point) float64 {
	mask := gocv.Zeros(binary.Rows(), binary.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{quad})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, white)

	total := gocv.CountNonZero(mask)
	if total == 0 {
		return 0
	}

	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(binary, mask, &both)
	return float64(gocv.CountNonZero(both)) / float64(total)
}

// EdgeSource produces a binary edge map from a frame. The caller closes it.
type EdgeSource struct {
	Name  string
	Build func(f *Frame) gocv.Mat
}

// CannyEdges blurs the gray image 5x5 and runs Canny with the given thresholds.
func CannyEdges(low, high float32) EdgeSource {
	return EdgeSource{
		Name: fmt.Sprintf("canny(%g,%g)", low, high),
		Build: func(f *Frame) gocv.Mat {
			blur := gocv.NewMat()
			defer blur.Close()
			gocv.GaussianBlur(f.Gray, &blur, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

			edges := gocv.NewMat()
			gocv.Canny(blur, &edges, low, high)
			return edges
		},
	}
}

// AdaptiveEdges thresholds the blurred gray image locally before Canny,
// which copes with uneven lighting.
func AdaptiveEdges() EdgeSource {
	return EdgeSource{
		Name: "adaptive",
		Build: func(f *Frame) gocv.Mat {
			blur := gocv.NewMat()
			defer blur.Close()
			gocv.GaussianBlur(f.Gray, &blur, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

			binary := gocv.NewMat()
			defer binary.Close()
			gocv.AdaptiveThreshold(blur, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, 11, 2)

			edges := gocv.NewMat()
			gocv.Canny(binary, &edges, 50, 150)
			return edges
		},
	}
}

// SaturationEdges marks low-saturation pixels (paper is nearly colourless)
// and runs Canny on the mask.
func SaturationEdges() EdgeSource {
	return EdgeSource{
		Name: "saturation",
		Build: func(f *Frame) gocv.Mat {
			hsv := gocv.NewMat()
			defer hsv.Close()
			gocv.CvtColor(f.Image, &hsv, gocv.ColorBGRToHSV)

			channels := gocv.Split(hsv)
			defer func() {
				for _, c := range channels {
					c.Close()
				}
			}()

			binary := gocv.NewMat()
			defer binary.Close()
			gocv.Threshold(channels[1], &binary, colorutil.PaperSaturationMax, 255, gocv.ThresholdBinaryInv)

			edges := gocv.NewMat()
			gocv.Canny(binary, &edges, 50, 150)
			return edges
		},
	}
}

// EdgeStrategy looks for a rectangular four-vertex contour in an edge map.
type EdgeStrategy struct {
	Edges EdgeSource
}

// Name implements Strategy.
func (s *EdgeStrategy) Name() string {
	return "edges/" + s.Edges.Name
}

// Attempt implements Strategy.
func (s *EdgeStrategy) Attempt(f *Frame) ([4]geometry.Point2D, bool) {
	edges := s.Edges.Build(f)
	defer edges.Close()

	// Close gaps in the edge trace: dilate twice, erode once.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{3, 3})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)
	gocv.Dilate(edges, &edges, kernel)
	gocv.Erode(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	order, areas := largestContours(contours, candidatesPerPass)
	for _, i := range order {
		if areas[i] < f.MinArea || areas[i] > f.MaxArea {
			continue
		}

		contour := contours.At(i)
		r := gocv.BoundingRect(contour)
		if r.Min.X < f.Margin || r.Min.Y < f.Margin ||
			r.Max.X > f.Width-f.Margin || r.Max.Y > f.Height-f.Margin {
			continue
		}

		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, 0.02*peri, true)
		pts := approx.ToPoints()
		approx.Close()
		if len(pts) != 4 {
			continue
		}

		var quad [4]geometry.Point2D
		copy(quad[:], toPoints(pts))
		if !isRoughlyRectangular(quad) {
			continue
		}
		return OrderCorners(quad), true
	}
	return [4]geometry.Point2D{}, false
}
