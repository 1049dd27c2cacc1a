package paper

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"gocv.io/x/gocv"

	"tracefinity/pkg/colorutil"
)

// DebugReport lists the images written by DebugContours and the contours
// found at the end of the pipeline.
type DebugReport struct {
	Steps        []DebugStep `json:"steps"`
	ContourCount int         `json:"contour_count"`
	ContourAreas []float64   `json:"contour_areas"` // largest ten
}

// DebugStep names one intermediate image.
type DebugStep struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// DebugContours runs a contour-oriented variant of detection and writes each
// intermediate image to outDir: gray, CLAHE, blur, Canny, dilate, close,
// hole fill, open, and the final contours drawn over the photo.
func DebugContours(img gocv.Mat, outDir string) (*DebugReport, error) {
	if img.Empty() {
		return nil, fmt.Errorf("debug: empty image")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("debug: %w", err)
	}

	report := &DebugReport{}
	save := func(name string, m gocv.Mat) error {
		file := fmt.Sprintf("%02d_%s.jpg", len(report.Steps)+1, name)
		if err := WriteMat(filepath.Join(outDir, file), m); err != nil {
			return err
		}
		report.Steps = append(report.Steps, DebugStep{Name: name, File: file})
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if err := save("gray", gray); err != nil {
		return nil, err
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()
	normalized := gocv.NewMat()
	defer normalized.Close()
	clahe.Apply(gray, &normalized)
	if err := save("clahe", normalized); err != nil {
		return nil, err
	}

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(normalized, &blur, image.Point{7, 7}, 0, 0, gocv.BorderDefault)
	if err := save("blur", blur); err != nil {
		return nil, err
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, 30, 100)
	if err := save("canny", edges); err != nil {
		return nil, err
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{5, 5})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)
	gocv.Dilate(dilated, &dilated, kernel)
	if err := save("dilated", dilated); err != nil {
		return nil, err
	}

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyExWithParams(dilated, &closed, gocv.MorphClose, kernel, 3, gocv.BorderConstant)
	if err := save("closed", closed); err != nil {
		return nil, err
	}

	// Fill enclosed regions by painting every outer contour solid.
	filled := closed.Clone()
	defer filled.Close()
	outer := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	gocv.DrawContours(&filled, outer, -1, white, -1)
	outer.Close()
	if err := save("filled", filled); err != nil {
		return nil, err
	}

	final := gocv.NewMat()
	defer final.Close()
	gocv.MorphologyEx(filled, &final, gocv.MorphOpen, kernel)
	if err := save("final", final); err != nil {
		return nil, err
	}

	contours := gocv.FindContours(final, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	overlay := img.Clone()
	defer overlay.Close()
	gocv.DrawContours(&overlay, contours, -1, colorutil.Green, 2)
	if err := save("contours", overlay); err != nil {
		return nil, err
	}

	report.ContourCount = contours.Size()
	for i := 0; i < contours.Size(); i++ {
		report.ContourAreas = append(report.ContourAreas, gocv.ContourArea(contours.At(i)))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(report.ContourAreas)))
	if len(report.ContourAreas) > candidatesPerPass {
		report.ContourAreas = report.ContourAreas[:candidatesPerPass]
	}
	return report, nil
}
