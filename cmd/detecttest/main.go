// Command detecttest runs paper detection on a photo, dumps every
// intermediate image of the contour pipeline and prints the results.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tracefinity/internal/logging"
	"tracefinity/internal/paper"
	"tracefinity/pkg/colorutil"
)

func main() {
	imagePath := flag.String("image", "", "Path to photo (TIFF, PNG, or JPEG)")
	outDir := flag.String("out", "", "Directory for debug images (default: <image>_debug)")
	paperName := flag.String("paper", "a4", "Paper size: a4 or letter")
	rectify := flag.Bool("rectify", false, "Also write the rectified photo")
	verbose := flag.Bool("v", false, "Log every strategy attempt")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: detecttest -image <path> [-out <dir>] [-paper a4|letter] [-rectify] [-v]")
		os.Exit(1)
	}
	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.Setup(level, true)

	if *outDir == "" {
		ext := filepath.Ext(*imagePath)
		*outDir = (*imagePath)[:len(*imagePath)-len(ext)] + "_debug"
	}

	img, err := paper.ReadMat(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()
	fmt.Printf("Loaded %s: %dx%d pixels\n", *imagePath, img.Cols(), img.Rows())

	// Step 1: contour debug dump
	fmt.Printf("\n=== Contour pipeline ===\n")
	report, err := paper.DebugContours(img, *outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Debug dump failed: %v\n", err)
		os.Exit(1)
	}
	for _, s := range report.Steps {
		fmt.Printf("  %-10s %s\n", s.Name, filepath.Join(*outDir, s.File))
	}
	fmt.Printf("Contours: %d\n", report.ContourCount)
	imgArea := float64(img.Cols() * img.Rows())
	for i, a := range report.ContourAreas {
		fmt.Printf("  #%-2d area %10.0f px (%.1f%% of image)\n", i+1, a, 100*a/imgArea)
	}

	// Step 2: strategy cascade
	fmt.Printf("\n=== Strategy cascade ===\n")
	detector := paper.NewDetector()
	for i, s := range detector.Strategies() {
		fmt.Printf("  %d. %s\n", i+1, s.Name())
	}
	start := time.Now()
	corners, err := detector.Detect(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed after %v: %v\n", time.Since(start), err)
		os.Exit(1)
	}
	fmt.Printf("Detected in %v:\n", time.Since(start))
	for i, name := range []string{"top-left", "top-right", "bottom-right", "bottom-left"} {
		fmt.Printf("  %-12s (%.1f, %.1f)\n", name, corners[i].X, corners[i].Y)
	}
	c := paper.SheetColor(img, corners)
	fmt.Printf("Sheet colour: #%02x%02x%02x (paper-like: %v)\n", c.R, c.G, c.B, colorutil.PaperLike(c))

	if !*rectify {
		return
	}

	// Step 3: rectification
	size, err := paper.ParseSize(*paperName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	r, err := paper.Rectify(img, corners, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rectification failed: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	out := filepath.Join(*outDir, "rectified.png")
	if err := paper.WriteMat(out, r.Image); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Rectified ===\n")
	fmt.Printf("Output: %s (%dx%d, %.2f mm/px)\n", out, r.Image.Cols(), r.Image.Rows(), r.Scale)
}
