package paper

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// LoadImage decodes a photo from disk. JPEG, PNG and TIFF are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ReadMat loads a photo from disk as a BGR Mat. The caller owns the Mat.
func ReadMat(path string) (gocv.Mat, error) {
	img, err := LoadImage(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	return ImageToMat(img)
}

// WriteMat encodes mat to path; the format follows the file extension.
func WriteMat(path string, mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("write %s: empty image", path)
	}
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("write %s: encoder failed", path)
	}
	return nil
}

// ImageToMat converts a Go image to a BGR gocv.Mat.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	forEachStripe(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				mat.SetUCharAt(y, x*3+0, uint8(b>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})

	return mat, nil
}

// forEachStripe splits rows into one horizontal stripe per CPU and runs fn
// on each stripe concurrently.
func forEachStripe(rows int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (rows + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		if startY >= rows {
			break
		}
		endY := min(startY+rowsPerWorker, rows)

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}
