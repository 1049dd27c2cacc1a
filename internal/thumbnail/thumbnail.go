// Package thumbnail crops preview images of traced tools.
package thumbnail

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"tracefinity/pkg/geometry"
)

const (
	// Padding is added around the outline's bounding box, in pixels.
	Padding = 20
	// MaxSide is the longest side of a thumbnail, in pixels.
	MaxSide = 256
	// Quality is the JPEG quality of written thumbnails.
	Quality = 80
)

// Crop returns the region of img around points, padded and clamped to the
// image, shrunk so its longer side is at most MaxSide.
func Crop(img image.Image, points []geometry.Point2D) (image.Image, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no outline points")
	}
	bb := geometry.BoundingBox(points)
	b := img.Bounds()
	r := image.Rect(
		max(b.Min.X, int(bb.X)-Padding),
		max(b.Min.Y, int(bb.Y)-Padding),
		min(b.Max.X, int(bb.X+bb.Width)+Padding),
		min(b.Max.Y, int(bb.Y+bb.Height)+Padding),
	)
	if r.Empty() {
		return nil, fmt.Errorf("outline %v lies outside the image %v", r, b)
	}

	crop := imaging.Crop(img, r)
	w, h := crop.Bounds().Dx(), crop.Bounds().Dy()
	switch {
	case w > MaxSide && w >= h:
		crop = imaging.Resize(crop, MaxSide, 0, imaging.Lanczos)
	case h > MaxSide:
		crop = imaging.Resize(crop, 0, MaxSide, imaging.Lanczos)
	}
	return crop, nil
}

// Generate writes a JPEG thumbnail of the outline to path. ok is false when
// no thumbnail could be made; the failure is logged, not returned.
func Generate(img image.Image, points []geometry.Point2D, path string) (ok bool) {
	crop, err := Crop(img, points)
	if err == nil {
		err = imaging.Save(crop, path, imaging.JPEGQuality(Quality))
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("thumbnail unavailable")
		return false
	}
	return true
}

// GenerateFromFile is Generate reading the source image from imagePath.
func GenerateFromFile(imagePath string, points []geometry.Point2D, path string) bool {
	img, err := imaging.Open(imagePath)
	if err != nil {
		log.Warn().Err(err).Str("image", imagePath).Msg("thumbnail unavailable")
		return false
	}
	return Generate(img, points, path)
}
