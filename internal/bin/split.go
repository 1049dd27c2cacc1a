package bin

import (
	"archive/zip"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"
)

// Piece is one printable part of a split bin. Index is 1-based.
type Piece struct {
	Index int
	Solid Solid
}

// FitsDiagonally reports whether a width x depth footprint fits the bed
// when rotated 45 degrees.
func FitsDiagonally(width, depth, bed float64) bool {
	return (width+depth)/math.Sqrt2 <= bed
}

// ComputeSplitPoints returns the cut coordinates along one axis, relative
// to the bin centre, that divide gridCount cells into as few bed-sized
// pieces as possible. Cells are spread evenly, with earlier pieces taking
// the remainder, so no piece is a thin sliver.
func ComputeSplitPoints(totalMM float64, gridCount int, bedSize float64) []float64 {
	if bedSize <= 0 || totalMM <= bedSize || gridCount < 2 {
		return nil
	}
	maxUnits := max(1, int(math.Floor(bedSize/GridUnit)))
	pieces := (gridCount + maxUnits - 1) / maxUnits
	base, extra := gridCount/pieces, gridCount%pieces

	var points []float64
	pos := -totalMM / 2
	for i := 0; i < pieces-1; i++ {
		n := base
		if i < extra {
			n++
		}
		pos += float64(n) * GridUnit
		points = append(points, pos)
	}
	return points
}

// Split cuts the assembly into pieces that fit a square bed. Body and text
// are merged first so labels split with the shell. X cuts are applied
// first, then Y cuts to every X piece; empty pieces are dropped. It returns
// nil when no split is needed.
func Split(e Engine, asm *Assembly, bed float64) ([]Piece, error) {
	cfg := asm.Config
	if FitsDiagonally(cfg.Width(), cfg.Depth(), bed) {
		return nil, nil
	}
	xCuts := ComputeSplitPoints(cfg.Width(), cfg.GridX, bed)
	yCuts := ComputeSplitPoints(cfg.Depth(), cfg.GridY, bed)
	if len(xCuts) == 0 && len(yCuts) == 0 {
		return nil, nil
	}

	part, err := e.Union(asm.Body, asm.Text)
	if err != nil {
		return nil, fmt.Errorf("merge bodies: %w", err)
	}

	xPieces, err := splitAxis(e, part, xCuts, r3.Vec{X: 1})
	if err != nil {
		return nil, err
	}
	var pieces []Piece
	for _, xp := range xPieces {
		yPieces, err := splitAxis(e, xp, yCuts, r3.Vec{Y: 1})
		if err != nil {
			return nil, err
		}
		for _, s := range yPieces {
			pieces = append(pieces, Piece{Index: len(pieces) + 1, Solid: s})
		}
	}
	log.Debug().Str("component", "split").Int("x_cuts", len(xCuts)).Int("y_cuts", len(yCuts)).
		Int("pieces", len(pieces)).Msg("bin split")
	return pieces, nil
}

// splitAxis bisects s at each cut along axis, keeping the lower side as a
// piece and carrying the upper side on to the next cut.
func splitAxis(e Engine, s Solid, cuts []float64, axis r3.Vec) ([]Solid, error) {
	var pieces []Solid
	rest := s
	for _, c := range cuts {
		at := r3.Scale(c, axis)
		lower, err := e.Cut(rest, at, r3.Scale(-1, axis))
		if err != nil {
			return nil, fmt.Errorf("cut at %.2f: %w", c, err)
		}
		upper, err := e.Cut(rest, at, axis)
		if err != nil {
			return nil, fmt.Errorf("cut at %.2f: %w", c, err)
		}
		if e.Occupied(lower) {
			pieces = append(pieces, lower)
		}
		rest = upper
	}
	if e.Occupied(rest) {
		pieces = append(pieces, rest)
	}
	return pieces, nil
}

// PiecePath returns the file name of the index'th piece.
func PiecePath(dir, prefix string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_part%d.stl", prefix, index))
}

// ExportPieces meshes every piece to its own STL file and returns the paths
// in piece order.
func ExportPieces(e Engine, pieces []Piece, dir, prefix string) ([]string, error) {
	paths := make([]string, 0, len(pieces))
	for _, p := range pieces {
		tris, err := e.Mesh(p.Solid)
		if err != nil {
			return nil, fmt.Errorf("mesh piece %d: %w", p.Index, err)
		}
		path := PiecePath(dir, prefix, p.Index)
		if err := WriteSTL(path, fmt.Sprintf("%s part %d", prefix, p.Index), tris); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ZipPieces bundles files into a zip archive, each stored under its base
// name.
func ZipPieces(paths []string, zipPath string) (err error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, p := range paths {
		if err := addZipFile(zw, p); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addZipFile(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("zip %s: %w", path, err)
	}
	return nil
}
