package pipeline

import (
	"fmt"
	"sync"

	"tracefinity/internal/outline"
)

// Options controls how traced polygons are normalised before a build.
type Options struct {
	// Scale converts pixels to millimetres; zero means already in mm.
	Scale float64 `json:"scale"`
	// SimplifyTolerance in mm; zero skips simplification.
	SimplifyTolerance float64 `json:"simplify_tolerance"`
	// SmoothLevel in [0, 1]; nil skips smoothing.
	SmoothLevel *float64 `json:"smooth_level"`
	// Clearance grows every outline outward, in mm.
	Clearance float64 `json:"clearance"`
}

// Prepare scales, simplifies, smooths and offsets every polygon. Polygons
// are processed concurrently; output order matches input order. Each
// operation that left a polygon unchanged for a reason adds a note.
func Prepare(polygons []outline.Polygon, opt Options) ([]outline.Polygon, []string) {
	if opt.Scale > 0 {
		polygons = outline.ScaleToMM(polygons, opt.Scale)
	}

	out := make([]outline.Polygon, len(polygons))
	notes := make([][]string, len(polygons))
	var wg sync.WaitGroup
	for i := range polygons {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], notes[i] = prepareOne(polygons[i], opt)
		}(i)
	}
	wg.Wait()

	var all []string
	for _, n := range notes {
		all = append(all, n...)
	}
	return out, all
}

func prepareOne(p outline.Polygon, opt Options) (outline.Polygon, []string) {
	var notes []string
	apply := func(op string, r outline.Result) {
		if !r.Applied && r.Reason != "" {
			notes = append(notes, fmt.Sprintf("%s: %s: %s", p.ID, op, r.Reason))
		}
		p = r.Polygon
	}

	if opt.SimplifyTolerance > 0 {
		apply("simplify", outline.Simplify(p, opt.SimplifyTolerance))
	}
	if opt.SmoothLevel != nil {
		apply("smooth", outline.Smooth(p, *opt.SmoothLevel))
	}
	apply("clearance", outline.AddClearance(p, opt.Clearance))
	return p, notes
}
