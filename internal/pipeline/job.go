package pipeline

import (
	"fmt"

	"tracefinity/internal/bin"
	"tracefinity/internal/config"
	"tracefinity/internal/outline"
)

// Defaults for fields a job file leaves out.
const (
	DefaultClearance         = 1.0
	DefaultSimplifyTolerance = 0.3
)

// Job describes one bin build. Polygons are in photo pixels unless Scale
// is zero, in which case they are already in millimetres.
type Job struct {
	Name              string            `json:"name"`
	Scale             float64           `json:"scale"`
	Clearance         *float64          `json:"clearance"`
	SimplifyTolerance *float64          `json:"simplify_tolerance"`
	SmoothLevel       *float64          `json:"smooth_level"`
	BedSize           *float64          `json:"bed_size"`
	Bin               bin.Config        `json:"bin"`
	Polygons          []outline.Polygon `json:"polygons"`

	// BinID builds a saved bin layout instead of Polygons and Bin.
	BinID     string `json:"bin_id"`
	OutputDir string `json:"output_dir"`
}

// LoadJob reads a JSON5 job file. Bin settings missing from the file keep
// their defaults.
func LoadJob(path string) (*Job, error) {
	job := &Job{Bin: bin.DefaultConfig()}
	if err := config.LoadJSON5(path, job); err != nil {
		return nil, err
	}
	if job.Name == "" {
		job.Name = "bin"
	}
	if job.Scale < 0 {
		return nil, fmt.Errorf("job %s: negative scale %g", path, job.Scale)
	}
	return job, nil
}

// Options returns the polygon preparation settings with defaults applied.
func (j *Job) Options() Options {
	opt := Options{
		Scale:             j.Scale,
		Clearance:         DefaultClearance,
		SimplifyTolerance: DefaultSimplifyTolerance,
		SmoothLevel:       j.SmoothLevel,
	}
	if j.Clearance != nil {
		opt.Clearance = *j.Clearance
	}
	if j.SimplifyTolerance != nil {
		opt.SimplifyTolerance = *j.SimplifyTolerance
	}
	return opt
}
