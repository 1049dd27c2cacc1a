// Package pipeline runs detection, rectification and bin builds on a
// bounded number of worker slots.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"tracefinity/internal/bin"
	"tracefinity/internal/config"
	"tracefinity/internal/logging"
	"tracefinity/internal/outline"
	"tracefinity/internal/paper"
	"tracefinity/internal/store"
	"tracefinity/pkg/geometry"
)

// Runner executes jobs. Each job holds one slot for its whole duration, so
// at most cfg.Workers jobs run at once. Jobs share nothing mutable: each
// build gets its own CSG engine.
type Runner struct {
	cfg      config.Config
	scope    *store.Scope
	detector *paper.Detector
	slots    chan struct{}
	log      zerolog.Logger
}

// NewRunner returns a runner over cfg. scope may be nil when no stored
// records are used.
func NewRunner(cfg config.Config, scope *store.Scope) *Runner {
	return &Runner{
		cfg:      cfg,
		scope:    scope,
		detector: paper.NewDetector(),
		slots:    make(chan struct{}, max(1, cfg.Workers)),
		log:      logging.Component("pipeline"),
	}
}

// acquire waits for a free slot. The returned func releases it.
func (r *Runner) acquire(ctx context.Context) (func(), error) {
	select {
	case r.slots <- struct{}{}:
		return func() { <-r.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Detect finds the paper corners in the photo at path.
func (r *Runner) Detect(ctx context.Context, path string) ([4]geometry.Point2D, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return [4]geometry.Point2D{}, err
	}
	defer release()
	return r.detector.DetectFile(path)
}

// Rectification is the output of Rectify.
type Rectification struct {
	Path    string              `json:"path"`
	Scale   float64             `json:"scale"`
	Corners [4]geometry.Point2D `json:"corners"`
}

// Rectify corrects the perspective of the photo at path. When corners is
// nil they are detected first.
func (r *Runner) Rectify(ctx context.Context, path string, corners *[4]geometry.Point2D, paperName string) (*Rectification, error) {
	size, err := paper.ParseSize(paperName)
	if err != nil {
		return nil, err
	}
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var c [4]geometry.Point2D
	if corners != nil {
		c = paper.OrderCorners(*corners)
	} else if c, err = r.detector.DetectFile(path); err != nil {
		return nil, err
	}

	start := time.Now()
	out, scale, err := paper.RectifyFile(path, c, size)
	if err != nil {
		return nil, fmt.Errorf("rectify %s: %w", path, err)
	}
	r.log.Info().Str("input", path).Str("output", out).Str("paper", size.Name).
		Dur("elapsed", time.Since(start)).Msg("photo rectified")
	return &Rectification{Path: out, Scale: scale, Corners: c}, nil
}

// BuildResult lists the files a build wrote. Exactly one of STLPath and
// Pieces is set.
type BuildResult struct {
	STLPath     string            `json:"stl_path,omitempty"`
	ThreeMFPath string            `json:"threemf_path,omitempty"`
	Pieces      []string          `json:"pieces,omitempty"`
	ZipPath     string            `json:"zip_path,omitempty"`
	Polygons    []outline.Polygon `json:"polygons"`
	Notes       []string          `json:"notes,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Build turns a job into mesh files. A bin larger than the bed is written
// as numbered pieces plus a zip of them instead of a single mesh.
func (r *Runner) Build(ctx context.Context, user string, job *Job) (*BuildResult, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	start := time.Now()
	logger := r.log.With().Str("job", job.Name).Logger()

	polygons, cfg, opt := job.Polygons, job.Bin, job.Options()
	if job.BinID != "" {
		saved, err := r.loadBin(user, job.BinID)
		if err != nil {
			return nil, err
		}
		polygons, cfg = saved.Polygons(), saved.Config
		opt.Scale = 0
	}

	prepared, notes := Prepare(polygons, opt)
	for _, n := range notes {
		logger.Debug().Str("note", n).Msg("polygon left unchanged")
	}

	dir, err := r.outputDir(user, job)
	if err != nil {
		return nil, err
	}

	engine := bin.NewSDFEngine(r.cfg.MeshCells)
	asm, err := bin.NewBuilder(engine, cfg).Build(prepared)
	if err != nil {
		return nil, err
	}
	res := &BuildResult{Polygons: prepared, Notes: notes, Warnings: asm.Warnings}

	bed := r.cfg.BedSize
	if job.BedSize != nil {
		bed = *job.BedSize
	}
	var pieces []bin.Piece
	if bed > 0 {
		if pieces, err = bin.Split(engine, asm, bed); err != nil {
			return nil, fmt.Errorf("split: %w", err)
		}
	}

	if len(pieces) > 0 {
		if res.Pieces, err = bin.ExportPieces(engine, pieces, dir, job.Name); err != nil {
			return nil, err
		}
		res.ZipPath = filepath.Join(dir, job.Name+"_parts.zip")
		if err := bin.ZipPieces(res.Pieces, res.ZipPath); err != nil {
			return nil, err
		}
	} else {
		out, err := bin.ExportAssembly(asm,
			filepath.Join(dir, job.Name+".stl"),
			filepath.Join(dir, job.Name+".3mf"))
		if err != nil {
			return nil, err
		}
		res.STLPath, res.ThreeMFPath = out.STLPath, out.ThreeMFPath
	}

	logger.Info().Int("polygons", len(prepared)).Int("pieces", len(res.Pieces)).
		Int("warnings", len(res.Warnings)).Dur("elapsed", time.Since(start)).Msg("build finished")
	return res, nil
}

// loadBin reads a saved bin and refreshes its placements from the tool
// library, saving the bin back when a tool had changed.
func (r *Runner) loadBin(user, id string) (store.Bin, error) {
	if r.scope == nil {
		return store.Bin{}, fmt.Errorf("bin %s: no record store configured", id)
	}
	u, err := r.scope.User(user)
	if err != nil {
		return store.Bin{}, err
	}
	saved, err := u.Bins.Get(id)
	if err != nil {
		return store.Bin{}, err
	}
	if saved.Sync(u.Tools.All()) {
		if err := u.Bins.Set(id, saved); err != nil {
			return store.Bin{}, err
		}
		r.log.Info().Str("bin", id).Msg("placements refreshed from library")
	}
	return saved, nil
}

func (r *Runner) outputDir(user string, job *Job) (string, error) {
	dir := job.OutputDir
	if dir == "" {
		if r.scope == nil {
			return "", fmt.Errorf("job %s: no output directory", job.Name)
		}
		u, err := r.scope.User(user)
		if err != nil {
			return "", err
		}
		dir = u.FilePath("generated")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}
