package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hschendel/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"tracefinity/internal/bin"
	"tracefinity/internal/config"
	"tracefinity/internal/outline"
	"tracefinity/internal/paper"
	"tracefinity/internal/store"
	"tracefinity/pkg/geometry"
)

func square(x, y, size float64) []geometry.Point2D {
	return []geometry.Point2D{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	cfg.Workers = 2
	cfg.MeshCells = 24
	cfg.BedSize = 0
	return cfg
}

func plainBin(gx, gy, units int) bin.Config {
	cfg := bin.DefaultConfig()
	cfg.GridX, cfg.GridY, cfg.HeightUnits = gx, gy, units
	cfg.Magnets, cfg.StackingLip = false, false
	return cfg
}

func TestLoadJob_JSON5WithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// traced on a rectified photo
		name: 'pliers',
		scale: 0.1,
		smooth_level: 0.5,
		bin: {grid_x: 3, magnets: false},
		polygons: [
			{id: 'p1', points: [{x: 0, y: 0}, {x: 100, y: 0}, {x: 100, y: 50},],},
		],
	}`), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "pliers", job.Name)
	assert.Equal(t, 3, job.Bin.GridX)
	assert.Equal(t, 2, job.Bin.GridY, "unset bin fields keep defaults")
	assert.False(t, job.Bin.Magnets)
	require.Len(t, job.Polygons, 1)
	assert.Len(t, job.Polygons[0].Points, 3)

	opt := job.Options()
	assert.Equal(t, DefaultClearance, opt.Clearance)
	assert.Equal(t, DefaultSimplifyTolerance, opt.SimplifyTolerance)
	require.NotNil(t, opt.SmoothLevel)
	assert.Equal(t, 0.5, *opt.SmoothLevel)
}

func TestLoadJob_Errors(t *testing.T) {
	_, err := LoadJob(filepath.Join(t.TempDir(), "missing.json5"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{scale: -1}`), 0o644))
	_, err = LoadJob(path)
	assert.Error(t, err)
}

func TestPrepare_ScalesAndOffsetsInOrder(t *testing.T) {
	var polys []outline.Polygon
	for i := 0; i < 8; i++ {
		polys = append(polys, outline.Polygon{ID: string(rune('a' + i)), Points: square(float64(i)*300, 0, 100)})
	}

	out, notes := Prepare(polys, Options{Scale: 0.1, SimplifyTolerance: 0.3, Clearance: 1})
	assert.Empty(t, notes)
	require.Len(t, out, len(polys))
	for i, p := range out {
		assert.Equal(t, polys[i].ID, p.ID)
		assert.InDelta(t, 144, p.Area(), 1e-3)
	}
	assert.Equal(t, 0.0, polys[0].Points[1].Y, "input untouched")
	assert.Equal(t, 100.0, polys[0].Points[1].X)
}

func TestPrepare_SmoothingStaysNearOutline(t *testing.T) {
	level := 1.0
	out, _ := Prepare([]outline.Polygon{{ID: "s", Points: square(0, 0, 10)}}, Options{SmoothLevel: &level})
	assert.Greater(t, len(out[0].Points), 4)
	assert.Less(t, out[0].Area(), 100.0)
}

func TestRunner_SlotsBoundConcurrency(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 1
	r := NewRunner(cfg, nil)

	release, err := r.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Build(ctx, "", &Job{Name: "blocked", Bin: plainBin(1, 1, 2)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	_, err = r.acquire(context.Background())
	assert.NoError(t, err)
}

func TestRunner_BuildSingleMesh(t *testing.T) {
	r := NewRunner(testConfig(t), nil)
	dir := t.TempDir()
	job := &Job{
		Name:      "single",
		Bin:       plainBin(1, 1, 3),
		Polygons:  []outline.Polygon{{ID: "c", Points: square(11, 11, 20)}},
		OutputDir: dir,
	}

	res, err := r.Build(context.Background(), "", job)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "single.stl"), res.STLPath)
	assert.Empty(t, res.ThreeMFPath, "no embossed text")
	assert.Empty(t, res.Pieces)
	assert.InDelta(t, 22*22, res.Polygons[0].Area(), 1e-3, "default clearance applied")

	solid, err := stl.ReadFile(res.STLPath)
	require.NoError(t, err)
	assert.NotEmpty(t, solid.Triangles)
}

func TestRunner_BuildSplitsOversizedBin(t *testing.T) {
	r := NewRunner(testConfig(t), nil)
	dir := t.TempDir()
	bed := 60.0
	job := &Job{Name: "wide", Bin: plainBin(2, 1, 1), BedSize: &bed, OutputDir: dir}

	res, err := r.Build(context.Background(), "", job)
	require.NoError(t, err)
	assert.Empty(t, res.STLPath)
	assert.Equal(t, []string{filepath.Join(dir, "wide_part1.stl"), filepath.Join(dir, "wide_part2.stl")}, res.Pieces)
	assert.FileExists(t, res.ZipPath)
}

func TestRunner_BuildRequiresOutput(t *testing.T) {
	r := NewRunner(testConfig(t), nil)
	_, err := r.Build(context.Background(), "", &Job{Name: "x", Bin: plainBin(1, 1, 2)})
	assert.Error(t, err)

	_, err = r.Build(context.Background(), "", &Job{Name: "x", Bin: plainBin(0, 1, 2), OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, bin.ErrInvalidConfig)
}

func TestRunner_ToolLibraryToBin(t *testing.T) {
	cfg := testConfig(t)
	scope := store.NewScope(cfg.StorageDir)
	r := NewRunner(cfg, scope)

	tool, err := r.AddTool("alice", ToolRequest{
		Name:    "block",
		Polygon: outline.Polygon{ID: "traced", Points: square(100, 100, 200)},
		Options: Options{Scale: 0.1, SimplifyTolerance: 0.3},
	})
	require.NoError(t, err)
	c := geometry.Centroid(tool.Points)
	assert.InDelta(t, 0, c.X, 1e-9)
	assert.InDelta(t, 0, c.Y, 1e-9)
	assert.InDelta(t, 400, outline.Polygon{Points: tool.Points}.Area(), 1e-6)

	second, err := r.AddTool("alice", ToolRequest{Polygon: outline.Polygon{Points: square(0, 0, 50)}})
	require.NoError(t, err)
	tools, err := r.ListTools("alice")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Less(t, tools[0].ID, tools[1].ID, "listed in id order")
	assert.ElementsMatch(t, []Entry{{ID: tool.ID, Name: "block"}, {ID: second.ID, Name: "tool"}}, tools)

	bobTools, err := r.ListTools("bob")
	require.NoError(t, err)
	assert.Empty(t, bobTools)

	_, err = r.SaveBin("alice", "drawer", plainBin(1, 1, 3), []PlacementRequest{{ToolID: "nope"}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	saved, err := r.SaveBin("alice", "drawer", plainBin(1, 1, 3), []PlacementRequest{{ToolID: tool.ID, X: 21, Y: 21, Rotation: 45}})
	require.NoError(t, err)
	require.Len(t, saved.Placements, 1)
	bins, err := r.ListBins("alice")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: saved.ID, Name: "drawer"}}, bins)

	res, err := r.Build(context.Background(), "alice", &Job{Name: "drawer", BinID: saved.ID})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.StorageDir, "alice", "generated", "drawer.stl"), res.STLPath)
	require.Len(t, res.Polygons, 1)
	assert.InDelta(t, 22*22, res.Polygons[0].Area(), 1e-3)

	_, err = r.Build(context.Background(), "bob", &Job{Name: "drawer", BinID: saved.ID})
	assert.ErrorIs(t, err, store.ErrNotFound, "bins are per user")
}

func TestRunner_DetectAndRectify(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 800, 1000, gocv.MatTypeCV8UC3)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(350, 200, 633, 600), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	photo := filepath.Join(uploads, "photo.png")
	require.NoError(t, paper.WriteMat(photo, img))

	r := NewRunner(testConfig(t), nil)
	corners, err := r.Detect(context.Background(), photo)
	require.NoError(t, err)
	assert.InDelta(t, 350, corners[0].X, 1)

	rect, err := r.Rectify(context.Background(), photo, nil, "a4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processed", "photo_corrected.png"), rect.Path)
	assert.InDelta(t, 0.1, rect.Scale, 1e-12)
	assert.FileExists(t, rect.Path)

	_, err = r.Rectify(context.Background(), photo, &corners, "legal")
	assert.ErrorIs(t, err, paper.ErrUnknownPaperSize)
}
