package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tracefinity/internal/bin"
	"tracefinity/internal/outline"
	"tracefinity/internal/store"
	"tracefinity/internal/thumbnail"
	"tracefinity/pkg/geometry"
)

// ToolRequest is a traced outline to save to a user's tool library.
type ToolRequest struct {
	Name    string          `json:"name"`
	Polygon outline.Polygon `json:"polygon"`
	Options
	// ImagePath is the rectified photo the polygon was traced on; when
	// set a thumbnail is cropped from it.
	ImagePath string `json:"image_path"`
	SessionID string `json:"session_id"`
}

// AddTool normalises a traced outline, centres it on its centroid and
// stores it in the user's library.
func (r *Runner) AddTool(user string, req ToolRequest) (outline.Tool, error) {
	if r.scope == nil {
		return outline.Tool{}, fmt.Errorf("add tool: no record store configured")
	}
	u, err := r.scope.User(user)
	if err != nil {
		return outline.Tool{}, err
	}

	opt := req.Options
	opt.Clearance = 0
	prepared, notes := Prepare([]outline.Polygon{req.Polygon}, opt)
	p := prepared[0]
	for _, n := range notes {
		r.log.Debug().Str("note", n).Msg("tool outline left unchanged")
	}

	c := geometry.Centroid(p.Points)
	shift := geometry.Translation(-c.X, -c.Y)
	tool := outline.Tool{
		ID:              store.NewID(),
		Name:            req.Name,
		Points:          shift.ApplyAll(p.Points),
		Smoothed:        opt.SmoothLevel != nil,
		SourceSessionID: req.SessionID,
		CreatedAt:       time.Now().UTC(),
	}
	if opt.SmoothLevel != nil {
		tool.SmoothLevel = *opt.SmoothLevel
	}
	for _, h := range p.Holes {
		tool.Holes = append(tool.Holes, shift.ApplyAll(h))
	}
	for _, fh := range p.FingerHoles {
		fh.X -= c.X
		fh.Y -= c.Y
		tool.FingerHoles = append(tool.FingerHoles, fh)
	}
	if tool.Name == "" {
		tool.Name = "tool"
	}

	if err := u.Tools.Set(tool.ID, tool); err != nil {
		return outline.Tool{}, err
	}

	if req.ImagePath != "" {
		thumb := u.FilePath("thumbnails", tool.ID+".jpg")
		if err := os.MkdirAll(filepath.Dir(thumb), 0o755); err == nil {
			thumbnail.GenerateFromFile(req.ImagePath, req.Polygon.Points, thumb)
		}
	}
	r.log.Info().Str("tool", tool.ID).Str("name", tool.Name).Int("points", len(tool.Points)).Msg("tool saved")
	return tool, nil
}

// PlacementRequest positions a library tool in a bin, in millimetres
// from the bin's top-left corner.
type PlacementRequest struct {
	ToolID   string  `json:"tool_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// SaveBin stores a bin layout built from library tools.
func (r *Runner) SaveBin(user, name string, cfg bin.Config, placements []PlacementRequest) (store.Bin, error) {
	if r.scope == nil {
		return store.Bin{}, fmt.Errorf("save bin: no record store configured")
	}
	if err := cfg.Validate(); err != nil {
		return store.Bin{}, err
	}
	u, err := r.scope.User(user)
	if err != nil {
		return store.Bin{}, err
	}

	b := store.Bin{ID: store.NewID(), Name: name, Config: cfg, CreatedAt: time.Now().UTC()}
	for _, pr := range placements {
		lib, err := u.Tools.Get(pr.ToolID)
		if err != nil {
			return store.Bin{}, err
		}
		b.Placements = append(b.Placements, outline.Place(store.NewID(), lib, pr.X, pr.Y, pr.Rotation))
	}
	if err := u.Bins.Set(b.ID, b); err != nil {
		return store.Bin{}, err
	}
	return b, nil
}

// Entry names one stored record.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListTools returns the user's library tools in id order.
func (r *Runner) ListTools(user string) ([]Entry, error) {
	if r.scope == nil {
		return nil, fmt.Errorf("list tools: no record store configured")
	}
	u, err := r.scope.User(user)
	if err != nil {
		return nil, err
	}
	return entries(u.Tools, func(t outline.Tool) string { return t.Name }), nil
}

// ListBins returns the user's saved bins in id order.
func (r *Runner) ListBins(user string) ([]Entry, error) {
	if r.scope == nil {
		return nil, fmt.Errorf("list bins: no record store configured")
	}
	u, err := r.scope.User(user)
	if err != nil {
		return nil, err
	}
	return entries(u.Bins, func(b store.Bin) string { return b.Name }), nil
}

func entries[T any](s *store.Store[T], name func(T) string) []Entry {
	ids := s.IDs()
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		v, err := s.Get(id)
		if err != nil {
			// deleted since IDs was taken
			continue
		}
		out = append(out, Entry{ID: id, Name: name(v)})
	}
	return out
}
