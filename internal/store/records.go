package store

import (
	"time"

	"tracefinity/internal/bin"
	"tracefinity/internal/outline"
)

// Bin is a saved bin layout: its configuration and the library tools
// placed in it.
type Bin struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Config     bin.Config          `json:"bin_config"`
	Placements []outline.Placement `json:"placed_tools"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Polygons returns the placed tools as cavity outlines.
func (b Bin) Polygons() []outline.Polygon {
	out := make([]outline.Polygon, len(b.Placements))
	for i, pl := range b.Placements {
		out[i] = pl.Polygon()
	}
	return out
}

// Sync refreshes every placement from its library tool and reports
// whether any changed.
func (b *Bin) Sync(tools map[string]outline.Tool) bool {
	synced, changed := outline.SyncPlacements(b.Placements, tools)
	if changed {
		b.Placements = synced
	}
	return changed
}
