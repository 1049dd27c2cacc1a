package bin

import (
	"fmt"
	"math"
	"time"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"

	"tracefinity/internal/outline"
	"tracefinity/pkg/geometry"
)

// BuildContext carries one build's state between steps. Steps never modify
// the context they receive; they return a new one.
type BuildContext struct {
	Config Config
	// Polygons are cavities in build coordinates.
	Polygons []outline.Polygon
	Body     Solid
	Text     Solid
	Warnings []string
}

// WithBody returns a copy of c holding body.
func (c *BuildContext) WithBody(body Solid) *BuildContext {
	next := *c
	next.Body = body
	return &next
}

// WithText returns a copy of c holding text.
func (c *BuildContext) WithText(text Solid) *BuildContext {
	next := *c
	next.Text = text
	return &next
}

// Warn returns a copy of c with msg appended to its warnings.
func (c *BuildContext) Warn(msg string) *BuildContext {
	next := *c
	next.Warnings = append(append([]string(nil), c.Warnings...), msg)
	return &next
}

// Step is one stage of a build.
type Step struct {
	Name string
	Run  func(*BuildContext) (*BuildContext, error)
}

// Assembly is a finished build: the bin body and, when a label is
// embossed, a separate text body.
type Assembly struct {
	Config   Config
	Body     Solid
	Text     Solid
	Warnings []string

	engine Engine
}

// HasText reports whether the assembly has an embossed text body.
func (a *Assembly) HasText() bool { return !a.Text.Empty() }

// Builder assembles a bin from a config and cavity outlines.
type Builder struct {
	engine Engine
	cfg    Config
	log    zerolog.Logger
}

// NewBuilder returns a builder for cfg on engine.
func NewBuilder(engine Engine, cfg Config) *Builder {
	return &Builder{
		engine: engine,
		cfg:    cfg,
		log:    log.With().Str("component", "bin").Logger(),
	}
}

// Steps returns the build sequence in order.
func (b *Builder) Steps() []Step {
	return []Step{
		{"shell", b.shell},
		{"magnets", b.magnets},
		{"infill", b.infill},
		{"cavities", b.cavities},
		{"finger holes", b.fingerHoles},
		{"labels", b.recessedLabels},
		{"embossed labels", b.embossedLabels},
	}
}

// Build runs every step over polygons given in layout millimetres (origin
// at the bin's top-left corner, y down). Shell, magnet and infill failures
// abort the build with ErrBuildFailed; other per-item failures are logged
// and recorded as warnings.
func (b *Builder) Build(polygons []outline.Polygon) (*Assembly, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := &BuildContext{Config: b.cfg, Polygons: CenterPolygons(b.cfg, polygons)}

	start := time.Now()
	for _, step := range b.Steps() {
		t := time.Now()
		next, err := step.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name, err)
		}
		ctx = next
		b.log.Debug().Str("step", step.Name).Dur("elapsed", time.Since(t)).Msg("build step")
	}
	b.log.Info().Int("cavities", len(ctx.Polygons)).Int("warnings", len(ctx.Warnings)).
		Dur("elapsed", time.Since(start)).Msg("bin built")

	return &Assembly{
		Config:   ctx.Config,
		Body:     ctx.Body,
		Text:     ctx.Text,
		Warnings: ctx.Warnings,
		engine:   b.engine,
	}, nil
}

func fatal(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBuildFailed, what, err)
}

func (b *Builder) shell(ctx *BuildContext) (*BuildContext, error) {
	body, err := buildShell(b.engine, ctx.Config)
	if err != nil {
		return nil, fatal("shell", err)
	}
	return ctx.WithBody(body), nil
}

// magnets cuts every magnet pocket in one boolean.
func (b *Builder) magnets(ctx *BuildContext) (*BuildContext, error) {
	if !ctx.Config.Magnets {
		return ctx, nil
	}
	holes, err := magnetHoles(b.engine, ctx.Config)
	if err != nil {
		return nil, fatal("magnet holes", err)
	}
	body, err := b.engine.Subtract(ctx.Body, holes...)
	if err != nil {
		return nil, fatal("magnet holes", err)
	}
	return ctx.WithBody(body), nil
}

// infill fills the bin interior up to the wall top so cavities can be cut
// into it. Bins without cavities stay hollow.
func (b *Builder) infill(ctx *BuildContext) (*BuildContext, error) {
	if len(ctx.Polygons) == 0 {
		return ctx, nil
	}
	cfg := ctx.Config
	height := cfg.WallTop() - BaseHeight
	block, err := b.engine.Box(
		r3.Vec{Z: BaseHeight + height/2},
		r3.Vec{
			X: cfg.Width() - 2*cfg.WallThickness - infillClearance,
			Y: cfg.Depth() - 2*cfg.WallThickness - infillClearance,
			Z: height,
		}, 0)
	if err != nil {
		return nil, fatal("infill", err)
	}
	body, err := b.engine.Union(ctx.Body, block)
	if err != nil {
		return nil, fatal("infill", err)
	}
	return ctx.WithBody(body), nil
}

// cavities cuts every footprint in one boolean, falling back to one cut
// per polygon when the batch fails.
func (b *Builder) cavities(ctx *BuildContext) (*BuildContext, error) {
	if len(ctx.Polygons) == 0 {
		return ctx, nil
	}
	cfg := ctx.Config
	depth := cfg.PocketDepth()
	floor := cfg.PocketFloor()

	batched, err := b.cutFootprint(ctx.Body, unionFootprints(ctx.Polygons), floor, depth)
	if err == nil {
		return ctx.WithBody(batched), nil
	}
	b.log.Warn().Err(err).Msg("batched cavity cut failed, cutting individually")

	for _, p := range ctx.Polygons {
		body, err := b.cutFootprint(ctx.Body, p.Rings(), floor, depth)
		if err != nil {
			b.log.Warn().Err(err).Str("polygon", p.ID).Msg("cavity skipped")
			ctx = ctx.Warn(fmt.Sprintf("cavity %s skipped: %v", p.ID, err))
			continue
		}
		ctx = ctx.WithBody(body)
	}
	return ctx, nil
}

func (b *Builder) cutFootprint(body Solid, contours [][]geometry.Point2D, floor, depth float64) (Solid, error) {
	if len(contours) == 0 {
		return Solid{}, fmt.Errorf("empty footprint")
	}
	pocket, err := b.engine.Prism(contours, floor, depth+cutOvershoot)
	if err != nil {
		return Solid{}, err
	}
	return b.engine.Subtract(body, pocket)
}

// unionFootprints merges all cavity outlines into one set of contours.
// It returns nil when the polygon clipper fails.
func unionFootprints(polygons []outline.Polygon) (contours [][]geometry.Point2D) {
	defer func() {
		if recover() != nil {
			contours = nil
		}
	}()

	var acc polyclip.Polygon
	for _, p := range polygons {
		var next polyclip.Polygon
		for _, ring := range p.Rings() {
			c := make(polyclip.Contour, len(ring))
			for i, pt := range ring {
				c[i] = polyclip.Point{X: pt.X, Y: pt.Y}
			}
			next.Add(c)
		}
		if acc == nil {
			acc = next
			continue
		}
		acc = acc.Construct(polyclip.UNION, next)
	}
	for _, c := range acc {
		ring := make([]geometry.Point2D, len(c))
		for i, pt := range c {
			ring[i] = geometry.Point2D{X: pt.X, Y: pt.Y}
		}
		contours = append(contours, ring)
	}
	return contours
}

// fingerHoles cuts each finger hole on its own; failures are skipped.
func (b *Builder) fingerHoles(ctx *BuildContext) (*BuildContext, error) {
	cfg := ctx.Config
	wallTop := cfg.WallTop()
	depth := cfg.PocketDepth()
	floor := cfg.PocketFloor()

	for _, p := range ctx.Polygons {
		for _, fh := range p.FingerHoles {
			var (
				tool Solid
				err  error
			)
			switch fh.Kind() {
			case outline.ShapeCircle:
				z := math.Max(wallTop, floor+fh.Radius)
				tool, err = b.engine.Sphere(r3.Vec{X: fh.X, Y: fh.Y, Z: z}, fh.Radius)
			default:
				w, d := fh.Extent()
				tool, err = b.engine.Box(
					r3.Vec{X: fh.X, Y: fh.Y, Z: wallTop - depth/2},
					r3.Vec{X: w, Y: d, Z: depth + cutOvershoot},
					fh.Rotation)
			}
			if err == nil {
				var body Solid
				if body, err = b.engine.Subtract(ctx.Body, tool); err == nil {
					ctx = ctx.WithBody(body)
					continue
				}
			}
			b.log.Warn().Err(err).Str("polygon", p.ID).Str("finger_hole", fh.ID).
				Str("shape", string(fh.Kind())).Msg("finger hole skipped")
			ctx = ctx.Warn(fmt.Sprintf("finger hole %s skipped: %v", fh.ID, err))
		}
	}
	return ctx, nil
}

// labelSolid extrudes a label's text from z0 upward by height.
func (b *Builder) labelSolid(cfg Config, l TextLabel, z0, height float64) (Solid, error) {
	contours, err := TextContours(l.Text, l.FontSize)
	if err != nil {
		return Solid{}, err
	}
	at := toBin(cfg, geometry.Point2D{X: l.X, Y: l.Y})
	return b.engine.Prism(placeContours(contours, at, l.Rotation), z0, height)
}

// recessedLabels cuts non-embossed labels down from the wall top.
func (b *Builder) recessedLabels(ctx *BuildContext) (*BuildContext, error) {
	wallTop := ctx.Config.WallTop()
	for _, l := range ctx.Config.TextLabels {
		if l.Emboss {
			continue
		}
		h := l.Depth + cutOvershoot
		text, err := b.labelSolid(ctx.Config, l, wallTop-h, h)
		if err == nil {
			var body Solid
			if body, err = b.engine.Subtract(ctx.Body, text); err == nil {
				ctx = ctx.WithBody(body)
				continue
			}
		}
		b.log.Warn().Err(err).Str("label", l.ID).Msg("label skipped")
		ctx = ctx.Warn(fmt.Sprintf("label %s skipped: %v", l.ID, err))
	}
	return ctx, nil
}

// embossedLabels builds raised labels as a separate body standing on the
// wall top.
func (b *Builder) embossedLabels(ctx *BuildContext) (*BuildContext, error) {
	wallTop := ctx.Config.WallTop()
	for _, l := range ctx.Config.TextLabels {
		if !l.Emboss {
			continue
		}
		text, err := b.labelSolid(ctx.Config, l, wallTop, l.Depth)
		if err == nil {
			var merged Solid
			if merged, err = b.engine.Union(ctx.Text, text); err == nil {
				ctx = ctx.WithText(merged)
				continue
			}
		}
		b.log.Warn().Err(err).Str("label", l.ID).Msg("embossed label skipped")
		ctx = ctx.Warn(fmt.Sprintf("embossed label %s skipped: %v", l.ID, err))
	}
	return ctx, nil
}
