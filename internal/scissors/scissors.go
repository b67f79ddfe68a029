package scissors

import (
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/contour"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/planner"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// ErrNotLoaded is returned by BuildMap before an image was loaded.
var ErrNotLoaded = errors.New("scissors: no image loaded")

// Config tunes the tracer.
type Config struct {
	MaxROISide      int
	CannyLow        float32
	CannyHigh       float32
	GradientCeiling float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MaxROISide:      planner.DefaultScissorsSide,
		CannyLow:        16,
		CannyHigh:       100,
		GradientCeiling: 200,
	}
}

type seeded struct {
	roi  image.Rectangle
	tree *Map
}

// Tracer is an intelligent scissors session.
type Tracer struct {
	lib    *vision.Library
	arena  *arena.Arena
	cfg    Config
	logger *zap.Logger

	image arena.Handle
	size  image.Point
	seed  *seeded
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(t *Tracer) { t.cfg = cfg }
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a tracer with no image.
func New(lib *vision.Library, a *arena.Arena, opts ...Option) *Tracer {
	t := &Tracer{lib: lib, arena: a, cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Loaded reports whether an image is loaded.
func (t *Tracer) Loaded() bool { return t.image != 0 }

// Seeded reports whether a seed point is set.
func (t *Tracer) Seeded() bool { return t.seed != nil }

// LoadImage replaces the session image. Any seed is dropped.
func (t *Tracer) LoadImage(pixels vision.PixelBuffer) error {
	t.CleanImage()
	rgb, err := vision.MatRGB(pixels)
	if err != nil {
		rgb.Close()
		return fmt.Errorf("loading scissors image: %w", err)
	}
	t.image = t.arena.AdoptMat(rgb)
	t.size = pixels.Size()
	return nil
}

// BuildMap fixes the seed at point and computes the shortest path tree of
// the working window around it. A seed outside the image leaves the tracer
// unseeded.
func (t *Tracer) BuildMap(point geometry.Point) error {
	if !t.Loaded() {
		return ErrNotLoaded
	}
	t.seed = nil

	roi, ok := planner.ScissorsROI(point, t.size, t.cfg.MaxROISide)
	if !ok {
		roi = image.Rectangle{Max: t.size}
	}
	rel := planner.Relative(point, roi)
	local := image.Pt(int(math.Round(rel.X)), int(math.Round(rel.Y)))
	if !local.In(image.Rectangle{Max: roi.Size()}) {
		t.logger.Debug("scissors seed outside image", zap.Float64("x", point.X), zap.Float64("y", point.Y))
		return nil
	}

	var tree *Map
	err := t.arena.WithScoped(func(sc *arena.Scope) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("building edge map: %v", r)
			}
		}()
		view := sc.Mat(sc.AdoptMat(t.arena.Mat(t.image).Region(roi)))
		features, err := extractFeatures(sc, *view, t.cfg)
		if err != nil {
			return err
		}
		tree = BuildMap(features, local)
		return nil
	})
	if err != nil {
		t.logger.Warn("scissors map build failed", zap.Error(err))
		return nil
	}

	t.seed = &seeded{roi: roi, tree: tree}
	t.logger.Debug("scissors map built", zap.Stringer("roi", roi), zap.Stringer("seed", local))
	return nil
}

// CalcPoints returns the boundary from the seed to point in image
// coordinates. It returns an empty list when there is no seed or point lies
// on or outside the working window edge. CalcPoints does not change the
// session.
func (t *Tracer) CalcPoints(point geometry.Point) []geometry.Point {
	if t.seed == nil {
		return []geometry.Point{}
	}
	roi := t.seed.roi
	rel := planner.Relative(point, roi)
	w, h := float64(roi.Dx()), float64(roi.Dy())
	if rel.X <= 0 || rel.X >= w || rel.Y <= 0 || rel.Y >= h {
		return []geometry.Point{}
	}

	target := image.Pt(
		min(int(math.Round(rel.X)), roi.Dx()-1),
		min(int(math.Round(rel.Y)), roi.Dy()-1),
	)
	path := t.seed.tree.Path(target)
	points := make([]geometry.Point, 0, len(path))
	for _, p := range path {
		points = append(points, geometry.Point{X: float64(p.X + roi.Min.X), Y: float64(p.Y + roi.Min.Y)})
	}
	return points
}

// OptimizePolygon simplifies a closed polygon.
func (t *Tracer) OptimizePolygon(polygon geometry.Polygon) geometry.Polygon {
	return geometry.Polygon{Points: contour.Simplify(t.arena, polygon.Points, true)}
}

// OptimizeSegments simplifies each traced segment as an open curve and
// joins them into one polygon. Single point segments pass through.
func (t *Tracer) OptimizeSegments(segments [][]geometry.Point) geometry.Polygon {
	points := []geometry.Point{}
	for _, segment := range segments {
		if len(segment) > 1 {
			segment = contour.Simplify(t.arena, segment, false)
		}
		points = append(points, segment...)
	}
	return geometry.Polygon{Points: points}
}

// CleanPoints drops the seed and its map.
func (t *Tracer) CleanPoints() {
	t.seed = nil
}

// CleanImage releases the image and drops the seed.
func (t *Tracer) CleanImage() {
	t.seed = nil
	if t.image != 0 {
		t.arena.Release(t.image)
		t.image = 0
	}
	t.size = image.Point{}
}
