// Package ssim finds repeated instances of a template inside a region of an
// image.
//
// The region is resampled to a fixed 250x250 canonical image, the template
// is cut from the same canonical image and correlated against it with
// normalised cross correlation. Every position scoring above the threshold
// becomes a match, best first.
package ssim

import (
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/planner"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// Config tunes the matcher.
type Config struct {
	CanonicalSize int
	Threshold     float64
	MergeIoU      float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{CanonicalSize: 250, Threshold: 0.7, MergeIoU: 0.5}
}

// Request describes one matching run. Template is relative to ROI.
type Request struct {
	Image               vision.PixelBuffer
	ROI                 geometry.Rect
	Template            geometry.Rect
	ExistingAnnotations []geometry.Shape
	AutoMergeDuplicates bool
	ShapeType           geometry.ShapeType
}

// Match is one template occurrence in image coordinates.
type Match struct {
	Shape      geometry.Rect `json:"shape"`
	Confidence float64       `json:"confidence"`
}

// Matcher runs template matching requests.
type Matcher struct {
	lib    *vision.Library
	arena  *arena.Arena
	cfg    Config
	logger *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(m *Matcher) { m.cfg = cfg }
}

// WithLogger sets the matcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a matcher whose buffers live in a.
func New(lib *vision.Library, a *arena.Arena, opts ...Option) *Matcher {
	m := &Matcher{lib: lib, arena: a, cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute returns the template matches of req sorted by confidence,
// highest first. Failures are logged and produce no matches.
func (m *Matcher) Execute(req Request) []Match {
	var matches []Match
	err := m.arena.WithScoped(func(sc *arena.Scope) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		matches, err = m.execute(sc, req)
		return err
	})
	if err != nil {
		m.logger.Warn("template matching failed", zap.Error(err))
		return []Match{}
	}
	if req.AutoMergeDuplicates {
		matches = mergeDuplicates(matches, req.ExistingAnnotations, req.ShapeType, m.cfg.MergeIoU)
	}
	m.logger.Debug("template matching finished", zap.Int("matches", len(matches)))
	return matches
}

func (m *Matcher) execute(sc *arena.Scope, req Request) ([]Match, error) {
	roi := planner.ClampROI(req.ROI, req.Image.Size())
	if roi.Empty() {
		return nil, fmt.Errorf("region %+v is outside the image", req.ROI)
	}

	rgb, err := vision.MatRGB(req.Image)
	h := sc.AdoptMat(rgb)
	if err != nil {
		return nil, err
	}
	view := sc.Mat(sc.AdoptMat(sc.Mat(h).Region(roi)))

	side := m.cfg.CanonicalSize
	canonical := sc.Mat(sc.NewMat())
	gocv.Resize(*view, canonical, image.Pt(side, side), 0, 0, gocv.InterpolationArea)
	scaleX := float64(side) / float64(roi.Dx())
	scaleY := float64(side) / float64(roi.Dy())

	tr := templateRect(req.Template, scaleX, scaleY)
	if tr.Empty() || !tr.In(image.Rect(0, 0, side, side)) {
		return nil, fmt.Errorf("template %+v does not fit the region", req.Template)
	}
	templ := sc.Mat(sc.AdoptMat(canonical.Region(tr)))

	result := sc.Mat(sc.NewMat())
	noMask := sc.Mat(sc.NewMat())
	gocv.MatchTemplate(*canonical, *templ, result, gocv.TmCcorrNormed, *noMask)
	gocv.Normalize(*result, result, 0, 1, gocv.NormMinMax)

	surface := mat.NewDense(result.Rows(), result.Cols(), nil)
	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			surface.Set(y, x, float64(result.GetFloatAt(y, x)))
		}
	}

	origin := geometry.Point{X: float64(roi.Min.X), Y: float64(roi.Min.Y)}
	return collectMatches(surface, scaleX, scaleY, req.Template, origin, m.cfg.Threshold), nil
}

// templateRect maps a region-relative template into canonical pixels,
// truncating like an integer rectangle constructor.
func templateRect(t geometry.Rect, scaleX, scaleY float64) image.Rectangle {
	x := int(t.X * scaleX)
	y := int(t.Y * scaleY)
	return image.Rect(x, y, x+int(t.Width*scaleX), y+int(t.Height*scaleY))
}

// collectMatches turns every surface value strictly above threshold into a
// match placed back in image coordinates. Equal values keep raster order.
func collectMatches(surface *mat.Dense, scaleX, scaleY float64, template geometry.Rect, origin geometry.Point, threshold float64) []Match {
	rows, cols := surface.Dims()
	matches := []Match{}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := surface.At(y, x)
			if v <= threshold {
				continue
			}
			matches = append(matches, Match{
				Shape: geometry.Rect{
					X:      (float64(x)+0.5)/scaleX + origin.X,
					Y:      (float64(y)+0.5)/scaleY + origin.Y,
					Width:  template.Width,
					Height: template.Height,
				},
				Confidence: v,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// mergeDuplicates drops matches overlapping an existing annotation of the
// requested type, or a better match already kept, by at least minIoU.
func mergeDuplicates(matches []Match, existing []geometry.Shape, shapeType geometry.ShapeType, minIoU float64) []Match {
	var taken []geometry.Rect
	for _, s := range existing {
		if s == nil || (shapeType != "" && s.Type() != shapeType) {
			continue
		}
		taken = append(taken, s.Bounds())
	}

	kept := []Match{}
	for _, m := range matches {
		duplicate := false
		for _, r := range taken {
			if geometry.IoU(m.Shape, r) >= minIoU {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, m)
		taken = append(taken, m.Shape)
	}
	return kept
}
