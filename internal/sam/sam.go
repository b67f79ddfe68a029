// Package sam turns the binary masks produced by a Segment Anything
// decoder into annotation shapes.
//
// Inference runs elsewhere. This package only finds the external contours of
// a mask, simplifies them, scales them from mask resolution to the original
// image and converts them to the requested shape type. Contours whose
// bounding box covers 90% or more of the original image are dropped as
// background.
package sam

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/contour"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

var (
	// ErrUnsupportedShape is returned for shape types a mask cannot become.
	ErrUnsupportedShape = errors.New("sam: unsupported shape type")

	// ErrInvalidMask is returned when the mask does not match its sizes.
	ErrInvalidMask = errors.New("sam: mask does not match its dimensions")
)

// MaxCoverage is the bounding box to image area ratio at which a contour is
// considered background.
const MaxCoverage = 0.9

// Sizes relates the mask resolution to the original image.
type Sizes struct {
	Width          int `json:"width"`
	Height         int `json:"height"`
	OriginalWidth  int `json:"originalWidth"`
	OriginalHeight int `json:"originalHeight"`
}

// Config selects the output shape and an optional filter.
type Config struct {
	Type        geometry.ShapeType
	ShapeFilter func(geometry.Shape) bool
}

// Result holds the surviving shapes, their raster areas in mask pixels and
// the index of the largest one.
type Result struct {
	Shapes              []geometry.Shape `json:"shapes"`
	Areas               []float64        `json:"areas"`
	RepresentativeIndex int              `json:"representativeIndex"`
}

// ContainsPoint returns a filter keeping shapes whose bounding box contains p.
func ContainsPoint(p geometry.Point) func(geometry.Shape) bool {
	return func(s geometry.Shape) bool {
		return s.Bounds().Contains(p)
	}
}

// PostProcessor converts masks to shapes.
type PostProcessor struct {
	lib    *vision.Library
	arena  *arena.Arena
	logger *zap.Logger
}

// New creates a post-processor whose buffers live in a.
func New(lib *vision.Library, a *arena.Arena, logger *zap.Logger) *PostProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostProcessor{lib: lib, arena: a, logger: logger}
}

type scaler struct {
	sizes Sizes
}

func (s scaler) x(v float64) float64 {
	return math.Round(v * float64(s.sizes.OriginalWidth) / float64(s.sizes.Width))
}

func (s scaler) y(v float64) float64 {
	return math.Round(v * float64(s.sizes.OriginalHeight) / float64(s.sizes.Height))
}

// MaskToShapes extracts shapes from a single channel mask of
// sizes.Width x sizes.Height bytes, non-zero meaning foreground.
func (p *PostProcessor) MaskToShapes(pixels []byte, sizes Sizes, cfg Config) (Result, error) {
	switch cfg.Type {
	case geometry.ShapePolygon, geometry.ShapeRect, geometry.ShapeRotatedRect, geometry.ShapeCircle:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedShape, cfg.Type)
	}
	if sizes.Width <= 0 || sizes.Height <= 0 || sizes.OriginalWidth <= 0 || sizes.OriginalHeight <= 0 {
		return Result{}, fmt.Errorf("%w: sizes %+v", ErrInvalidMask, sizes)
	}
	if len(pixels) != sizes.Width*sizes.Height {
		return Result{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidMask, len(pixels), sizes.Width, sizes.Height)
	}

	result := Result{Shapes: []geometry.Shape{}, Areas: []float64{}}
	sc := scaler{sizes: sizes}
	imageArea := float64(sizes.OriginalWidth * sizes.OriginalHeight)

	err := p.arena.WithScoped(func(s *arena.Scope) error {
		m, err := gocv.NewMatFromBytes(sizes.Height, sizes.Width, gocv.MatTypeCV8UC1, pixels)
		if err != nil {
			return fmt.Errorf("wrapping mask: %w", err)
		}
		mask := s.Mat(s.AdoptMat(m))

		contours := s.Contours(s.AdoptContours(gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxNone)))
		maxArea := -1.0
		for i := 0; i < contours.Size(); i++ {
			simplified := contour.Approximate(s, contours.At(i), true)
			area := gocv.ContourArea(simplified)

			box := toRect(simplified, sc)
			if box.Width*box.Height/imageArea >= MaxCoverage {
				continue
			}
			shape := toShape(simplified, cfg.Type, sc)
			if cfg.ShapeFilter != nil && !cfg.ShapeFilter(shape) {
				continue
			}
			result.Shapes = append(result.Shapes, shape)
			result.Areas = append(result.Areas, area)
			if area > maxArea {
				maxArea = area
				result.RepresentativeIndex = len(result.Shapes) - 1
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	p.logger.Debug("mask converted",
		zap.String("type", string(cfg.Type)),
		zap.Int("shapes", len(result.Shapes)))
	return result, nil
}

func toShape(pv gocv.PointVector, t geometry.ShapeType, sc scaler) geometry.Shape {
	switch t {
	case geometry.ShapeRect:
		return toRect(pv, sc)
	case geometry.ShapeRotatedRect:
		r := gocv.MinAreaRect2f(pv)
		return geometry.RotatedRect{
			X:      sc.x(float64(r.Center.X)),
			Y:      sc.y(float64(r.Center.Y)),
			Width:  sc.x(float64(r.Width)),
			Height: sc.y(float64(r.Height)),
			Angle:  r.Angle,
		}
	case geometry.ShapeCircle:
		r := gocv.MinAreaRect2f(pv)
		return geometry.Circle{
			X: sc.x(float64(r.Center.X)),
			Y: sc.y(float64(r.Center.Y)),
			R: math.Round(math.Max(sc.x(float64(r.Width)), sc.y(float64(r.Height))) / 2),
		}
	default:
		raw := pv.ToPoints()
		points := make([]geometry.Point, len(raw))
		for i, pt := range raw {
			points[i] = geometry.Point{X: sc.x(float64(pt.X)), Y: sc.y(float64(pt.Y))}
		}
		return geometry.Polygon{Points: geometry.ClosePoints(points)}
	}
}

func toRect(pv gocv.PointVector, sc scaler) geometry.Rect {
	b := gocv.BoundingRect(pv)
	return geometry.Rect{
		X:      sc.x(float64(b.Min.X)),
		Y:      sc.y(float64(b.Min.Y)),
		Width:  sc.x(float64(b.Dx())),
		Height: sc.y(float64(b.Dy())),
	}
}
