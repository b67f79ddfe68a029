package grabcut

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/contour"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/planner"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// ErrNotLoaded is returned by Start before an image was loaded.
var ErrNotLoaded = errors.New("grabcut: no image loaded")

// minClassSamples is the number of colour model components; GrabCut needs at
// least that many pixels of each class to initialise its models.
const minClassSamples = 5

// Config tunes the segmenter.
type Config struct {
	RectIterations int
	MaskIterations int
	BorderWidth    int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{RectIterations: 2, MaskIterations: 1, BorderWidth: 8}
}

// Request describes one segmentation run.
type Request struct {
	Rect        geometry.Rect
	Foreground  [][]geometry.Point
	Background  [][]geometry.Point
	Sensitivity float64
	StrokeWidth int
	InOrder     bool
}

func (r Request) hasStrokes() bool {
	return len(r.Foreground) > 0 || len(r.Background) > 0
}

// loadedState is the session data of a loaded segmenter.
type loadedState struct {
	image    arena.Handle
	size     image.Point
	mask     arena.Handle
	maskSize image.Point
	bgd      arena.Handle
	fgd      arena.Handle
}

// Segmenter is a GrabCut session.
type Segmenter struct {
	lib    *vision.Library
	arena  *arena.Arena
	cfg    Config
	logger *zap.Logger
	state  *loadedState
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Segmenter) { s.cfg = cfg }
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Segmenter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty segmenter whose buffers live in a.
func New(lib *vision.Library, a *arena.Arena, opts ...Option) *Segmenter {
	s := &Segmenter{lib: lib, arena: a, cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loaded reports whether an image is loaded.
func (s *Segmenter) Loaded() bool {
	return s.state != nil
}

// LoadImage replaces the session image and resets the mask and models.
func (s *Segmenter) LoadImage(pixels vision.PixelBuffer) error {
	s.CleanModels()

	img, err := vision.MatRGB(pixels)
	if err != nil {
		img.Close()
		return fmt.Errorf("loading grabcut image: %w", err)
	}
	s.state = &loadedState{
		image: s.arena.AdoptMat(img),
		size:  pixels.Size(),
		bgd:   s.arena.Acquire(arena.KindMat, arena.Dims{}),
		fgd:   s.arena.Acquire(arena.KindMat, arena.Dims{}),
	}
	s.logger.Debug("grabcut image loaded", zap.Int("width", pixels.Width), zap.Int("height", pixels.Height))
	return nil
}

// CleanModels releases the image, mask and models. It is a no-op on an
// empty segmenter.
func (s *Segmenter) CleanModels() {
	if s.state == nil {
		return
	}
	for _, h := range []arena.Handle{s.state.image, s.state.mask, s.state.bgd, s.state.fgd} {
		if h != 0 {
			s.arena.Release(h)
		}
	}
	s.state = nil
}

// Start runs GrabCut for req and returns the outline of the largest
// foreground region as a closed polygon in image coordinates. Degenerate
// input yields a polygon with no points.
func (s *Segmenter) Start(req Request) (geometry.Polygon, error) {
	if s.state == nil {
		return geometry.Polygon{}, ErrNotLoaded
	}
	plan, err := planner.Compute(req.Rect, req.Sensitivity, s.state.size)
	if err != nil {
		return geometry.Polygon{}, err
	}
	result := geometry.Polygon{Points: []geometry.Point{}}
	if plan.Empty() {
		return result, nil
	}

	err = s.arena.WithScoped(func(sc *arena.Scope) error {
		points, err := s.run(sc, plan, req)
		if err != nil {
			return err
		}
		result.Points = geometry.ClosePoints(points)
		return nil
	})
	if err != nil {
		return geometry.Polygon{}, err
	}
	s.logger.Debug("grabcut finished",
		zap.Stringer("roi", plan.ROI),
		zap.Float64("scale", plan.Scale),
		zap.Int("points", len(result.Points)))
	return result, nil
}

func (s *Segmenter) run(sc *arena.Scope, plan planner.Plan, req Request) ([]geometry.Point, error) {
	st := s.state
	roiSize := plan.ROI.Size()
	workSize := plan.Downscaled(roiSize)

	img := s.arena.Mat(st.image)
	view := sc.Mat(sc.AdoptMat(img.Region(plan.ROI)))
	work := sc.Mat(sc.NewMat())
	if plan.Resize() {
		gocv.Resize(*view, work, workSize, 0, 0, gocv.InterpolationArea)
	} else {
		view.CopyTo(work)
	}

	var mask *gocv.Mat
	maskMode := false
	if st.mask != 0 && req.hasStrokes() && st.maskSize == roiSize {
		mask = s.markedMask(sc, plan, req, workSize)
		maskMode = hasBothClasses(mask)
		if !maskMode {
			s.logger.Debug("stroke mask lacks a class, falling back to rectangle")
		}
	}

	if maskMode {
		gocv.GrabCut(*work, mask, image.Rectangle{},
			s.arena.Mat(st.bgd), s.arena.Mat(st.fgd), s.cfg.MaskIterations, gocv.GCInitWithMask)
	} else {
		selection := image.Rect(1, 1, workSize.X-1, workSize.Y-1)
		if !rectFeasible(workSize) {
			return []geometry.Point{}, nil
		}
		mask = sc.Mat(sc.Acquire(arena.KindMat, arena.Dims{Rows: workSize.Y, Cols: workSize.X, Type: gocv.MatTypeCV8UC1}))
		mask.SetTo(vision.MaskScalar(vision.ProbableBackground))
		s.resetModels()
		gocv.GrabCut(*work, mask, selection,
			s.arena.Mat(st.bgd), s.arena.Mat(st.fgd), s.cfg.RectIterations, gocv.GCInitWithRect)
	}

	if plan.Resize() {
		full := sc.Mat(sc.NewMat())
		gocv.Resize(*mask, full, roiSize, 0, 0, gocv.InterpolationNearestNeighbor)
		mask = full
	}

	s.replaceMask(mask.Clone(), roiSize)

	border := 0
	if plan.Resize() {
		border = s.cfg.BorderWidth
	}
	return extractPolygon(sc, *mask, plan.Offset(), border), nil
}

// markedMask burns the strokes into a copy of the previous mask and scales
// it to the working size.
func (s *Segmenter) markedMask(sc *arena.Scope, plan planner.Plan, req Request, workSize image.Point) *gocv.Mat {
	marked := sc.Mat(sc.AdoptMat(s.arena.Mat(s.state.mask).Clone()))
	offset := geometry.Point{X: -float64(plan.ROI.Min.X), Y: -float64(plan.ROI.Min.Y)}
	width := max(1, req.StrokeWidth)

	background := func() { burnStrokes(sc, marked, req.Background, vision.Background, width, offset) }
	foreground := func() { burnStrokes(sc, marked, req.Foreground, vision.Foreground, width, offset) }
	if req.InOrder {
		background()
		foreground()
	} else {
		foreground()
		background()
	}

	if !plan.Resize() {
		return marked
	}
	resized := sc.Mat(sc.NewMat())
	gocv.Resize(*marked, resized, workSize, 0, 0, gocv.InterpolationNearestNeighbor)
	return resized
}

func burnStrokes(sc *arena.Scope, mask *gocv.Mat, strokes [][]geometry.Point, label uint8, width int, offset geometry.Point) {
	var pts [][]image.Point
	for _, stroke := range strokes {
		if len(stroke) == 0 {
			continue
		}
		pts = append(pts, contour.IntPoints(stroke, offset))
	}
	if len(pts) == 0 {
		return
	}
	pvs := sc.Contours(sc.AdoptContours(gocv.NewPointsVectorFromPoints(pts)))
	gocv.Polylines(mask, pvs, false, vision.MaskColor(label), width)
}

func (s *Segmenter) resetModels() {
	s.arena.Release(s.state.bgd)
	s.arena.Release(s.state.fgd)
	s.state.bgd = s.arena.Acquire(arena.KindMat, arena.Dims{})
	s.state.fgd = s.arena.Acquire(arena.KindMat, arena.Dims{})
}

func (s *Segmenter) replaceMask(m gocv.Mat, size image.Point) {
	if s.state.mask != 0 {
		s.arena.Release(s.state.mask)
	}
	s.state.mask = s.arena.AdoptMat(m)
	s.state.maskSize = size
}

// extractPolygon thresholds a label mask to foreground, picks the largest
// external contour and returns it simplified and translated by offset.
func extractPolygon(sc *arena.Scope, mask gocv.Mat, offset geometry.Point, border int) []geometry.Point {
	binary := sc.Mat(sc.NewMat())
	probable := sc.Mat(sc.NewMat())
	definite := sc.Mat(sc.NewMat())

	gocv.Threshold(mask, probable, float32(vision.ProbableBackground), 255, gocv.ThresholdBinary)
	gocv.Threshold(mask, definite, float32(vision.Foreground), 0, gocv.ThresholdToZeroInv)
	gocv.Threshold(*definite, definite, float32(vision.Background), 255, gocv.ThresholdBinary)
	gocv.BitwiseOr(*probable, *definite, binary)

	if border > 0 {
		gocv.Rectangle(binary, image.Rect(0, 0, binary.Cols(), binary.Rows()), vision.MaskColor(vision.Background), border)
	}

	contours := sc.Contours(sc.AdoptContours(gocv.FindContours(*binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)))
	best, ok := contour.Largest(contours)
	if !ok || best.Size() == 0 {
		return []geometry.Point{}
	}
	return contour.ToPoints(contour.Approximate(sc, best, true), offset)
}

// rectFeasible reports whether the inset selection rectangle of a working
// image leaves enough pixels of both classes.
func rectFeasible(size image.Point) bool {
	inner := (size.X - 2) * (size.Y - 2)
	if size.X < 3 || size.Y < 3 {
		return false
	}
	return inner >= minClassSamples && size.X*size.Y-inner >= minClassSamples
}

// hasBothClasses reports whether a label mask holds enough background and
// foreground pixels, definite or probable, to fit both colour models.
func hasBothClasses(mask *gocv.Mat) bool {
	bg, fg := countClasses(mask.ToBytes())
	return bg >= minClassSamples && fg >= minClassSamples
}

func countClasses(labels []byte) (bg, fg int) {
	for _, v := range labels {
		switch v {
		case vision.Background, vision.ProbableBackground:
			bg++
		case vision.Foreground, vision.ProbableForeground:
			fg++
		}
	}
	return bg, fg
}
