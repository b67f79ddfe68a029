// Package planner decides which part of an image a smart tool works on and
// how far that region is downsampled first.
//
// GrabCut-style tools crop the user's box and shrink it by
// scale = max(w, h) / sensitivity². A scale of at most 1 means the crop is
// processed at full resolution. Scissors-style tools instead use a fixed
// square window centred on the seed point.
package planner

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
)

// DefaultScissorsSide is the side of the scissors working window.
const DefaultScissorsSide = 600

// ErrInvalidSensitivity is returned for a sensitivity of zero or below.
var ErrInvalidSensitivity = errors.New("planner: sensitivity must be positive")

// Plan is the working region and the downsampling factor applied to it.
type Plan struct {
	ROI   image.Rectangle
	Scale float64
}

// Compute plans a GrabCut-style run for box on an image of the given size.
func Compute(box geometry.Rect, sensitivity float64, imageSize image.Point) (Plan, error) {
	if sensitivity <= 0 || math.IsNaN(sensitivity) {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidSensitivity, sensitivity)
	}
	roi := ClampROI(box, imageSize)
	scale := float64(max(roi.Dx(), roi.Dy())) / (sensitivity * sensitivity)
	return Plan{ROI: roi, Scale: scale}, nil
}

// Empty reports whether the planned region has no pixels.
func (p Plan) Empty() bool {
	return p.ROI.Empty()
}

// Resize reports whether the region must be downsampled.
func (p Plan) Resize() bool {
	return p.Scale > 1
}

// Downscaled returns the size the region is shrunk to. Sizes are unchanged
// when no resize is needed and never drop below one pixel.
func (p Plan) Downscaled(size image.Point) image.Point {
	if !p.Resize() {
		return size
	}
	return image.Pt(
		max(1, int(math.Round(float64(size.X)/p.Scale))),
		max(1, int(math.Round(float64(size.Y)/p.Scale))),
	)
}

// Upscaled maps a downscaled size back towards the original resolution.
func (p Plan) Upscaled(size image.Point) image.Point {
	if !p.Resize() {
		return size
	}
	return image.Pt(
		int(math.Round(float64(size.X)*p.Scale)),
		int(math.Round(float64(size.Y)*p.Scale)),
	)
}

// Offset returns the region origin as a translation into image coordinates.
func (p Plan) Offset() geometry.Point {
	return geometry.Point{X: float64(p.ROI.Min.X), Y: float64(p.ROI.Min.Y)}
}

// ClampROI rounds box to whole pixels and clips it to the image.
func ClampROI(box geometry.Rect, imageSize image.Point) image.Rectangle {
	x := int(math.Round(box.X))
	y := int(math.Round(box.Y))
	r := image.Rect(x, y, x+int(math.Round(box.Width)), y+int(math.Round(box.Height)))
	return r.Intersect(image.Rectangle{Max: imageSize})
}

// ScissorsROI returns the square working window of side maxSide around
// point. ok is false when the whole image fits inside the window, in which
// case the tool works in full-image coordinates. The window keeps its
// top-left corner and shrinks at the right and bottom image edges.
func ScissorsROI(point geometry.Point, imageSize image.Point, maxSide int) (roi image.Rectangle, ok bool) {
	if imageSize.X <= maxSide && imageSize.Y <= maxSide {
		return image.Rectangle{}, false
	}
	half := float64(maxSide) / 2
	x := min(int(math.Round(math.Max(0, point.X-half))), max(0, imageSize.X-1))
	y := min(int(math.Round(math.Max(0, point.Y-half))), max(0, imageSize.Y-1))
	width := maxSide
	if x+maxSide > imageSize.X {
		width = imageSize.X - x
	}
	height := maxSide
	if y+maxSide > imageSize.Y {
		height = imageSize.Y - y
	}
	return image.Rect(x, y, x+width, y+height), true
}

// Relative converts an image coordinate into ROI-local coordinates.
func Relative(point geometry.Point, roi image.Rectangle) geometry.Point {
	return geometry.Point{X: point.X - float64(roi.Min.X), Y: point.Y - float64(roi.Min.Y)}
}
