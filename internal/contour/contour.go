package contour

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
)

// Epsilon is the approxPolyDP tolerance, in pixels, used for every
// simplification.
const Epsilon = 1.0

// Approximate simplifies a contour. The result is owned by s.
func Approximate(s *arena.Scope, pv gocv.PointVector, closed bool) gocv.PointVector {
	h := s.AdoptPoints(gocv.ApproxPolyDP(pv, Epsilon, closed))
	return s.Points(h)
}

// ToPoints reads a contour as points translated by offset and rounded to
// whole pixels.
func ToPoints(pv gocv.PointVector, offset geometry.Point) []geometry.Point {
	raw := pv.ToPoints()
	points := make([]geometry.Point, 0, len(raw))
	for _, p := range raw {
		points = append(points, geometry.Point{
			X: math.Round(float64(p.X) + offset.X),
			Y: math.Round(float64(p.Y) + offset.Y),
		})
	}
	return points
}

// FromPoints builds a contour from points translated by offset. The result
// is owned by s.
func FromPoints(s *arena.Scope, points []geometry.Point, offset geometry.Point) gocv.PointVector {
	h := s.AdoptPoints(gocv.NewPointVectorFromPoints(IntPoints(points, offset)))
	return s.Points(h)
}

// IntPoints rounds points, translated by offset, to pixel coordinates.
func IntPoints(points []geometry.Point, offset geometry.Point) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range points {
		out[i] = image.Pt(int(math.Round(p.X+offset.X)), int(math.Round(p.Y+offset.Y)))
	}
	return out
}

// Simplify runs approxPolyDP over a point list.
func Simplify(a *arena.Arena, points []geometry.Point, closed bool) []geometry.Point {
	if len(points) == 0 {
		return []geometry.Point{}
	}
	var out []geometry.Point
	_ = a.WithScoped(func(s *arena.Scope) error {
		pv := FromPoints(s, points, geometry.Point{})
		out = ToPoints(Approximate(s, pv, closed), geometry.Point{})
		return nil
	})
	return out
}

// SelectLargest picks the winning contour index given each contour's area
// and size. A candidate wins only when both its area and its size strictly
// exceed the current best, so the first contour of a run of equal areas
// is kept. It returns -1 when there are no candidates.
func SelectLargest(areas []float64, sizes []int) int {
	best := -1
	maxArea := -1.0
	maxSize := -1
	for i := range areas {
		if areas[i] > maxArea && sizes[i] > maxSize {
			best = i
			maxArea = areas[i]
			maxSize = sizes[i]
		}
	}
	return best
}

// Largest returns the winning contour of contours per SelectLargest. The
// size of a contour is its point count plus one, the row and column sum of
// its matrix form. ok is false when contours is empty.
func Largest(contours gocv.PointsVector) (gocv.PointVector, bool) {
	n := contours.Size()
	if n == 0 {
		return gocv.PointVector{}, false
	}
	areas := make([]float64, n)
	sizes := make([]int, n)
	for i := 0; i < n; i++ {
		pv := contours.At(i)
		areas[i] = gocv.ContourArea(pv)
		sizes[i] = pv.Size() + 1
	}
	return contours.At(SelectLargest(areas, sizes)), true
}
