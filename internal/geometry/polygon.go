package geometry

import "math"

// minValidPolygonArea is the smallest absolute area, in square pixels, a
// polygon must enclose to be accepted as an annotation.
const minValidPolygonArea = 4

// ClosePoints returns points with the first point appended as the last one.
// An empty input is returned unchanged.
func ClosePoints(points []Point) []Point {
	if len(points) == 0 {
		return points
	}
	closed := make([]Point, 0, len(points)+1)
	closed = append(closed, points...)
	return append(closed, points[0])
}

// IsClosed reports whether the first and last points coincide.
func IsClosed(points []Point) bool {
	if len(points) == 0 {
		return false
	}
	return points[0] == points[len(points)-1]
}

// Area returns the absolute area enclosed by points using the shoelace
// formula. The polygon is treated as closed whether or not the last point
// repeats the first.
func Area(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// IsPolygonValid reports whether polygon encloses more than a few pixels.
// Degenerate outlines (lines, single points, slivers) are rejected.
func IsPolygonValid(polygon *Polygon) bool {
	if polygon == nil {
		return false
	}
	return Area(polygon.Points) > minValidPolygonArea
}

// BoundingBox computes the axis-aligned bounding box of points.
func BoundingBox(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Translate returns a copy of points shifted by offset.
func Translate(points []Point, offset Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Add(offset)
	}
	return out
}
