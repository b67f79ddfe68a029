package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// ShapeType is the discriminant of the Shape union.
type ShapeType string

const (
	ShapeRect        ShapeType = "rect"
	ShapeRotatedRect ShapeType = "rotated-rect"
	ShapeCircle      ShapeType = "circle"
	ShapePolygon     ShapeType = "polygon"
	ShapeKeypoint    ShapeType = "keypoint"
)

// Shape is implemented by every annotation geometry.
type Shape interface {
	Type() ShapeType
	Bounds() Rect
}

// Point is a 2D coordinate in image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Round returns p with both coordinates rounded to the nearest integer.
func (p Point) Round() Point {
	return Point{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// Rect is an axis-aligned rectangle. (X, Y) is the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Type() ShapeType { return ShapeRect }
func (r Rect) Bounds() Rect     { return r }

// Area returns width * height, or 0 for degenerate rectangles.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Intersect returns the overlap of r and other. The result has zero area
// when they do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	x1 := math.Max(r.X, other.X)
	y1 := math.Max(r.Y, other.Y)
	x2 := math.Min(r.X+r.Width, other.X+other.Width)
	y2 := math.Min(r.Y+r.Height, other.Y+other.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IoU returns the intersection-over-union of two rectangles.
func IoU(a, b Rect) float64 {
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return 0
	}
	return inter / (a.Area() + b.Area() - inter)
}

func (r Rect) MarshalJSON() ([]byte, error) {
	type alias Rect
	return json.Marshal(struct {
		ShapeType ShapeType `json:"shapeType"`
		alias
	}{ShapeRect, alias(r)})
}

// RotatedRect is a rectangle rotated around its centre (X, Y) by Angle degrees.
type RotatedRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`
}

func (r RotatedRect) Type() ShapeType { return ShapeRotatedRect }

// Corners returns the four corners in clockwise order starting top-left
// of the unrotated rectangle.
func (r RotatedRect) Corners() []Point {
	rad := r.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	hw, hh := r.Width/2, r.Height/2
	offsets := []Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	corners := make([]Point, len(offsets))
	for i, o := range offsets {
		corners[i] = Point{
			X: r.X + o.X*cos - o.Y*sin,
			Y: r.Y + o.X*sin + o.Y*cos,
		}
	}
	return corners
}

func (r RotatedRect) Bounds() Rect { return BoundingBox(r.Corners()) }

func (r RotatedRect) MarshalJSON() ([]byte, error) {
	type alias RotatedRect
	return json.Marshal(struct {
		ShapeType ShapeType `json:"shapeType"`
		alias
	}{ShapeRotatedRect, alias(r)})
}

// Circle is centred at (X, Y) with radius R.
type Circle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

func (c Circle) Type() ShapeType { return ShapeCircle }

func (c Circle) Bounds() Rect {
	return Rect{X: c.X - c.R, Y: c.Y - c.R, Width: 2 * c.R, Height: 2 * c.R}
}

func (c Circle) MarshalJSON() ([]byte, error) {
	type alias Circle
	return json.Marshal(struct {
		ShapeType ShapeType `json:"shapeType"`
		alias
	}{ShapeCircle, alias(c)})
}

// Polygon is an ordered point list.
type Polygon struct {
	Points []Point `json:"points"`
}

func (p Polygon) Type() ShapeType { return ShapePolygon }
func (p Polygon) Bounds() Rect     { return BoundingBox(p.Points) }

func (p Polygon) MarshalJSON() ([]byte, error) {
	points := p.Points
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(struct {
		ShapeType ShapeType `json:"shapeType"`
		Points    []Point   `json:"points"`
	}{ShapePolygon, points})
}

// Keypoint is a single labelled node of a Pose.
type Keypoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Label   string  `json:"label"`
	Visible bool    `json:"isVisible"`
}

// Pose is a set of keypoints.
type Pose struct {
	Points []Keypoint `json:"points"`
}

func (p Pose) Type() ShapeType { return ShapeKeypoint }

func (p Pose) Bounds() Rect {
	points := make([]Point, len(p.Points))
	for i, k := range p.Points {
		points[i] = Point{X: k.X, Y: k.Y}
	}
	return BoundingBox(points)
}

func (p Pose) MarshalJSON() ([]byte, error) {
	type alias Pose
	return json.Marshal(struct {
		ShapeType ShapeType `json:"shapeType"`
		alias
	}{ShapeKeypoint, alias(p)})
}

// UnmarshalShape decodes a JSON object into the concrete Shape named by its
// "shapeType" field.
func UnmarshalShape(data []byte) (Shape, error) {
	var head struct {
		ShapeType ShapeType `json:"shapeType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	var (
		shape Shape
		err   error
	)
	switch head.ShapeType {
	case ShapeRect:
		var r Rect
		err = json.Unmarshal(data, &r)
		shape = r
	case ShapeRotatedRect:
		var r RotatedRect
		err = json.Unmarshal(data, &r)
		shape = r
	case ShapeCircle:
		var c Circle
		err = json.Unmarshal(data, &c)
		shape = c
	case ShapePolygon:
		var p Polygon
		err = json.Unmarshal(data, &p)
		shape = p
	case ShapeKeypoint:
		var p Pose
		err = json.Unmarshal(data, &p)
		shape = p
	default:
		return nil, fmt.Errorf("unknown shape type: %q", head.ShapeType)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", head.ShapeType, err)
	}
	return shape, nil
}
