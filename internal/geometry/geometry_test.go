package geometry

import (
	"encoding/json"
	"math"
	"testing"
)

func TestClosePoints(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   int
	}{
		{"empty", nil, 0},
		{"single", []Point{{1, 2}}, 2},
		{"triangle", []Point{{0, 0}, {10, 0}, {0, 10}}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosePoints(tt.points)
			if len(got) != tt.want {
				t.Fatalf("len: got %d, want %d", len(got), tt.want)
			}
			if len(got) > 0 && !IsClosed(got) {
				t.Errorf("polygon not closed: first %v, last %v", got[0], got[len(got)-1])
			}
		})
	}
}

func TestClosePoints_DoesNotAliasInput(t *testing.T) {
	in := make([]Point, 3, 10)
	in[0], in[1], in[2] = Point{0, 0}, Point{5, 0}, Point{5, 5}

	out := ClosePoints(in)
	out[0].X = 99

	if in[0].X != 0 {
		t.Errorf("input modified: got %v", in[0])
	}
}

func TestArea(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	if got := Area(square); got != 100 {
		t.Errorf("open square: got %v, want 100", got)
	}
	if got := Area(ClosePoints(square)); got != 100 {
		t.Errorf("closed square: got %v, want 100", got)
	}

	// Reversed winding must give the same absolute area.
	reversed := []Point{{0, 10}, {10, 10}, {10, 0}, {0, 0}}
	if got := Area(reversed); got != 100 {
		t.Errorf("reversed square: got %v, want 100", got)
	}

	if got := Area([]Point{{0, 0}, {5, 5}}); got != 0 {
		t.Errorf("segment: got %v, want 0", got)
	}
}

func TestIsPolygonValid(t *testing.T) {
	tests := []struct {
		name    string
		polygon *Polygon
		want    bool
	}{
		{"nil", nil, false},
		{"line", &Polygon{Points: []Point{{0, 0}, {10, 0}, {20, 0}}}, false},
		{"tiny", &Polygon{Points: []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}, false},
		{"square", &Polygon{Points: []Point{{0, 0}, {3, 0}, {3, 3}, {0, 3}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPolygonValid(tt.polygon); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBox(t *testing.T) {
	got := BoundingBox([]Point{{5, 7}, {1, 9}, {3, 2}})
	want := Rect{X: 1, Y: 2, Width: 4, Height: 7}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if got := BoundingBox(nil); got != (Rect{}) {
		t.Errorf("empty: got %+v", got)
	}
}

func TestIoU(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}

	if got := IoU(a, a); got != 1 {
		t.Errorf("identical: got %v, want 1", got)
	}
	if got := IoU(a, Rect{X: 20, Y: 20, Width: 5, Height: 5}); got != 0 {
		t.Errorf("disjoint: got %v, want 0", got)
	}

	half := IoU(a, Rect{X: 5, Y: 0, Width: 10, Height: 10})
	if math.Abs(half-50.0/150.0) > 1e-9 {
		t.Errorf("half overlap: got %v, want %v", half, 50.0/150.0)
	}
}

func TestRotatedRectBounds(t *testing.T) {
	r := RotatedRect{X: 10, Y: 10, Width: 4, Height: 2, Angle: 90}
	b := r.Bounds()

	if math.Abs(b.Width-2) > 1e-9 || math.Abs(b.Height-4) > 1e-9 {
		t.Errorf("rotated bounds: got %+v, want 2x4", b)
	}
	if math.Abs(b.X-9) > 1e-9 || math.Abs(b.Y-8) > 1e-9 {
		t.Errorf("rotated origin: got (%v,%v), want (9,8)", b.X, b.Y)
	}
}

func TestShapeJSON_Discriminant(t *testing.T) {
	shapes := []Shape{
		Rect{X: 1, Y: 2, Width: 3, Height: 4},
		RotatedRect{X: 1, Y: 2, Width: 3, Height: 4, Angle: 30},
		Circle{X: 5, Y: 5, R: 2},
		Polygon{Points: []Point{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		Pose{Points: []Keypoint{{X: 1, Y: 1, Label: "nose", Visible: true}}},
	}

	for _, shape := range shapes {
		t.Run(string(shape.Type()), func(t *testing.T) {
			data, err := json.Marshal(shape)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var head map[string]interface{}
			if err := json.Unmarshal(data, &head); err != nil {
				t.Fatalf("unmarshal head: %v", err)
			}
			if head["shapeType"] != string(shape.Type()) {
				t.Errorf("shapeType: got %v, want %s", head["shapeType"], shape.Type())
			}

			decoded, err := UnmarshalShape(data)
			if err != nil {
				t.Fatalf("UnmarshalShape: %v", err)
			}
			if decoded.Type() != shape.Type() {
				t.Errorf("decoded type: got %s, want %s", decoded.Type(), shape.Type())
			}
			if decoded.Bounds() != shape.Bounds() {
				t.Errorf("decoded bounds: got %+v, want %+v", decoded.Bounds(), shape.Bounds())
			}
		})
	}
}

func TestUnmarshalShape_Unknown(t *testing.T) {
	if _, err := UnmarshalShape([]byte(`{"shapeType":"hexagon"}`)); err == nil {
		t.Error("expected error for unknown shape type")
	}
	if _, err := UnmarshalShape([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPolygonJSON_EmptyPoints(t *testing.T) {
	data, err := json.Marshal(Polygon{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"shapeType":"polygon","points":[]}` {
		t.Errorf("got %s", data)
	}
}
