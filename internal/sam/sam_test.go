package sam

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// maskWith returns a width x height mask with the given rectangles set.
func maskWith(width, height int, blobs ...image.Rectangle) []byte {
	mask := make([]byte, width*height)
	for _, b := range blobs {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				mask[y*width+x] = 255
			}
		}
	}
	return mask
}

func newProcessor(t *testing.T) (*PostProcessor, *arena.Arena) {
	t.Helper()
	a := arena.New(arena.WithDebug(true))
	return New(vision.Load(), a, nil), a
}

var doubled = Sizes{Width: 100, Height: 100, OriginalWidth: 200, OriginalHeight: 200}

func TestMaskToShapesRect(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	res, err := p.MaskToShapes(maskWith(100, 100, image.Rect(20, 20, 40, 40)), doubled, Config{Type: geometry.ShapeRect})
	if err != nil {
		t.Fatalf("MaskToShapes failed: %v", err)
	}
	if len(res.Shapes) != 1 || len(res.Areas) != 1 {
		t.Fatalf("got %d shapes and %d areas, want 1 and 1", len(res.Shapes), len(res.Areas))
	}
	want := geometry.Rect{X: 40, Y: 40, Width: 40, Height: 40}
	if res.Shapes[0] != want {
		t.Errorf("shape = %+v, want %+v", res.Shapes[0], want)
	}
	if res.Areas[0] != 19*19 {
		t.Errorf("area = %v, want %v", res.Areas[0], 19*19)
	}
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}

func TestMaskToShapesPolygonClosed(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	res, err := p.MaskToShapes(maskWith(100, 100, image.Rect(10, 10, 30, 50)), doubled, Config{Type: geometry.ShapePolygon})
	if err != nil {
		t.Fatal(err)
	}
	poly, ok := res.Shapes[0].(geometry.Polygon)
	if !ok {
		t.Fatalf("shape is %T, want geometry.Polygon", res.Shapes[0])
	}
	if len(poly.Points) != 5 {
		t.Errorf("polygon has %d points, want 4 corners plus closing point", len(poly.Points))
	}
	if !geometry.IsClosed(poly.Points) {
		t.Error("polygon is not closed")
	}
	box := geometry.BoundingBox(poly.Points)
	if box != (geometry.Rect{X: 20, Y: 20, Width: 38, Height: 78}) {
		t.Errorf("polygon bounds = %+v", box)
	}
}

func TestMaskToShapesCircleAndRotated(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	mask := maskWith(100, 100, image.Rect(20, 20, 41, 41))

	res, err := p.MaskToShapes(mask, doubled, Config{Type: geometry.ShapeCircle})
	if err != nil {
		t.Fatal(err)
	}
	circle := res.Shapes[0].(geometry.Circle)
	if circle.R != 20 {
		t.Errorf("radius = %v, want 20", circle.R)
	}
	if math.Abs(circle.X-60) > 2 || math.Abs(circle.Y-60) > 2 {
		t.Errorf("centre = (%v, %v), want about (60, 60)", circle.X, circle.Y)
	}

	res, err = p.MaskToShapes(mask, doubled, Config{Type: geometry.ShapeRotatedRect})
	if err != nil {
		t.Fatal(err)
	}
	rr := res.Shapes[0].(geometry.RotatedRect)
	if rr.Width != 40 || rr.Height != 40 {
		t.Errorf("rotated rect size = %vx%v, want 40x40", rr.Width, rr.Height)
	}
}

func TestMaskToShapesSubPixelCentre(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	// Contour spans x 10..20 and y 10..21, so the centre is (15, 15.5).
	mask := maskWith(256, 256, image.Rect(10, 10, 21, 22))
	quad := Sizes{Width: 256, Height: 256, OriginalWidth: 1024, OriginalHeight: 1024}

	tests := []struct {
		name  string
		shape geometry.ShapeType
	}{
		{"rotated rect", geometry.ShapeRotatedRect},
		{"circle", geometry.ShapeCircle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.MaskToShapes(mask, quad, Config{Type: tt.shape})
			if err != nil {
				t.Fatalf("MaskToShapes failed: %v", err)
			}
			if len(res.Shapes) != 1 {
				t.Fatalf("got %d shapes, want 1", len(res.Shapes))
			}
			var x, y float64
			switch s := res.Shapes[0].(type) {
			case geometry.RotatedRect:
				x, y = s.X, s.Y
				long := math.Max(s.Width, s.Height)
				short := math.Min(s.Width, s.Height)
				if long != 44 || short != 40 {
					t.Errorf("size = %vx%v, want 40x44 in either order", s.Width, s.Height)
				}
			case geometry.Circle:
				x, y = s.X, s.Y
				if s.R != 22 {
					t.Errorf("radius = %v, want 22", s.R)
				}
			default:
				t.Fatalf("unexpected shape %T", s)
			}
			if x != 60 || y != 62 {
				t.Errorf("centre = (%v, %v), want (60, 62)", x, y)
			}
		})
	}
}

func TestMaskToShapesDropsBackground(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	// The blob bounds cover 96% of the image.
	res, err := p.MaskToShapes(maskWith(100, 100, image.Rect(0, 0, 96, 100)), doubled, Config{Type: geometry.ShapePolygon})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Shapes) != 0 || len(res.Areas) != 0 {
		t.Errorf("got %d shapes, want none", len(res.Shapes))
	}
	if res.RepresentativeIndex != 0 {
		t.Errorf("RepresentativeIndex = %d, want 0", res.RepresentativeIndex)
	}
}

func TestMaskToShapesNoShapeCoversImage(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	mask := maskWith(100, 100,
		image.Rect(0, 0, 100, 94),
		image.Rect(5, 96, 15, 100),
	)
	res, err := p.MaskToShapes(mask, doubled, Config{Type: geometry.ShapeRect})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range res.Shapes {
		if s.Bounds().Area()/(200*200) >= MaxCoverage {
			t.Errorf("shape %+v covers too much of the image", s)
		}
	}
}

func TestMaskToShapesRepresentativeIndex(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	mask := maskWith(100, 100,
		image.Rect(5, 5, 15, 15),
		image.Rect(40, 40, 90, 90),
		image.Rect(5, 70, 20, 80),
	)
	res, err := p.MaskToShapes(mask, doubled, Config{Type: geometry.ShapeRect})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Shapes) != 3 {
		t.Fatalf("got %d shapes, want 3", len(res.Shapes))
	}
	best := res.Shapes[res.RepresentativeIndex].(geometry.Rect)
	if best.X != 80 || best.Y != 80 {
		t.Errorf("representative shape = %+v, want the large blob", best)
	}
	for i, area := range res.Areas {
		if area > res.Areas[res.RepresentativeIndex] {
			t.Errorf("area %d (%v) exceeds representative area", i, area)
		}
	}
}

func TestMaskToShapesFilter(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	mask := maskWith(100, 100,
		image.Rect(5, 5, 15, 15),
		image.Rect(40, 40, 90, 90),
	)
	res, err := p.MaskToShapes(mask, doubled, Config{
		Type:        geometry.ShapePolygon,
		ShapeFilter: ContainsPoint(geometry.Point{X: 20, Y: 20}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Shapes) != 1 {
		t.Fatalf("got %d shapes, want 1", len(res.Shapes))
	}
	if !res.Shapes[0].Bounds().Contains(geometry.Point{X: 20, Y: 20}) {
		t.Errorf("kept shape %+v does not contain the prompt", res.Shapes[0].Bounds())
	}
	if res.RepresentativeIndex != 0 {
		t.Errorf("RepresentativeIndex = %d, want 0", res.RepresentativeIndex)
	}
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}

func TestMaskToShapesErrors(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	tests := []struct {
		name   string
		pixels []byte
		sizes  Sizes
		typ    geometry.ShapeType
		want   error
	}{
		{"keypoint", maskWith(10, 10), Sizes{10, 10, 10, 10}, geometry.ShapeKeypoint, ErrUnsupportedShape},
		{"unknown type", maskWith(10, 10), Sizes{10, 10, 10, 10}, "ellipse", ErrUnsupportedShape},
		{"short mask", make([]byte, 99), Sizes{10, 10, 10, 10}, geometry.ShapeRect, ErrInvalidMask},
		{"zero size", nil, Sizes{0, 10, 10, 10}, geometry.ShapeRect, ErrInvalidMask},
		{"zero original", maskWith(10, 10), Sizes{10, 10, 0, 10}, geometry.ShapeRect, ErrInvalidMask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.MaskToShapes(tt.pixels, tt.sizes, Config{Type: tt.typ})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMaskToShapesEmptyMask(t *testing.T) {
	p, a := newProcessor(t)
	defer a.Close()

	res, err := p.MaskToShapes(maskWith(20, 20), Sizes{20, 20, 40, 40}, Config{Type: geometry.ShapeCircle})
	if err != nil {
		t.Fatal(err)
	}
	if res.Shapes == nil || len(res.Shapes) != 0 || res.RepresentativeIndex != 0 {
		t.Errorf("result = %+v, want empty shapes and index 0", res)
	}
}
