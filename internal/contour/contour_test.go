package contour

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
)

func TestSelectLargest(t *testing.T) {
	tests := []struct {
		name  string
		areas []float64
		sizes []int
		want  int
	}{
		{"empty", nil, nil, -1},
		{"single", []float64{10}, []int{5}, 0},
		{"larger wins", []float64{10, 50}, []int{5, 9}, 1},
		{"larger area but fewer points loses", []float64{10, 50}, []int{9, 5}, 0},
		{"equal area keeps first", []float64{20, 20}, []int{5, 9}, 0},
		{"zero area contours", []float64{0, 0}, []int{3, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectLargest(tt.areas, tt.sizes); got != tt.want {
				t.Errorf("SelectLargest = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntPoints(t *testing.T) {
	got := IntPoints([]geometry.Point{{X: 1.4, Y: 2.6}, {X: 10, Y: 10}}, geometry.Point{X: -1, Y: -2})
	want := []image.Point{{0, 1}, {9, 8}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFromPointsToPointsOffset(t *testing.T) {
	a := arena.New(arena.WithDebug(true))
	defer a.Close()

	points := []geometry.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}
	var got []geometry.Point
	_ = a.WithScoped(func(s *arena.Scope) error {
		pv := FromPoints(s, points, geometry.Point{})
		got = ToPoints(pv, geometry.Point{X: 100, Y: 200})
		return nil
	})

	if len(got) != 3 {
		t.Fatalf("got %d points, want 3", len(got))
	}
	if got[2] != (geometry.Point{X: 105, Y: 205}) {
		t.Errorf("last point = %v, want (105,205)", got[2])
	}
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}

func TestSimplifyDropsCollinearPoints(t *testing.T) {
	a := arena.New(arena.WithDebug(true))
	defer a.Close()

	var points []geometry.Point
	for x := 0; x <= 10; x++ {
		points = append(points, geometry.Point{X: float64(x), Y: 0})
	}
	for y := 1; y <= 10; y++ {
		points = append(points, geometry.Point{X: 10, Y: float64(y)})
	}
	for x := 9; x >= 0; x-- {
		points = append(points, geometry.Point{X: float64(x), Y: 10})
	}
	for y := 9; y >= 1; y-- {
		points = append(points, geometry.Point{X: 0, Y: float64(y)})
	}

	got := Simplify(a, points, true)
	if len(got) != 4 {
		t.Errorf("Simplify kept %d points, want 4: %v", len(got), got)
	}
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}

func TestSimplifyOpenCurveKeepsEndpoints(t *testing.T) {
	a := arena.New()
	defer a.Close()

	points := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}
	got := Simplify(a, points, false)
	if len(got) != 2 {
		t.Fatalf("Simplify kept %d points, want 2: %v", len(got), got)
	}
	if got[0] != points[0] || got[1] != points[3] {
		t.Errorf("endpoints = %v, want %v and %v", got, points[0], points[3])
	}
}

func TestSimplifyEmpty(t *testing.T) {
	a := arena.New()
	defer a.Close()

	got := Simplify(a, nil, true)
	if got == nil || len(got) != 0 {
		t.Errorf("Simplify(nil) = %v, want empty slice", got)
	}
}

func TestLargest(t *testing.T) {
	a := arena.New(arena.WithDebug(true))
	defer a.Close()

	small := []image.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	large := []image.Point{{10, 10}, {30, 10}, {30, 20}, {25, 30}, {10, 30}}

	_ = a.WithScoped(func(s *arena.Scope) error {
		contours := s.Contours(s.AdoptContours(gocv.NewPointsVectorFromPoints([][]image.Point{small, large})))
		pv, ok := Largest(contours)
		if !ok {
			t.Fatal("Largest reported no contours")
		}
		if pv.Size() != len(large) {
			t.Errorf("winner has %d points, want %d", pv.Size(), len(large))
		}
		return nil
	})

	_ = a.WithScoped(func(s *arena.Scope) error {
		empty := s.Contours(s.Acquire(arena.KindContours, arena.Dims{}))
		if _, ok := Largest(empty); ok {
			t.Error("Largest on empty contours reported ok")
		}
		return nil
	})
}
