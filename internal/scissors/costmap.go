package scissors

import "math"

const (
	weightZeroCrossing = 0.43
	weightGradient     = 0.43
	weightDirection    = 0.14
)

// Features are the per-pixel edge features of a working window, row major.
type Features struct {
	Width  int
	Height int
	// Edge marks Canny edge pixels.
	Edge []bool
	// Gradient is the gradient cost, 1 - min(|∇I|, ceiling)/ceiling.
	Gradient []float64
	// DirX and DirY hold the unit vector perpendicular to the gradient,
	// zero where the gradient vanishes.
	DirX []float64
	DirY []float64
}

// NewFeatures returns flat features of the given size: no edges and
// maximum gradient cost everywhere.
func NewFeatures(width, height int) *Features {
	n := width * height
	f := &Features{
		Width:    width,
		Height:   height,
		Edge:     make([]bool, n),
		Gradient: make([]float64, n),
		DirX:     make([]float64, n),
		DirY:     make([]float64, n),
	}
	for i := range f.Gradient {
		f.Gradient[i] = 1
	}
	return f
}

// SetGradient stores the gradient (gx, gy) of pixel i, clipping its
// magnitude at ceiling.
func (f *Features) SetGradient(i int, gx, gy, ceiling float64) {
	mag := math.Hypot(gx, gy)
	f.Gradient[i] = 1 - math.Min(mag, ceiling)/ceiling
	if mag > 0 {
		f.DirX[i] = gy / mag
		f.DirY[i] = -gx / mag
	} else {
		f.DirX[i] = 0
		f.DirY[i] = 0
	}
}

// linkCost is the cost of stepping from pixel p to its neighbour q, offset
// by (dx, dy).
func (f *Features) linkCost(p, q, dx, dy int) float64 {
	fz := 1.0
	if f.Edge[q] {
		fz = 0
	}

	lx, ly := float64(dx), float64(dy)
	diagonal := dx != 0 && dy != 0
	if diagonal {
		lx /= math.Sqrt2
		ly /= math.Sqrt2
	}
	if f.DirX[p]*lx+f.DirY[p]*ly < 0 {
		lx, ly = -lx, -ly
	}
	dp := f.DirX[p]*lx + f.DirY[p]*ly
	dq := lx*f.DirX[q] + ly*f.DirY[q]
	fd := (math.Acos(clampUnit(dp)) + math.Acos(clampUnit(dq))) * 2 / (3 * math.Pi)

	c := weightZeroCrossing*fz + weightGradient*f.Gradient[q] + weightDirection*fd
	if diagonal {
		c *= math.Sqrt2
	}
	return c
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
