package scissors

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
)

// extractFeatures computes the edge features of an RGB image. Canny runs on
// the luminance; the gradient at each pixel is taken from the channel with
// the largest Sobel response, so edges between colours of equal brightness
// still attract the path.
func extractFeatures(sc *arena.Scope, rgb gocv.Mat, cfg Config) (*Features, error) {
	gray := sc.Mat(sc.NewMat())
	if rgb.Channels() == 3 {
		gocv.CvtColor(rgb, gray, gocv.ColorRGBToGray)
	} else {
		rgb.CopyTo(gray)
	}
	edges := sc.Mat(sc.NewMat())
	gocv.Canny(*gray, edges, cfg.CannyLow, cfg.CannyHigh)

	gx := sc.Mat(sc.NewMat())
	gy := sc.Mat(sc.NewMat())
	gocv.Sobel(rgb, gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(rgb, gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	dx, err := gx.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading x gradient: %w", err)
	}
	dy, err := gy.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading y gradient: %w", err)
	}

	f := NewFeatures(rgb.Cols(), rgb.Rows())
	channels := gx.Channels()
	edgeBytes := edges.ToBytes()
	for i := range f.Edge {
		f.Edge[i] = edgeBytes[i] != 0
		bx, by := strongestChannel(dx[i*channels:(i+1)*channels], dy[i*channels:(i+1)*channels])
		f.SetGradient(i, bx, by, cfg.GradientCeiling)
	}
	return f, nil
}

// strongestChannel returns the gradient of the channel with the largest
// magnitude.
func strongestChannel(gx, gy []float32) (float64, float64) {
	var bx, by, best float64
	for c := range gx {
		x, y := float64(gx[c]), float64(gy[c])
		if m := x*x + y*y; m > best {
			bx, by, best = x, y, m
		}
	}
	return bx, by
}
