package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/lucasb-eyer/go-colorful"
)

// RenderHeatmap resizes a saliency map to width x height with a cubic
// kernel and colours it with a jet ramp: low values blue, high values red.
func RenderHeatmap(src image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid heat map size %dx%d", width, height)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("empty saliency map")
	}

	gray := effect.Grayscale(src)
	resized := transform.Resize(gray, width, height, transform.CatmullRom)

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := resized.RGBAAt(x, y).R
			out.SetNRGBA(x, y, JetColor(float64(v)/255))
		}
	}
	return out, nil
}

// JetColor maps v in [0, 1] onto the piecewise linear jet ramp, from dark
// blue through cyan, yellow and red to dark red.
func JetColor(v float64) color.NRGBA {
	v = max(0, min(1, v))
	c := colorful.Color{R: jetChannel(v, 3), G: jetChannel(v, 2), B: jetChannel(v, 1)}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// jetChannel is a trapezoid of height 1 centred on v = peak/4.
func jetChannel(v, peak float64) float64 {
	return max(0, min(1, 1.5-math.Abs(4*v-peak)))
}
