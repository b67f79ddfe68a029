package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ErrInvalidPixels is returned when a pixel buffer's length does not match
// its dimensions.
var ErrInvalidPixels = errors.New("vision: pixel data does not match dimensions")

// GrabCut mask labels.
const (
	Background         uint8 = 0
	Foreground         uint8 = 1
	ProbableBackground uint8 = 2
	ProbableForeground uint8 = 3
)

// Library describes the loaded vision runtime.
type Library struct {
	GoCVVersion   string
	OpenCVVersion string
}

var (
	loadOnce sync.Once
	library  *Library
)

// Load initialises the vision runtime. Later calls return the same Library.
func Load() *Library {
	loadOnce.Do(func() {
		library = &Library{
			GoCVVersion:   gocv.Version(),
			OpenCVVersion: gocv.OpenCVVersion(),
		}
	})
	return library
}

func (l *Library) String() string {
	return fmt.Sprintf("gocv %s (OpenCV %s)", l.GoCVVersion, l.OpenCVVersion)
}

// PixelBuffer is non-premultiplied RGBA pixel data, row major, four bytes
// per pixel.
type PixelBuffer struct {
	Width  int
	Height int
	Data   []byte
}

// Validate checks that the buffer is non-empty and sized consistently.
func (p PixelBuffer) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidPixels, p.Width, p.Height)
	}
	if len(p.Data) != p.Width*p.Height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidPixels, len(p.Data), p.Width, p.Height)
	}
	return nil
}

// Size returns the buffer dimensions as a point.
func (p PixelBuffer) Size() image.Point {
	return image.Pt(p.Width, p.Height)
}

// FromImage normalises any decoded image into a PixelBuffer.
func FromImage(img image.Image) PixelBuffer {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return PixelBuffer{Width: b.Dx(), Height: b.Dy(), Data: nrgba.Pix}
}

// Image wraps the buffer as an *image.NRGBA without copying.
func (p PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Data,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// MatRGB converts the buffer into a new three channel RGB matrix. The
// caller owns the result.
func MatRGB(p PixelBuffer) (gocv.Mat, error) {
	return convert(p, gocv.ColorRGBAToRGB)
}

func convert(p PixelBuffer, code gocv.ColorConversionCode) (gocv.Mat, error) {
	if err := p.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	rgba, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV8UC4, p.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("wrapping pixels: %w", err)
	}
	defer rgba.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(rgba, &dst, code)
	return dst, nil
}

// MaskColor returns the drawing colour that writes value v into a single
// channel matrix. gocv maps color.RGBA to a (B, G, R, A) scalar.
func MaskColor(v uint8) color.RGBA {
	return color.RGBA{B: v}
}

// MaskScalar returns the fill scalar for value v.
func MaskScalar(v uint8) gocv.Scalar {
	return gocv.NewScalar(float64(v), 0, 0, 0)
}
