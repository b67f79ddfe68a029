package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func solidBuffer(width, height int, c color.NRGBA) PixelBuffer {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return FromImage(img)
}

func TestLoadIsShared(t *testing.T) {
	a := Load()
	b := Load()
	if a != b {
		t.Error("Load returned different libraries")
	}
	if a.OpenCVVersion == "" {
		t.Error("OpenCVVersion is empty")
	}
}

func TestPixelBufferValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     PixelBuffer
		wantErr bool
	}{
		{"valid", PixelBuffer{Width: 2, Height: 2, Data: make([]byte, 16)}, false},
		{"short data", PixelBuffer{Width: 2, Height: 2, Data: make([]byte, 15)}, true},
		{"zero width", PixelBuffer{Width: 0, Height: 2, Data: nil}, true},
		{"negative height", PixelBuffer{Width: 2, Height: -1, Data: nil}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPixels) {
				t.Errorf("error %v is not ErrInvalidPixels", err)
			}
		})
	}
}

func TestFromImageGray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})

	buf := FromImage(gray)
	if buf.Width != 3 || buf.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", buf.Width, buf.Height)
	}
	if err := buf.Validate(); err != nil {
		t.Fatal(err)
	}
	off := (1*3 + 1) * 4
	if buf.Data[off] != 200 || buf.Data[off+3] != 255 {
		t.Errorf("pixel = %v, want gray 200 opaque", buf.Data[off:off+4])
	}
}

func TestMatRGB(t *testing.T) {
	buf := solidBuffer(5, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	m, err := MatRGB(buf)
	if err != nil {
		t.Fatalf("MatRGB failed: %v", err)
	}
	defer m.Close()

	if m.Rows() != 4 || m.Cols() != 5 || m.Channels() != 3 {
		t.Fatalf("mat = %dx%dx%d, want 4x5x3", m.Rows(), m.Cols(), m.Channels())
	}
	v := m.GetVecbAt(2, 3)
	if v[0] != 10 || v[1] != 20 || v[2] != 30 {
		t.Errorf("pixel = %v, want [10 20 30]", v)
	}
}

func TestMatRGBRejectsBadBuffer(t *testing.T) {
	m, err := MatRGB(PixelBuffer{Width: 3, Height: 3, Data: make([]byte, 4)})
	defer m.Close()
	if !errors.Is(err, ErrInvalidPixels) {
		t.Errorf("error = %v, want ErrInvalidPixels", err)
	}
}

func TestMaskColorWritesLabel(t *testing.T) {
	m := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer m.Close()
	m.SetTo(MaskScalar(ProbableBackground))

	gocv.Rectangle(&m, image.Rect(2, 2, 6, 6), MaskColor(ProbableForeground), -1)

	if got := m.GetUCharAt(4, 4); got != ProbableForeground {
		t.Errorf("inside = %d, want %d", got, ProbableForeground)
	}
	if got := m.GetUCharAt(8, 8); got != ProbableBackground {
		t.Errorf("outside = %d, want %d", got, ProbableBackground)
	}
}
