package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// ErrNoImage is returned when a Source names no image at all.
var ErrNoImage = errors.New("no image given: set path, image_base64 or pixels")

// ImageCache provides thread-safe caching of decoded images keyed by path.
//
// Tool sessions reload the same annotation image many times while a user
// refines a shape, so decoded images are kept until evicted. Base64 and raw
// pixel sources are never cached.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	pixels, err := cache.Resolve(imaging.Source{Path: "/data/frame-0001.png"})
//	if err != nil {
//	    return err
//	}
//	seg.LoadImage(pixels)
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. The image is
// cached under the exact path string given.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes the image cached under path, if any.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// RawPixels is the wire form of a browser ImageData: RGBA bytes, base64
// encoded.
type RawPixels struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DataBase64 string `json:"data_base64"`
}

// Source names an image in one of three ways. The first non-empty field
// wins, in declaration order.
type Source struct {
	Path        string     `json:"path,omitempty"`
	ImageBase64 string     `json:"image_base64,omitempty"`
	Pixels      *RawPixels `json:"pixels,omitempty"`
}

// Empty reports whether the source names no image.
func (s Source) Empty() bool {
	return s.Path == "" && s.ImageBase64 == "" && s.Pixels == nil
}

// Image decodes the source into an image.Image.
func (c *ImageCache) Image(src Source) (image.Image, error) {
	switch {
	case src.Path != "":
		return c.Load(src.Path)
	case src.ImageBase64 != "":
		img, _, err := DecodeBase64(src.ImageBase64)
		return img, err
	case src.Pixels != nil:
		buf, err := decodePixels(*src.Pixels)
		if err != nil {
			return nil, err
		}
		return buf.Image(), nil
	default:
		return nil, ErrNoImage
	}
}

// Resolve decodes the source into an RGBA pixel buffer.
func (c *ImageCache) Resolve(src Source) (vision.PixelBuffer, error) {
	if src.Path == "" && src.ImageBase64 == "" && src.Pixels != nil {
		return decodePixels(*src.Pixels)
	}
	img, err := c.Image(src)
	if err != nil {
		return vision.PixelBuffer{}, err
	}
	return vision.FromImage(img), nil
}

func decodePixels(raw RawPixels) (vision.PixelBuffer, error) {
	data, err := base64.StdEncoding.DecodeString(raw.DataBase64)
	if err != nil {
		return vision.PixelBuffer{}, fmt.Errorf("failed to decode pixel data: %w", err)
	}
	buf := vision.PixelBuffer{Width: raw.Width, Height: raw.Height, Data: data}
	if err := buf.Validate(); err != nil {
		return vision.PixelBuffer{}, err
	}
	return buf, nil
}

// DecodeBase64 decodes a base64 encoded image file. A data URL prefix such
// as "data:image/png;base64," is accepted. The format name is returned
// like image.Decode does.
func DecodeBase64(s string) (image.Image, string, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ImageInfo contains metadata about an image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoded format, for example "png" or "webp". It is
	// "raw" for pixel buffers.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha channel.
	HasAlpha bool `json:"has_alpha"`
}

// LoadImageInfo returns metadata about the image named by src. Path sources
// are loaded into the cache.
func LoadImageInfo(cache *ImageCache, src Source) (*ImageInfo, error) {
	var (
		img    image.Image
		format = "raw"
		err    error
	)
	switch {
	case src.Path != "":
		if format, err = pathFormat(src.Path); err != nil {
			return nil, err
		}
		img, err = cache.Load(src.Path)
	case src.ImageBase64 != "":
		img, format, err = DecodeBase64(src.ImageBase64)
	default:
		img, err = cache.Image(src)
	}
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     format,
		ColorDepth: colorDepth,
		HasAlpha:   hasAlpha,
	}, nil
}

func pathFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	return format, nil
}
