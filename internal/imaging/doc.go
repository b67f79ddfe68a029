// Package imaging loads the images the smart tools work on and renders
// image outputs.
//
// # Image Sources
//
// Tools accept an image in one of three forms, see Source:
//   - path: a file on disk, decoded once and kept in the ImageCache
//   - image_base64: an encoded image file (PNG, JPEG, GIF, BMP, TIFF, WebP),
//     optionally as a data URL
//   - pixels: raw non-premultiplied RGBA bytes with explicit dimensions, the
//     wire form of a browser ImageData
//
// Every source resolves to a vision.PixelBuffer.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Regions are half open:
// Min is inclusive, Max exclusive.
//
// # Outputs
//
// Crop encodes a region of interest as PNG for previews. RenderHeatmap turns
// a model saliency map into a jet coloured overlay of any size.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless.
package imaging
