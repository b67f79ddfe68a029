// Package contour holds the raster-to-geometry helpers shared by the smart
// tools: approxPolyDP simplification with a fixed one pixel tolerance,
// conversion between gocv point vectors and annotation points with an
// offset, and the largest-contour selection rule used by GrabCut.
//
// Every gocv buffer created here is owned by an arena scope supplied by the
// caller.
package contour
