// Package grabcut implements the GrabCut smart tool.
//
// A Segmenter holds one loaded image together with the refinement mask and
// the colour models left behind by the previous run, so repeated calls to
// Start refine the same object:
//
//	seg := grabcut.New(vision.Load(), arena.New())
//	seg.LoadImage(pixels)
//	poly, _ := seg.Start(grabcut.Request{Rect: box, Sensitivity: 40, StrokeWidth: 5})
//	poly, _ = seg.Start(grabcut.Request{Rect: box, Sensitivity: 40, StrokeWidth: 5,
//		Foreground: strokes, InOrder: true})
//	seg.CleanModels()
//
// The first run (or any run without strokes) initialises the models from the
// selection rectangle. Later runs with strokes burn them into the previous
// mask and refine with the existing models.
//
// A Segmenter is not safe for concurrent use.
package grabcut
