// Package geometry defines the annotation shapes produced by the smart tools.
//
// All coordinates are in image pixel space with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward. Shapes serialise to JSON
// with a "shapeType" discriminant so that clients can decode the tagged union:
//
//	{"shapeType": "rect", "x": 10, "y": 20, "width": 30, "height": 40}
//	{"shapeType": "polygon", "points": [{"x": 1, "y": 2}, ...]}
//
// Polygons returned by the segmentation tools are closed by convention: the
// first point is repeated as the last one. Intelligent-scissors traces are
// open paths and are not closed.
package geometry
