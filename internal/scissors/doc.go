// Package scissors implements the intelligent scissors (live-wire) tool.
//
// BuildMap fixes a seed point, crops a working window around it and runs a
// single-source shortest path search over the 8-connected pixel grid. Link
// costs follow Mortensen and Barrett:
//
//	cost(p, q) = 0.43·fZ(q) + 0.43·fG(q) + 0.14·fD(p, q)
//
// where fZ is zero on Canny edges, fG falls with gradient magnitude and fD
// penalises links that cross the local edge direction. Diagonal links cost
// √2 times more. CalcPoints then reads the optimal boundary from the seed to
// any cursor position in the window without further search.
//
// Edge features come from gocv (Canny on luminance, Sobel per colour channel);
// the graph search itself is plain Go.
package scissors
