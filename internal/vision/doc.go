// Package vision is the process-wide handle on the OpenCV runtime.
//
// The runtime is initialised once per process with Load and the returned
// *Library is shared by reference with every tool session. The package also
// converts browser style RGBA pixel buffers into gocv matrices and defines
// the GrabCut mask labels shared by the segmentation tools.
package vision
