// Package server implements the MCP (Model Context Protocol) server for the
// smart annotation tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Sessions
//
// GrabCut, intelligent scissors, SSIM matching and SAM post-processing run
// inside sessions. session_open starts a worker for one tool and returns its
// id; every later call for that tool carries the id as session_id. A session
// keeps its image, mask and models between calls until session_close.
//
// # Available Tools
//
// Sessions:
//   - session_open, session_close, session_list
//
// GrabCut:
//   - grabcut_load_image, grabcut_start, grabcut_clean_models
//
// Intelligent scissors:
//   - scissors_load_image, scissors_build_map, scissors_calc_points
//   - scissors_optimize_polygon, scissors_optimize_segments
//   - scissors_clean_points, scissors_clean_image
//
// Template matching and mask post-processing:
//   - ssim_execute, sam_mask_to_shapes
//
// Image helpers (no session):
//   - inference_heatmap, image_info, image_crop
//
// Images are passed as a file path (cached by path), an encoded file in
// image_base64, or raw RGBA pixels.
//
// # Error Handling
//
// Malformed arguments, unknown tools and unknown sessions produce code
// -32602. Failures inside a tool produce -32000. The Go error string is
// returned in the data field. ExecuteTool is exported so the HTTP transport
// dispatches through the same switch.
package server
