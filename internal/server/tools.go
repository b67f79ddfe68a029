package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var sessionIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "Session id returned by session_open",
}

var pointSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"x": map[string]interface{}{"type": "number"},
		"y": map[string]interface{}{"type": "number"},
	},
	"required": []string{"x", "y"},
}

var rectSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"x":      map[string]interface{}{"type": "number"},
		"y":      map[string]interface{}{"type": "number"},
		"width":  map[string]interface{}{"type": "number"},
		"height": map[string]interface{}{"type": "number"},
	},
	"required": []string{"x", "y", "width", "height"},
}

var strokesSchema = map[string]interface{}{
	"type":  "array",
	"items": map[string]interface{}{"type": "array", "items": pointSchema},
}

var pixelsSchema = map[string]interface{}{
	"type":        "object",
	"description": "Raw non-premultiplied RGBA pixels, as in a browser ImageData",
	"properties": map[string]interface{}{
		"width":       map[string]interface{}{"type": "integer"},
		"height":      map[string]interface{}{"type": "integer"},
		"data_base64": map[string]interface{}{"type": "string"},
	},
	"required": []string{"width", "height", "data_base64"},
}

// imageSourceProperties describes the three ways of naming an image. Exactly
// one should be set.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file (cached between calls)",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Encoded image file (PNG, JPEG, GIF, BMP, TIFF or WebP), optionally as a data URL",
		},
		"pixels": pixelsSchema,
	}
}

func withSession(props map[string]interface{}) map[string]interface{} {
	props["session_id"] = sessionIDProperty
	return props
}

func sessionOnlySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": withSession(map[string]interface{}{}),
		"required":   []string{"session_id"},
	}
}

func pointCommandSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": withSession(map[string]interface{}{"point": pointSchema}),
		"required":   []string{"session_id", "point"},
	}
}

func loadImageSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": withSession(imageSourceProperties()),
		"required":   []string{"session_id"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Sessions
		{
			Name:        "session_open",
			Description: "Open a tool session. Each session runs on its own worker and owns its image and models until closed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tool": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"grabcut", "scissors", "ssim", "sam"},
						"description": "Tool the session drives",
					},
				},
				"required": []string{"tool"},
			},
		},
		{
			Name:        "session_close",
			Description: "Close a session. The running command finishes, queued commands fail and every buffer is released.",
			InputSchema: sessionOnlySchema(),
		},
		{
			Name:        "session_list",
			Description: "List the open sessions, oldest first.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// GrabCut
		{
			Name:        "grabcut_load_image",
			Description: "Load the image a GrabCut session segments. Discards any previous image and models.",
			InputSchema: loadImageSchema(),
		},
		{
			Name:        "grabcut_start",
			Description: "Segment the object inside a bounding box and return its outline as a closed polygon. Foreground and background strokes refine the previous run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withSession(map[string]interface{}{
					"rect": rectSchema,
					"sensitivity": map[string]interface{}{
						"type":        "number",
						"description": "Working resolution: larger values keep more detail. Must be positive",
					},
					"stroke_width": map[string]interface{}{
						"type":        "integer",
						"description": "Stroke width in pixels",
					},
					"foreground": strokesSchema,
					"background": strokesSchema,
					"in_order": map[string]interface{}{
						"type":        "boolean",
						"description": "Burn strokes in the order given instead of background first",
					},
				}),
				"required": []string{"session_id", "rect", "sensitivity"},
			},
		},
		{
			Name:        "grabcut_clean_models",
			Description: "Drop the GrabCut mask and colour models. Safe to call repeatedly.",
			InputSchema: sessionOnlySchema(),
		},

		// Intelligent scissors
		{
			Name:        "scissors_load_image",
			Description: "Load the image an intelligent scissors session traces on.",
			InputSchema: loadImageSchema(),
		},
		{
			Name:        "scissors_build_map",
			Description: "Fix the seed point and compute the cost map around it.",
			InputSchema: pointCommandSchema(),
		},
		{
			Name:        "scissors_calc_points",
			Description: "Return the cheapest boundary from the seed to a point. Empty when no seed is set or the point is outside the working window.",
			InputSchema: pointCommandSchema(),
		},
		{
			Name:        "scissors_optimize_polygon",
			Description: "Simplify a closed polygon.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withSession(map[string]interface{}{
					"polygon": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"points": map[string]interface{}{"type": "array", "items": pointSchema},
						},
						"required": []string{"points"},
					},
				}),
				"required": []string{"session_id", "polygon"},
			},
		},
		{
			Name:        "scissors_optimize_segments",
			Description: "Simplify each traced segment and join them into one polygon.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withSession(map[string]interface{}{"segments": strokesSchema}),
				"required":   []string{"session_id", "segments"},
			},
		},
		{
			Name:        "scissors_clean_points",
			Description: "Drop the seed and its cost map.",
			InputSchema: sessionOnlySchema(),
		},
		{
			Name:        "scissors_clean_image",
			Description: "Release the loaded image and drop the seed.",
			InputSchema: sessionOnlySchema(),
		},

		// Template matching
		{
			Name:        "ssim_execute",
			Description: "Find repeats of a template inside a region of interest. Returns matches ordered by confidence.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withSession(map[string]interface{}{
					"image": map[string]interface{}{
						"type":       "object",
						"properties": imageSourceProperties(),
					},
					"roi": rectSchema,
					"template": map[string]interface{}{
						"type":        "object",
						"description": "Template rectangle relative to the ROI",
						"properties":  rectSchema["properties"],
					},
					"existing_annotations": map[string]interface{}{
						"type":        "array",
						"description": "Shapes with a shapeType discriminant; matches overlapping them are dropped",
						"items":       map[string]interface{}{"type": "object"},
					},
					"auto_merge_duplicates": map[string]interface{}{"type": "boolean"},
					"shape_type": map[string]interface{}{
						"type":        "string",
						"description": "Only existing annotations of this type are considered for merging",
					},
				}),
				"required": []string{"session_id", "image", "roi", "template"},
			},
		},

		// Mask post-processing
		{
			Name:        "sam_mask_to_shapes",
			Description: "Convert a binary segmentation mask into shapes scaled to the original image. Background-sized contours are dropped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withSession(map[string]interface{}{
					"mask_base64": map[string]interface{}{
						"type":        "string",
						"description": "One byte per mask pixel, non-zero for foreground",
					},
					"sizes": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"width":          map[string]interface{}{"type": "integer"},
							"height":         map[string]interface{}{"type": "integer"},
							"originalWidth":  map[string]interface{}{"type": "integer"},
							"originalHeight": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"width", "height", "originalWidth", "originalHeight"},
					},
					"type": map[string]interface{}{
						"type": "string",
						"enum": []string{"rect", "rotated-rect", "circle", "polygon"},
					},
					"contains_point": pointSchema,
				}),
				"required": []string{"session_id", "mask_base64", "sizes"},
			},
		},

		// Image helpers
		{
			Name:        "inference_heatmap",
			Description: "Resize an inference saliency map and colour it with a jet ramp. Returns a base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":       "object",
						"properties": imageSourceProperties(),
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Output width. Defaults to the map width",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Output height. Defaults to the map height",
					},
				},
				"required": []string{"image"},
			},
		},
		{
			Name:        "image_info",
			Description: "Get the dimensions, format and colour depth of an image.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "image_crop",
			Description: "Crop a region of interest and return it as base64 PNG, to check what a tool will work on.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": func() map[string]interface{} {
					props := imageSourceProperties()
					props["roi"] = rectSchema
					props["scale"] = map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					}
					return props
				}(),
				"required": []string{"roi"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
