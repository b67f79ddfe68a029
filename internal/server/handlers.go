package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/grabcut"
	"github.com/ironsheep/smart-tools-mcp/internal/imaging"
	"github.com/ironsheep/smart-tools-mcp/internal/planner"
	"github.com/ironsheep/smart-tools-mcp/internal/sam"
	"github.com/ironsheep/smart-tools-mcp/internal/scissors"
	"github.com/ironsheep/smart-tools-mcp/internal/session"
	"github.com/ironsheep/smart-tools-mcp/internal/ssim"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

var (
	// ErrUnknownTool is returned by ExecuteTool for names it does not serve.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments wraps malformed or missing tool arguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// requestErrors are caused by the caller, not by tool execution.
var requestErrors = []error{
	ErrUnknownTool,
	ErrInvalidArguments,
	session.ErrUnknownTool,
	session.ErrUnknownSession,
	session.ErrWrongTool,
	planner.ErrInvalidSensitivity,
	sam.ErrUnsupportedShape,
	sam.ErrInvalidMask,
	vision.ErrInvalidPixels,
	imaging.ErrNoImage,
}

// IsInvalidParams reports whether err was caused by the request rather than
// by tool execution.
func IsInvalidParams(err error) bool {
	for _, target := range requestErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "session_open", "grabcut_start").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Request errors use code -32602, execution failures -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.ExecuteTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if IsInvalidParams(err) {
			return errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		s.logger.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// ExecuteTool dispatches a tool call by name. It is shared by the stdio and
// HTTP transports.
func (s *Server) ExecuteTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Sessions
	case "session_open":
		return s.handleSessionOpen(args)
	case "session_close":
		return s.handleSessionClose(args)
	case "session_list":
		return s.handleSessionList()

	// GrabCut
	case "grabcut_load_image":
		return s.handleGrabCutLoadImage(ctx, args)
	case "grabcut_start":
		return s.handleGrabCutStart(ctx, args)
	case "grabcut_clean_models":
		return s.handleGrabCutCleanModels(ctx, args)

	// Intelligent scissors
	case "scissors_load_image":
		return s.handleScissorsLoadImage(ctx, args)
	case "scissors_build_map":
		return s.handleScissorsBuildMap(ctx, args)
	case "scissors_calc_points":
		return s.handleScissorsCalcPoints(ctx, args)
	case "scissors_optimize_polygon":
		return s.handleScissorsOptimizePolygon(ctx, args)
	case "scissors_optimize_segments":
		return s.handleScissorsOptimizeSegments(ctx, args)
	case "scissors_clean_points":
		return s.handleScissorsClean(ctx, args, (*scissors.Tracer).CleanPoints)
	case "scissors_clean_image":
		return s.handleScissorsClean(ctx, args, (*scissors.Tracer).CleanImage)

	// Template matching
	case "ssim_execute":
		return s.handleSSIMExecute(ctx, args)

	// Mask post-processing
	case "sam_mask_to_shapes":
		return s.handleSAMMaskToShapes(ctx, args)

	// Image helpers
	case "inference_heatmap":
		return s.handleInferenceHeatmap(args)
	case "image_info":
		return s.handleImageInfo(args)
	case "image_crop":
		return s.handleImageCrop(args)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) session(a sessionArgs) (*session.Session, error) {
	if a.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidArguments)
	}
	return s.sessions.Get(a.SessionID)
}

// done is returned by commands without a payload.
type done struct {
	OK bool `json:"ok"`
}

// === Session Handlers ===

type sessionOpenArgs struct {
	Tool string `json:"tool"`
}

func (s *Server) handleSessionOpen(args json.RawMessage) (interface{}, error) {
	var a sessionOpenArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	tool, err := session.ParseTool(a.Tool)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Open(tool)
	if err != nil {
		return nil, err
	}
	return sess.Info, nil
}

func (s *Server) handleSessionClose(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidArguments)
	}
	if err := s.sessions.Close(a.SessionID); err != nil {
		return nil, err
	}
	return done{OK: true}, nil
}

type sessionListResult struct {
	Sessions []session.Info `json:"sessions"`
}

func (s *Server) handleSessionList() (interface{}, error) {
	return sessionListResult{Sessions: s.sessions.List()}, nil
}

// === Image Loading ===

type loadImageArgs struct {
	sessionArgs
	imaging.Source
}

type loadImageResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// resolveLoad decodes the image on the caller's goroutine so the worker only
// spends time on vision work.
func (s *Server) resolveLoad(args json.RawMessage) (*session.Session, vision.PixelBuffer, error) {
	var a loadImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, vision.PixelBuffer{}, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, vision.PixelBuffer{}, err
	}
	pixels, err := s.cache.Resolve(a.Source)
	if err != nil {
		return nil, vision.PixelBuffer{}, err
	}
	return sess, pixels, nil
}

// === GrabCut Handlers ===

func (s *Server) handleGrabCutLoadImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	sess, pixels, err := s.resolveLoad(args)
	if err != nil {
		return nil, err
	}
	return session.GrabCut(ctx, sess, func(seg *grabcut.Segmenter) (loadImageResult, error) {
		if err := seg.LoadImage(pixels); err != nil {
			return loadImageResult{}, err
		}
		return loadImageResult{Width: pixels.Width, Height: pixels.Height}, nil
	})
}

type grabcutStartArgs struct {
	sessionArgs
	Rect        geometry.Rect      `json:"rect"`
	StrokeWidth int                `json:"stroke_width"`
	Sensitivity float64            `json:"sensitivity"`
	Foreground  [][]geometry.Point `json:"foreground"`
	Background  [][]geometry.Point `json:"background"`
	InOrder     bool               `json:"in_order"`
}

func (s *Server) handleGrabCutStart(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a grabcutStartArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}
	req := grabcut.Request{
		Rect:        a.Rect,
		Foreground:  a.Foreground,
		Background:  a.Background,
		Sensitivity: a.Sensitivity,
		StrokeWidth: a.StrokeWidth,
		InOrder:     a.InOrder,
	}
	return session.GrabCut(ctx, sess, func(seg *grabcut.Segmenter) (geometry.Polygon, error) {
		return seg.Start(req)
	})
}

func (s *Server) handleGrabCutCleanModels(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a)
	if err != nil {
		return nil, err
	}
	return session.GrabCut(ctx, sess, func(seg *grabcut.Segmenter) (done, error) {
		seg.CleanModels()
		return done{OK: true}, nil
	})
}

// === Intelligent Scissors Handlers ===

func (s *Server) handleScissorsLoadImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	sess, pixels, err := s.resolveLoad(args)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (loadImageResult, error) {
		if err := t.LoadImage(pixels); err != nil {
			return loadImageResult{}, err
		}
		return loadImageResult{Width: pixels.Width, Height: pixels.Height}, nil
	})
}

type pointArgs struct {
	sessionArgs
	Point *geometry.Point `json:"point"`
}

func (a pointArgs) point() (geometry.Point, error) {
	if a.Point == nil {
		return geometry.Point{}, fmt.Errorf("%w: point is required", ErrInvalidArguments)
	}
	return *a.Point, nil
}

type buildMapResult struct {
	Seeded bool `json:"seeded"`
}

func (s *Server) handleScissorsBuildMap(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p, err := a.point()
	if err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (buildMapResult, error) {
		if err := t.BuildMap(p); err != nil {
			return buildMapResult{}, err
		}
		return buildMapResult{Seeded: t.Seeded()}, nil
	})
}

type pointsResult struct {
	Points []geometry.Point `json:"points"`
}

func (s *Server) handleScissorsCalcPoints(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p, err := a.point()
	if err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (pointsResult, error) {
		points := t.CalcPoints(p)
		if points == nil {
			points = []geometry.Point{}
		}
		return pointsResult{Points: points}, nil
	})
}

type optimizePolygonArgs struct {
	sessionArgs
	Polygon geometry.Polygon `json:"polygon"`
}

func (s *Server) handleScissorsOptimizePolygon(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a optimizePolygonArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (geometry.Polygon, error) {
		return t.OptimizePolygon(a.Polygon), nil
	})
}

type optimizeSegmentsArgs struct {
	sessionArgs
	Segments [][]geometry.Point `json:"segments"`
}

func (s *Server) handleScissorsOptimizeSegments(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a optimizeSegmentsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (geometry.Polygon, error) {
		return t.OptimizeSegments(a.Segments), nil
	})
}

func (s *Server) handleScissorsClean(ctx context.Context, args json.RawMessage, clean func(*scissors.Tracer)) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a)
	if err != nil {
		return nil, err
	}
	return session.Scissors(ctx, sess, func(t *scissors.Tracer) (done, error) {
		clean(t)
		return done{OK: true}, nil
	})
}

// === Template Matching Handlers ===

type ssimExecuteArgs struct {
	sessionArgs
	Image               imaging.Source    `json:"image"`
	ROI                 geometry.Rect     `json:"roi"`
	Template            geometry.Rect     `json:"template"`
	ExistingAnnotations []json.RawMessage `json:"existing_annotations"`
	AutoMergeDuplicates bool              `json:"auto_merge_duplicates"`
	ShapeType           string            `json:"shape_type"`
}

type ssimResult struct {
	Matches []ssim.Match `json:"matches"`
}

func (s *Server) handleSSIMExecute(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a ssimExecuteArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}

	existing := make([]geometry.Shape, 0, len(a.ExistingAnnotations))
	for i, raw := range a.ExistingAnnotations {
		shape, err := geometry.UnmarshalShape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: existing_annotations[%d]: %v", ErrInvalidArguments, i, err)
		}
		existing = append(existing, shape)
	}

	pixels, err := s.cache.Resolve(a.Image)
	if err != nil {
		return nil, err
	}

	req := ssim.Request{
		Image:               pixels,
		ROI:                 a.ROI,
		Template:            a.Template,
		ExistingAnnotations: existing,
		AutoMergeDuplicates: a.AutoMergeDuplicates,
		ShapeType:           geometry.ShapeType(a.ShapeType),
	}
	return session.SSIM(ctx, sess, func(m *ssim.Matcher) (ssimResult, error) {
		matches := m.Execute(req)
		if matches == nil {
			matches = []ssim.Match{}
		}
		return ssimResult{Matches: matches}, nil
	})
}

// === Mask Post-processing Handlers ===

type samMaskToShapesArgs struct {
	sessionArgs
	MaskBase64    string          `json:"mask_base64"`
	Sizes         sam.Sizes       `json:"sizes"`
	Type          string          `json:"type"`
	ContainsPoint *geometry.Point `json:"contains_point"`
}

func (s *Server) handleSAMMaskToShapes(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a samMaskToShapesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.sessionArgs)
	if err != nil {
		return nil, err
	}

	mask, err := base64.StdEncoding.DecodeString(a.MaskBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: mask_base64: %v", ErrInvalidArguments, err)
	}

	cfg := sam.Config{Type: geometry.ShapeType(a.Type)}
	if cfg.Type == "" {
		cfg.Type = s.samType
	}
	if a.ContainsPoint != nil {
		cfg.ShapeFilter = sam.ContainsPoint(*a.ContainsPoint)
	}

	return session.SAM(ctx, sess, func(p *sam.PostProcessor) (sam.Result, error) {
		return p.MaskToShapes(mask, a.Sizes, cfg)
	})
}

// === Image Helper Handlers ===

type heatmapArgs struct {
	Image  imaging.Source `json:"image"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
}

type encodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

func (s *Server) handleInferenceHeatmap(args json.RawMessage) (interface{}, error) {
	var a heatmapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.cache.Image(a.Image)
	if err != nil {
		return nil, err
	}
	if a.Width < 0 || a.Height < 0 {
		return nil, fmt.Errorf("%w: negative heat map size %dx%d", ErrInvalidArguments, a.Width, a.Height)
	}
	if a.Width == 0 {
		a.Width = src.Bounds().Dx()
	}
	if a.Height == 0 {
		a.Height = src.Bounds().Dy()
	}

	heat, err := imaging.RenderHeatmap(src, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNGBase64(heat)
	if err != nil {
		return nil, err
	}
	return encodedImage{
		Width:       heat.Bounds().Dx(),
		Height:      heat.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

type imageInfoArgs struct {
	imaging.Source
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Source)
}

type imageCropArgs struct {
	imaging.Source
	ROI   geometry.Rect `json:"roi"`
	Scale float64       `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Image(a.Source)
	if err != nil {
		return nil, err
	}
	roi := planner.ClampROI(a.ROI, img.Bounds().Size())
	if roi.Empty() {
		return nil, fmt.Errorf("%w: roi %+v does not intersect the image", ErrInvalidArguments, a.ROI)
	}
	return imaging.Crop(img, roi.Add(img.Bounds().Min), a.Scale)
}
