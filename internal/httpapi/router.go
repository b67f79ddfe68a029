package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/server"
	"github.com/ironsheep/smart-tools-mcp/internal/session"
)

// maxBodySize bounds a request body; pixel buffers travel base64 encoded.
const maxBodySize = 64 << 20

// Response wraps every reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BuildInfo is reported by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Handler serves tool calls through an MCP server's dispatcher.
type Handler struct {
	tools  *server.Server
	build  BuildInfo
	logger *zap.Logger
}

// NewRouter builds the gin engine. mode is a gin mode: debug, release or test.
func NewRouter(tools *server.Server, build BuildInfo, mode string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(mode)

	h := &Handler{tools: tools, build: build, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(logger))

	r.GET("/health", h.Health)
	r.GET("/version", h.Version)

	api := r.Group("/api/v1")
	{
		api.POST("/tools/:name", h.CallTool)
		api.POST("/sessions", h.OpenSession)
		api.GET("/sessions", h.ListSessions)
		api.DELETE("/sessions/:id", h.CloseSession)
	}
	return r
}

// Health reports liveness and the number of open sessions.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  h.build.Version,
		"sessions": h.tools.Sessions().Len(),
	})
}

// Version reports build information.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// CallTool runs the tool named in the path with the request body as its
// arguments.
func (h *Handler) CallTool(c *gin.Context) {
	args, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		h.fail(c, http.StatusRequestEntityTooLarge, "failed to read request body", err)
		return
	}
	if len(args) > 0 && !json.Valid(args) {
		h.fail(c, http.StatusBadRequest, "request body is not JSON", server.ErrInvalidArguments)
		return
	}
	h.execute(c, c.Param("name"), args, http.StatusOK)
}

type openSessionRequest struct {
	Tool string `json:"tool" binding:"required"`
}

// OpenSession starts a session.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	args, _ := json.Marshal(req)
	h.execute(c, "session_open", args, http.StatusCreated)
}

// ListSessions lists the open sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	h.execute(c, "session_list", nil, http.StatusOK)
}

// CloseSession terminates a session.
func (h *Handler) CloseSession(c *gin.Context) {
	args, _ := json.Marshal(map[string]string{"session_id": c.Param("id")})
	h.execute(c, "session_close", args, http.StatusOK)
}

func (h *Handler) execute(c *gin.Context, name string, args json.RawMessage, status int) {
	result, err := h.tools.ExecuteTool(c.Request.Context(), name, args)
	if err != nil {
		h.fail(c, statusOf(err), fmt.Sprintf("%s failed", name), err)
		return
	}
	c.JSON(status, Response{Success: true, Data: result})
}

func (h *Handler) fail(c *gin.Context, status int, message string, err error) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Message: message, Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, server.ErrUnknownTool),
		errors.Is(err, session.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case server.IsInvalidParams(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
