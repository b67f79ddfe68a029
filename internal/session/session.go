// Package session ties each smart tool to its own worker and arena and
// keeps the open sessions in a registry keyed by UUID.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
	"github.com/ironsheep/smart-tools-mcp/internal/grabcut"
	"github.com/ironsheep/smart-tools-mcp/internal/sam"
	"github.com/ironsheep/smart-tools-mcp/internal/scissors"
	"github.com/ironsheep/smart-tools-mcp/internal/ssim"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
	"github.com/ironsheep/smart-tools-mcp/internal/worker"
)

var (
	// ErrUnknownTool is returned when opening a session for a tool that
	// does not exist.
	ErrUnknownTool = errors.New("session: unknown tool")

	// ErrUnknownSession is returned for ids that are not (or no longer)
	// registered.
	ErrUnknownSession = errors.New("session: unknown session")

	// ErrWrongTool is returned when a command targets a session opened for
	// another tool.
	ErrWrongTool = errors.New("session: command does not match session tool")
)

// Tool names a smart tool.
type Tool string

const (
	ToolGrabCut  Tool = "grabcut"
	ToolScissors Tool = "scissors"
	ToolSSIM     Tool = "ssim"
	ToolSAM      Tool = "sam"
)

// Tools lists every tool a session can be opened for.
var Tools = []Tool{ToolGrabCut, ToolScissors, ToolSSIM, ToolSAM}

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// Options configures every session opened by a registry.
type Options struct {
	Library    *vision.Library
	QueueSize  int
	DebugArena bool
	GrabCut    grabcut.Config
	Scissors   scissors.Config
	SSIM       ssim.Config
	Logger     *zap.Logger
}

// DefaultOptions returns options with every tool at its default tuning.
func DefaultOptions() Options {
	return Options{
		Library:   vision.Load(),
		QueueSize: worker.DefaultQueueSize,
		GrabCut:   grabcut.DefaultConfig(),
		Scissors:  scissors.DefaultConfig(),
		SSIM:      ssim.DefaultConfig(),
	}
}

// Info describes an open session.
type Info struct {
	ID      string    `json:"session_id"`
	Tool    Tool      `json:"tool"`
	Created time.Time `json:"created"`
}

// Session is one tool instance running on its own worker. Only one of the
// tool fields is set, matching Tool.
type Session struct {
	Info

	worker   *worker.Worker
	grabcut  *grabcut.Segmenter
	scissors *scissors.Tracer
	ssim     *ssim.Matcher
	sam      *sam.PostProcessor
}

func newSession(tool Tool, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Logger.With(zap.String("session", id), zap.String("tool", string(tool)))

	a := arena.New(arena.WithDebug(opts.DebugArena), arena.WithLogger(logger))

	s := &Session{Info: Info{ID: id, Tool: tool, Created: time.Now()}}
	switch tool {
	case ToolGrabCut:
		s.grabcut = grabcut.New(opts.Library, a, grabcut.WithConfig(opts.GrabCut), grabcut.WithLogger(logger))
	case ToolScissors:
		s.scissors = scissors.New(opts.Library, a, scissors.WithConfig(opts.Scissors), scissors.WithLogger(logger))
	case ToolSSIM:
		s.ssim = ssim.New(opts.Library, a, ssim.WithConfig(opts.SSIM), ssim.WithLogger(logger))
	case ToolSAM:
		s.sam = sam.New(opts.Library, a, logger)
	}
	s.worker = worker.New(id, a, opts.QueueSize, logger)
	return s
}

func (s *Session) wrongTool(want Tool) error {
	return fmt.Errorf("%w: session %s is %s, not %s", ErrWrongTool, s.ID, s.Tool, want)
}

// GrabCut runs fn on the session's worker with its segmenter.
func GrabCut[T any](ctx context.Context, s *Session, fn func(*grabcut.Segmenter) (T, error)) (T, error) {
	if s.grabcut == nil {
		var zero T
		return zero, s.wrongTool(ToolGrabCut)
	}
	return worker.Call(ctx, s.worker, func() (T, error) { return fn(s.grabcut) })
}

// Scissors runs fn on the session's worker with its tracer.
func Scissors[T any](ctx context.Context, s *Session, fn func(*scissors.Tracer) (T, error)) (T, error) {
	if s.scissors == nil {
		var zero T
		return zero, s.wrongTool(ToolScissors)
	}
	return worker.Call(ctx, s.worker, func() (T, error) { return fn(s.scissors) })
}

// SSIM runs fn on the session's worker with its matcher.
func SSIM[T any](ctx context.Context, s *Session, fn func(*ssim.Matcher) (T, error)) (T, error) {
	if s.ssim == nil {
		var zero T
		return zero, s.wrongTool(ToolSSIM)
	}
	return worker.Call(ctx, s.worker, func() (T, error) { return fn(s.ssim) })
}

// SAM runs fn on the session's worker with its post-processor.
func SAM[T any](ctx context.Context, s *Session, fn func(*sam.PostProcessor) (T, error)) (T, error) {
	if s.sam == nil {
		var zero T
		return zero, s.wrongTool(ToolSAM)
	}
	return worker.Call(ctx, s.worker, func() (T, error) { return fn(s.sam) })
}

// Registry holds the open sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     Options
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Library == nil {
		opts.Library = vision.Load()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Open starts a session for tool.
func (r *Registry) Open(tool Tool) (*Session, error) {
	if _, err := ParseTool(string(tool)); err != nil {
		return nil, err
	}
	s := newSession(tool, r.opts)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("session opened", zap.String("session", s.ID), zap.String("tool", string(tool)))
	return s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s, nil
}

// Close terminates the session and removes it from the registry. It waits
// for the command in flight to finish.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	s.worker.Terminate()
	r.logger.Info("session closed", zap.String("session", id))
	return nil
}

// List returns the open sessions, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	infos := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info)
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Created.Equal(infos[j].Created) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Created.Before(infos[j].Created)
	})
	return infos
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll terminates every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.worker.Terminate()
	}
}
