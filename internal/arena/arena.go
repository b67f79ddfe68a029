// Package arena tracks the native vision buffers owned by one tool session.
//
// Buffers are addressed through opaque Handles. A handle is released exactly
// once, either explicitly with Release, implicitly at the end of the
// WithScoped block that acquired it, or when the whole arena is closed at
// session teardown. Releasing twice or reading a released handle is a
// programming error: debug arenas panic, release arenas log a warning and
// the result is undefined.
//
// An Arena is not safe for concurrent use. It belongs to exactly one worker
// goroutine.
package arena

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	// ErrReleased is reported when a handle is used after release.
	ErrReleased = errors.New("arena: handle already released")

	// ErrUnknownHandle is reported for handles this arena never issued.
	ErrUnknownHandle = errors.New("arena: unknown handle")

	// ErrKindMismatch is reported when a handle is read as the wrong kind.
	ErrKindMismatch = errors.New("arena: handle kind mismatch")
)

// Kind identifies the type of buffer behind a handle.
type Kind uint8

const (
	KindMat Kind = iota + 1
	KindPoints
	KindContours
)

func (k Kind) String() string {
	switch k {
	case KindMat:
		return "mat"
	case KindPoints:
		return "points"
	case KindContours:
		return "contours"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Dims describes a matrix allocation. A zero Dims allocates an empty Mat
// that vision calls size on first write.
type Dims struct {
	Rows int
	Cols int
	Type gocv.MatType
}

// Handle is an opaque reference to a buffer owned by an Arena. The zero
// Handle is never issued.
type Handle uint64

type entry struct {
	kind     Kind
	mat      gocv.Mat
	points   gocv.PointVector
	contours gocv.PointsVector
}

func (e *entry) close() {
	switch e.kind {
	case KindMat:
		e.mat.Close()
	case KindPoints:
		e.points.Close()
	case KindContours:
		e.contours.Close()
	}
}

// Arena owns a set of vision buffers.
type Arena struct {
	entries map[Handle]*entry
	next    Handle
	debug   bool
	logger  *zap.Logger
}

// Option configures an Arena.
type Option func(*Arena)

// WithDebug makes lifecycle violations panic instead of being logged.
func WithDebug(debug bool) Option {
	return func(a *Arena) { a.debug = debug }
}

// WithLogger sets the logger used for lifecycle warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Arena) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an empty arena.
func New(opts ...Option) *Arena {
	a := &Arena{
		entries: make(map[Handle]*entry),
		next:    1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Live returns the number of buffers currently held.
func (a *Arena) Live() int {
	return len(a.entries)
}

// Acquire allocates a new buffer of the given kind. Dims only applies to
// KindMat.
func (a *Arena) Acquire(kind Kind, dims Dims) Handle {
	switch kind {
	case KindMat:
		if dims.Rows > 0 && dims.Cols > 0 {
			return a.AdoptMat(gocv.NewMatWithSize(dims.Rows, dims.Cols, dims.Type))
		}
		return a.AdoptMat(gocv.NewMat())
	case KindPoints:
		return a.AdoptPoints(gocv.NewPointVector())
	case KindContours:
		return a.AdoptContours(gocv.NewPointsVector())
	default:
		panic(fmt.Sprintf("arena: cannot acquire %s", kind))
	}
}

// AdoptMat takes ownership of a Mat produced by a vision call.
func (a *Arena) AdoptMat(m gocv.Mat) Handle {
	return a.insert(&entry{kind: KindMat, mat: m})
}

// AdoptPoints takes ownership of a PointVector produced by a vision call.
func (a *Arena) AdoptPoints(pv gocv.PointVector) Handle {
	return a.insert(&entry{kind: KindPoints, points: pv})
}

// AdoptContours takes ownership of a PointsVector produced by a vision call.
func (a *Arena) AdoptContours(pvs gocv.PointsVector) Handle {
	return a.insert(&entry{kind: KindContours, contours: pvs})
}

func (a *Arena) insert(e *entry) Handle {
	h := a.next
	a.next++
	a.entries[h] = e
	return h
}

// Mat returns the matrix behind h. The pointer stays valid until h is
// released and may be passed as a destination to vision calls.
func (a *Arena) Mat(h Handle) *gocv.Mat {
	e := a.lookup(h, KindMat)
	if e == nil {
		return nil
	}
	return &e.mat
}

// Points returns the point vector behind h.
func (a *Arena) Points(h Handle) gocv.PointVector {
	e := a.lookup(h, KindPoints)
	if e == nil {
		return gocv.PointVector{}
	}
	return e.points
}

// Contours returns the contour vector behind h.
func (a *Arena) Contours(h Handle) gocv.PointsVector {
	e := a.lookup(h, KindContours)
	if e == nil {
		return gocv.PointsVector{}
	}
	return e.contours
}

// Valid reports whether h refers to a live buffer.
func (a *Arena) Valid(h Handle) bool {
	_, ok := a.entries[h]
	return ok
}

// Release frees the buffer behind h.
func (a *Arena) Release(h Handle) {
	e, ok := a.entries[h]
	if !ok {
		a.violation(a.missing(h), h)
		return
	}
	delete(a.entries, h)
	e.close()
}

// Close releases every live buffer. The arena may be reused afterwards.
func (a *Arena) Close() {
	for h, e := range a.entries {
		delete(a.entries, h)
		e.close()
	}
}

func (a *Arena) lookup(h Handle, kind Kind) *entry {
	e, ok := a.entries[h]
	if !ok {
		a.violation(a.missing(h), h)
		return nil
	}
	if e.kind != kind {
		a.violation(fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, e.kind, kind), h)
		return nil
	}
	return e
}

func (a *Arena) missing(h Handle) error {
	if h != 0 && h < a.next {
		return ErrReleased
	}
	return ErrUnknownHandle
}

func (a *Arena) violation(err error, h Handle) {
	if a.debug {
		panic(fmt.Errorf("%w (handle %d)", err, h))
	}
	a.logger.Warn("buffer lifecycle violation", zap.Uint64("handle", uint64(h)), zap.Error(err))
}
