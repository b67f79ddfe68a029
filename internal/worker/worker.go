// Package worker runs the commands of one tool session on a dedicated
// goroutine.
//
// Commands are queued on a bounded channel and executed one at a time, so
// session state is only ever touched by the worker goroutine. Terminate
// stops intake, lets the running command finish, fails every queued
// command with ErrTerminated and closes the session's arena.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/arena"
)

// ErrTerminated is returned for commands submitted to, or still queued on,
// a terminated worker.
var ErrTerminated = errors.New("worker: terminated")

// DefaultQueueSize is the command queue capacity used when none is given.
const DefaultQueueSize = 16

type result struct {
	value any
	err   error
}

type command struct {
	fn    func() (any, error)
	reply chan result
}

// Worker owns a goroutine and the arena of one session.
type Worker struct {
	name   string
	arena  *arena.Arena
	logger *zap.Logger

	queue chan command
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New starts a worker. A queueSize of zero or less uses DefaultQueueSize.
func New(name string, a *arena.Arena, queueSize int, logger *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		name:   name,
		arena:  a,
		logger: logger,
		queue:  make(chan command, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Arena returns the arena owned by the worker. It must only be used from
// commands running on the worker.
func (w *Worker) Arena() *arena.Arena { return w.arena }

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) loop() {
	defer close(w.done)
	defer w.arena.Close()

	for {
		select {
		case <-w.quit:
			w.drain()
			return
		default:
		}

		select {
		case cmd := <-w.queue:
			cmd.reply <- w.run(cmd)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *Worker) run(cmd command) (res result) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("command panicked", zap.String("worker", w.name), zap.Any("panic", r))
			res = result{err: fmt.Errorf("%s: command panicked: %v", w.name, r)}
		}
	}()
	v, err := cmd.fn()
	return result{value: v, err: err}
}

func (w *Worker) drain() {
	for {
		select {
		case cmd := <-w.queue:
			cmd.reply <- result{err: ErrTerminated}
		default:
			return
		}
	}
}

// Do queues fn and waits for its result. A cancelled context abandons the
// wait; the command itself may still run.
func (w *Worker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrTerminated
	default:
	}

	reply := make(chan result, 1)
	select {
	case w.queue <- command{fn: fn, reply: reply}:
	case <-w.quit:
		return nil, ErrTerminated
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-w.done:
		select {
		case r := <-reply:
			return r.value, r.err
		default:
			return nil, ErrTerminated
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call is the typed form of Do.
func Call[T any](ctx context.Context, w *Worker, fn func() (T, error)) (T, error) {
	v, err := w.Do(ctx, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Terminate stops the worker and waits for it to exit. It is safe to call
// more than once.
func (w *Worker) Terminate() {
	w.once.Do(func() {
		close(w.quit)
		w.logger.Debug("worker terminating", zap.String("worker", w.name))
	})
	<-w.done
}
