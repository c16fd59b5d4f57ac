package roomrelease

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Runner serializes all work for one controller on a single goroutine.
// Submit never blocks: MQTT handlers push into an unbounded queue so the
// broker's delivery goroutine stays free to deliver RPC replies.
type Runner struct {
	ctrl   *Controller
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func(ctx context.Context)
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewRunner creates a runner for ctrl and routes its timers through it
func NewRunner(ctrl *Controller, logger *slog.Logger) *Runner {
	r := &Runner{
		ctrl:   ctrl,
		logger: logger.With("room", ctrl.Room()),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	ctrl.SetDispatcher(r.Submit)
	return r
}

// Submit queues fn. Work submitted after the runner stopped is dropped.
func (r *Runner) Submit(fn func(ctx context.Context)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run processes queued work in order until ctx is cancelled
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	for {
		fn, ok := r.next()
		if !ok {
			select {
			case <-ctx.Done():
				r.shutdown()
				return
			case <-r.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			r.shutdown()
			return
		}
		r.exec(ctx, fn)
	}
}

// Done is closed when Run returns
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Pending returns the number of queued items
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Runner) next() (func(ctx context.Context), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return nil, false
	}
	fn := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return fn, true
}

func (r *Runner) exec(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic in room controller",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
		}
	}()
	fn(ctx)
}

func (r *Runner) shutdown() {
	r.mu.Lock()
	r.closed = true
	r.queue = nil
	r.mu.Unlock()

	r.ctrl.stopTimers()
	r.logger.Debug("Room runner stopped")
}
