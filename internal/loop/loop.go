package loop

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by RunUntil when the loop was stopped before the
// condition held.
var ErrStopped = errors.New("loop stopped")

// Loop is the single-writer task loop.
//
// Thread-safety model:
//   - Post(), Submit(), Pending(), Stop(): safe from any goroutine
//   - Run(), RunUntil(), Flush(): only from the goroutine that owns the loop
//
// INVARIANTS:
//   - Tasks run one at a time, in the order they were posted
//   - Work completions are always posted, never run by the worker
type Loop struct {
	queue    *taskQueue
	inline   bool
	log      *logrus.Entry
	inflight atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithInlineWork makes Submit run work synchronously on the caller.
// Intended for deterministic tests.
func WithInlineWork() Option {
	return func(l *Loop) {
		l.inline = true
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New creates a Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue: newTaskQueue(),
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post schedules t to run on the loop.
// Returns false if the loop has been stopped.
func (l *Loop) Post(t Task) bool {
	return l.queue.Enqueue(t)
}

// Submit runs work off the loop and posts the task it returns.
//
// Work receives a context that is never cancelled: once dispatched, a remote
// call runs to completion and its result is applied even if the requester is
// gone. A nil completion is allowed.
func (l *Loop) Submit(work func(ctx context.Context) Task) {
	l.inflight.Add(1)

	run := func() {
		done := work(context.Background())
		if done != nil && !l.Post(done) {
			l.log.Debug("completion dropped: loop stopped")
		}
		l.inflight.Add(-1)
		// Wake RunUntil callers waiting for Pending to reach zero.
		l.queue.wake()
	}

	if l.inline {
		run()
		return
	}
	go run()
}

// Pending returns the number of queued tasks plus work still running.
func (l *Loop) Pending() int {
	return l.queue.Len() + int(l.inflight.Load())
}

// Flush runs queued tasks on the calling goroutine until the queue is empty,
// including tasks posted by the tasks it runs. Returns the number executed.
func (l *Loop) Flush() int {
	n := 0
	for {
		t, ok := l.queue.TryDequeue()
		if !ok {
			return n
		}
		t()
		n++
	}
}

// Run serves tasks until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug("loop starting")

	for {
		if t, ok := l.queue.TryDequeue(); ok {
			t()
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Len() == 0 && l.stopped() {
				l.log.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// RunUntil serves tasks until cond returns true. cond is evaluated on the
// loop before every task, so it may read component state.
func (l *Loop) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		if cond() {
			return nil
		}

		if t, ok := l.queue.TryDequeue(); ok {
			t()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Len() == 0 && l.stopped() {
				return ErrStopped
			}
		}
	}
}

// Stop closes the loop. Queued tasks still run; new posts are rejected.
func (l *Loop) Stop() {
	l.queue.Close()
}

func (l *Loop) stopped() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}
