// Package eventloop runs tasks one at a time on a single goroutine, giving
// each managed tab the cooperative, non-overlapping execution model of a
// browser page.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Call once the loop has stopped.
var ErrStopped = errors.New("eventloop: stopped")

// Loop is a FIFO task queue drained by Run.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates an idle loop; call Run to start draining it.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues fn to run after every task already queued. It never blocks and
// may be called from the loop itself. It reports false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from a task running on the same loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopped:
			return nil
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()

			select {
			case <-l.stopped:
				return nil
			default:
			}
		}
	}
}

// Stop ends Run and drops queued tasks.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
	})
}

// Done is closed once the loop stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}
