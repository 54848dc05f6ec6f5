package dashboard

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned for work submitted after the loop exited.
var ErrLoopStopped = errors.New("dashboard: event loop stopped")

// Loop runs submitted closures one at a time on the goroutine that called
// Run. Everything the session owns is only touched from inside the loop.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop returns a loop whose queue holds depth pending closures before
// Post blocks.
func NewLoop(depth int) *Loop {
	if depth <= 0 {
		depth = 64
	}
	return &Loop{
		queue: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Run executes queued closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn and reports whether it was accepted. It never waits for fn
// to run. Closures already on the loop must not Post into a full queue.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from inside the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// fn may have been the last closure run before the loop stopped.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
