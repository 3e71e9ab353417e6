// Package owner provides the single execution context that has exclusive
// access to a registry. Work produced elsewhere (scan results, delete
// completions) is posted here and runs strictly in FIFO order.
package owner

import (
	"context"
	"sync"

	"github.com/standardbeagle/assetindex/internal/debug"
)

// Dispatcher accepts callbacks to be run on the owner context.
type Dispatcher interface {
	// Post queues fn. It never blocks on fn and is safe from any goroutine.
	Post(fn func())
}

// Loop runs posted callbacks on one goroutine until its context ends.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// NewLoop creates a loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. Callbacks posted after Run returns are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		debug.LogRegistry("owner loop stopped, dropping callback\n")
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and waits for it to run. It returns ctx.Err() if ctx ends first.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes callbacks until ctx is cancelled. Pending callbacks are
// dropped on exit.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		dropped := len(l.queue)
		l.queue = nil
		l.stopped = true
		l.mu.Unlock()
		if dropped > 0 {
			debug.LogRegistry("owner loop exiting, dropped %d callbacks\n", dropped)
		}
	}()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Manual queues callbacks until Drain is called on the owner goroutine.
// Tools and tests use it for deterministic delivery.
type Manual struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	posted int
}

// NewManual creates an empty manual dispatcher.
func NewManual() *Manual {
	m := &Manual{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.posted++
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Pending returns the number of queued callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Drain runs queued callbacks, including ones they post, until the queue is
// empty. It returns how many ran.
func (m *Manual) Drain() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
		ran++
	}
}

// WaitPosted blocks until at least n callbacks have been posted in total or
// ctx ends. It lets a test wait for a background producer without sleeping.
func (m *Manual) WaitPosted(ctx context.Context, n int) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.posted < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
	return nil
}

var (
	_ Dispatcher = (*Loop)(nil)
	_ Dispatcher = (*Manual)(nil)
)
