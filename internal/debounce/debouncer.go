// Package debounce collapses bursts of calls into the last one.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultDelay = 300 * time.Millisecond

// ErrSuperseded is returned to a caller whose call was replaced by a later one.
var ErrSuperseded = errors.New("debounce: superseded by a later call")

type outcome[T any] struct {
	value T
	err   error
}

type call[T any] struct {
	ctx  context.Context
	fn   func(context.Context) (T, error)
	done chan outcome[T]
}

// Debouncer runs only the last call made within the delay window (trailing edge).
type Debouncer[T any] struct {
	delay time.Duration

	mu      sync.Mutex
	pending *call[T]
	timer   *time.Timer
}

func New[T any](delay time.Duration) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{delay: delay}
}

// Do schedules fn and blocks until it runs, is superseded, or ctx ends.
func (d *Debouncer[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	c := &call[T]{ctx: ctx, fn: fn, done: make(chan outcome[T], 1)}

	d.mu.Lock()
	d.supersedeLocked()
	d.pending = c
	d.timer = time.AfterFunc(d.delay, func() { d.fire(c) })
	d.mu.Unlock()

	select {
	case result := <-c.done:
		return result.value, result.err
	case <-ctx.Done():
		d.mu.Lock()
		if d.pending == c {
			d.timer.Stop()
			d.pending = nil
			d.timer = nil
		}
		d.mu.Unlock()
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel supersedes the pending call, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	d.supersedeLocked()
	d.mu.Unlock()
}

func (d *Debouncer[T]) fire(c *call[T]) {
	d.mu.Lock()
	if d.pending != c {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	value, err := c.fn(c.ctx)
	c.done <- outcome[T]{value: value, err: err}
}

func (d *Debouncer[T]) supersedeLocked() {
	if d.pending == nil {
		return
	}
	d.timer.Stop()
	d.pending.done <- outcome[T]{err: ErrSuperseded}
	d.pending = nil
	d.timer = nil
}
