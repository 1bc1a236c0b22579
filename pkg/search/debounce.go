// Package search provides the debounced search trigger of the dashboard.
package search

import (
	"context"
	"sync"
	"time"
)

// Debouncer delays a callback until input has been quiet for a fixed delay.
// A new Trigger inside the window replaces the pending value and cancels the
// context passed to a callback that is still running.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(ctx context.Context, v T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	armed   bool
	cancel  context.CancelFunc
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewDebouncer returns a Debouncer that calls fn delay after the last Trigger.
func NewDebouncer[T any](delay time.Duration, fn func(ctx context.Context, v T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Trigger schedules fn(v), replacing any pending call.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.cancelLocked()
	d.seq++
	seq := d.seq
	d.pending = v
	d.armed = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Flush runs a pending call immediately and waits for it to return.
// It reports whether a call was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.armed {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	ctx, cancel, v := d.startLocked()
	d.mu.Unlock()

	d.run(ctx, cancel, v)
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Cancel drops the pending call and cancels a running callback.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.cancelLocked()
}

// Stop cancels the pending call and any running callback, then waits for
// running callbacks to return. Later triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A later Trigger or Flush superseded this timer.
	if d.stopped || seq != d.seq || !d.armed {
		d.mu.Unlock()
		return
	}
	ctx, cancel, v := d.startLocked()
	d.mu.Unlock()

	d.run(ctx, cancel, v)
}

func (d *Debouncer[T]) run(ctx context.Context, cancel context.CancelFunc, v T) {
	defer d.wg.Done()
	defer cancel()
	d.fn(ctx, v)
}

// startLocked moves the pending value into a running call.
func (d *Debouncer[T]) startLocked() (context.Context, context.CancelFunc, T) {
	ctx, cancel := context.WithCancel(context.Background())
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.armed = false
	v := d.pending
	var zero T
	d.pending = zero
	d.wg.Add(1)
	return ctx, cancel, v
}

func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.armed = false
}
