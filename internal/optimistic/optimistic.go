// Package optimistic applies a change locally before the server confirms
// it, then settles on whatever the server answers. A failed call puts the
// state back exactly as it was.
package optimistic

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when a mutation is attempted while another one
// on the same cell has not settled.
var ErrInFlight = errors.New("optimistic: mutation already in flight")

// Cell holds one piece of state. apply functions must return a new value
// rather than modify slices or maps shared with the old one, since the old
// value is the rollback snapshot.
type Cell[T any] struct {
	mu       sync.Mutex
	value    T
	inFlight bool
	onChange func(T)
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// OnChange registers fn to run after every state change, outside the lock.
func (c *Cell[T]) OnChange(fn func(T)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value, e.g. after a fresh server read. It is ignored
// while a mutation is in flight; the mutation's outcome wins.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.value = v
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (c *Cell[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Cell[T]) store(v T, settled bool) {
	c.mu.Lock()
	c.value = v
	if settled {
		c.inFlight = false
	}
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Mutate shows apply(current) immediately and calls commit with it. On
// success the committed value replaces the speculative one; on error the
// snapshot is restored and the error returned.
func (c *Cell[T]) Mutate(ctx context.Context, apply func(T) T, commit func(ctx context.Context, speculative T) (T, error)) (T, error) {
	c.mu.Lock()
	if c.inFlight {
		current := c.value
		c.mu.Unlock()
		return current, ErrInFlight
	}
	c.inFlight = true
	snapshot := c.value
	c.mu.Unlock()

	speculative := apply(snapshot)
	c.store(speculative, false)

	confirmed, err := commit(ctx, speculative)
	if err != nil {
		c.store(snapshot, true)
		return snapshot, err
	}
	c.store(confirmed, true)
	return confirmed, nil
}

// Reconcile is the same protocol for callers that keep their own state:
// apply the speculative change, run call, then confirm with the result or
// revert to snapshot.
func Reconcile[S, R any](ctx context.Context, snapshot S, apply func(), revert func(S), call func(ctx context.Context) (R, error), confirm func(R)) (R, error) {
	apply()
	result, err := call(ctx)
	if err != nil {
		revert(snapshot)
		var zero R
		return zero, err
	}
	confirm(result)
	return result, nil
}
