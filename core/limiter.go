package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentChats is the default number of simultaneous generations.
const DefaultMaxConcurrentChats = 20

// Throttle is a counting admission gate bounding how many generations run at
// once. Waiters are admitted in arrival order; nobody is rejected outright,
// back-pressure is applied by delaying admission.
type Throttle struct {
	max    int64
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewThrottle creates a throttle admitting at most max concurrent holders.
// If max <= 0, DefaultMaxConcurrentChats is used.
func NewThrottle(max int) *Throttle {
	if max <= 0 {
		max = DefaultMaxConcurrentChats
	}
	return &Throttle{max: int64(max), sem: semaphore.NewWeighted(int64(max))}
}

// Acquire suspends the caller until a slot is free or ctx is done. The
// returned release func is idempotent and must be called on every exit path.
func (t *Throttle) Acquire(ctx context.Context) (func(), error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return func() {}, fmt.Errorf("acquire generation slot: %w", err)
	}
	t.active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.active.Add(-1)
			t.sem.Release(1)
		})
	}, nil
}

// Active returns the number of slots currently held.
func (t *Throttle) Active() int { return int(t.active.Load()) }

// Max returns the configured maximum.
func (t *Throttle) Max() int { return int(t.max) }

// Available returns how many slots are free right now.
func (t *Throttle) Available() int { return t.Max() - t.Active() }
