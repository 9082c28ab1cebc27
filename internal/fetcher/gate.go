package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency is the fetch cap used when none is configured.
const DefaultMaxConcurrency = 4

// Gate bounds the number of fetches executing at once.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewGate creates a Gate with n slots. n <= 0 selects DefaultMaxConcurrency.
func NewGate(n int) *Gate {
	if n <= 0 {
		n = DefaultMaxConcurrency
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: n,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fetch slot: %w", err)
	}
	g.inFlight.Add(1)
	return nil
}

// Release returns a slot taken by Acquire. It must be called exactly once
// per successful Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// InFlight is the number of slots currently held.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Capacity is the configured slot count.
func (g *Gate) Capacity() int {
	return g.capacity
}
