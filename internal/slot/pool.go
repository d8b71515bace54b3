// Package slot bounds the number of sends in flight. Acquiring a Token is
// the backpressure gate of a sink; releasing it frees capacity for the
// next send.
package slot

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// Token is one unit of in-flight capacity. It returns to its pool at most once.
type Token struct {
	pool     *Pool
	released atomic.Bool
}

func NewPool(capacity int64) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("slot: capacity must be positive, got %d", capacity)
	}
	return &Pool{capacity: capacity, sem: semaphore.NewWeighted(capacity)}, nil
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Token, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inFlight.Add(1)
	return &Token{pool: p}, nil
}

func (p *Pool) TryAcquire() (*Token, bool) {
	if !p.sem.TryAcquire(1) {
		return nil, false
	}
	p.inFlight.Add(1)
	return &Token{pool: p}, true
}

// Release reports whether the token was still held.
func (p *Pool) Release(t *Token) bool {
	if t == nil || t.pool != p || !t.released.CompareAndSwap(false, true) {
		return false
	}
	p.inFlight.Add(-1)
	p.sem.Release(1)
	return true
}

func (p *Pool) InFlight() int64 { return p.inFlight.Load() }
func (p *Pool) Cap() int64      { return p.capacity }
