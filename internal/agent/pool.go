package agent

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"pokeagent/pkg/metrics"
)

// Pool runs submitted functions on their own goroutines, at most workers at
// a time. Submit never blocks the caller: waiting for a slot happens on the
// spawned goroutine. Zero workers means no bound.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	running int
}

func NewPool(workers int) *Pool {
	p := &Pool{}
	if workers > 0 {
		p.sem = semaphore.NewWeighted(int64(workers))
	}
	return p
}

// Submit schedules fn. If ctx ends before a slot frees up, fn is not run
// and abandoned is called instead, when non-nil.
func (p *Pool) Submit(ctx context.Context, fn func(), abandoned func(error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.sem != nil {
			if err := p.sem.Acquire(ctx, 1); err != nil {
				if abandoned != nil {
					abandoned(err)
				}
				return
			}
			defer p.sem.Release(1)
		}

		p.track(1)
		defer p.track(-1)

		fn()
	}()
}

// Wait blocks until every submitted function returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running is the number of functions currently executing.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pool) track(delta int) {
	p.mu.Lock()
	p.running += delta
	p.mu.Unlock()
	metrics.ChecksInFlight.Add(float64(delta))
}
