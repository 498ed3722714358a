package query

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// pool bounds how many Sulpher queries execute concurrently with a fixed
// pool size rather than unbounded goroutines per job, built on a weighted
// semaphore instead of a channel-backed queue since sessions are already
// tracked in the session table and need no separate queue abstraction.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{sem: semaphore.NewWeighted(int64(workers))}
}

// submit runs fn once a worker slot is free. It blocks the caller's
// goroutine (not the HTTP handler, which only enqueues via go submit(...))
// until a slot opens, then runs fn and releases the slot.
func (p *pool) submit(ctx context.Context, fn func()) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)
	fn()
}
