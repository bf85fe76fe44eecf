package persistence

import (
	"context"
	"sync"
)

// serialQueue runs jobs one at a time, in submission order, on a goroutine
// that exists only while work is queued. Submit never blocks.
type serialQueue struct {
	mu      sync.Mutex
	jobs    []func()
	running bool
}

func (q *serialQueue) submit(job func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// wait blocks until every job submitted before the call has run
func (q *serialQueue) wait(ctx context.Context) error {
	done := make(chan struct{})
	q.submit(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
