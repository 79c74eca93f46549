// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package task runs decode and match work items across a bounded pool
// of workers cooperating through a single FIFO queue: a task runs to
// completion and may commit a follow-on task (a callee list to match,
// the next chunk of a split) rather than spawning its own goroutine.
package task

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Func is one unit of work. A non-nil Func return value is committed
// back onto the queue as a follow-on task once Func returns.
type Func func(ctx context.Context) (Func, error)

// Queue is the FIFO undone-task list shared by every worker. The zero
// Queue is not usable; use NewQueue.
type Queue struct {
	ch   chan Func
	done chan struct{}

	mu          sync.Mutex
	outstanding int
	closed      bool
}

// NewQueue returns an empty Queue with room for buffer pending tasks
// before Commit blocks.
func NewQueue(buffer int) *Queue {
	return &Queue{
		ch:   make(chan Func, buffer),
		done: make(chan struct{}),
	}
}

// Commit pushes t onto the queue. Safe for concurrent use by workers
// committing follow-on tasks and by the driver seeding the initial
// batch.
func (q *Queue) Commit(t Func) {
	q.mu.Lock()
	q.outstanding++
	q.mu.Unlock()
	q.ch <- t
}

// finish marks one task's completion, closing done (waking every
// blocked worker with ok=false) once no task is outstanding and no
// more are pending.
func (q *Queue) finish() {
	q.mu.Lock()
	q.outstanding--
	empty := q.outstanding == 0
	if empty && !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}

// needsMoreWorkers reports whether the queue currently holds undone
// work, mirroring the source's polling hook for spawning replacement
// workers; the pool below instead keeps a fixed goroutine per slot for
// the run's duration, so this exists for callers that want to inspect
// queue depth directly.
func (q *Queue) needsMoreWorkers() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding > 0
}

// get blocks for the next task, or returns ok=false once the queue has
// drained (no task outstanding anywhere and none pending).
func (q *Queue) get(ctx context.Context) (t Func, ok bool) {
	select {
	case t = <-q.ch:
		return t, true
	case <-ctx.Done():
		return nil, false
	case <-q.done:
		select {
		case t = <-q.ch:
			return t, true
		default:
			return nil, false
		}
	}
}

// Run drains queue using up to parallelism concurrent workers: each
// worker loops acquiring a semaphore slot, pulling a task, running it,
// committing any follow-on task, and releasing the slot, exiting when
// the queue reports no more work. Run returns the first error any task
// returned, cancelling the rest via the shared errgroup context.
func Run(ctx context.Context, queue *Queue, parallelism int64) error {
	if !queue.needsMoreWorkers() {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(parallelism)

	for i := int64(0); i < parallelism; i++ {
		g.Go(func() error {
			for {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				t, ok := queue.get(gctx)
				if !ok {
					sem.Release(1)
					return nil
				}
				follow, err := t(gctx)
				sem.Release(1)
				if err != nil {
					queue.finish()
					return err
				}
				if follow != nil {
					queue.Commit(follow)
				}
				queue.finish()
			}
		})
	}
	return g.Wait()
}
