package data

import (
	"context"
	"sync"
)

// Scheduler defers resolver tasks. Schedule must not run task synchronously
// on the caller's goroutine; selector calls rely on that to return before the
// resolver starts. It returns false if the task was not accepted.
type Scheduler interface {
	Schedule(task func()) bool
}

// GoScheduler runs each task on its own goroutine.
type GoScheduler struct{}

// Schedule implements Scheduler.
func (GoScheduler) Schedule(task func()) bool {
	go task()
	return true
}

// TaskQueue is a FIFO scheduler drained by Run.
//
// The queue is unbounded so that selector calls never block on resolver
// backlog. Enqueuing is safe from any goroutine.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Schedule implements Scheduler. Returns false once the queue is closed.
func (q *TaskQueue) Schedule(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, task)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front task without blocking.
func (q *TaskQueue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return task, true
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further tasks and wakes Run. Pending tasks are still drained.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *TaskQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Run drains the queue with the given number of workers until ctx is done
// or the queue is closed and empty. Tasks already running are not cancelled.
func (q *TaskQueue) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}

	// Buffered so the dispatcher can hand off without waiting on a busy worker.
	work := make(chan func(), workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range work {
				task()
			}
		}()
	}
	defer func() {
		close(work)
		wg.Wait()
	}()

	for {
		for {
			task, ok := q.TryDequeue()
			if !ok {
				break
			}
			select {
			case work <- task:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if q.drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
		}
	}
}
