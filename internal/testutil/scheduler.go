package testutil

import "sync"

// ManualScheduler queues resolver tasks until the test ticks.
//
// Tick runs the tasks that were queued before the call; tasks they schedule
// wait for the next tick. Flush ticks until the queue is empty.
type ManualScheduler struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	ran    int
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements data.Scheduler.
func (m *ManualScheduler) Schedule(task func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.tasks = append(m.tasks, task)
	return true
}

// Pending returns the number of queued tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Ran returns the total number of tasks executed so far.
func (m *ManualScheduler) Ran() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ran
}

// Tick runs every task queued before the call, in order, on the calling
// goroutine. It returns the number of tasks run.
func (m *ManualScheduler) Tick() int {
	m.mu.Lock()
	batch := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	for _, task := range batch {
		task()
	}

	m.mu.Lock()
	m.ran += len(batch)
	m.mu.Unlock()
	return len(batch)
}

// Flush ticks until no tasks remain and returns the total run.
func (m *ManualScheduler) Flush() int {
	total := 0
	for {
		n := m.Tick()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Close rejects further tasks.
func (m *ManualScheduler) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
