// Package hookqueue implements the priority-ordered post-hook side-job
// queue: jobs enqueued while another job is running are picked up by
// the same drain once that job returns, in priority then FIFO order,
// and a re-entrant ProcessAll collapses onto whichever drain is
// already active. A failing entry is logged and skipped rather than
// aborting the batch; ordering is a three-tier priority queue via
// container/heap.
package hookqueue

import (
	"container/heap"
	"log/slog"
	"sync"
)

// Priority is the closed three-level ordering: immediate > normal >
// defer.
type Priority int

const (
	PriorityImmediate Priority = iota
	PriorityNormal
	PriorityDefer
)

// Job is one unit of queued work. It must not panic in normal operation;
// if it does, Queue recovers, logs, and continues with the next job.
type Job func() error

type entry struct {
	priority Priority
	seq      int // FIFO tiebreak within a priority tier
	job      Job
}

// heapSlice implements container/heap.Interface ordered by (priority,
// seq) so Pop always yields the oldest job of the highest-priority
// tier present.
type heapSlice []entry

func (h heapSlice) Len() int { return len(h) }
func (h heapSlice) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is the priority FIFO queue itself. A single mutex protects both
// the heap and the running flag; ProcessAll releases it while actually
// invoking a job so jobs may themselves call Enqueue without deadlocking.
type Queue struct {
	mu      sync.Mutex
	h       heapSlice
	seq     int
	running bool
	logger  *slog.Logger
}

// New builds an empty Queue. logger may be nil, defaulting to
// slog.Default() (matching pkg/host's convention).
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// Enqueue adds job at priority. If a job currently running (inside
// ProcessAll) calls Enqueue, the new job is appended to the same heap
// and will be drained before ProcessAll returns — "Jobs enqueued within
// a running job are processed after the current job completes,
// preserving priority order and FIFO within priority".
func (q *Queue) Enqueue(priority Priority, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, entry{priority: priority, seq: q.seq, job: job})
	q.seq++
}

// ProcessAll drains the queue to empty, highest priority and oldest
// first. A re-entrant call — ProcessAll invoked while another is
// already draining, whether from another goroutine or indirectly via a
// job that calls ProcessAll itself — returns immediately without
// draining anything twice: only one drain runs at a time.
func (q *Queue) ProcessAll() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if q.h.Len() == 0 {
			// Release the flag under the same lock as the emptiness
			// check, so an Enqueue racing with this exit either lands
			// before it (and is drained above) or observes running ==
			// false and drains itself. A deferred release would leave
			// a window where a job enqueued by a collapsing caller is
			// stranded until the next drain.
			q.running = false
			q.mu.Unlock()
			return
		}
		e := heap.Pop(&q.h).(entry)
		q.mu.Unlock()

		q.runSafely(e.job)
	}
}

func (q *Queue) runSafely(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("hookqueue: job panicked, skipping", "recover", r)
		}
	}()
	if err := job(); err != nil {
		q.logger.Error("hookqueue: job returned error, skipping", "error", err)
	}
}

// Len reports how many jobs are currently queued (not counting one
// in flight inside ProcessAll).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}
