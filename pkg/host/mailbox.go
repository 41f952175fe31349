package host

import "sync"

// runner drains one execution key's job queue: at most one goroutine
// drains a given key at a time; a process call arriving while a drain
// is already running just appends to the queue and remembers a kick
// rather than starting a second drainer; before the drainer gives up
// the running flag it re-checks both the queue and the kick flag under
// the same lock, closing the lost-wakeup window between "queue looked
// empty" and "flag released".
type runner struct {
	mu            sync.Mutex
	queue         []Job
	running       bool
	kickRequested bool
	kicks         uint64 // total enqueues that found a drain already running
}

// mailbox owns one runner per execution key.
type mailbox struct {
	mu      sync.Mutex
	runners map[string]*runner
}

func newMailbox() *mailbox {
	return &mailbox{runners: make(map[string]*runner)}
}

func (m *mailbox) runnerFor(key string) *runner {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[key]
	if !ok {
		r = &runner{}
		m.runners[key] = r
	}
	return r
}

// enqueue appends job to key's queue and ensures exactly one drain loop
// is active for it, invoking process for each job in FIFO order.
func (m *mailbox) enqueue(key string, job Job, process func(Job)) {
	r := m.runnerFor(key)
	r.mu.Lock()
	r.queue = append(r.queue, job)
	if r.running {
		r.kickRequested = true
		r.kicks++
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	go r.drain(process)
}

func (r *runner) drain(process func(Job)) {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 && !r.kickRequested {
			r.running = false
			r.mu.Unlock()
			return
		}
		r.kickRequested = false
		if len(r.queue) == 0 {
			// Kick arrived with nothing visibly queued yet (a narrow
			// race between append and lock release elsewhere); loop
			// back and re-check rather than exiting.
			r.mu.Unlock()
			continue
		}
		job := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		process(job)
	}
}
