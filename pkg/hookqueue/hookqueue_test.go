package hookqueue

import (
	"errors"
	"sync"
	"testing"
)

func TestPriorityThenFIFOOrdering(t *testing.T) {
	q := New(nil)
	var order []string
	var mu sync.Mutex
	record := func(name string) Job {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	q.Enqueue(PriorityDefer, record("defer-1"))
	q.Enqueue(PriorityNormal, record("normal-1"))
	q.Enqueue(PriorityImmediate, record("immediate-1"))
	q.Enqueue(PriorityNormal, record("normal-2"))
	q.Enqueue(PriorityImmediate, record("immediate-2"))

	q.ProcessAll()

	want := []string{"immediate-1", "immediate-2", "normal-1", "normal-2", "defer-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("position %d: expected %q, got %q (full: %v)", i, w, order[i], order)
		}
	}
}

func TestJobsEnqueuedDuringDrainAreProcessedSamePass(t *testing.T) {
	q := New(nil)
	var order []string
	q.Enqueue(PriorityNormal, func() error {
		order = append(order, "first")
		q.Enqueue(PriorityImmediate, func() error {
			order = append(order, "nested-immediate")
			return nil
		})
		return nil
	})

	q.ProcessAll()

	if len(order) != 2 || order[0] != "first" || order[1] != "nested-immediate" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestErrorAndPanicDoNotStopTheDrain(t *testing.T) {
	q := New(nil)
	ran := []string{}
	q.Enqueue(PriorityNormal, func() error { return errors.New("boom") })
	q.Enqueue(PriorityNormal, func() error { panic("also boom") })
	q.Enqueue(PriorityNormal, func() error { ran = append(ran, "survivor"); return nil })

	q.ProcessAll()

	if len(ran) != 1 || ran[0] != "survivor" {
		t.Fatalf("expected the third job to still run, got %v", ran)
	}
	if q.Len() != 0 {
		t.Fatalf("expected the queue to drain fully despite failures, len=%d", q.Len())
	}
}

func TestReentrantProcessAllCollapses(t *testing.T) {
	q := New(nil)
	var secondCallRan bool
	q.Enqueue(PriorityNormal, func() error {
		q.ProcessAll() // re-entrant; must return immediately
		secondCallRan = true
		return nil
	})
	q.ProcessAll()
	if !secondCallRan {
		t.Fatal("expected the outer job to complete after its re-entrant ProcessAll call returned")
	}
}
