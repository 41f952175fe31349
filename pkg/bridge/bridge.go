// Package bridge implements the projection/binding layer: a read-only
// observable view over a world's current snapshot that UI adapters
// subscribe to, built as a classic broadcast-to-subscribers fan-out.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/manifesto-ai/intentcore/pkg/host"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// ErrDisposed is returned by Dispatch once the bridge has been
// disposed.
var ErrDisposed = errors.New("bridge: disposed")

// Dispatcher is the subset of *host.Host a Bridge needs, so tests can
// supply a fake without constructing a full Host.
type Dispatcher interface {
	Dispatch(ctx context.Context, intentID, action string, input value.Value, base snapshot.Snapshot) (host.HostResult, error)
}

// Bridge is the projection surface: GetSnapshot, Subscribe, Get(path),
// Dispatch(intent), Dispose. It holds a read reference to
// the latest snapshot and fans out updates to subscribers whenever
// Publish is called — typically by whatever owns the world/host pairing
// (an application's composition root) after a dispatch completes.
type Bridge struct {
	mu          sync.RWMutex
	intentID    string
	dispatcher  Dispatcher
	current     *snapshot.Snapshot
	subscribers map[int]func(snapshot.Snapshot)
	nextSubID   int
	disposed    bool
}

// New builds a Bridge seeded with initial, observing intentID's
// snapshot stream (one Bridge per tracked intent/world pairing).
// dispatcher may be nil for a read-only/test bridge that is only ever
// driven via Publish.
func New(intentID string, initial snapshot.Snapshot, dispatcher Dispatcher) *Bridge {
	return &Bridge{
		intentID:    intentID,
		dispatcher:  dispatcher,
		current:     &initial,
		subscribers: make(map[int]func(snapshot.Snapshot)),
	}
}

// Dispatch submits an intent through the bridge's Host and, on success,
// publishes the resulting snapshot to every subscriber before returning
// it. Once disposed it always fails with ErrDisposed without touching
// the dispatcher.
func (b *Bridge) Dispatch(ctx context.Context, action string, input value.Value) (host.HostResult, error) {
	b.mu.RLock()
	if b.disposed {
		b.mu.RUnlock()
		return host.HostResult{}, ErrDisposed
	}
	base := *b.current
	b.mu.RUnlock()

	res, err := b.dispatcher.Dispatch(ctx, b.intentID, action, input, base)
	if err != nil {
		return res, err
	}
	b.Publish(res.Snapshot)
	return res, nil
}

// GetSnapshot returns the latest snapshot, or (zero, false) once
// disposed.
func (b *Bridge) GetSnapshot() (snapshot.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.disposed || b.current == nil {
		return snapshot.Snapshot{}, false
	}
	return *b.current, true
}

// Get resolves a dotted path against the current snapshot's data, the
// read-model equivalent of pkg/expr's `get` but scoped to whatever a UI
// adapter is allowed to see: only `data.*`/`computed.*` roots, since a
// projection observes state, not host-internal machinery.
func (b *Bridge) Get(path string) (value.Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.disposed || b.current == nil {
		return value.Null, false
	}
	p := value.ParsePath(path)
	if len(p) == 0 {
		return value.Null, false
	}
	switch p[0] {
	case "computed":
		return value.Get(b.current.Computed, p[1:])
	case "data":
		return value.Get(b.current.Data, p[1:])
	default:
		return value.Get(b.current.Data, p)
	}
}

// Subscribe registers cb to be called with every future Publish, and
// immediately once with the current snapshot (the usual "subscribe
// gets the latest value" convenience UI bindings expect). The returned
// unsub function is idempotent.
func (b *Bridge) Subscribe(cb func(snapshot.Snapshot)) (unsub func()) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = cb
	snap := *b.current
	b.mu.Unlock()

	cb(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// Publish updates the latest snapshot and re-broadcasts it to every
// live subscriber. Callers (the composition root driving the host)
// invoke this after each HostResult that advances intentID's snapshot.
func (b *Bridge) Publish(snap snapshot.Snapshot) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.current = &snap
	cbs := make([]func(snapshot.Snapshot), 0, len(b.subscribers))
	for _, cb := range b.subscribers {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(snap)
	}
}

// Dispose makes subsequent Dispatch calls fail with ErrDisposed,
// GetSnapshot return (zero, false), and unsubscribes every listener.
func (b *Bridge) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.current = nil
	b.subscribers = make(map[int]func(snapshot.Snapshot))
}

// Disposed reports whether Dispose has been called.
func (b *Bridge) Disposed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disposed
}
