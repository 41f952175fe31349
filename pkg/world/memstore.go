package world

import (
	"fmt"
	"sync"

	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// MemoryStore is the in-memory reference Store. It materializes a full
// canonical snapshot — a horizon — every HorizonEvery hops along a
// world's parent chain (and always for a root world with no delta), so
// Restore never has to fold more than HorizonEvery deltas.
type MemoryStore struct {
	mu           sync.RWMutex
	worlds       map[string]World
	deltas       map[string]*WorldDelta // keyed by ToWorld
	horizon      map[string]snapshot.Snapshot
	horizonEvery int
}

// NewMemoryStore builds an empty store. horizonEvery <= 0 is treated as
// 1 (materialize every world — the simplest, most restore-cheap, most
// storage-expensive choice).
func NewMemoryStore(horizonEvery int) *MemoryStore {
	if horizonEvery <= 0 {
		horizonEvery = 1
	}
	return &MemoryStore{
		worlds:       make(map[string]World),
		deltas:       make(map[string]*WorldDelta),
		horizon:      make(map[string]snapshot.Snapshot),
		horizonEvery: horizonEvery,
	}
}

// Store records the world/delta edge. delta is nil for a root world
// (one with no parent); snap is always materialized for a root world,
// and materialized for any other world whose hop-distance from the
// nearest existing horizon reaches horizonEvery.
func (s *MemoryStore) Store(w World, delta *WorldDelta, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.worlds[w.WorldID]; exists {
		return fmt.Errorf("world: %q already stored", w.WorldID)
	}
	s.worlds[w.WorldID] = w
	if delta != nil {
		s.deltas[w.WorldID] = delta
	}

	if delta == nil || s.depthSinceHorizonLocked(w.WorldID) >= s.horizonEvery {
		s.horizon[w.WorldID] = snap
	}
	return nil
}

// depthSinceHorizonLocked counts parent-chain hops from worldID back to
// the nearest world already carrying a materialized horizon (0 if
// worldID itself is a root with no delta). Caller must hold s.mu.
func (s *MemoryStore) depthSinceHorizonLocked(worldID string) int {
	depth := 0
	cur := worldID
	for {
		if _, ok := s.horizon[cur]; ok {
			return depth
		}
		d, ok := s.deltas[cur]
		if !ok {
			return depth
		}
		cur = d.FromWorld
		depth++
	}
}

// Get returns the World identity record, without reconstructing its
// snapshot.
func (s *MemoryStore) Get(worldID string) (World, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[worldID]
	return w, ok
}

// Restore reconstructs worldID's canonical terminal snapshot: walk
// parent links collecting deltas until a materialized horizon is found,
// then fold those deltas forward onto the horizon snapshot's data in
// oldest-first order. The result is canonicalized — `$`-prefixed
// platform namespaces a horizon may carry never reach callers, the
// same guarantee GenerateDelta honors for deltas.
func (s *MemoryStore) Restore(worldID string) (snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.worlds[worldID]
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("world: %q not found", worldID)
	}

	var chain []*WorldDelta // nearest-to-worldID first
	cur := worldID
	for {
		if snap, ok := s.horizon[cur]; ok {
			data := snap.Data
			for i := len(chain) - 1; i >= 0; i-- {
				for _, p := range chain[i].Patches {
					data = applyDataPatch(data, p)
				}
			}
			return snapshot.Snapshot{Data: snapshot.Canonical(data), Meta: snapshot.Meta{SchemaHash: w.SchemaHash}}, nil
		}
		d, ok := s.deltas[cur]
		if !ok {
			return snapshot.Snapshot{}, fmt.Errorf("world: %q has no materialized ancestor", worldID)
		}
		chain = append(chain, d)
		cur = d.FromWorld
	}
}

// applyDataPatch applies a single delta patch (always rooted at
// "data.*") directly to a bare data tree, bypassing pkg/snapshot.Apply's
// data/system root dispatch since deltas never touch system.
func applyDataPatch(data value.Value, p snapshot.Patch) value.Value {
	path := value.ParsePath(p.Path)
	if len(path) == 0 || path[0] != "data" {
		return data
	}
	sub := path[1:]
	switch p.Op {
	case snapshot.OpSet:
		return value.Set(data, sub, p.Value)
	case snapshot.OpUnset:
		return value.Unset(data, sub)
	case snapshot.OpMerge:
		return value.Merge(data, sub, p.Value)
	default:
		return data
	}
}
