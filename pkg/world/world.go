// Package world implements the content-addressed snapshot DAG:
// World/WorldDelta records, an in-memory Store with horizon-cached
// restoration, and deterministic delta generation between two
// snapshots. See pkg/worldstore/pg for the Postgres-backed Store.
package world

import "github.com/manifesto-ai/intentcore/pkg/snapshot"

// World is a snapshot's identity in the content-addressed graph.
// CreatedBy is the proposalId that produced this world, empty for
// a root world seeded outside the proposal flow (e.g. test fixtures).
type World struct {
	WorldID      string
	SchemaHash   string
	SnapshotHash string
	CreatedAt    int64
	CreatedBy    string
}

// WorldDelta is the edge between two worlds: the patch list that turns
// FromWorld's canonical snapshot into ToWorld's. Patches never touch
// `$`-prefixed namespaces — GenerateDelta strips those before diffing.
type WorldDelta struct {
	FromWorld string
	ToWorld   string
	Patches   []snapshot.Patch
	CreatedAt int64
}

// Store is the world-store API surface: Store records an
// edge (and, when the implementation decides a horizon is due, a full
// materialized snapshot alongside it); restore reconstructs a world's
// canonical terminal snapshot by walking parent links to the nearest
// materialized horizon and folding deltas forward. Get looks up a
// world's identity record without reconstructing its snapshot.
type Store interface {
	Store(w World, delta *WorldDelta, snap snapshot.Snapshot) error
	Restore(worldID string) (snapshot.Snapshot, error)
	Get(worldID string) (World, bool)
}
