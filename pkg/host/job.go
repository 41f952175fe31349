// Package host implements the event-loop executor that drives an
// intent through repeated compute->effect->apply cycles: one mailbox
// per execution key, a single-runner drain discipline, and a frozen
// per-job context as the sole source of non-determinism.
package host

import (
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Job is the closed set of host job kinds.
type Job interface {
	jobKind() string
	executionKey() string
}

// StartIntent begins evaluating a fresh intent against the action
// named by Action, with Input bound into the job's `input` scope. Base
// is the snapshot to compute from — callers (typically pkg/world,
// bridging a world's current snapshot into the host) are responsible
// for supplying it; the host itself holds no independent notion of
// "the" current snapshot for an intent beyond what StartIntent seeds.
type StartIntent struct {
	IntentID string
	Action   string
	Input    value.Value
	Base     snapshot.Snapshot
}

func (j StartIntent) jobKind() string      { return "StartIntent" }
func (j StartIntent) executionKey() string { return j.IntentID }

// ContinueCompute re-invokes compute on the current snapshot, typically
// enqueued after a fulfillment.
type ContinueCompute struct {
	IntentID string
}

func (j ContinueCompute) jobKind() string      { return "ContinueCompute" }
func (j ContinueCompute) executionKey() string { return j.IntentID }

// FulfillEffect applies an effect handler's result patches and clears
// the requirement. AtVersion pins the snapshot version the requirement
// was issued against; a mismatch against the current version means the
// fulfillment is stale and is dropped rather than applied.
type FulfillEffect struct {
	IntentID      string
	RequirementID string
	AtVersion     uint64
	Patches       []snapshot.Patch
	HandlerError  bool
}

func (j FulfillEffect) jobKind() string      { return "FulfillEffect" }
func (j FulfillEffect) executionKey() string { return j.IntentID }

// ApplyPatches applies externally-submitted patches, used by tests and
// the projection layer to inject state without going through an action.
type ApplyPatches struct {
	IntentID string
	Patches  []snapshot.Patch
	Source   string
}

func (j ApplyPatches) jobKind() string      { return "ApplyPatches" }
func (j ApplyPatches) executionKey() string { return j.IntentID }
