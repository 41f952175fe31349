package flow

import (
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Status is a flow evaluation's lifecycle state.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPending  Status = "pending"
	StatusHalted   Status = "halted"
	StatusError    Status = "error"
)

// FlowPosition locates the effect node that produced a Requirement
// within its flow evaluation.
type FlowPosition struct {
	NodePath        string
	SnapshotVersion uint64
}

// Requirement is a queued pending effect produced by an `effect` flow
// node, carrying everything its eventual fulfillment needs to be
// matched back to the position that issued it.
type Requirement struct {
	ID           string
	Type         string
	Params       value.Value // an Object of the evaluated params
	ActionID     string
	FlowPosition FlowPosition
	CreatedAt    int64
}

// State is the evaluator's threaded accumulator: the snapshot under
// construction, the lifecycle status, and the patches/requirements
// gathered so far.
type State struct {
	Snapshot     snapshot.Snapshot
	Status       Status
	Patches      []snapshot.Patch
	Requirements []Requirement
	Error        *flowerr.Error
}

// Terminal reports whether Status is anything other than `running` —
// Seq stops threading at the first non-running status.
func (s State) Terminal() bool {
	return s.Status != StatusRunning
}

// TraceNode is the per-step evaluation record every step appends:
// kind, node path, evaluated args/value, and child steps.
type TraceNode struct {
	Kind     string
	NodePath string
	Args     map[string]value.Value
	Value    value.Value
	Children []*TraceNode
	Error    *flowerr.Error
}
