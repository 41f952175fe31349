// Package flow implements the closed FlowNode AST and its pure, total
// evaluator: patches accumulate, effects halt, branches and calls
// recurse, and every failure is a value rather than a panic.
package flow

import "github.com/manifesto-ai/intentcore/pkg/expr"

// Node is implemented by every FlowNode variant. Kept closed to this
// package, mirroring pkg/expr.Node, so the evaluator's dispatch is
// exhaustive over a fixed set of kinds.
type Node interface {
	flowNode()
}

// Seq runs Steps left-to-right, threading state, stopping at the first
// non-running status.
type Seq struct {
	Steps []Node
}

// If evaluates Cond; truthy (not null/undefined/false) takes Then,
// otherwise Else (which may be nil, a no-op).
type If struct {
	Cond       expr.Node
	Then, Else Node
}

// PatchOp mirrors snapshot.Op without importing pkg/snapshot's Patch
// type directly (pkg/flow only needs the op tag and an expression that
// produces the value, not a concrete value.Value yet).
type PatchOp string

const (
	PatchSet   PatchOp = "set"
	PatchUnset PatchOp = "unset"
	PatchMerge PatchOp = "merge"
)

// Patch evaluates Value (nil for unset), validates it against the
// domain's field spec at Path, then applies it to state.snapshot.
type Patch struct {
	Op    PatchOp
	Path  string
	Value expr.Node // nil for PatchUnset
}

// Effect evaluates every Params entry eagerly, generates a deterministic
// requirement id, appends a requirement and transitions state to
// pending. An id already present in the Context's Fulfilled set is
// skipped instead, so re-entry after a fulfillment runs past the node.
// Neither applies when Type is one of the two privileged inline array ops
// ("array.map", "array.filter"), which read Params["source"]/["into"]
// and a per-item expression and patch the result directly with no
// external handler involved.
type Effect struct {
	Type   string
	Params map[string]expr.Node
}

// Call resolves FlowName through the Context's Resolve callback and recursively
// evaluates it with a child node path.
type Call struct {
	FlowName string
}

// Halt transitions to `halted` (non-error termination). Reason is
// informational only and may be nil.
type Halt struct {
	Reason expr.Node
}

// Fail records a VALIDATION_ERROR and transitions to `error`. Message
// may be nil (a default message is used).
type Fail struct {
	Code    string
	Message expr.Node
}

func (Seq) flowNode()    {}
func (If) flowNode()     {}
func (Patch) flowNode()  {}
func (Effect) flowNode() {}
func (Call) flowNode()   {}
func (Halt) flowNode()   {}
func (Fail) flowNode()   {}
