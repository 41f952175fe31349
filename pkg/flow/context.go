package flow

import (
	"fmt"

	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Context bundles everything a flow evaluation needs beyond the
// threaded State: the expression scopes, the action-resolution callback
// for `call`, the schema's patch-value validator (injected to avoid a
// flow<->schema import cycle, mirroring pkg/snapshot.Apply's validate
// parameter), and the identifiers that seed deterministic requirement
// ids and trace ids.
type Context struct {
	Expr expr.Context

	// Resolve looks up a named action's flow body for `call` nodes.
	Resolve func(flowName string) (Node, bool)

	// Validate checks a patch value against the schema's field spec at
	// path; nil disables validation (used by tests exercising the
	// evaluator in isolation from pkg/schema).
	Validate func(path string, v value.Value) *flowerr.Error

	SchemaHash string
	IntentID   string
	ActionName string

	// Fulfilled holds the requirement ids already satisfied for this
	// intent in earlier compute cycles. An `effect` node whose
	// deterministic id is in this set is skipped — its result patches
	// are already in the snapshot — so re-entry runs past it instead of
	// re-queuing the same requirement forever. This is what the stable
	// id derivation below buys: the same flow position always maps to
	// the same id across ContinueCompute re-entries.
	Fulfilled map[string]bool

	callDepth int // `call` nesting depth, shared across the whole evaluation
}

// maxCallDepth bounds `call` recursion within a single flow evaluation.
// Without it a schema-authoring mistake (an action that calls itself,
// directly or through a cycle) would recurse the Go call stack without
// bound instead of surfacing as a value, breaking the rule that the
// evaluator returns for every well-formed AST on every input. This is
// independent of pkg/host's maxIterations,
// which bounds compute->effect cycles *across* jobs, not `call` nesting
// *within* one.
const maxCallDepth = 256

// requirementID derives a deterministic id from exactly four
// identifiers — schemaHash, intentId, actionId, nodePath — so that
// re-entering the same flow position, across a ContinueCompute
// re-entry or a retried dispatch, always yields the same requirement
// id. nodePath alone already disambiguates every effect
// reachable in one evaluation: siblings in a seq get distinct indices
// (".0", ".1", ...) and a call pushes its own prefix, so no additional
// sequence counter is needed or allowed here. Using JCS+SHA-256 (as
// pkg/value.Hash does for snapshots) keeps id generation consistent
// with the rest of the system's content-addressing.
func (c *Context) requirementID(nodePath string) string {
	return value.Hash(value.Object(map[string]value.Value{
		"schemaHash": value.Str(c.SchemaHash),
		"intentId":   value.Str(c.IntentID),
		"actionId":   value.Str(c.ActionName),
		"nodePath":   value.Str(nodePath),
	}))
}

func childNodePath(parent string, seg any) string {
	if parent == "" {
		return fmt.Sprint(seg)
	}
	return fmt.Sprintf("%s.%v", parent, seg)
}
