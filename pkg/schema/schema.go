package schema

import (
	"fmt"

	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
)

// ComputedField is a schema-declared derived value: an expression plus
// the data paths it depends on, used by the host to decide when to
// rematerialize "computed.<name>".
type ComputedField struct {
	Expr expr.Node
	Deps []string
}

// Action is a named entry point: the flow it runs and an optional
// availability guard evaluated before dispatch.
type Action struct {
	Flow      flow.Node
	Available expr.Node // nil means always available
}

// DomainSchema is a declarative domain definition: identity, the
// field-spec tree validating state.data, computed fields and actions.
// See Load for the defaults/validation pipeline that builds one from
// an authoring document.
type DomainSchema struct {
	ID      string
	Version string
	Hash    string

	State    *FieldSpec
	Computed map[string]ComputedField
	Actions  map[string]Action
}

// ResolveAction returns the flow body for a named action, the signature
// pkg/flow.Context.Resolve expects for `call` nodes.
func (d *DomainSchema) ResolveAction(name string) (flow.Node, bool) {
	a, ok := d.Actions[name]
	if !ok {
		return nil, false
	}
	return a.Flow, true
}

// CheckAvailable evaluates a top-level action's availability guard
// against ectx. An action with no Available expression is always
// available. Only the directly dispatched action is checked here —
// `call` resolves and runs a nested action's flow without re-checking
// its guard.
func (d *DomainSchema) CheckAvailable(name string, ectx expr.Context) *flowerr.Error {
	a, ok := d.Actions[name]
	if !ok {
		return flowerr.New(flowerr.CodeUnknownFlow, "action not declared in schema").WithActionName(name)
	}
	if a.Available == nil {
		return nil
	}
	v, err := expr.Evaluate(a.Available, ectx)
	if err != nil {
		return err.WithActionName(name)
	}
	if !v.ToBoolean() {
		return flowerr.New(flowerr.CodeValidationError, fmt.Sprintf("action %q is not available", name)).WithActionName(name)
	}
	return nil
}
