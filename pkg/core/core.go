// Package core exposes the three pure snapshot-API calls: Compute,
// Apply, Explain. Everything in pkg/host's mailbox/runner/job
// machinery is the stateful shell wrapped around these three
// functions; nothing here reads a clock, generates randomness, or
// performs I/O — Context below is the caller-frozen {now, randomSeed}
// pair every pure call receives, the same shape pkg/host.JobContext
// freezes once per job before invoking this package.
package core

import (
	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/schema"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Context is the frozen {now, randomSeed} pair a caller derives once per
// job and threads through every pure call below. It carries no env map:
// only pkg/effect handlers read env: the compute/apply core never does.
type Context struct {
	Now        int64
	RandomSeed string
}

// Intent names the action a Compute call runs plus its per-call input;
// IntentID seeds pkg/flow's deterministic requirement-id derivation.
type Intent struct {
	IntentID string
	Action   string
	Input    value.Value

	// Fulfilled is the set of requirement ids already satisfied for
	// this intent in earlier compute cycles (the host accumulates it
	// across FulfillEffect jobs). Effect nodes whose deterministic id
	// is in the set are skipped on re-entry rather than re-queued.
	Fulfilled map[string]bool
}

// Result is Compute's return shape: the snapshot, its terminal status,
// the accumulated patches and requirements, and the evaluation trace.
type Result struct {
	Snapshot     snapshot.Snapshot
	Status       flow.Status
	Patches      []snapshot.Patch
	Requirements []flow.Requirement
	Trace        *flow.TraceNode
	Error        *flowerr.Error
}

// Compute runs one flow-evaluation pass over intent's action, starting
// from snap with meta stamped from ctx. Pure — ctx is the sole source
// of non-determinism this call sees, and a single job sees a single
// now. On any status other than error the resulting snapshot's
// computed.* fields are rematerialized before returning.
func Compute(s *schema.DomainSchema, snap snapshot.Snapshot, intent Intent, ctx Context) Result {
	if s == nil {
		return Result{Snapshot: snap, Status: flow.StatusError, Error: flowerr.New(flowerr.CodeInternalError, "no schema configured").WithActionName(intent.Action)}
	}
	flowNode, ok := s.ResolveAction(intent.Action)
	if !ok {
		return Result{Snapshot: snap, Status: flow.StatusError, Error: flowerr.New(flowerr.CodeUnknownFlow, "action not declared in schema").WithActionName(intent.Action)}
	}

	base := snap.WithMeta(snap.NextVersion(snapshot.Meta{
		Timestamp:  ctx.Now,
		RandomSeed: ctx.RandomSeed,
		SchemaHash: s.Hash,
	}))
	base.Input = intent.Input
	base.System.Status = snapshot.StatusComputing
	base.System.CurrentAction = intent.Action

	if availErr := s.CheckAvailable(intent.Action, exprContext(s, base, intent.Action)); availErr != nil {
		return Result{Snapshot: snap, Status: flow.StatusError, Error: availErr}
	}

	flowCtx := &flow.Context{
		Expr:       exprContext(s, base, intent.Action),
		Resolve:    s.ResolveAction,
		Validate:   s.ValidatePatchValue,
		SchemaHash: s.Hash,
		IntentID:   intent.IntentID,
		ActionName: intent.Action,
		Fulfilled:  intent.Fulfilled,
	}

	result, trace := flow.Evaluate(flowNode, flowCtx, flow.State{Snapshot: base, Status: flow.StatusRunning}, "")

	out := result.Snapshot
	switch result.Status {
	case flow.StatusPending:
		out.System.Status = snapshot.StatusPending
	case flow.StatusError:
		err := result.Error.WithTimestamp(ctx.Now)
		out.System = out.System.SetLastError(err).AppendError(err)
		out.System.Status = snapshot.StatusError
	default:
		out.System.Status = snapshot.StatusIdle
		out.System.CurrentAction = ""
	}
	if result.Status != flow.StatusError {
		out = Rematerialize(s, out)
	}

	return Result{Snapshot: out, Status: result.Status, Patches: result.Patches, Requirements: result.Requirements, Trace: trace, Error: result.Error}
}

// Apply is a pure structural patch application plus a monotone version
// bump and computed-field rematerialization. pkg/host's ApplyPatches
// job reduces to this call (its FulfillEffect job applies handler
// patches with snapshot.ApplyAll and leaves the version as is); so does any caller (tests,
// the projection layer) that wants to inject state without running an
// action. schema may be nil, in which case patches apply unvalidated and
// no computed field is rematerialized.
func Apply(s *schema.DomainSchema, snap snapshot.Snapshot, patches []snapshot.Patch, ctx Context) (snapshot.Snapshot, *flowerr.Error) {
	var validate func(string, value.Value) *flowerr.Error
	var schemaHash string
	if s != nil {
		validate = s.ValidatePatchValue
		schemaHash = s.Hash
	}
	next, err := snapshot.ApplyAll(snap, patches, validate)
	if err != nil {
		return snap, err
	}
	next = next.WithMeta(snap.NextVersion(snapshot.Meta{
		Timestamp:  ctx.Now,
		RandomSeed: ctx.RandomSeed,
		SchemaHash: schemaHash,
	}))
	if s != nil {
		next = Rematerialize(s, next)
	}
	return next, nil
}

// ExplainResult is Explain's return shape: the materialized value at
// path, the trace that produced it, and the
// schema-declared dependency paths it was derived from. Only
// "computed.<name>" paths carry a non-empty Trace/Deps; any other path
// falls back to a plain dotted-path lookup against snap.
type ExplainResult struct {
	Value value.Value
	Trace *flow.TraceNode
	Deps  []string
}

// Explain answers "where did this value come from": for a
// computed-field path it re-evaluates that field's
// declared expression against snap and attaches the deps the schema
// recorded for it; for any other path it is a plain value.Get, no trace,
// no deps.
func Explain(s *schema.DomainSchema, snap snapshot.Snapshot, path string) ExplainResult {
	if s != nil {
		if name, ok := computedName(path); ok {
			if cf, ok := s.Computed[name]; ok {
				ectx := exprContext(s, snap, "")
				v, evalErr := expr.Evaluate(cf.Expr, ectx)
				trace := &flow.TraceNode{Kind: "computed:" + name, NodePath: path, Value: v}
				if evalErr != nil {
					trace.Error = evalErr
				}
				return ExplainResult{Value: v, Trace: trace, Deps: cf.Deps}
			}
		}
	}
	v, _ := value.Get(snap.Data, stripDataRoot(value.ParsePath(path)))
	return ExplainResult{Value: v}
}

// Rematerialize recomputes every schema-declared computed field against
// snap's current data/system/meta/input, writing "computed.<name>" into
// a copied Computed object. It is called
// after every Compute/Apply cycle so computed.* never lags behind the
// data patches that just landed. A computed field's expression may
// itself reference other computed fields; those resolve against the
// previous cycle's materialized values (schema authors are expected to
// keep computed-field dependency graphs acyclic — the evaluator does not
// detect cycles, consistent with its total-but-not-cycle-checking
// design).
func Rematerialize(s *schema.DomainSchema, snap snapshot.Snapshot) snapshot.Snapshot {
	if s == nil || len(s.Computed) == 0 {
		return snap
	}
	existing, _ := snap.Computed.AsObject()
	out := make(map[string]value.Value, len(existing)+len(s.Computed))
	for k, v := range existing {
		out[k] = v
	}
	ectx := exprContext(s, snap, "")
	for name, cf := range s.Computed {
		v, _ := expr.Evaluate(cf.Expr, ectx)
		out["computed."+name] = v
	}
	snap.Computed = value.Object(out)
	return snap
}

func exprContext(s *schema.DomainSchema, snap snapshot.Snapshot, actionName string) expr.Context {
	return expr.Context{
		Input:      snap.Input,
		Meta:       metaToValue(snap.Meta),
		Computed:   snap.Computed,
		System:     systemToExprValue(snap),
		Data:       snap.Data,
		ActionName: actionName,
	}
}

func metaToValue(m snapshot.Meta) value.Value {
	return value.Object(map[string]value.Value{
		"version":    value.Num(float64(m.Version)),
		"timestamp":  value.Num(float64(m.Timestamp)),
		"randomSeed": value.Str(m.RandomSeed),
		"schemaHash": value.Str(m.SchemaHash),
	})
}

func systemToExprValue(s snapshot.Snapshot) value.Value {
	pending := make([]value.Value, len(s.System.PendingRequirements))
	for i, p := range s.System.PendingRequirements {
		pending[i] = value.Str(p)
	}
	lastErr := value.Null
	if s.System.LastError != nil {
		lastErr = value.FromGo(s.System.LastError.ToMap())
	}
	return value.Object(map[string]value.Value{
		"status":              value.Str(string(s.System.Status)),
		"lastError":           lastErr,
		"pendingRequirements": value.Array(pending),
		"currentAction":       value.Str(s.System.CurrentAction),
	})
}

// computedName strips a "computed." prefix from path, reporting whether
// it was present, since schema.Computed is keyed by bare field name
// ("total") while snapshot.Computed and explain callers address the
// full dotted path ("computed.total").
func computedName(path string) (string, bool) {
	const prefix = "computed."
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):], true
	}
	return "", false
}

// stripDataRoot drops a leading "data" segment so Explain's fallback
// lookup accepts both "data.foo" and bare "foo" the way expr.Context.
// Resolve's bare-name convenience does.
func stripDataRoot(p value.Path) value.Path {
	if len(p) > 0 && p[0] == "data" {
		return p[1:]
	}
	return p
}
