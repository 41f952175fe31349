package flow

import (
	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// The two privileged effect types: pure array transforms executed
// inline with no external handler.
const (
	EffectArrayMap    = "array.map"
	EffectArrayFilter = "array.filter"
)

// Evaluate drives one flow node: (Node, Context, State) ->
// (State, TraceNode). It never panics; every failure surfaces as
// state.Error with state.Status = error.
func Evaluate(n Node, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	switch node := n.(type) {
	case Seq:
		return evalSeq(node, ctx, st, nodePath)
	case If:
		return evalIf(node, ctx, st, nodePath)
	case Patch:
		return evalPatch(node, ctx, st, nodePath)
	case Effect:
		return evalEffect(node, ctx, st, nodePath)
	case Call:
		return evalCall(node, ctx, st, nodePath)
	case Halt:
		return evalHalt(node, ctx, st, nodePath)
	case Fail:
		return evalFail(node, ctx, st, nodePath)
	default:
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeInternalError, "unknown flow node kind").WithActionName(ctx.ActionName).WithNodePath(nodePath)
		return st, &TraceNode{Kind: "unknown", NodePath: nodePath, Error: st.Error}
	}
}

func evalSeq(n Seq, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "seq", NodePath: nodePath}
	for i, step := range n.Steps {
		var child *TraceNode
		st, child = Evaluate(step, ctx, st, childNodePath(nodePath, i))
		trace.Children = append(trace.Children, child)
		if st.Terminal() {
			break
		}
	}
	return st, trace
}

// truthy is the conditional-truthiness rule: anything other than
// null/undefined/false.
func truthy(v value.Value) bool {
	if v.IsNull() {
		return false
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	return true
}

func evalIf(n If, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	cond, err := expr.Evaluate(n.Cond, ctx.Expr)
	trace := &TraceNode{Kind: "if", NodePath: nodePath, Value: cond}
	if err != nil {
		st.Status = StatusError
		st.Error = err.WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	var branch Node
	if truthy(cond) {
		branch = n.Then
	} else {
		branch = n.Else
	}
	if branch == nil {
		return st, trace
	}
	var child *TraceNode
	st, child = Evaluate(branch, ctx, st, childNodePath(nodePath, "branch"))
	trace.Children = append(trace.Children, child)
	return st, trace
}

func patchOp(op PatchOp) snapshot.Op {
	switch op {
	case PatchSet:
		return snapshot.OpSet
	case PatchUnset:
		return snapshot.OpUnset
	case PatchMerge:
		return snapshot.OpMerge
	default:
		return snapshot.OpSet
	}
}

func evalPatch(n Patch, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "patch", NodePath: nodePath, Args: map[string]value.Value{}}

	var v value.Value
	if n.Value != nil {
		var err *flowerr.Error
		v, err = expr.Evaluate(n.Value, ctx.Expr)
		if err != nil {
			st.Status = StatusError
			st.Error = err.WithNodePath(nodePath)
			trace.Error = st.Error
			return st, trace
		}
	}
	trace.Value = v

	p := snapshot.Patch{Op: patchOp(n.Op), Path: n.Path, Value: v}
	next, serr := snapshot.Apply(st.Snapshot, p, ctx.Validate)
	if serr != nil {
		st.Status = StatusError
		st.Error = serr.WithActionName(ctx.ActionName).WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	st.Snapshot = next
	st.Patches = append(st.Patches, p)
	return st, trace
}

func evalEffect(n Effect, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "effect:" + n.Type, NodePath: nodePath, Args: map[string]value.Value{}}

	if n.Type == EffectArrayMap || n.Type == EffectArrayFilter {
		return evalInlineArrayEffect(n, ctx, st, nodePath, trace)
	}

	id := ctx.requirementID(nodePath)
	if ctx.Fulfilled[id] {
		// Already satisfied in an earlier compute cycle; the handler's
		// patches are in the snapshot, so evaluation continues past
		// this node instead of re-queuing it.
		trace.Kind = "effect:fulfilled:" + n.Type
		trace.Value = value.Str(id)
		return st, trace
	}

	params := make(map[string]value.Value, len(n.Params))
	for name, pn := range n.Params {
		v, err := expr.Evaluate(pn, ctx.Expr)
		if err != nil {
			st.Status = StatusError
			st.Error = err.WithActionName(ctx.ActionName).WithNodePath(nodePath)
			trace.Error = st.Error
			return st, trace
		}
		params[name] = v
		trace.Args[name] = v
	}

	st.Requirements = append(st.Requirements, Requirement{
		ID:       id,
		Type:     n.Type,
		Params:   value.Object(params),
		ActionID: ctx.ActionName,
		FlowPosition: FlowPosition{
			NodePath:        nodePath,
			SnapshotVersion: st.Snapshot.Meta.Version,
		},
		CreatedAt: st.Snapshot.Meta.Timestamp,
	})
	st.Status = StatusPending
	trace.Value = value.Str(id)
	return st, trace
}

// evalInlineArrayEffect implements the two privileged array transforms:
// it reads Params["source"] (the array), Params["into"] (a literal
// string target path), and a per-item expression — Params["expr"] for
// array.map, Params["predicate"] for array.filter — evaluated with
// $item/$index/$array bound, then patches the result directly into
// state.snapshot.data with no requirement ever queued.
func evalInlineArrayEffect(n Effect, ctx *Context, st State, nodePath string, trace *TraceNode) (State, *TraceNode) {
	sourceNode, ok := n.Params["source"]
	if !ok {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeInternalError, "array effect missing source param").WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	intoNode, ok := n.Params["into"]
	if !ok {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeInternalError, "array effect missing into param").WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}

	srcVal, err := expr.Evaluate(sourceNode, ctx.Expr)
	if err != nil {
		st.Status = StatusError
		st.Error = err.WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	intoVal, err := expr.Evaluate(intoNode, ctx.Expr)
	if err != nil {
		st.Status = StatusError
		st.Error = err.WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	intoPath, _ := intoVal.AsStr()

	items, _ := srcVal.AsArray()

	var itemExprKey string
	if n.Type == EffectArrayMap {
		itemExprKey = "expr"
	} else {
		itemExprKey = "predicate"
	}
	itemNode, ok := n.Params[itemExprKey]
	if !ok {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeInternalError, "array effect missing "+itemExprKey+" param").WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}

	out := make([]value.Value, 0, len(items))
	for i, item := range items {
		itemCtx := ctx.Expr.WithItem(item, i, srcVal)
		v, err := expr.Evaluate(itemNode, itemCtx)
		if err != nil {
			st.Status = StatusError
			st.Error = err.WithNodePath(nodePath)
			trace.Error = st.Error
			return st, trace
		}
		if n.Type == EffectArrayMap {
			out = append(out, v)
		} else if truthy(v) {
			out = append(out, item)
		}
	}

	result := value.Array(out)
	p := snapshot.Patch{Op: snapshot.OpSet, Path: intoPath, Value: result}
	next, serr := snapshot.Apply(st.Snapshot, p, ctx.Validate)
	if serr != nil {
		st.Status = StatusError
		st.Error = serr.WithActionName(ctx.ActionName).WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	st.Snapshot = next
	st.Patches = append(st.Patches, p)
	trace.Value = result
	return st, trace
}

func evalCall(n Call, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "call:" + n.FlowName, NodePath: nodePath}
	if ctx.Resolve == nil {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeUnknownFlow, "no action resolver configured").WithActionName(n.FlowName).WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	callee, ok := ctx.Resolve(n.FlowName)
	if !ok {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeUnknownFlow, "call to an undefined action").WithActionName(n.FlowName).WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	if ctx.callDepth >= maxCallDepth {
		st.Status = StatusError
		st.Error = flowerr.New(flowerr.CodeMaxIterationsExceeded, "call nesting exceeded maxCallDepth").WithActionName(n.FlowName).WithNodePath(nodePath)
		trace.Error = st.Error
		return st, trace
	}
	childCtx := *ctx
	childCtx.ActionName = n.FlowName
	childCtx.callDepth = ctx.callDepth + 1
	var child *TraceNode
	st, child = Evaluate(callee, &childCtx, st, childNodePath(nodePath, "call"))
	trace.Children = append(trace.Children, child)
	return st, trace
}

func evalHalt(n Halt, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "halt", NodePath: nodePath}
	if n.Reason != nil {
		v, err := expr.Evaluate(n.Reason, ctx.Expr)
		if err == nil {
			trace.Value = v
		}
	}
	st.Status = StatusHalted
	return st, trace
}

// evalFail always records a VALIDATION_ERROR; n.Code is the
// domain-specific failure reason the schema author supplied (e.g.
// "duplicate-name"), carried in the message rather than as a distinct
// flowerr.Code — the taxonomy in pkg/flowerr is the engine's fixed set,
// not an open domain-error enum.
func evalFail(n Fail, ctx *Context, st State, nodePath string) (State, *TraceNode) {
	trace := &TraceNode{Kind: "fail", NodePath: nodePath}
	msg := n.Code
	if n.Message != nil {
		if v, err := expr.Evaluate(n.Message, ctx.Expr); err == nil {
			if s, ok := v.AsStr(); ok && s != "" {
				if msg != "" {
					msg = msg + ": " + s
				} else {
					msg = s
				}
			}
		}
	}
	if msg == "" {
		msg = "flow failed"
	}
	st.Status = StatusError
	st.Error = flowerr.New(flowerr.CodeValidationError, msg).WithActionName(ctx.ActionName).WithNodePath(nodePath)
	trace.Error = st.Error
	return st, trace
}
