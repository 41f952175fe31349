package schema

import (
	"fmt"

	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
)

// buildExprNode turns a YAML/JSON-decoded generic value into an
// expr.Node. Authoring documents describe expressions as single-key
// maps whose key names the node kind; bare scalars author as literals
// directly.
func buildExprNode(raw any) (expr.Node, error) {
	if raw == nil {
		return expr.Literal{Value: nil}, nil
	}
	m, ok := asMap(raw)
	if !ok {
		// Bare scalars (string/number/bool) author as literals directly.
		return expr.Literal{Value: raw}, nil
	}

	switch {
	case has(m, "lit"):
		return expr.Literal{Value: m["lit"]}, nil
	case has(m, "get"):
		path, _ := m["get"].(string)
		return expr.Get{Path: path}, nil
	case has(m, "cmp"):
		return buildComparison(m)
	case has(m, "logical"):
		return buildLogical(m)
	case has(m, "if"):
		return buildConditional(m)
	case has(m, "arith"):
		return buildArithmetic(m)
	case has(m, "arrayAgg"):
		return buildArrayAggregate(m)
	case has(m, "str"):
		return buildStringExpr(m)
	case has(m, "coll"):
		return buildCollection(m)
	case has(m, "obj"):
		return buildObjectExpr(m)
	case has(m, "type"):
		return buildTypeExpr(m)
	default:
		return nil, fmt.Errorf("unrecognized expression node: %v", m)
	}
}

func buildComparison(m map[string]any) (expr.Node, error) {
	op, _ := m["cmp"].(string)
	left, err := buildExprNode(m["left"])
	if err != nil {
		return nil, err
	}
	right, err := buildExprNode(m["right"])
	if err != nil {
		return nil, err
	}
	return expr.Comparison{Op: expr.CompareOp(op), Left: left, Right: right}, nil
}

func buildLogical(m map[string]any) (expr.Node, error) {
	op, _ := m["logical"].(string)
	left, err := buildExprNode(m["left"])
	if err != nil {
		return nil, err
	}
	var right expr.Node
	if has(m, "right") {
		right, err = buildExprNode(m["right"])
		if err != nil {
			return nil, err
		}
	}
	return expr.Logical{Op: expr.LogicalOp(op), Left: left, Right: right}, nil
}

func buildConditional(m map[string]any) (expr.Node, error) {
	cond, err := buildExprNode(m["if"])
	if err != nil {
		return nil, err
	}
	then, err := buildExprNode(m["then"])
	if err != nil {
		return nil, err
	}
	var els expr.Node
	if has(m, "else") {
		els, err = buildExprNode(m["else"])
		if err != nil {
			return nil, err
		}
	}
	return expr.Conditional{Cond: cond, Then: then, Else: els}, nil
}

func buildArithmetic(m map[string]any) (expr.Node, error) {
	op, _ := m["arith"].(string)
	args, err := buildExprList(m["args"])
	if err != nil {
		return nil, err
	}
	return expr.Arithmetic{Op: expr.ArithOp(op), Args: args}, nil
}

func buildArrayAggregate(m map[string]any) (expr.Node, error) {
	op, _ := m["arrayAgg"].(string)
	arr, err := buildExprNode(m["array"])
	if err != nil {
		return nil, err
	}
	return expr.ArrayAggregate{Op: expr.ArrayAggOp(op), Array: arr}, nil
}

func buildStringExpr(m map[string]any) (expr.Node, error) {
	op, _ := m["str"].(string)
	args, err := buildExprList(m["args"])
	if err != nil {
		return nil, err
	}
	return expr.StringExpr{Op: expr.StringOp(op), Args: args}, nil
}

func buildCollection(m map[string]any) (expr.Node, error) {
	op, _ := m["coll"].(string)
	arr, err := buildExprNode(m["array"])
	if err != nil {
		return nil, err
	}
	args, err := buildExprList(m["args"])
	if err != nil {
		return nil, err
	}
	var pred expr.Node
	if has(m, "predicate") {
		pred, err = buildExprNode(m["predicate"])
		if err != nil {
			return nil, err
		}
	}
	return expr.Collection{Op: expr.CollectionOp(op), Array: arr, Args: args, Predicate: pred}, nil
}

func buildObjectExpr(m map[string]any) (expr.Node, error) {
	op, _ := m["obj"].(string)
	var fields map[string]expr.Node
	if raw, ok := asMap(m["fields"]); ok {
		fields = make(map[string]expr.Node, len(raw))
		for k, v := range raw {
			n, err := buildExprNode(v)
			if err != nil {
				return nil, err
			}
			fields[k] = n
		}
	}
	var source expr.Node
	var err error
	if has(m, "source") {
		source, err = buildExprNode(m["source"])
		if err != nil {
			return nil, err
		}
	}
	args, err := buildExprList(m["args"])
	if err != nil {
		return nil, err
	}
	return expr.ObjectExpr{Op: expr.ObjectOp(op), Fields: fields, Source: source, Args: args}, nil
}

func buildTypeExpr(m map[string]any) (expr.Node, error) {
	op, _ := m["type"].(string)
	args, err := buildExprList(m["args"])
	if err != nil {
		return nil, err
	}
	return expr.TypeExpr{Op: expr.TypeOp(op), Args: args}, nil
}

func buildExprList(raw any) ([]expr.Node, error) {
	items, ok := asList(raw)
	if !ok {
		return nil, nil
	}
	out := make([]expr.Node, len(items))
	for i, it := range items {
		n, err := buildExprNode(it)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// buildFlowNode is the flow-AST counterpart of buildExprNode, dispatching
// on a "kind" discriminator rather than a single-key map since flow
// nodes carry more fields than expression nodes typically do
// (seq/if/patch/effect/call/halt/fail).
func buildFlowNode(raw any) (flow.Node, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("flow node must be a map, got %T", raw)
	}
	kind, _ := m["kind"].(string)
	switch kind {
	case "seq":
		items, _ := asList(m["steps"])
		steps := make([]flow.Node, len(items))
		for i, it := range items {
			n, err := buildFlowNode(it)
			if err != nil {
				return nil, err
			}
			steps[i] = n
		}
		return flow.Seq{Steps: steps}, nil
	case "if":
		cond, err := buildExprNode(m["cond"])
		if err != nil {
			return nil, err
		}
		then, err := buildFlowNode(m["then"])
		if err != nil {
			return nil, err
		}
		var els flow.Node
		if has(m, "else") {
			els, err = buildFlowNode(m["else"])
			if err != nil {
				return nil, err
			}
		}
		return flow.If{Cond: cond, Then: then, Else: els}, nil
	case "patch":
		op, _ := m["op"].(string)
		path, _ := m["path"].(string)
		var val expr.Node
		var err error
		if has(m, "value") {
			val, err = buildExprNode(m["value"])
			if err != nil {
				return nil, err
			}
		}
		return flow.Patch{Op: flow.PatchOp(op), Path: path, Value: val}, nil
	case "effect":
		typ, _ := m["type"].(string)
		paramsRaw, _ := asMap(m["params"])
		params := make(map[string]expr.Node, len(paramsRaw))
		for k, v := range paramsRaw {
			n, err := buildExprNode(v)
			if err != nil {
				return nil, err
			}
			params[k] = n
		}
		return flow.Effect{Type: typ, Params: params}, nil
	case "call":
		name, _ := m["flowName"].(string)
		return flow.Call{FlowName: name}, nil
	case "halt":
		var reason expr.Node
		var err error
		if has(m, "reason") {
			reason, err = buildExprNode(m["reason"])
			if err != nil {
				return nil, err
			}
		}
		return flow.Halt{Reason: reason}, nil
	case "fail":
		code, _ := m["code"].(string)
		var msg expr.Node
		var err error
		if has(m, "message") {
			msg, err = buildExprNode(m["message"])
			if err != nil {
				return nil, err
			}
		}
		return flow.Fail{Code: code, Message: msg}, nil
	default:
		return nil, fmt.Errorf("unrecognized flow node kind %q", kind)
	}
}

func buildFieldSpec(raw any) (*FieldSpec, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("field spec must be a map, got %T", raw)
	}
	typ, _ := m["type"].(string)
	spec := &FieldSpec{Type: FieldType(typ)}
	if opt, ok := m["optional"].(bool); ok {
		spec.Optional = opt
	}
	if typ == string(FieldObject) {
		fieldsRaw, _ := asMap(m["fields"])
		if len(fieldsRaw) > 0 {
			spec.Fields = make(map[string]*FieldSpec, len(fieldsRaw))
			for name, fv := range fieldsRaw {
				child, err := buildFieldSpec(fv)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", name, err)
				}
				spec.Fields[name] = child
			}
		}
	}
	if typ == string(FieldArray) {
		if has(m, "items") {
			items, err := buildFieldSpec(m["items"])
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			spec.Items = items
		}
	}
	return spec, nil
}

func asMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			if ks, ok := k.(string); ok {
				out[ks] = v
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func asList(raw any) ([]any, bool) {
	items, ok := raw.([]any)
	return items, ok
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
