package expr

import (
	"strings"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

func evalString(n StringExpr, ctx Context) (value.Value, *flowerr.Error) {
	args, err := evalAll(n.Args, ctx)
	if err != nil {
		return value.Null, err
	}
	strAt := func(i int) string {
		if i < 0 || i >= len(args) {
			return ""
		}
		return args[i].ToString()
	}

	switch n.Op {
	case OpConcat:
		var b strings.Builder
		for _, a := range args {
			b.WriteString(a.ToString())
		}
		return value.Str(b.String()), nil
	case OpSubstring:
		s := strAt(0)
		start := clampIndex(int(numArgAt(args, 1)), len(s))
		end := len(s)
		if len(args) > 2 {
			end = clampIndex(int(numArgAt(args, 2)), len(s))
		}
		if start > end {
			return value.Str(""), nil
		}
		return value.Str(s[start:end]), nil
	case OpTrim:
		return value.Str(strings.TrimSpace(strAt(0))), nil
	case OpToLowerCase:
		return value.Str(strings.ToLower(strAt(0))), nil
	case OpToUpperCase:
		return value.Str(strings.ToUpper(strAt(0))), nil
	case OpStrLen:
		return value.Num(float64(len([]rune(strAt(0))))), nil
	case OpToString:
		return value.Str(strAt(0)), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown string operator")
	}
}

func numArgAt(args []value.Value, i int) float64 {
	if i < 0 || i >= len(args) {
		return 0
	}
	return args[i].ToNumber()
}

func clampIndex(i, length int) int {
	if i < 0 {
		i = 0
	}
	if i > length {
		i = length
	}
	return i
}

func evalCollection(n Collection, ctx Context) (value.Value, *flowerr.Error) {
	arrVal, err := Evaluate(n.Array, ctx)
	if err != nil {
		return value.Null, err
	}
	items, isArr := arrVal.AsArray()

	switch n.Op {
	case OpLen:
		if !isArr {
			return value.Num(0), nil
		}
		return value.Num(float64(len(items))), nil
	case OpAt:
		if !isArr {
			return value.Null, nil
		}
		idx, aerr := evalIndexArg(n.Args, ctx)
		if aerr != nil {
			return value.Null, aerr
		}
		if idx < 0 || idx >= len(items) {
			return value.Null, nil
		}
		return items[idx], nil
	case OpFirst:
		if !isArr || len(items) == 0 {
			return value.Null, nil
		}
		return items[0], nil
	case OpLast:
		if !isArr || len(items) == 0 {
			return value.Null, nil
		}
		return items[len(items)-1], nil
	case OpSlice:
		if !isArr {
			return value.Array(nil), nil
		}
		args, aerr := evalAll(n.Args, ctx)
		if aerr != nil {
			return value.Null, aerr
		}
		start := clampIndex(int(numArgAt(args, 0)), len(items))
		end := len(items)
		if len(args) > 1 {
			end = clampIndex(int(numArgAt(args, 1)), len(items))
		}
		if start > end {
			return value.Array(nil), nil
		}
		return value.Array(items[start:end]), nil
	case OpIncludes:
		if !isArr {
			return value.Bool(false), nil
		}
		args, aerr := evalAll(n.Args, ctx)
		if aerr != nil {
			return value.Null, aerr
		}
		if len(args) == 0 {
			return value.Bool(false), nil
		}
		for _, it := range items {
			if value.Equal(it, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case OpAppend:
		args, aerr := evalAll(n.Args, ctx)
		if aerr != nil {
			return value.Null, aerr
		}
		if !isArr {
			items = nil
		}
		next := append(append([]value.Value(nil), items...), args...)
		return value.Array(next), nil
	case OpFilter, OpMap, OpFind, OpEvery, OpSome:
		return evalCombinator(n, items, isArr, ctx)
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown collection operator")
	}
}

func evalIndexArg(args []Node, ctx Context) (int, *flowerr.Error) {
	if len(args) == 0 {
		return -1, nil
	}
	v, err := Evaluate(args[0], ctx)
	if err != nil {
		return 0, err
	}
	return int(v.ToNumber()), nil
}

// evalCombinator implements filter/map/find/every/some. Each re-evaluates
// Predicate in a child context binding $item/$index/$array; any
// predicate error aborts the whole combinator.
func evalCombinator(n Collection, items []value.Value, isArr bool, ctx Context) (value.Value, *flowerr.Error) {
	arrVal := value.Array(items)
	if !isArr {
		switch n.Op {
		case OpFilter, OpMap:
			return value.Array(nil), nil
		case OpFind:
			return value.Null, nil
		case OpEvery:
			return value.Bool(true), nil
		case OpSome:
			return value.Bool(false), nil
		}
	}

	var mapped []value.Value
	var filtered []value.Value

	for i, it := range items {
		childCtx := ctx.WithItem(it, i, arrVal)
		v, err := Evaluate(n.Predicate, childCtx)
		if err != nil {
			return value.Null, err
		}
		switch n.Op {
		case OpFilter:
			if truthy(v) {
				filtered = append(filtered, it)
			}
		case OpMap:
			mapped = append(mapped, v)
		case OpFind:
			if truthy(v) {
				return it, nil
			}
		case OpEvery:
			if !truthy(v) {
				return value.Bool(false), nil
			}
		case OpSome:
			if truthy(v) {
				return value.Bool(true), nil
			}
		}
	}

	switch n.Op {
	case OpFilter:
		return value.Array(filtered), nil
	case OpMap:
		return value.Array(mapped), nil
	case OpFind:
		return value.Null, nil
	case OpEvery:
		return value.Bool(true), nil
	case OpSome:
		return value.Bool(false), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown combinator")
	}
}

func evalObject(n ObjectExpr, ctx Context) (value.Value, *flowerr.Error) {
	switch n.Op {
	case OpObjectLit:
		fields := make(map[string]value.Value, len(n.Fields))
		for k, node := range n.Fields {
			v, err := Evaluate(node, ctx)
			if err != nil {
				return value.Null, err
			}
			fields[k] = v
		}
		return value.Object(fields), nil
	case OpKeys, OpValues, OpEntries:
		src, err := Evaluate(n.Source, ctx)
		if err != nil {
			return value.Null, err
		}
		fields, ok := src.AsObject()
		if !ok {
			return value.Array(nil), nil
		}
		keys := value.SortedKeys(fields)
		switch n.Op {
		case OpKeys:
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = value.Str(k)
			}
			return value.Array(out), nil
		case OpValues:
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = fields[k]
			}
			return value.Array(out), nil
		default: // entries
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = value.Object(map[string]value.Value{"key": value.Str(k), "value": fields[k]})
			}
			return value.Array(out), nil
		}
	case OpObjMerge:
		args, aerr := evalAll(n.Args, ctx)
		if aerr != nil {
			return value.Null, aerr
		}
		merged := map[string]value.Value{}
		for _, a := range args {
			if fields, ok := a.AsObject(); ok {
				for k, v := range fields {
					merged[k] = v
				}
			}
		}
		return value.Object(merged), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown object operator")
	}
}

func evalType(n TypeExpr, ctx Context) (value.Value, *flowerr.Error) {
	switch n.Op {
	case OpTypeof:
		if len(n.Args) == 0 {
			return value.Str("null"), nil
		}
		v, err := Evaluate(n.Args[0], ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Str(typeName(v)), nil
	case OpIsNull:
		if len(n.Args) == 0 {
			return value.Bool(true), nil
		}
		v, err := Evaluate(n.Args[0], ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(v.IsNull()), nil
	case OpCoalesce:
		for _, a := range n.Args {
			v, err := Evaluate(a, ctx)
			if err != nil {
				return value.Null, err
			}
			if !v.IsNull() {
				return v, nil
			}
		}
		return value.Null, nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown type operator")
	}
}

func typeName(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		return "boolean"
	case value.KindNum:
		return "number"
	case value.KindStr:
		return "string"
	case value.KindArray:
		return "array"
	case value.KindObject:
		return "object"
	default:
		return "null"
	}
}
