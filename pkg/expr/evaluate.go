package expr

import (
	"math"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Evaluate is the pure, total interpreter contract:
// (ExprNode, Context) -> (Value, *flowerr.Error). It never panics; every
// well-formed node produces a result for every input. Mathematically
// undefined operations yield value.Null, not an error — only structural
// problems (unknown node kind, predicate failure inside a combinator)
// surface as errors.
func Evaluate(node Node, ctx Context) (value.Value, *flowerr.Error) {
	switch n := node.(type) {
	case Literal:
		return value.FromGo(n.Value), nil
	case Get:
		v, ok := ctx.Resolve(n.Path)
		if !ok {
			return value.Null, nil
		}
		return v, nil
	case Comparison:
		return evalComparison(n, ctx)
	case Logical:
		return evalLogical(n, ctx)
	case Conditional:
		return evalConditional(n, ctx)
	case Arithmetic:
		return evalArithmetic(n, ctx)
	case ArrayAggregate:
		return evalArrayAggregate(n, ctx)
	case StringExpr:
		return evalString(n, ctx)
	case Collection:
		return evalCollection(n, ctx)
	case ObjectExpr:
		return evalObject(n, ctx)
	case TypeExpr:
		return evalType(n, ctx)
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown expression node kind").WithActionName(ctx.ActionName)
	}
}

func evalAll(nodes []Node, ctx Context) ([]value.Value, *flowerr.Error) {
	out := make([]value.Value, len(nodes))
	for i, n := range nodes {
		v, err := Evaluate(n, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalComparison(n Comparison, ctx Context) (value.Value, *flowerr.Error) {
	l, err := Evaluate(n.Left, ctx)
	if err != nil {
		return value.Null, err
	}
	r, err := Evaluate(n.Right, ctx)
	if err != nil {
		return value.Null, err
	}
	if n.Op == OpEq {
		return value.Bool(value.Equal(l, r)), nil
	}
	if n.Op == OpNeq {
		return value.Bool(!value.Equal(l, r)), nil
	}
	ln, rn := l.ToNumber(), r.ToNumber()
	switch n.Op {
	case OpLt:
		return value.Bool(ln < rn), nil
	case OpLte:
		return value.Bool(ln <= rn), nil
	case OpGt:
		return value.Bool(ln > rn), nil
	case OpGte:
		return value.Bool(ln >= rn), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown comparison operator")
	}
}

// evalLogical short-circuits and/or; both propagate the first error.
func evalLogical(n Logical, ctx Context) (value.Value, *flowerr.Error) {
	if n.Op == OpNot {
		v, err := Evaluate(n.Left, ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(!v.ToBoolean()), nil
	}

	l, err := Evaluate(n.Left, ctx)
	if err != nil {
		return value.Null, err
	}
	if n.Op == OpAnd && !l.ToBoolean() {
		return value.Bool(false), nil
	}
	if n.Op == OpOr && l.ToBoolean() {
		return value.Bool(true), nil
	}
	r, err := Evaluate(n.Right, ctx)
	if err != nil {
		return value.Null, err
	}
	if n.Op == OpAnd {
		return value.Bool(r.ToBoolean()), nil
	}
	return value.Bool(r.ToBoolean()), nil
}

// truthy implements the conditional-truthiness rule: anything not in
// {null, undefined, false}.
func truthy(v value.Value) bool {
	if v.IsNull() {
		return false
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	return true
}

func evalConditional(n Conditional, ctx Context) (value.Value, *flowerr.Error) {
	c, err := Evaluate(n.Cond, ctx)
	if err != nil {
		return value.Null, err
	}
	if truthy(c) {
		return Evaluate(n.Then, ctx)
	}
	if n.Else == nil {
		return value.Null, nil
	}
	return Evaluate(n.Else, ctx)
}

func evalArithmetic(n Arithmetic, ctx Context) (value.Value, *flowerr.Error) {
	args, err := evalAll(n.Args, ctx)
	if err != nil {
		return value.Null, err
	}
	nums := make([]float64, len(args))
	for i, a := range args {
		nums[i] = a.ToNumber()
	}

	switch n.Op {
	case OpAdd:
		return value.Num(numAt(nums, 0) + numAt(nums, 1)), nil
	case OpSub:
		return value.Num(numAt(nums, 0) - numAt(nums, 1)), nil
	case OpMul:
		return value.Num(numAt(nums, 0) * numAt(nums, 1)), nil
	case OpDiv:
		if numAt(nums, 1) == 0 {
			return value.Null, nil
		}
		return value.Num(numAt(nums, 0) / numAt(nums, 1)), nil
	case OpMod:
		if numAt(nums, 1) == 0 {
			return value.Null, nil
		}
		return value.Num(math.Mod(numAt(nums, 0), numAt(nums, 1))), nil
	case OpNeg:
		return value.Num(-numAt(nums, 0)), nil
	case OpAbs:
		return value.Num(math.Abs(numAt(nums, 0))), nil
	case OpMin:
		return value.Num(minOf(nums)), nil
	case OpMax:
		return value.Num(maxOf(nums)), nil
	case OpFloor:
		return value.Num(math.Floor(numAt(nums, 0))), nil
	case OpCeil:
		return value.Num(math.Ceil(numAt(nums, 0))), nil
	case OpRound:
		return value.Num(math.Round(numAt(nums, 0))), nil
	case OpSqrt:
		v := numAt(nums, 0)
		if v < 0 {
			return value.Null, nil
		}
		return value.Num(math.Sqrt(v)), nil
	case OpPow:
		return value.Num(math.Pow(numAt(nums, 0), numAt(nums, 1))), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown arithmetic operator")
	}
}

func numAt(nums []float64, i int) float64 {
	if i < 0 || i >= len(nums) {
		return 0
	}
	return nums[i]
}

func minOf(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

func maxOf(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return m
}

func evalArrayAggregate(n ArrayAggregate, ctx Context) (value.Value, *flowerr.Error) {
	arrVal, err := Evaluate(n.Array, ctx)
	if err != nil {
		return value.Null, err
	}
	items, ok := arrVal.AsArray()
	if !ok || len(items) == 0 {
		return value.Null, nil
	}
	nums := make([]float64, len(items))
	for i, it := range items {
		nums[i] = it.ToNumber()
	}
	switch n.Op {
	case OpSumArray:
		sum := 0.0
		for _, v := range nums {
			sum += v
		}
		return value.Num(sum), nil
	case OpMinArray:
		return value.Num(minOf(nums)), nil
	case OpMaxArray:
		return value.Num(maxOf(nums)), nil
	default:
		return value.Null, flowerr.New(flowerr.CodeInternalError, "unknown array-aggregate operator")
	}
}
