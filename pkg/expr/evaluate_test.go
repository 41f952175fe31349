package expr

import (
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/value"
)

func mustNum(t *testing.T, v value.Value) float64 {
	t.Helper()
	n, ok := v.AsNum()
	if !ok && !v.IsNull() {
		t.Fatalf("expected number or null, got kind %v", v.Kind())
	}
	return n
}

// TestArithmeticTotality checks that div/sqrt/mod by
// undefined inputs must return null, never an error.
func TestArithmeticTotality(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}

	cases := []struct {
		name string
		node Node
	}{
		{"div by zero", Arithmetic{Op: OpDiv, Args: []Node{Literal{10.0}, Literal{0.0}}}},
		{"sqrt negative", Arithmetic{Op: OpSqrt, Args: []Node{Literal{-1.0}}}},
		{"mod by zero", Arithmetic{Op: OpMod, Args: []Node{Literal{5.0}, Literal{0.0}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := Evaluate(c.node, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !v.IsNull() {
				t.Errorf("got %v, want null", v)
			}
		})
	}
}

func TestOutOfRangeAccessorsReturnNull(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	arr := Literal{[]any{}}

	for _, n := range []Node{
		Collection{Op: OpAt, Array: arr, Args: []Node{Literal{5.0}}},
		Collection{Op: OpFirst, Array: arr},
		Collection{Op: OpLast, Array: arr},
	} {
		v, err := Evaluate(n, ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !v.IsNull() {
			t.Errorf("got %v, want null", v)
		}
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	boom := Arithmetic{Op: OpDiv, Args: []Node{Literal{1.0}, Literal{0.0}}} // null, not error — fine either way

	r, err := Evaluate(Logical{Op: OpAnd, Left: Literal{false}, Right: boom}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := r.AsBool(); b {
		t.Error("and with false left must short-circuit to false")
	}

	r, err = Evaluate(Logical{Op: OpOr, Left: Literal{true}, Right: boom}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := r.AsBool(); !b {
		t.Error("or with true left must short-circuit to true")
	}
}

func TestCoalesce(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	r, err := Evaluate(TypeExpr{Op: OpCoalesce, Args: []Node{Literal{nil}, Literal{nil}, Literal{"x"}}}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := r.AsStr(); s != "x" {
		t.Errorf("coalesce = %v, want x", s)
	}
}

func TestEqualityStrictNoCoercion(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	r, err := Evaluate(Comparison{Op: OpEq, Left: Literal{1.0}, Right: Literal{"1"}}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := r.AsBool(); b {
		t.Error("1 == \"1\" must be false under strict equality")
	}
}

func TestFilterMapBindItemIndexArray(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	arr := Literal{[]any{1.0, 2.0, 3.0, 4.0}}

	filtered, err := Evaluate(Collection{
		Op:        OpFilter,
		Array:     arr,
		Predicate: Comparison{Op: OpGt, Left: Get{"$item"}, Right: Literal{2.0}},
	}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := filtered.AsArray()
	if len(items) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(items))
	}

	mapped, err := Evaluate(Collection{
		Op:        OpMap,
		Array:     arr,
		Predicate: Arithmetic{Op: OpAdd, Args: []Node{Get{"$item"}, Get{"$index"}}},
	}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mitems, _ := mapped.AsArray()
	if mustNum(t, mitems[0]) != 1 || mustNum(t, mitems[3]) != 7 {
		t.Errorf("map with $index wrong: %v", mitems)
	}
}

func TestPredicateErrorAbortsCombinator(t *testing.T) {
	ctx := Context{Data: value.Object(nil)}
	arr := Literal{[]any{1.0, 2.0}}

	// typeof with zero args still succeeds (returns "null"), so use an
	// explicitly malformed node to force INTERNAL_ERROR from the default
	// arm and confirm it propagates out of the combinator.
	badPredicate := unknownNode{}

	_, err := Evaluate(Collection{Op: OpMap, Array: arr, Predicate: badPredicate}, ctx)
	if err == nil {
		t.Fatal("expected predicate error to propagate")
	}
	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %s, want INTERNAL_ERROR", err.Code)
	}
}

type unknownNode struct{}

func (unknownNode) exprNode() {}

func TestGetScopePrecedence(t *testing.T) {
	ctx := Context{
		Data: value.Object(map[string]value.Value{"count": value.Num(1)}),
		Input: value.Object(map[string]value.Value{"count": value.Num(2)}),
	}
	v, err := Evaluate(Get{"input.count"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mustNum(t, v) != 2 {
		t.Errorf("input.count = %v, want 2", v)
	}
	v, _ = Evaluate(Get{"data.count"}, ctx)
	if mustNum(t, v) != 1 {
		t.Errorf("data.count = %v, want 1", v)
	}
}
