// Package expr implements the closed ExprNode AST and its pure, total
// evaluator. Every node kind is a distinct Go type satisfying
// the Node interface; Evaluate switches over a closed set with no default
// "unknown kind" fallthrough other than the INTERNAL_ERROR case required
// for forward-compatibility with AST versions this build
// doesn't know about.
package expr

// Node is implemented by every ExprNode variant. The marker method keeps
// the set closed to this package — external packages cannot add new
// node kinds — a closed tagged-variant design.
type Node interface {
	exprNode()
}

// Literal is a constant value node. The literal's Go value is stored as
// `any` and converted to value.Value at evaluation time via value.FromGo,
// so literals can hold nested object/array structure straight from a
// schema's JSON/YAML-decoded action body.
type Literal struct{ Value any }

// Get resolves a dotted path against the evaluation scopes
// (get(path) semantics).
type Get struct{ Path string }

type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNeq CompareOp = "neq"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
)

type Comparison struct {
	Op          CompareOp
	Left, Right Node
}

type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
)

// Logical covers and/or (Left+Right) and not (Left only, Right nil).
type Logical struct {
	Op          LogicalOp
	Left, Right Node
}

type Conditional struct {
	Cond, Then, Else Node
}

type ArithOp string

const (
	OpAdd   ArithOp = "add"
	OpSub   ArithOp = "sub"
	OpMul   ArithOp = "mul"
	OpDiv   ArithOp = "div"
	OpMod   ArithOp = "mod"
	OpNeg   ArithOp = "neg"
	OpAbs   ArithOp = "abs"
	OpMin   ArithOp = "min"
	OpMax   ArithOp = "max"
	OpFloor ArithOp = "floor"
	OpCeil  ArithOp = "ceil"
	OpRound ArithOp = "round"
	OpSqrt  ArithOp = "sqrt"
	OpPow   ArithOp = "pow"
)

// Arithmetic covers every numeric builtin. Binary ops (add/sub/mul/div/
// mod/min/max/pow) use Args[0] and Args[1]; unary ops (neg/abs/floor/
// ceil/round/sqrt) use Args[0] only; min/max may take >2 Args.
type Arithmetic struct {
	Op   ArithOp
	Args []Node
}

type ArrayAggOp string

const (
	OpSumArray ArrayAggOp = "sumArray"
	OpMinArray ArrayAggOp = "minArray"
	OpMaxArray ArrayAggOp = "maxArray"
)

type ArrayAggregate struct {
	Op    ArrayAggOp
	Array Node
}

type StringOp string

const (
	OpConcat      StringOp = "concat"
	OpSubstring   StringOp = "substring"
	OpTrim        StringOp = "trim"
	OpToLowerCase StringOp = "toLowerCase"
	OpToUpperCase StringOp = "toUpperCase"
	OpStrLen      StringOp = "strLen"
	OpToString    StringOp = "toString"
)

// StringExpr covers string builtins. Concat takes any number of Args.
// Substring takes (str, start, end?). Others take a single Arg.
type StringExpr struct {
	Op   StringOp
	Args []Node
}

type CollectionOp string

const (
	OpLen      CollectionOp = "len"
	OpAt       CollectionOp = "at"
	OpFirst    CollectionOp = "first"
	OpLast     CollectionOp = "last"
	OpSlice    CollectionOp = "slice"
	OpIncludes CollectionOp = "includes"
	OpFilter   CollectionOp = "filter"
	OpMap      CollectionOp = "map"
	OpFind     CollectionOp = "find"
	OpEvery    CollectionOp = "every"
	OpSome     CollectionOp = "some"
	OpAppend   CollectionOp = "append"
)

// Collection covers len/at/first/last/slice/includes/append directly
// (Array + Args) and the combinators filter/map/find/every/some, which
// bind $item/$index/$array in a child context while evaluating Predicate.
type Collection struct {
	Op        CollectionOp
	Array     Node
	Args      []Node // at: [index]; slice: [start, end?]; includes: [needle]; append: [value]
	Predicate Node   // filter/map/find/every/some
}

type ObjectOp string

const (
	OpObjectLit ObjectOp = "object"
	OpKeys      ObjectOp = "keys"
	OpValues    ObjectOp = "values"
	OpEntries   ObjectOp = "entries"
	OpObjMerge  ObjectOp = "merge"
)

// ObjectExpr covers object builtins. Fields populates an "object" literal
// node (ordered by Go map iteration is irrelevant — evaluation produces a
// value.Object, which is unordered by definition). Source is the operand
// for keys/values/entries. Merge takes two or more Args, each an object.
type ObjectExpr struct {
	Op     ObjectOp
	Fields map[string]Node
	Source Node
	Args   []Node
}

type TypeOp string

const (
	OpTypeof    TypeOp = "typeof"
	OpIsNull    TypeOp = "isNull"
	OpCoalesce  TypeOp = "coalesce"
)

type TypeExpr struct {
	Op   TypeOp
	Args []Node
}

func (Literal) exprNode()        {}
func (Get) exprNode()            {}
func (Comparison) exprNode()     {}
func (Logical) exprNode()        {}
func (Conditional) exprNode()    {}
func (Arithmetic) exprNode()     {}
func (ArrayAggregate) exprNode() {}
func (StringExpr) exprNode()     {}
func (Collection) exprNode()     {}
func (ObjectExpr) exprNode()     {}
func (TypeExpr) exprNode()       {}
