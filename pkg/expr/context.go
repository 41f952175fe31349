package expr

import "github.com/manifesto-ai/intentcore/pkg/value"

// Context bundles the scopes Get(path) resolves against, in the fixed
// precedence order: collection variables ($item/$index/
// $array), input.*, meta.*, computed.<name>, system.*, then data.*.
type Context struct {
	Item  *value.Value // $item, when inside a combinator predicate
	Index *int         // $index
	Array *value.Value // $array

	Input    value.Value // the `input` snapshot field
	Meta     value.Value // the `meta` snapshot field
	Computed value.Value // the `computed` snapshot field (keys already "computed.<name>")
	System   value.Value // the `system` snapshot field
	Data     value.Value // the `data` snapshot field

	ActionName string // for error attribution
}

// WithItem returns a child context binding $item/$index/$array for a
// combinator predicate evaluation.
func (c Context) WithItem(item value.Value, index int, array value.Value) Context {
	child := c
	child.Item = &item
	child.Index = &index
	child.Array = &array
	return child
}

// Resolve implements the get(path) scope-precedence search.
func (c Context) Resolve(path string) (value.Value, bool) {
	switch path {
	case "$item":
		if c.Item != nil {
			return *c.Item, true
		}
		return value.Null, false
	case "$index":
		if c.Index != nil {
			return value.Num(float64(*c.Index)), true
		}
		return value.Null, false
	case "$array":
		if c.Array != nil {
			return *c.Array, true
		}
		return value.Null, false
	}

	p := value.ParsePath(path)
	if len(p) == 0 {
		return value.Null, false
	}

	switch p[0] {
	case "$item":
		if c.Item == nil {
			return value.Null, false
		}
		return value.Get(*c.Item, p[1:])
	case "$array":
		if c.Array == nil {
			return value.Null, false
		}
		return value.Get(*c.Array, p[1:])
	case "input":
		return value.Get(c.Input, p[1:])
	case "meta":
		return value.Get(c.Meta, p[1:])
	case "computed":
		// Snapshot.computed maps the *full* dotted key ("computed.<name>")
		// to its last-materialized value — not a nested tree —
		// so the lookup key is the whole path, not p[1:].
		return value.Get(c.Computed, value.Path{path})
	case "system":
		return value.Get(c.System, p[1:])
	case "data":
		return value.Get(c.Data, p[1:])
	default:
		// A bare name (no recognized root) is looked up in data.* as a
		// convenience for schema authors who write `get("count")`
		// instead of `get("data.count")`.
		if v, ok := value.Get(c.Data, p); ok {
			return v, true
		}
		return value.Null, false
	}
}
