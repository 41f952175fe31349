// Package memoryctx implements the memory context freezer: it records
// a memory-recall result (or a replay seed) into a snapshot's
// `input.$app` slot so a later compute cycle — or a replay run
// reconstructing the same execution from recorded inputs — observes
// the identical recalled values rather than re-querying a live memory
// store. `$app` is the reserved input slot for engine-attached
// context; merges are "later writer wins".
package memoryctx

import "github.com/manifesto-ai/intentcore/pkg/value"

// Recall is one named memory-recall result to freeze into `input.$app`.
// Key is the slot name a flow's `get("input.$app.<key>")` will read;
// Value is whatever the recall produced, already converted to a
// value.Value (see pkg/value.FromGo for callers holding a raw Go tree).
type Recall struct {
	Key   string
	Value value.Value
}

// Freeze returns a copy of input with every recall written under its
// reserved `$app.<key>` slot, later entries in recalls overriding
// earlier ones with the same Key. input is never mutated in place,
// matching the rest of the system's copy-on-write discipline.
func Freeze(input value.Value, recalls ...Recall) value.Value {
	fields, ok := input.AsObject()
	out := make(map[string]value.Value, len(fields)+1)
	if ok {
		for k, v := range fields {
			out[k] = v
		}
	}

	appFields, ok := out["$app"].AsObject()
	merged := make(map[string]value.Value, len(appFields)+len(recalls))
	if ok {
		for k, v := range appFields {
			merged[k] = v
		}
	}
	for _, r := range recalls {
		merged[r.Key] = r.Value
	}
	out["$app"] = value.Object(merged)

	return value.Object(out)
}

// ReplaySeed freezes a single recorded replay seed under the reserved
// `$app.replaySeed` slot, so a replay run derives the same randomSeed
// stand-ins a live recall would have produced. Replay seeds travel
// through input, never through a separate ambient channel — the frozen
// context stays the sole source of non-determinism inside the pure
// core.
func ReplaySeed(input value.Value, seed string) value.Value {
	return Freeze(input, Recall{Key: "replaySeed", Value: value.Str(seed)})
}

// Get reads a previously frozen recall back out of input.$app.<key>.
func Get(input value.Value, key string) (value.Value, bool) {
	app, ok := input.AsObject()
	if !ok {
		return value.Null, false
	}
	appSlot, ok := app["$app"]
	if !ok {
		return value.Null, false
	}
	appFields, ok := appSlot.AsObject()
	if !ok {
		return value.Null, false
	}
	v, ok := appFields[key]
	return v, ok
}
