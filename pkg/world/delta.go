package world

import (
	"sort"

	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// GenerateDelta computes the deterministic patch list that turns base's
// canonical snapshot into terminal's: canonicalize both (stripping
// `$`-prefixed top-level keys), walk the two trees structurally
// emitting `set` for additions/changes and `unset` for removals, then
// sort the result by path. Same input always yields a byte-identical
// patch list.
func GenerateDelta(fromWorld, toWorld string, base, terminal snapshot.Snapshot, now int64) WorldDelta {
	baseCanon := snapshot.Canonical(base.Data)
	termCanon := snapshot.Canonical(terminal.Data)

	var patches []snapshot.Patch
	diff(baseCanon, termCanon, "data", &patches)

	sort.Slice(patches, func(i, j int) bool { return patches[i].Path < patches[j].Path })

	return WorldDelta{FromWorld: fromWorld, ToWorld: toWorld, Patches: patches, CreatedAt: now}
}

// diff recursively compares base and term at prefix, appending patches to
// out. Two objects are compared key-by-key, recursing into keys present
// (and unequal) on both sides; any other type of change — scalar,
// array, or a type change — is emitted as a single `set` of the whole
// value at that path, since arrays and scalars have no finer-grained
// patch op.
func diff(base, term value.Value, prefix string, out *[]snapshot.Patch) {
	baseFields, baseIsObj := base.AsObject()
	termFields, termIsObj := term.AsObject()

	if !baseIsObj || !termIsObj {
		if !value.Equal(base, term) {
			*out = append(*out, snapshot.Patch{Op: snapshot.OpSet, Path: prefix, Value: term})
		}
		return
	}

	seen := make(map[string]bool, len(baseFields)+len(termFields))
	for k := range baseFields {
		seen[k] = true
	}
	for k := range termFields {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		childPath := prefix + "." + k
		bv, bok := baseFields[k]
		tv, tok := termFields[k]
		switch {
		case bok && !tok:
			*out = append(*out, snapshot.Patch{Op: snapshot.OpUnset, Path: childPath})
		case !bok && tok:
			*out = append(*out, snapshot.Patch{Op: snapshot.OpSet, Path: childPath, Value: tv})
		case bok && tok:
			if value.Equal(bv, tv) {
				continue
			}
			diff(bv, tv, childPath, out)
		}
	}
}
