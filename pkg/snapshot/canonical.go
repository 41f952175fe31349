package snapshot

import (
	"strings"

	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Canonical returns s.Data with every top-level `$`-prefixed key
// removed. The result is used for hashing, delta generation and as the
// shape callers of WorldStore.Restore see.
func Canonical(data value.Value) value.Value {
	fields, ok := data.AsObject()
	if !ok {
		return data
	}
	out := make(map[string]value.Value, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	return value.Object(out)
}

// Hash computes snapshotHash = SHA-256(JCS(canonicalSnapshot)). Only
// `data` (canonicalized) participates — computed/input/system/meta are
// not part of the hash, so the hash stays invariant under edits to any
// data.$* namespace, and meta.timestamp/randomSeed (per-job
// host-assigned values) never perturb content addressing.
func Hash(s Snapshot) string {
	return value.Hash(Canonical(s.Data))
}
