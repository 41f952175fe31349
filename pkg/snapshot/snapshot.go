// Package snapshot implements the immutable Snapshot record,
// canonicalization and hashing for the world graph, and structural
// patch application.
package snapshot

import (
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Status is system.status.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusComputing Status = "computing"
	StatusPending   Status = "pending"
	StatusError     Status = "error"
)

// System is the `system` snapshot field. It is kept as a distinct
// struct rather than folded into Data's generic Value tree because the
// host and proposal FSM read/write it by name far more than flow bodies
// do; patch application still addresses it via "system.*" dotted paths
// by projecting to/from a value.Value tree (see systemToValue/
// systemFromValue below) so the same Patch machinery covers both data and system
// roots.
type System struct {
	Status              Status
	LastError           *flowerr.Error
	Errors              []*flowerr.Error
	PendingRequirements []string
	CurrentAction       string
}

// Meta is the `meta` snapshot field. Version/Timestamp/RandomSeed are
// set exactly once per job by the host — never by the evaluator — so
// nothing in pkg/expr or pkg/flow constructs a Meta value.
type Meta struct {
	Version    uint64
	Timestamp  int64
	RandomSeed string
	SchemaHash string
}

// Snapshot is the immutable record the evaluator transforms. All
// operations that "change" a Snapshot return a new value; nothing here
// mutates an existing Snapshot in place.
type Snapshot struct {
	Data     value.Value // domain payload, incl. reserved $-prefixed top-level keys
	Computed value.Value // "computed.<name>" -> last-materialized value
	Input    value.Value // per-intent input plus reserved $app slot
	System   System
	Meta     Meta
}

// systemToValue projects System onto a value.Value tree so patch
// application can address "system.*" paths uniformly with "data.*".
func systemToValue(s System) value.Value {
	errs := make([]value.Value, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = value.FromGo(e.ToMap())
	}
	pending := make([]value.Value, len(s.PendingRequirements))
	for i, r := range s.PendingRequirements {
		pending[i] = value.Str(r)
	}
	lastErr := value.Null
	if s.LastError != nil {
		lastErr = value.FromGo(s.LastError.ToMap())
	}
	return value.Object(map[string]value.Value{
		"status":              value.Str(string(s.Status)),
		"lastError":           lastErr,
		"errors":              value.Array(errs),
		"pendingRequirements": value.Array(pending),
		"currentAction":       value.Str(s.CurrentAction),
	})
}

// systemFromValue is the inverse of systemToValue, used after a patch has
// been applied to the projected tree.
func systemFromValue(v value.Value) System {
	fields, _ := v.AsObject()
	s := System{}
	if statusV, ok := fields["status"]; ok {
		if str, ok := statusV.AsStr(); ok {
			s.Status = Status(str)
		}
	}
	if currentV, ok := fields["currentAction"]; ok {
		if str, ok := currentV.AsStr(); ok {
			s.CurrentAction = str
		}
	}
	if pendingV, ok := fields["pendingRequirements"]; ok {
		if items, ok := pendingV.AsArray(); ok {
			for _, it := range items {
				if str, ok := it.AsStr(); ok {
					s.PendingRequirements = append(s.PendingRequirements, str)
				}
			}
		}
	}
	// lastError/errors are read-modify-written through the typed
	// SetLastError/AppendError helpers rather than through generic
	// patches in normal operation, so round-tripping them through the
	// Value tree is only needed for the rare flow-authored patch that
	// targets system.lastError directly; left as nil/empty otherwise.
	return s
}

// SetLastError returns a copy of the System with LastError replaced.
func (s System) SetLastError(e *flowerr.Error) System {
	s.LastError = e
	return s
}

// AppendError returns a copy of the System with e appended to Errors.
// The backing array is copied so earlier snapshots never observe the
// append.
func (s System) AppendError(e *flowerr.Error) System {
	s.Errors = append(append([]*flowerr.Error(nil), s.Errors...), e)
	return s
}

// WithSystem returns a copy of the snapshot with System replaced.
func (s Snapshot) WithSystem(sys System) Snapshot {
	cp := s
	cp.System = sys
	return cp
}

// WithMeta returns a copy of the snapshot with Meta replaced. Only the
// host (pkg/host) should call this.
func (s Snapshot) WithMeta(m Meta) Snapshot {
	cp := s
	cp.Meta = m
	return cp
}

// NextVersion returns a Meta with Version = s.Meta.Version+1 and the
// other fields copied from m, enforcing monotone versioning.
func (s Snapshot) NextVersion(m Meta) Meta {
	m.Version = s.Meta.Version + 1
	return m
}
