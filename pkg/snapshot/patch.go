package snapshot

import (
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

type Op string

const (
	OpSet   Op = "set"
	OpUnset Op = "unset"
	OpMerge Op = "merge"
)

// Patch is a structural edit: {op, path, value?}. Path addresses data.*
// or system.*.
type Patch struct {
	Op    Op
	Path  string
	Value value.Value
}

// Apply applies a single patch to snapshot, validating (when validator is
// non-nil) the patch value against the field spec at Path before mutating.
// validator is a func(path string, v value.Value) *flowerr.Error — see
// pkg/schema for the concrete implementation; it is injected here rather
// than imported to avoid a snapshot<->schema import cycle (schema depends
// on snapshot's Value/Patch types to describe field shapes).
func Apply(s Snapshot, p Patch, validate func(path string, v value.Value) *flowerr.Error) (Snapshot, *flowerr.Error) {
	path := value.ParsePath(p.Path)
	if len(path) == 0 {
		return s, flowerr.New(flowerr.CodePathNotFound, "empty patch path")
	}

	if p.Op != OpUnset && validate != nil {
		if err := validate(p.Path, p.Value); err != nil {
			return s, err
		}
	}

	switch path[0] {
	case "data":
		next, err := applyToTree(s.Data, path[1:], p)
		if err != nil {
			return s, err
		}
		s.Data = next
		return s, nil
	case "system":
		sysTree := systemToValue(s.System)
		next, err := applyToTree(sysTree, path[1:], p)
		if err != nil {
			return s, err
		}
		s.System = systemFromValue(next)
		return s, nil
	default:
		return s, flowerr.New(flowerr.CodePathNotFound, "patch path must be rooted at data.* or system.*").WithNodePath(p.Path)
	}
}

// ApplyAll applies patches in order, stopping at the first error.
func ApplyAll(s Snapshot, patches []Patch, validate func(path string, v value.Value) *flowerr.Error) (Snapshot, *flowerr.Error) {
	for _, p := range patches {
		var err *flowerr.Error
		s, err = Apply(s, p, validate)
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func applyToTree(tree value.Value, subPath value.Path, p Patch) (value.Value, *flowerr.Error) {
	switch p.Op {
	case OpSet:
		return value.Set(tree, subPath, p.Value), nil
	case OpUnset:
		return value.Unset(tree, subPath), nil
	case OpMerge:
		if _, ok := p.Value.AsObject(); !ok {
			return tree, flowerr.New(flowerr.CodeTypeMismatch, "merge requires an object value").WithNodePath(p.Path)
		}
		return value.Merge(tree, subPath, p.Value), nil
	default:
		return tree, flowerr.New(flowerr.CodeInternalError, "unknown patch op")
	}
}
