// Package schema implements DomainSchema, its FieldSpec tree, and
// patch-value validation against that tree (TYPE_MISMATCH /
// PATH_NOT_FOUND). Loading follows a defaults -> merge -> validate
// pipeline.
package schema

import (
	"fmt"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// FieldType enumerates the primitive/composite shapes a FieldSpec can
// describe.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
	FieldAny     FieldType = "any"
)

// FieldSpec describes the shape expected at one node of state.fields.
// Object specs carry named child Fields; array specs carry a single
// Items spec describing every element.
type FieldSpec struct {
	Type     FieldType            `yaml:"type"`
	Fields   map[string]*FieldSpec `yaml:"fields,omitempty"`
	Items    *FieldSpec            `yaml:"items,omitempty"`
	Optional bool                  `yaml:"optional,omitempty"`
}

// Conforms reports whether v structurally matches spec. FieldAny always
// conforms; null conforms only to an Optional spec, so a null value
// set on a non-optional field is a type mismatch (unset patches are
// not validated, see pkg/snapshot.Apply).
func (spec *FieldSpec) Conforms(v value.Value) bool {
	if spec == nil || spec.Type == FieldAny {
		return true
	}
	if v.IsNull() {
		return spec.Optional
	}
	switch spec.Type {
	case FieldString:
		_, ok := v.AsStr()
		return ok
	case FieldNumber:
		_, ok := v.AsNum()
		return ok
	case FieldBoolean:
		_, ok := v.AsBool()
		return ok
	case FieldObject:
		fields, ok := v.AsObject()
		if !ok {
			return false
		}
		for name, child := range spec.Fields {
			fv, present := fields[name]
			if !present {
				if child != nil && !child.Optional {
					return false
				}
				continue
			}
			if !child.Conforms(fv) {
				return false
			}
		}
		return true
	case FieldArray:
		items, ok := v.AsArray()
		if !ok {
			return false
		}
		if spec.Items == nil {
			return true
		}
		for _, it := range items {
			if !spec.Items.Conforms(it) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Lookup walks spec following the (already data/system-root-stripped)
// path, returning the FieldSpec describing the terminal node, or
// (nil, false) if the path isn't declared.
func (spec *FieldSpec) Lookup(path value.Path) (*FieldSpec, bool) {
	cur := spec
	for _, seg := range path {
		if cur == nil {
			return nil, false
		}
		switch cur.Type {
		case FieldObject:
			child, ok := cur.Fields[seg]
			if !ok {
				return nil, false
			}
			cur = child
		case FieldArray:
			cur = cur.Items
		case FieldAny:
			return cur, true
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// ValidatePatchValue is the callback pkg/snapshot.Apply and pkg/flow's
// `patch` node expect: it resolves the FieldSpec at path within the
// schema's state.fields tree and checks v against it.
func (d *DomainSchema) ValidatePatchValue(path string, v value.Value) *flowerr.Error {
	p := value.ParsePath(path)
	if len(p) == 0 || p[0] != "data" {
		// system.* patches (and any other root) are framework-owned and
		// not validated against the domain's state.fields tree.
		return nil
	}
	spec, ok := d.State.Lookup(p[1:])
	if !ok {
		return flowerr.New(flowerr.CodePathNotFound, fmt.Sprintf("path %q is not declared in the schema", path)).WithNodePath(path)
	}
	if !spec.Conforms(v) {
		return flowerr.New(flowerr.CodeTypeMismatch, fmt.Sprintf("value at %q does not conform to its field spec", path)).WithNodePath(path)
	}
	return nil
}
