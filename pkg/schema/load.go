package schema

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/manifesto-ai/intentcore/pkg/value"
)

// docMeta carries the schema's identity fields through a
// defaults->validate pipeline: creasty/defaults seeds Version when the
// authoring document omits it, then go-playground/validator enforces
// ID is non-empty before the rest of the document is compiled.
type docMeta struct {
	ID      string `yaml:"id" validate:"required"`
	Version string `yaml:"version" default:"0.1.0"`
}

var docValidator = validator.New()

// rawDoc mirrors the authoring document's top-level shape; the nested
// state/computed/actions trees stay as generic `any` because their
// structure is recursive (FieldSpec/expr.Node/flow.Node), decoded by
// the builders in decode.go rather than by struct tags.
type rawDoc struct {
	ID       string                    `yaml:"id"`
	Version  string                    `yaml:"version"`
	State    any                       `yaml:"state"`
	Computed map[string]rawComputedDef `yaml:"computed"`
	Actions  map[string]rawActionDef   `yaml:"actions"`
}

type rawComputedDef struct {
	Deps []string `yaml:"deps"`
	Expr any      `yaml:"expr"`
}

type rawActionDef struct {
	Flow      any `yaml:"flow"`
	Available any `yaml:"available"`
}

// Load parses a YAML domain-schema authoring document into a
// DomainSchema, validating identity fields and compiling every nested
// field spec / computed expression / action flow. Hash is computed over
// the document's canonical JCS form so two schemas with identical
// semantics (key order aside) share a Hash, matching the rest of the
// system's content-addressing scheme (pkg/value.Hash).
func Load(doc []byte) (*DomainSchema, error) {
	var raw rawDoc
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}

	meta := docMeta{ID: raw.ID, Version: raw.Version}
	if err := defaults.Set(&meta); err != nil {
		return nil, fmt.Errorf("apply schema defaults: %w", err)
	}
	if err := docValidator.Struct(meta); err != nil {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}

	state, err := buildFieldSpec(raw.State)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}

	computed := make(map[string]ComputedField, len(raw.Computed))
	for name, def := range raw.Computed {
		n, err := buildExprNode(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("computed %q: %w", name, err)
		}
		computed[name] = ComputedField{Expr: n, Deps: def.Deps}
	}

	actions := make(map[string]Action, len(raw.Actions))
	for name, def := range raw.Actions {
		flowNode, err := buildFlowNode(def.Flow)
		if err != nil {
			return nil, fmt.Errorf("action %q flow: %w", name, err)
		}
		a := Action{Flow: flowNode}
		if def.Available != nil {
			a.Available, err = buildExprNode(def.Available)
			if err != nil {
				return nil, fmt.Errorf("action %q available: %w", name, err)
			}
		}
		actions[name] = a
	}

	schema := &DomainSchema{
		ID:       meta.ID,
		Version:  meta.Version,
		State:    state,
		Computed: computed,
		Actions:  actions,
	}
	schema.Hash = value.Hash(value.FromGo(generic))
	return schema, nil
}
