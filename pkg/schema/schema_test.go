package schema

import (
	"strings"
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

const taskListDoc = `
id: task-list
version: "1.0.0"
state:
  type: object
  fields:
    tasks:
      type: array
      items:
        type: object
        fields:
          id: {type: string}
          title: {type: string}
          done: {type: boolean}
computed:
  totalTasks:
    deps: ["data.tasks"]
    expr:
      coll: len
      array: {get: data.tasks}
actions:
  createTask:
    flow:
      kind: patch
      op: merge
      path: data.tasks
      value: {lit: []}
`

func TestLoadParsesIdentityAndDefaults(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.ID != "task-list" {
		t.Errorf("ID = %q, want task-list", s.ID)
	}
	if s.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", s.Version)
	}
	if s.Hash == "" {
		t.Error("Hash must be populated")
	}
}

func TestLoadMissingIDFails(t *testing.T) {
	_, err := Load([]byte("version: \"1.0.0\"\nstate: {type: object}\n"))
	if err == nil {
		t.Fatal("expected validation error for missing id")
	}
}

func TestLoadAppliesVersionDefault(t *testing.T) {
	s, err := Load([]byte("id: x\nstate: {type: object}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Version != "0.1.0" {
		t.Errorf("Version = %q, want default 0.1.0", s.Version)
	}
}

func TestFieldSpecConformsObjectAndArray(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	good := value.Object(map[string]value.Value{
		"tasks": value.Array([]value.Value{
			value.Object(map[string]value.Value{
				"id": value.Str("t1"), "title": value.Str("write tests"), "done": value.Bool(false),
			}),
		}),
	})
	if !s.State.Conforms(good) {
		t.Error("well-formed task list must conform")
	}

	bad := value.Object(map[string]value.Value{
		"tasks": value.Array([]value.Value{value.Str("not-an-object")}),
	})
	if s.State.Conforms(bad) {
		t.Error("array of wrong-shaped items must not conform")
	}
}

func TestValidatePatchValueTypeMismatchAndPathNotFound(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := s.ValidatePatchValue("data.tasks", value.Str("oops")); err == nil || err.Code != "TYPE_MISMATCH" {
		t.Fatalf("want TYPE_MISMATCH, got %v", err)
	}

	if err := s.ValidatePatchValue("data.nonexistent", value.Num(1)); err == nil || err.Code != "PATH_NOT_FOUND" {
		t.Fatalf("want PATH_NOT_FOUND, got %v", err)
	}

	if err := s.ValidatePatchValue("system.status", value.Str("computing")); err != nil {
		t.Errorf("system.* paths must bypass domain field-spec validation, got %v", err)
	}
}

func TestLoadCompilesComputedAndActionFlows(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := s.Computed["totalTasks"]; !ok {
		t.Fatal("totalTasks computed field must be compiled")
	}
	if _, ok := s.Actions["createTask"]; !ok {
		t.Fatal("createTask action must be compiled")
	}
	if _, ok := s.ResolveAction("createTask"); !ok {
		t.Fatal("ResolveAction must resolve createTask")
	}
	if _, ok := s.ResolveAction("missing"); ok {
		t.Fatal("ResolveAction must report undeclared actions as absent")
	}
}

func TestLoadRejectsUnrecognizedFlowKind(t *testing.T) {
	_, err := Load([]byte("id: x\nstate: {type: object}\nactions:\n  a:\n    flow: {kind: bogus}\n"))
	if err == nil || !strings.Contains(err.Error(), "unrecognized flow node kind") {
		t.Fatalf("expected unrecognized flow node kind error, got %v", err)
	}
}

func TestCheckAvailableDefaultsToAvailable(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.CheckAvailable("createTask", expr.Context{}); err != nil {
		t.Errorf("action with no available expression must be available, got %v", err)
	}
}

func TestCheckAvailableEvaluatesGuard(t *testing.T) {
	doc := `
id: x
state: {type: object}
actions:
  gated:
    available: {lit: false}
    flow: {kind: halt}
`
	s, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.CheckAvailable("gated", expr.Context{}); err == nil || err.Code != "VALIDATION_ERROR" {
		t.Fatalf("want VALIDATION_ERROR for a falsy guard, got %v", err)
	}
}

func TestCheckAvailableUnknownAction(t *testing.T) {
	s, err := Load([]byte(taskListDoc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.CheckAvailable("missing", expr.Context{}); err == nil || err.Code != "UNKNOWN_FLOW" {
		t.Fatalf("want UNKNOWN_FLOW, got %v", err)
	}
}
