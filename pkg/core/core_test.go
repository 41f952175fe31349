package core

import (
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/schema"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

func counterSchema() *schema.DomainSchema {
	return &schema.DomainSchema{
		ID:      "counter",
		Version: "0.1.0",
		Hash:    "core-test-counter",
		State: &schema.FieldSpec{Type: schema.FieldObject, Fields: map[string]*schema.FieldSpec{
			"count": {Type: schema.FieldNumber},
		}},
		Computed: map[string]schema.ComputedField{
			"doubled": {
				Deps: []string{"data.count"},
				Expr: expr.Arithmetic{Op: expr.OpMul, Args: []expr.Node{
					expr.Get{Path: "data.count"}, expr.Literal{Value: 2.0},
				}},
			},
		},
		Actions: map[string]schema.Action{
			"increment": {Flow: flow.Patch{
				Op:   flow.PatchSet,
				Path: "data.count",
				Value: expr.Arithmetic{Op: expr.OpAdd, Args: []expr.Node{
					expr.Get{Path: "data.count"}, expr.Literal{Value: 1.0},
				}},
			}},
		},
	}
}

func emptySnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Data:     value.Object(map[string]value.Value{"count": value.Num(0)}),
		Computed: value.Object(nil),
		Input:    value.Object(nil),
	}
}

func TestComputeAppliesActionAndRematerializesComputed(t *testing.T) {
	s := counterSchema()
	res := Compute(s, emptySnapshot(), Intent{IntentID: "i1", Action: "increment"}, Context{Now: 1000, RandomSeed: "seed"})
	if res.Status != flow.StatusRunning && res.Status != flow.StatusComplete {
		t.Fatalf("status = %v, want running/complete", res.Status)
	}
	count, _ := value.Get(res.Snapshot.Data, value.ParsePath("count"))
	if n, _ := count.AsNum(); n != 1 {
		t.Fatalf("count = %v, want 1", n)
	}
	doubled, _ := value.Get(res.Snapshot.Computed, value.Path{"computed.doubled"})
	if n, _ := doubled.AsNum(); n != 2 {
		t.Fatalf("computed.doubled = %v, want 2 (rematerialized from the patched count)", n)
	}
	if res.Snapshot.Meta.Version != emptySnapshot().Meta.Version+1 {
		t.Errorf("version did not advance monotonically")
	}
}

func TestComputeRejectsUnavailableAction(t *testing.T) {
	s := counterSchema()
	s.Actions["increment"] = schema.Action{
		Flow:      s.Actions["increment"].Flow,
		Available: expr.Literal{Value: false},
	}
	res := Compute(s, emptySnapshot(), Intent{IntentID: "i1", Action: "increment"}, Context{Now: 1})
	if res.Status != flow.StatusError || res.Error == nil || res.Error.Code != flowerr.CodeValidationError {
		t.Fatalf("result = %+v, want VALIDATION_ERROR for an unavailable action", res)
	}
	count, _ := value.Get(res.Snapshot.Data, value.ParsePath("count"))
	if n, _ := count.AsNum(); n != 0 {
		t.Fatalf("an unavailable action must not have run its flow; count = %v", n)
	}
}

func TestComputeUnknownActionYieldsUnknownFlow(t *testing.T) {
	res := Compute(counterSchema(), emptySnapshot(), Intent{IntentID: "i1", Action: "nope"}, Context{Now: 1})
	if res.Status != flow.StatusError || res.Error == nil || res.Error.Code != flowerr.CodeUnknownFlow {
		t.Fatalf("result = %+v, want UNKNOWN_FLOW", res)
	}
}

func TestApplyBumpsVersionAndRematerializes(t *testing.T) {
	s := counterSchema()
	next, err := Apply(s, emptySnapshot(), []snapshot.Patch{
		{Op: snapshot.OpSet, Path: "data.count", Value: value.Num(5)},
	}, Context{Now: 42, RandomSeed: "r"})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if next.Meta.Version != 1 {
		t.Errorf("version = %d, want 1", next.Meta.Version)
	}
	if next.Meta.Timestamp != 42 {
		t.Errorf("timestamp = %d, want 42", next.Meta.Timestamp)
	}
	doubled, _ := value.Get(next.Computed, value.Path{"computed.doubled"})
	if n, _ := doubled.AsNum(); n != 10 {
		t.Fatalf("computed.doubled = %v, want 10", n)
	}
}

func TestApplyRejectsTypeMismatch(t *testing.T) {
	s := counterSchema()
	_, err := Apply(s, emptySnapshot(), []snapshot.Patch{
		{Op: snapshot.OpSet, Path: "data.count", Value: value.Str("nope")},
	}, Context{})
	if err == nil || err.Code != flowerr.CodeTypeMismatch {
		t.Fatalf("err = %v, want TYPE_MISMATCH", err)
	}
}

func TestExplainReturnsComputedValueTraceAndDeps(t *testing.T) {
	s := counterSchema()
	snap := emptySnapshot()
	snap.Data = value.Object(map[string]value.Value{"count": value.Num(7)})

	res := Explain(s, snap, "computed.doubled")
	n, _ := res.Value.AsNum()
	if n != 14 {
		t.Fatalf("value = %v, want 14", n)
	}
	if res.Trace == nil {
		t.Fatal("expected a trace node for a computed-field explain")
	}
	if len(res.Deps) != 1 || res.Deps[0] != "data.count" {
		t.Fatalf("deps = %v, want [data.count]", res.Deps)
	}
}

func TestExplainFallsBackToPlainLookupForNonComputedPath(t *testing.T) {
	s := counterSchema()
	snap := emptySnapshot()
	snap.Data = value.Object(map[string]value.Value{"count": value.Num(3)})

	res := Explain(s, snap, "data.count")
	n, _ := res.Value.AsNum()
	if n != 3 {
		t.Fatalf("value = %v, want 3", n)
	}
	if res.Trace != nil {
		t.Errorf("plain lookups should not carry a trace")
	}
}

func TestRematerializeNoopWithoutComputedFields(t *testing.T) {
	snap := emptySnapshot()
	out := Rematerialize(nil, snap)
	if out.Computed.Kind() != snap.Computed.Kind() {
		t.Fatalf("Rematerialize with nil schema must be a no-op")
	}
}

func TestComputeThreadsSystemStatus(t *testing.T) {
	s := counterSchema()

	res := Compute(s, emptySnapshot(), Intent{IntentID: "i-sys", Action: "increment"}, Context{Now: 100, RandomSeed: "seed"})
	if res.Snapshot.System.Status != snapshot.StatusIdle {
		t.Errorf("terminal status = %v, want idle", res.Snapshot.System.Status)
	}
	if res.Snapshot.System.CurrentAction != "" {
		t.Errorf("currentAction = %q, want cleared after a terminal cycle", res.Snapshot.System.CurrentAction)
	}

	s.Actions["explode"] = schema.Action{Flow: flow.Fail{Code: "boom"}}
	res = Compute(s, emptySnapshot(), Intent{IntentID: "i-sys-2", Action: "explode"}, Context{Now: 200, RandomSeed: "seed"})
	if res.Status != flow.StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	sys := res.Snapshot.System
	if sys.Status != snapshot.StatusError {
		t.Errorf("system.status = %v, want error", sys.Status)
	}
	if sys.LastError == nil || sys.LastError.Code != flowerr.CodeValidationError {
		t.Fatalf("system.lastError = %v, want VALIDATION_ERROR", sys.LastError)
	}
	if sys.LastError.Timestamp != 200 {
		t.Errorf("lastError.timestamp = %d, want the frozen now (200)", sys.LastError.Timestamp)
	}
	if len(sys.Errors) != 1 {
		t.Errorf("system.errors length = %d, want 1", len(sys.Errors))
	}
	if sys.CurrentAction != "explode" {
		t.Errorf("currentAction = %q, want retained on error for diagnosis", sys.CurrentAction)
	}

	s.Actions["wait"] = schema.Action{Flow: flow.Effect{Type: "api:fetch", Params: map[string]expr.Node{}}}
	res = Compute(s, emptySnapshot(), Intent{IntentID: "i-sys-3", Action: "wait"}, Context{Now: 300, RandomSeed: "seed"})
	if res.Status != flow.StatusPending {
		t.Fatalf("status = %v, want pending", res.Status)
	}
	if res.Snapshot.System.Status != snapshot.StatusPending {
		t.Errorf("system.status = %v, want pending", res.Snapshot.System.Status)
	}
}
