package host

import (
	"context"
	"testing"
	"time"

	"github.com/manifesto-ai/intentcore/pkg/effect"
	"github.com/manifesto-ai/intentcore/pkg/expr"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/memoryctx"
	"github.com/manifesto-ai/intentcore/pkg/schema"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

func fixedClock(ts int64) Clock {
	return func() int64 { return ts }
}

// incrementSchema builds a single-action domain schema whose action is a
// bare patch: data.count = data.count + 1. No effects involved.
func incrementSchema() *schema.DomainSchema {
	flowNode := flow.Patch{
		Op:   flow.PatchSet,
		Path: "data.count",
		Value: expr.Arithmetic{
			Op:   expr.OpAdd,
			Args: []expr.Node{expr.Get{Path: "data.count"}, expr.Literal{Value: 1.0}},
		},
	}
	return &schema.DomainSchema{
		ID:      "counter",
		Version: "0.1.0",
		Hash:    "test-hash-counter",
		State:   &schema.FieldSpec{Type: schema.FieldObject, Fields: map[string]*schema.FieldSpec{
			"count": {Type: schema.FieldNumber},
		}},
		Actions: map[string]schema.Action{
			"increment": {Flow: flowNode},
		},
	}
}

// fetchSchema declares an action that queues one "http.fetch" effect and
// then patches its result into data.fetched.
func fetchSchema() *schema.DomainSchema {
	fetchFlow := flow.Seq{Steps: []flow.Node{
		flow.Effect{Type: "http.fetch", Params: map[string]expr.Node{
			"url": expr.Literal{Value: "https://example.invalid/resource"},
		}},
	}}
	return &schema.DomainSchema{
		ID:      "fetcher",
		Version: "0.1.0",
		Hash:    "test-hash-fetcher",
		State: &schema.FieldSpec{Type: schema.FieldObject, Fields: map[string]*schema.FieldSpec{
			"fetched": {Type: schema.FieldAny, Optional: true},
		}},
		Actions: map[string]schema.Action{
			"fetch": {Flow: fetchFlow},
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

func TestDispatchSimplePatchCompletesInOneIteration(t *testing.T) {
	h := New(incrementSchema(), nil, fixedClock(1000), nil, nil)

	res, err := h.Dispatch(context.Background(), "intent-1", "increment", value.Object(nil), emptySnapshot())
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if res.Status != flow.StatusComplete {
		t.Fatalf("status = %v, want complete", res.Status)
	}
	v, _ := value.Get(res.Snapshot.Data, value.ParsePath("count"))
	if n, _ := v.AsNum(); n != 1 {
		t.Errorf("count = %v, want 1", n)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
}

func TestDispatchEffectFulfillContinueTerminatesInTwoCycles(t *testing.T) {
	h := New(fetchSchema(), nil, fixedClock(2000), nil, nil)
	h.RegisterEffect("http.fetch", func(ctx context.Context, typ string, params value.Value, hostCtx effect.Context) ([]snapshot.Patch, *flowerr.Error) {
		return []snapshot.Patch{
			{Op: snapshot.OpSet, Path: "data.fetched", Value: value.Str("ok")},
		}, nil
	})

	res, err := h.Dispatch(context.Background(), "intent-2", "fetch", value.Object(nil), emptySnapshot())
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if res.Status != flow.StatusComplete {
		t.Fatalf("status = %v, want complete, err=%v", res.Status, res.Error)
	}
	v, _ := value.Get(res.Snapshot.Data, value.ParsePath("fetched"))
	if s, _ := v.AsStr(); s != "ok" {
		t.Errorf("fetched = %v, want ok", s)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2 (queue cycle + continue cycle)", res.Iterations)
	}
}

func TestDispatchUnknownActionFails(t *testing.T) {
	h := New(incrementSchema(), nil, fixedClock(1000), nil, nil)
	res, err := h.Dispatch(context.Background(), "intent-3", "not-an-action", value.Object(nil), emptySnapshot())
	if err != nil {
		t.Fatalf("dispatch transport error: %v", err)
	}
	if res.Status != flow.StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	if res.Error == nil || res.Error.Code != flowerr.CodeUnknownFlow {
		t.Fatalf("error = %v, want UNKNOWN_FLOW", res.Error)
	}
}

func TestReEntryWithSameIntentIDIsReproducible(t *testing.T) {
	h1 := New(incrementSchema(), nil, fixedClock(5000), nil, nil)
	res1, _ := h1.Dispatch(context.Background(), "intent-repeat", "increment", value.Object(nil), emptySnapshot())

	h2 := New(incrementSchema(), nil, fixedClock(5000), nil, nil)
	res2, _ := h2.Dispatch(context.Background(), "intent-repeat", "increment", value.Object(nil), emptySnapshot())

	v1, _ := value.Get(res1.Snapshot.Data, value.ParsePath("count"))
	v2, _ := value.Get(res2.Snapshot.Data, value.ParsePath("count"))
	n1, _ := v1.AsNum()
	n2, _ := v2.AsNum()
	if n1 != n2 {
		t.Fatalf("re-dispatching the same intentId against the same base snapshot produced different results: %v vs %v", n1, n2)
	}
}

func TestMaxIterationsExceeded(t *testing.T) {
	loopFlow := flow.Seq{Steps: []flow.Node{
		flow.Call{FlowName: "loop"},
	}}
	s := &schema.DomainSchema{
		ID:      "looper",
		Version: "0.1.0",
		Hash:    "test-hash-looper",
		State:   &schema.FieldSpec{Type: schema.FieldObject},
		Actions: map[string]schema.Action{
			"loop": {Flow: loopFlow},
		},
	}
	h := New(s, nil, fixedClock(1), nil, nil)
	h.maxIterations = 3

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Dispatch(ctx, "intent-loop", "loop", value.Object(nil), emptySnapshot())
	if err != nil {
		t.Fatalf("dispatch transport error: %v", err)
	}
	if res.Status != flow.StatusError || res.Error == nil || res.Error.Code != flowerr.CodeMaxIterationsExceeded {
		t.Fatalf("result = %+v, want MAX_ITERATIONS_EXCEEDED", res)
	}
}

func TestStaleFulfillmentIsDropped(t *testing.T) {
	h := New(fetchSchema(), nil, fixedClock(1), nil, nil)
	h.RegisterEffect("http.fetch", func(ctx context.Context, typ string, params value.Value, hostCtx effect.Context) ([]snapshot.Patch, *flowerr.Error) {
		return []snapshot.Patch{{Op: snapshot.OpSet, Path: "data.fetched", Value: value.Str("ok")}}, nil
	})

	st := h.getOrCreateIntent("intent-stale")
	st.action = "fetch"
	st.snapshot = emptySnapshot().WithMeta(snapshot.Meta{Version: 5})
	st.pending = map[string]flow.Requirement{"req-1": {ID: "req-1", Type: "http.fetch"}}

	h.process(context.Background(), FulfillEffect{
		IntentID:      "intent-stale",
		RequirementID: "req-1",
		AtVersion:     1,
		Patches:       []snapshot.Patch{{Op: snapshot.OpSet, Path: "data.fetched", Value: value.Str("stale")}},
	})

	if _, stillPending := st.pending["req-1"]; stillPending {
		t.Fatal("stale fulfillment should still clear the pending entry")
	}
	v, _ := value.Get(st.snapshot.Data, value.ParsePath("fetched"))
	if !v.IsNull() {
		t.Errorf("stale fulfillment must not apply its patches, got %v", v)
	}
}

func TestStartIntentFreezesReplaySeedAndRecalls(t *testing.T) {
	h := New(incrementSchema(), nil, fixedClock(1000), nil, nil)
	h.SetRecall(func(intentID string, input value.Value) []memoryctx.Recall {
		return []memoryctx.Recall{{Key: "lastProject", Value: value.Str("alpha")}}
	})

	res, err := h.Dispatch(context.Background(), "intent-recall", "increment", value.Object(nil), emptySnapshot())
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}

	seed, ok := memoryctx.Get(res.Snapshot.Input, "replaySeed")
	if !ok {
		t.Fatal("input.$app.replaySeed must be frozen on StartIntent")
	}
	if s, _ := seed.AsStr(); s != derivedSeed("intent-recall") {
		t.Errorf("replaySeed = %v, want the seed derived from the intent id", seed)
	}
	recalled, ok := memoryctx.Get(res.Snapshot.Input, "lastProject")
	if !ok {
		t.Fatal("registered recall must be frozen into input.$app")
	}
	if s, _ := recalled.AsStr(); s != "alpha" {
		t.Errorf("recalled value = %v, want alpha", recalled)
	}
}
