package hostapi

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/manifesto-ai/intentcore/internal/sampledomain"
	"github.com/manifesto-ai/intentcore/pkg/host"
	"github.com/manifesto-ai/intentcore/pkg/hostapi/metrics"
	"github.com/manifesto-ai/intentcore/pkg/proposal"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
	"github.com/manifesto-ai/intentcore/pkg/world"
)

func fixedClock(ts int64) host.Clock {
	return func() int64 { return ts }
}

// newTestRegistry gives each test its own Prometheus registry so
// promauto registration doesn't collide with the global default
// registerer across test functions.
func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newTestEngine(t *testing.T, authority proposal.Authority) (*Engine, string) {
	t.Helper()
	h := host.New(sampledomain.Schema(), nil, fixedClock(1000), nil, nil)
	worlds := world.NewMemoryStore(4)

	root := world.World{WorldID: "world-root", SchemaHash: "sampledomain-tasklist-v1", SnapshotHash: "root", CreatedAt: 1000}
	rootSnap := snapshot.Snapshot{Data: value.Object(map[string]value.Value{"tasks": value.Array(nil)})}
	if err := worlds.Store(root, nil, rootSnap); err != nil {
		t.Fatalf("seed root world: %v", err)
	}

	m := metrics.New(newTestRegistry())
	e := NewEngine(h, worlds, authority, m, nil)
	return e, root.WorldID
}

func TestSubmitIntentAutoApprovedCompletesAndStoresWorld(t *testing.T) {
	e, rootWorld := newTestEngine(t, proposal.AutoApprove{})

	input := value.Object(map[string]value.Value{"intentId": value.Str("i1"), "title": value.Str("write tests")})
	p, err := e.SubmitIntent(context.Background(), "alice", "createTask", input, rootWorld)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != proposal.StatusCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}
	if p.ResultWorld == "" {
		t.Fatal("expected a result world to be recorded")
	}

	snap, err := e.Worlds.Restore(p.ResultWorld)
	if err != nil {
		t.Fatalf("restore result world: %v", err)
	}
	tasks, _ := value.Get(snap.Data, value.ParsePath("tasks"))
	arr, _ := tasks.AsArray()
	if len(arr) != 1 {
		t.Fatalf("expected 1 task in the result world, got %d", len(arr))
	}
}

func TestSubmitIntentRejectedNeverExecutes(t *testing.T) {
	rejectAll := proposal.NewPolicy(func(p proposal.Proposal, _ snapshot.Snapshot) proposal.Decision {
		return proposal.Decision{Status: proposal.StatusRejected, DecisionID: "policy:no"}
	})
	e, rootWorld := newTestEngine(t, rejectAll)

	input := value.Object(map[string]value.Value{"intentId": value.Str("i1"), "title": value.Str("nope")})
	p, err := e.SubmitIntent(context.Background(), "alice", "createTask", input, rootWorld)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != proposal.StatusRejected {
		t.Fatalf("expected rejected, got %s", p.Status)
	}
	if p.ResultWorld != "" {
		t.Fatal("expected no result world on rejection")
	}
}

func TestSubmitIntentManualAuthorityParksInEvaluatingThenResumes(t *testing.T) {
	manual := proposal.NewManual()
	e, rootWorld := newTestEngine(t, manual)

	input := value.Object(map[string]value.Value{"intentId": value.Str("i1"), "title": value.Str("review me")})
	p, err := e.SubmitIntent(context.Background(), "alice", "createTask", input, rootWorld)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != proposal.StatusEvaluating {
		t.Fatalf("expected evaluating, got %s", p.Status)
	}

	manual.Approve(p.ProposalID, "looks good")
	p, err = e.ResumeEvaluation(context.Background(), p.ProposalID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if p.Status != proposal.StatusCompleted {
		t.Fatalf("expected completed after approval, got %s", p.Status)
	}
}
