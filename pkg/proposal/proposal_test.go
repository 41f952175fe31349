package proposal

import (
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/snapshot"
)

func snapshotStub() snapshot.Snapshot { return snapshot.Snapshot{} }

// TestFSMHappyPath runs the full lifecycle: submitted ->
// evaluating -> approved(d1) -> executing -> completed(w2).
func TestFSMHappyPath(t *testing.T) {
	q := NewQueue()
	p := q.Submit("alice", Intent{Type: "createTask", IntentID: "i1"}, "w1", 100)

	p, err := q.Transition(p.ProposalID, StatusEvaluating, TransitionOpts{})
	if err != nil {
		t.Fatalf("submitted->evaluating: %v", err)
	}

	p, err = q.Transition(p.ProposalID, StatusApproved, TransitionOpts{DecisionID: "d1"})
	if err != nil {
		t.Fatalf("evaluating->approved: %v", err)
	}
	if p.DecisionID != "d1" {
		t.Fatalf("expected decisionId d1, got %q", p.DecisionID)
	}

	p, err = q.Transition(p.ProposalID, StatusExecuting, TransitionOpts{})
	if err != nil {
		t.Fatalf("approved->executing: %v", err)
	}

	p, err = q.Transition(p.ProposalID, StatusCompleted, TransitionOpts{ResultWorld: "w2"})
	if err != nil {
		t.Fatalf("executing->completed: %v", err)
	}
	if p.ResultWorld != "w2" {
		t.Fatalf("expected resultWorld w2, got %q", p.ResultWorld)
	}
	if !p.Status.Terminal() {
		t.Fatal("completed should be terminal")
	}
}

// TestFSMRejectsStateSkipping checks the negative case: submitted ->
// executing must fail with INVALID_TRANSITION.
func TestFSMRejectsStateSkipping(t *testing.T) {
	q := NewQueue()
	p := q.Submit("bob", Intent{Type: "createTask", IntentID: "i2"}, "w1", 100)

	_, err := q.Transition(p.ProposalID, StatusExecuting, TransitionOpts{})
	if err == nil {
		t.Fatal("expected INVALID_TRANSITION for submitted->executing")
	}
}

func TestFSMRejectsTransitionFromTerminal(t *testing.T) {
	q := NewQueue()
	p := q.Submit("carol", Intent{Type: "createTask", IntentID: "i3"}, "w1", 100)
	p, _ = q.Transition(p.ProposalID, StatusEvaluating, TransitionOpts{})
	p, _ = q.Transition(p.ProposalID, StatusRejected, TransitionOpts{DecisionID: "d2"})

	if _, err := q.Transition(p.ProposalID, StatusEvaluating, TransitionOpts{}); err == nil {
		t.Fatal("expected INVALID_TRANSITION once a proposal is terminal")
	}
}

func TestFSMRequiresDecisionIDOnApprovalAndRejection(t *testing.T) {
	q := NewQueue()
	p := q.Submit("dave", Intent{Type: "createTask", IntentID: "i4"}, "w1", 100)
	p, _ = q.Transition(p.ProposalID, StatusEvaluating, TransitionOpts{})

	if _, err := q.Transition(p.ProposalID, StatusApproved, TransitionOpts{}); err == nil {
		t.Fatal("expected an error approving without a decisionId")
	}
}

func TestQueryByStatusActorBaseWorld(t *testing.T) {
	q := NewQueue()
	p1 := q.Submit("alice", Intent{IntentID: "a"}, "w1", 0)
	q.Submit("bob", Intent{IntentID: "b"}, "w2", 0)

	if got := q.ByStatus(StatusSubmitted); len(got) != 2 {
		t.Fatalf("expected 2 submitted proposals, got %d", len(got))
	}
	if got := q.ByActor("alice"); len(got) != 1 || got[0].ProposalID != p1.ProposalID {
		t.Fatalf("ByActor(alice) returned %+v", got)
	}
	if got := q.ByBaseWorld("w2"); len(got) != 1 {
		t.Fatalf("expected 1 proposal based on w2, got %d", len(got))
	}
}

func TestAutoApproveAuthority(t *testing.T) {
	p := Proposal{ProposalID: "p1"}
	d := AutoApprove{}.Decide(p, snapshotStub())
	if d.Status != StatusApproved || d.DecisionID == "" {
		t.Fatalf("expected an approved decision with a decisionId, got %+v", d)
	}
}

func TestManualAuthorityDefersUntilRecorded(t *testing.T) {
	m := NewManual()
	p := Proposal{ProposalID: "p2"}

	if d := m.Decide(p, snapshotStub()); d.Status != StatusEvaluating {
		t.Fatalf("expected a pending decision before any review, got %+v", d)
	}

	m.Approve("p2", "looks fine")
	d := m.Decide(p, snapshotStub())
	if d.Status != StatusApproved {
		t.Fatalf("expected approved after Approve, got %+v", d)
	}
}

func TestPolicyAuthorityRecoversFromPanic(t *testing.T) {
	policy := NewPolicy(func(Proposal, snapshot.Snapshot) Decision { panic("policy bug") })
	d := policy.Decide(Proposal{ProposalID: "p3"}, snapshotStub())
	if d.Status != StatusRejected {
		t.Fatalf("expected a panicking policy to degrade to rejected, got %+v", d)
	}
}
