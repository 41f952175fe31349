package proposal

import (
	"fmt"
	"sync"

	"github.com/manifesto-ai/intentcore/pkg/snapshot"
)

// Decision is the Authority handler contract's return value:
// `{status: approved|rejected|pending, decisionId?, reason?}`.
// Status must be StatusApproved, StatusRejected, or StatusEvaluating
// (used here to mean "still pending" — no separate Pending status
// exists in the Proposal FSM itself; a pending Decision simply leaves
// the proposal in `evaluating`).
type Decision struct {
	Status     Status
	DecisionID string
	Reason     string
}

// Authority decides a proposal while it sits in `evaluating`.
type Authority interface {
	Decide(p Proposal, baseSnapshot snapshot.Snapshot) Decision
}

// AutoApprove approves every proposal immediately — the no-gate
// default for hosts that want an intent to run as soon as it is
// submitted.
type AutoApprove struct{}

func (AutoApprove) Decide(p Proposal, _ snapshot.Snapshot) Decision {
	return Decision{Status: StatusApproved, DecisionID: "auto:" + p.ProposalID}
}

// Manual defers the decision to an external reviewer. Decide returns a
// pending decision (StatusEvaluating) until Approve or Reject is called
// for that proposal id; after that it returns the recorded decision
// exactly once per recorded call and then reverts to pending, since the
// Proposal FSM itself will have already left `evaluating` by then.
type Manual struct {
	mu        sync.Mutex
	decisions map[string]Decision
}

func NewManual() *Manual {
	return &Manual{decisions: make(map[string]Decision)}
}

// Approve records an approval for proposalID, to be picked up by the
// next Decide call.
func (m *Manual) Approve(proposalID, reason string) {
	m.record(proposalID, Decision{Status: StatusApproved, DecisionID: "manual:" + proposalID, Reason: reason})
}

// Reject records a rejection for proposalID.
func (m *Manual) Reject(proposalID, reason string) {
	m.record(proposalID, Decision{Status: StatusRejected, DecisionID: "manual:" + proposalID, Reason: reason})
}

func (m *Manual) record(proposalID string, d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[proposalID] = d
}

func (m *Manual) Decide(p Proposal, _ snapshot.Snapshot) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decisions[p.ProposalID]; ok {
		delete(m.decisions, p.ProposalID)
		return d
	}
	return Decision{Status: StatusEvaluating, Reason: "awaiting manual review"}
}

// PolicyFunc evaluates a proposal against baseSnapshot and returns a
// Decision. It must not throw/panic — Policy wraps it so a panicking
// policy function degrades to a rejection rather than crashing the
// host, matching the engine-wide totality rule.
type PolicyFunc func(p Proposal, baseSnapshot snapshot.Snapshot) Decision

// Policy is an Authority backed by an arbitrary Go predicate, a third
// authority kind alongside auto-approve and manual.
type Policy struct {
	Fn PolicyFunc
}

func NewPolicy(fn PolicyFunc) *Policy {
	return &Policy{Fn: fn}
}

func (p *Policy) Decide(prop Proposal, baseSnapshot snapshot.Snapshot) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			decision = Decision{Status: StatusRejected, DecisionID: "policy:" + prop.ProposalID, Reason: fmt.Sprintf("policy panicked: %v", r)}
		}
	}()
	return p.Fn(prop, baseSnapshot)
}
