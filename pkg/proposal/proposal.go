// Package proposal implements the Proposal state machine and queue: a
// submitted intent's lifecycle from `submitted` through `evaluating`, an
// authority decision, execution, and a terminal state. Every mutation
// checks the transition table first; terminal statuses short-circuit
// everything after them.
package proposal

import "github.com/manifesto-ai/intentcore/pkg/value"

// Status is Proposal.status.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusEvaluating Status = "evaluating"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is one of the three terminal statuses:
// completed, rejected, failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusFailed
}

// Intent is a caller-submitted command naming an action in the domain
// schema. IntentID seeds the host's deterministic random
// seed derivation and the flow evaluator's requirement ids.
type Intent struct {
	Type     string
	Input    value.Value
	IntentID string
}

// Proposal is a submitted intent plus its lifecycle state. DecisionID
// is set only on the approved/rejected transition;
// ResultWorld only on completed/failed.
type Proposal struct {
	ProposalID   string
	ExecutionKey string
	Actor        string
	Intent       Intent
	BaseWorld    string
	Status       Status
	SubmittedAt  int64
	DecisionID   string
	ResultWorld  string
}
