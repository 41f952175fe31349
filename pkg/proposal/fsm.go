package proposal

import "github.com/manifesto-ai/intentcore/pkg/flowerr"

// transitions is the closed transition table:
//
//	submitted -> evaluating
//	evaluating -> {approved, rejected}
//	approved  -> executing
//	executing -> {completed, failed}
//
// Anything not listed here — including any transition out of a
// terminal status, reverse transitions, and state-skipping — is
// INVALID_TRANSITION.
var transitions = map[Status][]Status{
	StatusSubmitted:  {StatusEvaluating},
	StatusEvaluating: {StatusApproved, StatusRejected},
	StatusApproved:   {StatusExecuting},
	StatusExecuting:  {StatusCompleted, StatusFailed},
}

// TransitionOpts carries the fields a transition may attach:
// DecisionID on approved/rejected, ResultWorld on completed/failed.
type TransitionOpts struct {
	DecisionID  string
	ResultWorld string
}

// Transition validates and applies a single FSM step, returning the
// advanced Proposal or an INVALID_TRANSITION error. It never mutates p.
func Transition(p Proposal, next Status, opts TransitionOpts) (Proposal, *flowerr.Error) {
	if p.Status.Terminal() {
		return p, flowerr.New(flowerr.CodeInvalidTransition, "proposal "+p.ProposalID+" is already terminal ("+string(p.Status)+")")
	}

	allowed := transitions[p.Status]
	ok := false
	for _, s := range allowed {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		return p, flowerr.New(flowerr.CodeInvalidTransition, string(p.Status)+" -> "+string(next)+" is not a valid transition")
	}

	if (next == StatusApproved || next == StatusRejected) && opts.DecisionID == "" {
		return p, flowerr.New(flowerr.CodeInvalidTransition, string(next)+" requires a decisionId")
	}
	if opts.ResultWorld != "" && next != StatusCompleted && next != StatusFailed {
		return p, flowerr.New(flowerr.CodeInvalidTransition, "resultWorld may only be set on completed/failed")
	}

	np := p
	np.Status = next
	if opts.DecisionID != "" {
		np.DecisionID = opts.DecisionID
	}
	if opts.ResultWorld != "" {
		np.ResultWorld = opts.ResultWorld
	}
	return np, nil
}
