// Package hostapi is the outer HTTP ring over a Host/world.Store/
// proposal.Queue triple: HTTP transport, world storage, and the
// proposal gate wrapped around the pure core. Engine owns every
// collaborator's lifecycle; Server adapts one transport onto it.
package hostapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/host"
	"github.com/manifesto-ai/intentcore/pkg/hostapi/metrics"
	"github.com/manifesto-ai/intentcore/pkg/proposal"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
	"github.com/manifesto-ai/intentcore/pkg/world"
)

// Engine drives one proposal through submit -> evaluate -> execute ->
// terminal against a single Host. It owns no transport; Server
// (http.go) is the gin adapter on top of it.
type Engine struct {
	Host      *host.Host
	Worlds    world.Store
	Proposals *proposal.Queue
	Authority proposal.Authority
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() int64

	// OnResult, when set, is called with every world a completed
	// proposal produces, after it is stored. The composition root uses
	// it to publish the terminal snapshot into a projection bridge
	// (see cmd/intentctl's serve command).
	OnResult func(w world.World, snap snapshot.Snapshot)
}

// NewEngine builds an Engine. authority == nil defaults to
// proposal.AutoApprove{} (no gate: a submitted intent always runs).
// metrics/logger may be nil.
func NewEngine(h *host.Host, worlds world.Store, authority proposal.Authority, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if authority == nil {
		authority = proposal.AutoApprove{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Host:      h,
		Worlds:    worlds,
		Proposals: proposal.NewQueue(),
		Authority: authority,
		Metrics:   m,
		Logger:    logger,
		Now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SubmitIntent runs one intent through the full proposal lifecycle
// against baseWorld: submitted -> evaluating -> (approved|rejected) ->
// [executing -> (completed|failed)]. It returns the terminal Proposal;
// errors are carried in the proposal's terminal status, not as a
// second return value, except when baseWorld cannot be restored at all
// (a caller error, not a domain outcome).
func (e *Engine) SubmitIntent(ctx context.Context, actor, action string, input value.Value, baseWorld string) (proposal.Proposal, error) {
	base, err := e.Worlds.Restore(baseWorld)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("hostapi: restore base world %q: %w", baseWorld, err)
	}

	intent := proposal.Intent{Type: action, Input: input, IntentID: uuid.NewString()}
	p := e.Proposals.Submit(actor, intent, baseWorld, e.Now())
	e.observe(p)

	p, ferr := e.Proposals.Transition(p.ProposalID, proposal.StatusEvaluating, proposal.TransitionOpts{})
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)

	decision := e.Authority.Decide(p, base)
	switch decision.Status {
	case proposal.StatusApproved:
		p, ferr = e.Proposals.Transition(p.ProposalID, proposal.StatusApproved, proposal.TransitionOpts{DecisionID: decision.DecisionID})
	case proposal.StatusRejected:
		p, ferr = e.Proposals.Transition(p.ProposalID, proposal.StatusRejected, proposal.TransitionOpts{DecisionID: decision.DecisionID})
	default:
		// Still evaluating (e.g. proposal.Manual awaiting a reviewer) —
		// leave the proposal parked in `evaluating` for a later call to
		// ResumeEvaluation to drive forward.
		e.observe(p)
		return p, nil
	}
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)
	if p.Status == proposal.StatusRejected {
		return p, nil
	}

	return e.execute(ctx, p, base)
}

// ResumeEvaluation re-asks the Authority for a proposal still parked in
// `evaluating` (the Manual authority's typical path: Approve/Reject was
// called out of band, and a caller now wants the proposal driven
// forward). No-op if the proposal already left `evaluating`.
func (e *Engine) ResumeEvaluation(ctx context.Context, proposalID string) (proposal.Proposal, error) {
	p, ok := e.Proposals.Get(proposalID)
	if !ok {
		return proposal.Proposal{}, fmt.Errorf("hostapi: no such proposal: %s", proposalID)
	}
	if p.Status != proposal.StatusEvaluating {
		return p, nil
	}

	base, err := e.Worlds.Restore(p.BaseWorld)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("hostapi: restore base world %q: %w", p.BaseWorld, err)
	}

	decision := e.Authority.Decide(p, base)
	var ferr *flowerr.Error
	switch decision.Status {
	case proposal.StatusApproved:
		p, ferr = e.Proposals.Transition(p.ProposalID, proposal.StatusApproved, proposal.TransitionOpts{DecisionID: decision.DecisionID})
	case proposal.StatusRejected:
		p, ferr = e.Proposals.Transition(p.ProposalID, proposal.StatusRejected, proposal.TransitionOpts{DecisionID: decision.DecisionID})
	default:
		return p, nil
	}
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)
	if p.Status == proposal.StatusRejected {
		return p, nil
	}
	return e.execute(ctx, p, base)
}

// execute drives an approved proposal through the host, generates the
// resulting world delta, stores it, and transitions the proposal to its
// terminal status.
func (e *Engine) execute(ctx context.Context, p proposal.Proposal, base snapshot.Snapshot) (proposal.Proposal, error) {
	p, ferr := e.Proposals.Transition(p.ProposalID, proposal.StatusExecuting, proposal.TransitionOpts{})
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)

	start := time.Now()
	res, err := e.Host.Dispatch(ctx, p.ExecutionKey, p.Intent.Type, p.Intent.Input, base)
	if e.Metrics != nil {
		e.Metrics.ComputeDuration.WithLabelValues(p.Intent.Type).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return e.fail(p, fmt.Sprintf("dispatch: %v", err))
	}
	if e.Metrics != nil {
		e.Metrics.ComputeCycles.WithLabelValues(string(res.Status)).Add(float64(res.Iterations))
	}
	if res.Status != flow.StatusComplete && res.Error != nil {
		return e.fail(p, res.Error.Error())
	}

	now := e.Now()
	toWorldID := uuid.NewString()
	delta := world.GenerateDelta(p.BaseWorld, toWorldID, base, res.Snapshot, now)
	w := world.World{
		WorldID:      toWorldID,
		SchemaHash:   res.Snapshot.Meta.SchemaHash,
		SnapshotHash: snapshot.Hash(res.Snapshot),
		CreatedAt:    now,
		CreatedBy:    p.ProposalID,
	}
	if err := e.Worlds.Store(w, &delta, res.Snapshot); err != nil {
		return e.fail(p, fmt.Sprintf("store world: %v", err))
	}

	p, ferr = e.Proposals.Transition(p.ProposalID, proposal.StatusCompleted, proposal.TransitionOpts{ResultWorld: toWorldID})
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)
	if e.OnResult != nil {
		e.OnResult(w, res.Snapshot)
	}
	return p, nil
}

func (e *Engine) fail(p proposal.Proposal, reason string) (proposal.Proposal, error) {
	p, ferr := e.Proposals.Transition(p.ProposalID, proposal.StatusFailed, proposal.TransitionOpts{})
	if ferr != nil {
		return p, ferr
	}
	e.observe(p)
	e.Logger.Error("hostapi: proposal execution failed", "proposalId", p.ProposalID, "reason", reason)
	return p, nil
}

func (e *Engine) observe(p proposal.Proposal) {
	if e.Metrics != nil {
		e.Metrics.ProposalTotal.WithLabelValues(string(p.Status)).Inc()
	}
}
