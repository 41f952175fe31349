package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/manifesto-ai/intentcore/pkg/core"
	"github.com/manifesto-ai/intentcore/pkg/effect"
	"github.com/manifesto-ai/intentcore/pkg/flow"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/hookqueue"
	"github.com/manifesto-ai/intentcore/pkg/memoryctx"
	"github.com/manifesto-ai/intentcore/pkg/schema"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

const defaultMaxIterations = 100

// HostResult is the terminal outcome of one dispatch, delivered once
// the compute->effect->apply loop reaches a terminal status or exhausts
// maxIterations.
type HostResult struct {
	IntentID   string
	Snapshot   snapshot.Snapshot
	Status     flow.Status
	Error      *flowerr.Error
	Iterations int
}

// intentState is the host's per-executionKey working set: the snapshot
// under construction, the action/input that seeded it, and the
// requirements still awaiting fulfillment. All mutation happens from
// within a mailbox-drained job, so access is already serialized by
// runner and needs no additional locking.
type intentState struct {
	snapshot   snapshot.Snapshot
	action     string
	input      value.Value
	iterations int
	pending    map[string]flow.Requirement
	fulfilled  map[string]bool
	waiters    []chan HostResult
	done       bool
	result     HostResult
}

// Host is the event-loop executor: RegisterEffect, Dispatch,
// GetSnapshot, Reset. It combines the effect registry and the
// compute-cycle driver into one owner of the mailbox/runner discipline
// and the frozen per-job context.
type Host struct {
	schema        *schema.DomainSchema
	effects       *effect.Registry
	clock         Clock
	env           map[string]string
	maxIterations int
	logger        *slog.Logger
	tracer        trace.Tracer
	recall        RecallFunc
	hooks         *hookqueue.Queue

	mb *mailbox

	mu      sync.Mutex
	intents map[string]*intentState
}

// Schema returns the DomainSchema this Host was built with, so callers
// that need the pure core.Explain surface (e.g. pkg/hostapi) don't have
// to keep their own copy in sync with the Host's.
func (h *Host) Schema() *schema.DomainSchema {
	return h.schema
}

// New builds a Host bound to schema and the effect registry. clock and
// logger may be nil, defaulting to a millisecond wall clock (tests
// should inject their own for determinism) and slog.Default().
func New(s *schema.DomainSchema, effects *effect.Registry, clock Clock, env map[string]string, logger *slog.Logger) *Host {
	if effects == nil {
		effects = effect.NewRegistry()
	}
	if clock == nil {
		clock = defaultClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		schema:        s,
		effects:       effects,
		clock:         clock,
		env:           env,
		maxIterations: defaultMaxIterations,
		logger:        logger,
		tracer:        otel.Tracer("intentcore/host"),
		hooks:         hookqueue.New(logger),
		mb:            newMailbox(),
		intents:       make(map[string]*intentState),
	}
}

// RegisterEffect installs a handler for an effect type.
func (h *Host) RegisterEffect(typ string, handler effect.Handler) {
	h.effects.Register(typ, handler)
}

// RecallFunc supplies memory-recall results for an intent. The host
// calls it once per StartIntent, before the first compute cycle, and
// freezes the returned recalls into the intent's input.$app slot so
// every later compute cycle — and any replay run — observes the same
// recalled values.
type RecallFunc func(intentID string, input value.Value) []memoryctx.Recall

// SetRecall installs the memory-recall source. nil (the default)
// means no recalls; the replay seed is frozen regardless.
func (h *Host) SetRecall(fn RecallFunc) {
	h.recall = fn
}

// GetSnapshot returns the current snapshot for intentID, if any.
func (h *Host) GetSnapshot(intentID string) (snapshot.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.intents[intentID]
	if !ok {
		return snapshot.Snapshot{}, false
	}
	return st.snapshot, true
}

// Reset discards all tracked intent state — parameterless since
// initial data is supplied per-StartIntent via Base rather than held
// globally by the host.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.intents = make(map[string]*intentState)
	h.mb = newMailbox()
}

func (h *Host) getOrCreateIntent(id string) *intentState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.intents[id]
	if !ok {
		st = &intentState{pending: make(map[string]flow.Requirement)}
		h.intents[id] = st
	}
	return st
}

// Dispatch submits a StartIntent job and blocks until the resulting
// compute->effect->apply chain reaches a terminal status; Go's
// blocking-call-returning-a-value plays the role an awaited promise
// would in an event-driven host.
func (h *Host) Dispatch(ctx context.Context, intentID, action string, input value.Value, base snapshot.Snapshot) (HostResult, error) {
	st := h.getOrCreateIntent(intentID)
	wait := make(chan HostResult, 1)

	h.mu.Lock()
	st.waiters = append(st.waiters, wait)
	h.mu.Unlock()

	h.enqueue(ctx, StartIntent{IntentID: intentID, Action: action, Input: input, Base: base})

	select {
	case res := <-wait:
		return res, nil
	case <-ctx.Done():
		return HostResult{}, ctx.Err()
	}
}

// ApplyExternalPatches submits an ApplyPatches job and waits for it to
// complete — the entry point tests and the projection layer use to
// inject state without running an action.
func (h *Host) ApplyExternalPatches(ctx context.Context, intentID, source string, patches []snapshot.Patch) (HostResult, error) {
	st := h.getOrCreateIntent(intentID)
	wait := make(chan HostResult, 1)

	h.mu.Lock()
	st.waiters = append(st.waiters, wait)
	h.mu.Unlock()

	h.enqueue(ctx, ApplyPatches{IntentID: intentID, Patches: patches, Source: source})

	select {
	case res := <-wait:
		return res, nil
	case <-ctx.Done():
		return HostResult{}, ctx.Err()
	}
}

func (h *Host) enqueue(ctx context.Context, job Job) {
	h.logger.Debug("host: enqueue", "kind", job.jobKind(), "executionKey", job.executionKey())
	_, span := h.tracer.Start(ctx, "runner:kick", trace.WithAttributes(
		attribute.String("executionKey", job.executionKey()),
		attribute.String("job.kind", job.jobKind()),
	))
	span.End()
	h.mb.enqueue(job.executionKey(), job, func(j Job) {
		h.process(ctx, j)
	})
}

func (h *Host) process(ctx context.Context, job Job) {
	ctx, span := h.tracer.Start(ctx, "job:"+job.jobKind(), trace.WithAttributes(
		attribute.String("executionKey", job.executionKey()),
	))
	defer span.End()
	// Post-hooks enqueued by this job (waiter notification, caller
	// side-jobs) drain after the handler returns, in priority order.
	defer h.hooks.ProcessAll()

	switch j := job.(type) {
	case StartIntent:
		h.handleStartIntent(ctx, j)
	case ContinueCompute:
		h.handleContinueCompute(ctx, j)
	case FulfillEffect:
		h.handleFulfillEffect(ctx, j)
	case ApplyPatches:
		h.handleApplyPatches(ctx, j)
	default:
		h.logger.Error("host: unknown job kind", "kind", fmt.Sprintf("%T", job))
	}
}

func (h *Host) handleStartIntent(ctx context.Context, j StartIntent) {
	st := h.getOrCreateIntent(j.IntentID)
	st.snapshot = j.Base
	st.action = j.Action
	// Freeze the replay seed (and any registered memory recalls) into
	// input.$app before the first compute cycle, so re-entry and replay
	// both read recorded values instead of re-deriving them live.
	input := memoryctx.ReplaySeed(j.Input, derivedSeed(j.IntentID))
	if h.recall != nil {
		input = memoryctx.Freeze(input, h.recall(j.IntentID, j.Input)...)
	}
	st.input = input
	st.iterations = 0
	st.pending = make(map[string]flow.Requirement)
	st.fulfilled = make(map[string]bool)
	st.done = false
	h.runIteration(ctx, j.IntentID, st)
}

func (h *Host) handleContinueCompute(ctx context.Context, j ContinueCompute) {
	st := h.getOrCreateIntent(j.IntentID)
	if st.done {
		return
	}
	h.runIteration(ctx, j.IntentID, st)
}

func (h *Host) handleApplyPatches(ctx context.Context, j ApplyPatches) {
	st := h.getOrCreateIntent(j.IntentID)
	jobCtx := freeze(h.clock, j.IntentID, h.env)
	h.logger.Debug("context:frozen", "intentId", j.IntentID, "now", jobCtx.Now)

	next, err := core.Apply(h.schema, st.snapshot, j.Patches, core.Context{Now: jobCtx.Now, RandomSeed: jobCtx.RandomSeed})
	if err != nil {
		h.finalize(j.IntentID, st, HostResult{IntentID: j.IntentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: err})
		return
	}
	st.snapshot = next
	h.finalize(j.IntentID, st, HostResult{IntentID: j.IntentID, Snapshot: st.snapshot, Status: flow.StatusComplete})
}

func (h *Host) validate() func(path string, v value.Value) *flowerr.Error {
	if h.schema == nil {
		return nil
	}
	return h.schema.ValidatePatchValue
}

// runIteration performs one compute cycle: freeze a job context,
// evaluate the schema's action flow against the current snapshot, fold
// the result back into state, and either finalize (complete/halted/
// error) or dispatch the newly produced requirements (pending).
func (h *Host) runIteration(ctx context.Context, intentID string, st *intentState) {
	st.iterations++
	if st.iterations > h.maxIterations {
		err := flowerr.New(flowerr.CodeMaxIterationsExceeded, "flow did not terminate within maxIterations").WithActionName(st.action)
		h.logger.Error("fatal:escalate", "intentId", intentID, "reason", "max-iterations")
		h.finalize(intentID, st, HostResult{IntentID: intentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: err, Iterations: st.iterations})
		return
	}

	jobCtx := freeze(h.clock, intentID, h.env)
	h.logger.Debug("context:frozen", "intentId", intentID, "now", jobCtx.Now)

	if h.schema == nil {
		err := flowerr.New(flowerr.CodeInternalError, "host has no schema configured")
		h.finalize(intentID, st, HostResult{IntentID: intentID, Status: flow.StatusError, Error: err})
		return
	}
	if _, ok := h.schema.ResolveAction(st.action); !ok {
		err := flowerr.New(flowerr.CodeUnknownFlow, "action not declared in schema").WithActionName(st.action)
		h.finalize(intentID, st, HostResult{IntentID: intentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: err})
		return
	}

	_, computeSpan := h.tracer.Start(ctx, "core:compute")
	result := core.Compute(h.schema, st.snapshot, core.Intent{IntentID: intentID, Action: st.action, Input: st.input, Fulfilled: st.fulfilled}, core.Context{Now: jobCtx.Now, RandomSeed: jobCtx.RandomSeed})
	computeSpan.End()

	st.snapshot = result.Snapshot

	switch result.Status {
	case flow.StatusRunning, flow.StatusComplete, flow.StatusHalted:
		outward := flow.StatusComplete
		if result.Status == flow.StatusHalted {
			outward = flow.StatusHalted
		}
		h.finalize(intentID, st, HostResult{IntentID: intentID, Snapshot: st.snapshot, Status: outward, Iterations: st.iterations})
	case flow.StatusError:
		h.logger.Error("fatal:escalate", "intentId", intentID, "code", result.Error.Code, "message", result.Error.Message)
		h.finalize(intentID, st, HostResult{IntentID: intentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: result.Error, Iterations: st.iterations})
	case flow.StatusPending:
		st.snapshot = st.snapshot.WithSystem(addPendingRequirements(st.snapshot.System, result.Requirements))
		for _, req := range result.Requirements {
			if _, already := st.pending[req.ID]; already {
				continue
			}
			st.pending[req.ID] = req
			h.logger.Debug("effect:dispatch", "intentId", intentID, "requirementId", req.ID, "type", req.Type)
			go h.dispatchEffect(ctx, intentID, req, jobCtx)
		}
	}
}

func addPendingRequirements(sys snapshot.System, reqs []flow.Requirement) snapshot.System {
	if len(reqs) == 0 {
		return sys
	}
	existing := make(map[string]bool, len(sys.PendingRequirements))
	for _, id := range sys.PendingRequirements {
		existing[id] = true
	}
	out := append([]string(nil), sys.PendingRequirements...)
	for _, req := range reqs {
		if !existing[req.ID] {
			out = append(out, req.ID)
			existing[req.ID] = true
		}
	}
	sys.PendingRequirements = out
	return sys
}

// dispatchEffect invokes the registered handler for req and enqueues its
// result as a FulfillEffect job pinned to req.FlowPosition.SnapshotVersion
// — the snapshot version the requirement was issued against — so the
// fulfillment's stale/duplicate check (handleFulfillEffect) has no
// version to recompute out-of-band; it is carried on the requirement
// itself.
func (h *Host) dispatchEffect(ctx context.Context, intentID string, req flow.Requirement, jobCtx JobContext) {
	effCtx := effect.Context{Now: jobCtx.Now, RandomSeed: jobCtx.RandomSeed, Env: jobCtx.Env}
	patches, err := h.effects.Dispatch(ctx, req.Type, req.Params, effCtx)
	h.enqueue(ctx, FulfillEffect{
		IntentID:      intentID,
		RequirementID: req.ID,
		AtVersion:     req.FlowPosition.SnapshotVersion,
		Patches:       patches,
		HandlerError:  err != nil,
	})
}

func (h *Host) handleFulfillEffect(ctx context.Context, j FulfillEffect) {
	st := h.getOrCreateIntent(j.IntentID)

	if _, stillPending := st.pending[j.RequirementID]; !stillPending {
		h.logger.Debug("effect:fulfill:drop", "intentId", j.IntentID, "requirementId", j.RequirementID, "reason", "duplicate")
		return
	}
	if j.AtVersion != st.snapshot.Meta.Version {
		delete(st.pending, j.RequirementID)
		h.logger.Debug("effect:fulfill:drop", "intentId", j.IntentID, "requirementId", j.RequirementID, "reason", "stale")
		return
	}

	delete(st.pending, j.RequirementID)

	if j.HandlerError {
		h.logger.Error("effect:fulfill:error", "intentId", j.IntentID, "requirementId", j.RequirementID)
		err := flowerr.New(flowerr.CodeInternalError, "effect handler error").WithActionName(st.action)
		h.finalize(j.IntentID, st, HostResult{IntentID: j.IntentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: err})
		return
	}

	next, err := snapshot.ApplyAll(st.snapshot, j.Patches, h.validate())
	if err != nil {
		h.finalize(j.IntentID, st, HostResult{IntentID: j.IntentID, Snapshot: st.snapshot, Status: flow.StatusError, Error: err})
		return
	}
	next = next.WithSystem(clearPendingRequirement(next.System, j.RequirementID))
	st.snapshot = next
	if st.fulfilled == nil {
		st.fulfilled = make(map[string]bool)
	}
	st.fulfilled[j.RequirementID] = true
	h.logger.Debug("requirement:clear", "intentId", j.IntentID, "requirementId", j.RequirementID)
	h.logger.Debug("effect:fulfill:apply", "intentId", j.IntentID, "requirementId", j.RequirementID)

	if len(st.pending) == 0 {
		h.logger.Debug("continue:enqueue", "intentId", j.IntentID)
		h.enqueue(ctx, ContinueCompute{IntentID: j.IntentID})
	}
}

func clearPendingRequirement(sys snapshot.System, requirementID string) snapshot.System {
	out := sys.PendingRequirements[:0:0]
	for _, id := range sys.PendingRequirements {
		if id != requirementID {
			out = append(out, id)
		}
	}
	sys.PendingRequirements = out
	return sys
}

// finalize records the terminal result and hands waiter notification
// to the hook queue, so it runs after the current job's handler
// completes rather than in its middle. Waiter channels are buffered,
// so delivery never blocks the drain.
func (h *Host) finalize(intentID string, st *intentState, res HostResult) {
	st.done = res.Status != flow.StatusPending
	st.result = res
	h.mu.Lock()
	waiters := st.waiters
	st.waiters = nil
	h.mu.Unlock()
	if len(waiters) == 0 {
		return
	}
	h.hooks.Enqueue(hookqueue.PriorityImmediate, func() error {
		for _, w := range waiters {
			w <- res
		}
		return nil
	})
}

// EnqueueHook schedules a side-job to run after the currently running
// host job completes (or on the next job boundary when called from
// outside a job), in priority then FIFO order.
func (h *Host) EnqueueHook(priority hookqueue.Priority, job hookqueue.Job) {
	h.hooks.Enqueue(priority, job)
}

func defaultClock() int64 { return time.Now().UnixMilli() }
