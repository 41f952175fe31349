package proposal

import (
	"sync"

	"github.com/google/uuid"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
)

// Queue owns proposals by ProposalID and is the `submit`/`transition`
// surface of the world/proposal API. All mutation goes through
// Transition, so the FSM's invariants (no reverse transitions, no
// state-skipping) hold for every caller.
type Queue struct {
	mu        sync.RWMutex
	proposals map[string]Proposal
}

func NewQueue() *Queue {
	return &Queue{proposals: make(map[string]Proposal)}
}

// Submit creates a new Proposal in `submitted` status for actor's
// intent against baseWorld, and stores it. now is the caller-supplied
// timestamp (the host's frozen context, or a dispatch-time clock
// reading) — the queue never reads wall-clock time itself.
func (q *Queue) Submit(actor string, intent Intent, baseWorld string, now int64) Proposal {
	p := Proposal{
		ProposalID:   uuid.NewString(),
		ExecutionKey: uuid.NewString(),
		Actor:        actor,
		Intent:       intent,
		BaseWorld:    baseWorld,
		Status:       StatusSubmitted,
		SubmittedAt:  now,
	}
	q.mu.Lock()
	q.proposals[p.ProposalID] = p
	q.mu.Unlock()
	return p
}

// Transition advances proposalID through the FSM, persisting the result
// on success.
func (q *Queue) Transition(proposalID string, next Status, opts TransitionOpts) (Proposal, *flowerr.Error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.proposals[proposalID]
	if !ok {
		return Proposal{}, flowerr.New(flowerr.CodeInvalidTransition, "no such proposal: "+proposalID)
	}
	np, err := Transition(p, next, opts)
	if err != nil {
		return p, err
	}
	q.proposals[proposalID] = np
	return np, nil
}

// Get returns the proposal by id.
func (q *Queue) Get(proposalID string) (Proposal, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.proposals[proposalID]
	return p, ok
}

// ByStatus, ByActor and ByBaseWorld let callers query proposals by
// status, actor, or base world. All three return copies in no
// particular order; callers needing a
// stable order should sort on SubmittedAt or ProposalID themselves.
func (q *Queue) ByStatus(s Status) []Proposal {
	return q.filter(func(p Proposal) bool { return p.Status == s })
}

func (q *Queue) ByActor(actor string) []Proposal {
	return q.filter(func(p Proposal) bool { return p.Actor == actor })
}

func (q *Queue) ByBaseWorld(worldID string) []Proposal {
	return q.filter(func(p Proposal) bool { return p.BaseWorld == worldID })
}

func (q *Queue) filter(pred func(Proposal) bool) []Proposal {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []Proposal
	for _, p := range q.proposals {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
