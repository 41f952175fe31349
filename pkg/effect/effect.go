// Package effect defines the effect-handler contract and an in-memory
// type->handler registry: a flat string-keyed map from a dotted type
// name to an executable, looked up once per dispatch. Handlers are
// registered explicitly via Register — no reflection-driven discovery.
package effect

import (
	"context"
	"fmt"
	"sync"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// Context is the frozen per-job values a handler may observe — no
// ambient clock or RNG, matching the engine's own frozen-context rule.
type Context struct {
	Now        int64
	RandomSeed string
	Env        map[string]string
}

// Handler executes one effect type. It MUST NOT throw/panic; failures
// are expressed as patches to an error path, or as a returned *flowerr.Error
// for transport-level failures the handler cannot itself express as a
// patch.
type Handler func(ctx context.Context, typ string, params value.Value, hostCtx Context) ([]snapshot.Patch, *flowerr.Error)

// Registry is a concurrency-safe type->Handler map.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs (or replaces) the handler for typ.
func (r *Registry) Register(typ string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// Dispatch looks up and invokes the handler for typ. An unregistered
// type is an INTERNAL_ERROR — the schema author declared an effect the
// host was never wired to handle.
func (r *Registry) Dispatch(ctx context.Context, typ string, params value.Value, hostCtx Context) ([]snapshot.Patch, *flowerr.Error) {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, flowerr.New(flowerr.CodeInternalError, fmt.Sprintf("no handler registered for effect type %q", typ))
	}
	return h(ctx, typ, params, hostCtx)
}
