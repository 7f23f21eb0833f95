package sequencer

import (
	"context"
	"fmt"
	"sync"

	"github.com/imageforge/imageforge/pkg/recipe"
)

// Outcome describes what a handler did to the environment.
type Outcome struct {
	// Changed reports whether the handler mutated the environment, as
	// opposed to confirming an already-satisfied condition.
	Changed bool

	// Detail is an optional human-readable summary (e.g. "already present").
	Detail string
}

// Handler implements one step kind's side effect against the
// environment. A handler's effect is fully applied, or fully visible as
// failed, before the sequencer moves to the next step. Idempotence is a
// handler property, never a sequencer guarantee.
type Handler interface {
	// Kind returns the step kind this handler implements.
	Kind() recipe.Kind

	// Apply executes the step against the environment. Returned errors
	// should be classified *StepError values; anything else is
	// classified as a process failure.
	Apply(ctx context.Context, env *Environment, step recipe.Step) (Outcome, error)
}

// Registry maps step kinds to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[recipe.Kind]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[recipe.Kind]Handler)}
}

// Register adds a handler, replacing any previous handler for its kind.
func (r *Registry) Register(h Handler) error {
	if err := h.Kind().Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Kind()] = h
	return nil
}

// Get retrieves the handler for a kind.
func (r *Registry) Get(kind recipe.Kind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for kind %s", kind)
	}
	return h, nil
}

// Kinds returns the kinds with a registered handler.
func (r *Registry) Kinds() []recipe.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]recipe.Kind, 0, len(r.handlers))
	for _, k := range recipe.Kinds {
		if _, ok := r.handlers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
