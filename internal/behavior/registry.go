package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownBehavior reports a dispatch for a name with no registered
// handler. The decision tolerated a novel action name; execution cannot.
var ErrUnknownBehavior = errors.New("behavior: no handler registered for that name")

// Registry is the concurrent behavior directory. The zero value is not
// usable; create one with [NewRegistry].
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry logging through logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds h under its name, replacing any previous handler with the
// same name.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.Name() == "" {
		return errors.New("behavior: register requires a named handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
	return nil
}

// Names returns the sorted names of all registered behaviors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch executes the handler registered under inv.Action. The handler's
// continuation text is logged at debug level and discarded. Returns
// [ErrUnknownBehavior] for unregistered names.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) error {
	r.mu.RLock()
	h, ok := r.handlers[inv.Action]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBehavior, inv.Action)
	}

	continuation, err := h.Execute(ctx, inv)
	if err != nil {
		return fmt.Errorf("behavior: execute %q: %w", inv.Action, err)
	}
	if continuation != "" {
		// Continuations are not fed back into the next turn yet.
		r.logger.Debug("behavior continuation discarded",
			"behavior", inv.Action,
			"agent_id", inv.AgentID,
			"continuation", continuation)
	}
	return nil
}
