// Package behavior implements the typed action surface an agent may trigger
// after a turn commits.
//
// A [Handler] executes one named behavior. Handlers are registered in a
// [Registry] and dispatched by name with the committed conversation record as
// context. Each handler returns a textual continuation; the current pipeline
// discards it after logging — a continuation feedback loop into the next turn
// is a known gap, not an oversight.
package behavior

import (
	"context"

	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
)

// Invocation is the context handed to a behavior handler on dispatch.
type Invocation struct {
	// AgentID identifies the agent whose decision triggered the behavior.
	AgentID string

	// Action is the behavior name, verbatim from the decision.
	Action string

	// Record is the committed incoming conversation record, giving the
	// handler the stimulus that produced the decision.
	Record memory.ConversationRecord
}

// Handler executes one named behavior.
type Handler interface {
	// Name returns the behavior name this handler answers to.
	Name() string

	// Execute runs the behavior. The returned continuation text is logged
	// and discarded by the caller.
	Execute(ctx context.Context, inv Invocation) (string, error)
}

// Func adapts a plain function into a [Handler].
type Func struct {
	// HandlerName is returned by Name.
	HandlerName string

	// Fn is invoked by Execute.
	Fn func(ctx context.Context, inv Invocation) (string, error)
}

var _ Handler = Func{}

// Name implements Handler.
func (f Func) Name() string { return f.HandlerName }

// Execute implements Handler.
func (f Func) Execute(ctx context.Context, inv Invocation) (string, error) {
	return f.Fn(ctx, inv)
}
