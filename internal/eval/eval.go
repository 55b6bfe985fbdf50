// Package eval runs post-commit evaluators over the records a turn produced.
//
// Evaluators are read-only observers: they may derive facts, update external
// systems, or emit telemetry, but they never mutate the records or influence
// the turn outcome. A failing evaluator is logged and skipped — the chain
// always runs to completion.
package eval

import (
	"context"
	"log/slog"

	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
)

// Evaluator observes the committed records of one turn.
type Evaluator interface {
	// Name identifies the evaluator in logs.
	Name() string

	// Evaluate observes the outgoing and incoming records of one turn.
	// Records must be treated as read-only.
	Evaluate(ctx context.Context, outgoing, incoming memory.ConversationRecord) error
}

// Func adapts a plain function into an [Evaluator].
type Func struct {
	// EvaluatorName is returned by Name.
	EvaluatorName string

	// Fn is invoked by Evaluate.
	Fn func(ctx context.Context, outgoing, incoming memory.ConversationRecord) error
}

var _ Evaluator = Func{}

// Name implements Evaluator.
func (f Func) Name() string { return f.EvaluatorName }

// Evaluate implements Evaluator.
func (f Func) Evaluate(ctx context.Context, outgoing, incoming memory.ConversationRecord) error {
	return f.Fn(ctx, outgoing, incoming)
}

// Chain runs a fixed sequence of evaluators in order.
type Chain struct {
	evaluators []Evaluator
	logger     *slog.Logger
}

// NewChain creates a Chain over evaluators, logging failures through logger.
func NewChain(logger *slog.Logger, evaluators ...Evaluator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{evaluators: evaluators, logger: logger}
}

// Run invokes every evaluator in order. Failures are logged at warn level
// and never abort the chain or propagate to the caller.
func (c *Chain) Run(ctx context.Context, outgoing, incoming memory.ConversationRecord) {
	for _, e := range c.evaluators {
		if err := e.Evaluate(ctx, outgoing, incoming); err != nil {
			c.logger.WarnContext(ctx, "evaluator failed",
				"evaluator", e.Name(),
				"conversation_id", outgoing.ConversationID,
				"error", err)
		}
	}
}
