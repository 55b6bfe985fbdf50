// Package turn orchestrates one full decision turn: resolve the target
// agent, parse the world snapshot, assemble the prompt, obtain a validated
// decision, and hand the result to the committer.
//
// The decision is returned to the caller as soon as it is validated; the
// commit (record persistence, evaluators, behavior dispatch) continues as a
// detached background task with no return channel to the caller. Cancelling
// the inbound request does not cancel a commit already in flight — this is a
// documented consistency gap, not an oversight.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peezy/hyperfy-eliza-client/internal/agent"
	"github.com/peezy/hyperfy-eliza-client/internal/commit"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/prompt"
	"github.com/peezy/hyperfy-eliza-client/internal/world"
)

// conversationNamespace seeds the deterministic conversation IDs derived
// from room identifiers. Fixed forever: changing it would orphan every
// stored conversation.
var conversationNamespace = uuid.MustParse("8f3c5a1e-9d42-4b7a-b6c1-2e8f0a74d319")

// ConversationID derives the stable conversation identifier for a room.
// Every turn in the same room lands in the same conversation.
func ConversationID(roomID string) string {
	return uuid.NewSHA1(conversationNamespace, []byte(roomID)).String()
}

// Result is the synchronous outcome of one turn.
type Result struct {
	// Agent is the resolved target agent.
	Agent *agent.Agent

	// Decision is the validated decision, silent or not.
	Decision *decision.Decision
}

// Coordinator runs decision turns against a shared agent registry.
type Coordinator struct {
	registry  *agent.Registry
	assembler *prompt.Assembler
	engine    *decision.Engine
	committer *commit.Committer
	metrics   *observe.Metrics
	logger    *slog.Logger

	// commits tracks detached commit goroutines for clean shutdown.
	commits sync.WaitGroup

	commitHooks []func(agentID string, d *decision.Decision, err error)
}

// Option configures a [Coordinator] during construction.
type Option func(*Coordinator)

// WithMetrics attaches metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithAfterCommit registers a hook invoked after each detached commit
// finishes, with the commit error if any. Test hook.
func WithAfterCommit(fn func(agentID string, d *decision.Decision, err error)) Option {
	return func(c *Coordinator) { c.commitHooks = append(c.commitHooks, fn) }
}

// NewCoordinator creates a Coordinator over the given collaborators.
func NewCoordinator(registry *agent.Registry, assembler *prompt.Assembler, engine *decision.Engine, committer *commit.Committer, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		registry:  registry,
		assembler: assembler,
		engine:    engine,
		committer: committer,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// OnCommit registers fn to run after each detached commit finishes, with the
// commit error if any. Hooks must be registered before the first turn; the
// hook slice is not guarded by a lock.
func (c *Coordinator) OnCommit(fn func(agentID string, d *decision.Decision, err error)) {
	c.commitHooks = append(c.commitHooks, fn)
}

// HandleStimulus runs one turn for the agent identified by agentIdentifier
// against the raw snapshot body.
//
// Failure ordering is fixed: [agent.ErrAgentNotFound] before any parsing,
// [world.ErrMissingVocabulary] before any backend invocation. The decision
// is returned as soon as it validates; for non-silent decisions the commit
// runs detached and its outcome is only logged.
func (c *Coordinator) HandleStimulus(ctx context.Context, agentIdentifier string, body []byte) (*Result, error) {
	start := time.Now()

	a, err := c.registry.Resolve(agentIdentifier)
	if err != nil {
		c.metrics.RecordTurnFailure(ctx, "agent_not_found")
		return nil, err
	}

	snap, err := world.ParseSnapshot(body)
	if err != nil {
		if errors.Is(err, world.ErrMissingVocabulary) {
			c.metrics.RecordTurnFailure(ctx, "missing_vocabulary")
		} else {
			c.metrics.RecordTurnFailure(ctx, "bad_snapshot")
		}
		return nil, err
	}

	conversationID := ConversationID(snap.RoomID)

	p, err := c.assembler.Assemble(ctx, prompt.Inputs{
		AgentName:      a.Name,
		Bio:            a.Bio,
		Snapshot:       snap,
		ConversationID: conversationID,
		Behaviors:      a.Behaviors,
		Template:       a.Template,
	})
	if err != nil {
		c.metrics.RecordTurnFailure(ctx, "prompt_assembly")
		return nil, err
	}

	schema := decision.BuildActionSchema(snap.Emotes, snap.Triggers)

	backendStart := time.Now()
	d, err := c.engine.Decide(ctx, p, schema)
	backendStatus := "ok"
	if err != nil {
		backendStatus = "error"
	}
	c.metrics.RecordBackendRequest(ctx, c.engine.ProviderName(), backendStatus, time.Since(backendStart).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, decision.ErrBackendUnavailable):
			c.metrics.RecordTurnFailure(ctx, "backend_unavailable")
		case errors.Is(err, decision.ErrSchemaViolation):
			c.metrics.RecordTurnFailure(ctx, "schema_violation")
		default:
			c.metrics.RecordTurnFailure(ctx, "decision")
		}
		return nil, fmt.Errorf("turn: %w", err)
	}

	outcome := observe.OutcomeAct
	if d.Silent() {
		outcome = observe.OutcomeSilent
	}
	c.metrics.RecordDecisionOutcome(ctx, a.ID, outcome)
	c.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())

	if !d.Silent() {
		c.commitDetached(ctx, a, d, commit.Stimulus{
			AgentID:        a.ID,
			AgentName:      a.Name,
			ConversationID: conversationID,
			Snapshot:       snap,
		})
	}

	return &Result{Agent: a, Decision: d}, nil
}

// commitDetached runs the commit in the background. The caller's context is
// stripped of cancellation so the commit survives the HTTP response; its
// trace and logging values are kept.
func (c *Coordinator) commitDetached(ctx context.Context, a *agent.Agent, d *decision.Decision, stim commit.Stimulus) {
	detached := context.WithoutCancel(ctx)
	c.commits.Add(1)
	go func() {
		defer c.commits.Done()
		err := c.committer.Commit(detached, d, stim)
		if err != nil {
			c.logger.ErrorContext(detached, "detached commit failed",
				"agent_id", a.ID,
				"conversation_id", stim.ConversationID,
				"error", err)
		}
		for _, fn := range c.commitHooks {
			fn(a.ID, d, err)
		}
	}()
}

// Drain blocks until all detached commits have finished. Called during
// graceful shutdown.
func (c *Coordinator) Drain() {
	c.commits.Wait()
}
