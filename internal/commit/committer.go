// Package commit persists a validated decision and triggers its downstream
// effects in a fixed order: outgoing record, incoming record, evaluators,
// behavior dispatch. The ordering guarantees an observer never sees a
// dispatched behavior whose triggering records are not yet durable.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/peezy/hyperfy-eliza-client/internal/behavior"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/eval"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/world"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings"
)

// ErrPersistenceFailure reports that the memory store rejected a record
// write. It short-circuits the commit: no further records are written, no
// evaluators run, and no behavior is dispatched.
var ErrPersistenceFailure = errors.New("commit: conversation record could not be persisted")

// recordSource labels records produced by this pipeline.
const recordSource = "hyperfy"

// Stimulus is the originating context a decision is committed against.
type Stimulus struct {
	// AgentID and AgentName identify the deciding agent.
	AgentID   string
	AgentName string

	// ConversationID groups the records of this exchange.
	ConversationID string

	// Snapshot is the world state that provoked the decision.
	Snapshot *world.Snapshot
}

// Committer persists decisions and runs their downstream effects.
type Committer struct {
	store      memory.Store
	behaviors  *behavior.Registry
	evaluators *eval.Chain
	embedder   embeddings.Provider
	metrics    *observe.Metrics
	logger     *slog.Logger

	preserveEmoteOverwrite bool
	now                    func() time.Time
}

// Option configures a [Committer] during construction.
type Option func(*Committer)

// WithEmbedder enables best-effort embedding of the outgoing record text for
// later semantic recall. Embedding failures never abort a commit.
func WithEmbedder(p embeddings.Provider) Option {
	return func(c *Committer) { c.embedder = p }
}

// WithCorrectedEmoteText switches [ComposeText] to the corrected composition
// that actually appends the emote clause. Off by default.
func WithCorrectedEmoteText() Option {
	return func(c *Committer) { c.preserveEmoteOverwrite = false }
}

// WithMetrics attaches metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Committer) { c.metrics = m }
}

// WithClock overrides the record timestamp source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

// NewCommitter creates a Committer writing to store, dispatching through
// behaviors, and running evaluators after both records are durable.
func NewCommitter(store memory.Store, behaviors *behavior.Registry, evaluators *eval.Chain, logger *slog.Logger, opts ...Option) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Committer{
		store:                  store,
		behaviors:              behaviors,
		evaluators:             evaluators,
		logger:                 logger,
		preserveEmoteOverwrite: true,
		now:                    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Commit runs the commit protocol for one non-silent decision:
//
//  1. Compose the outgoing text and durably create the outgoing record
//     (sender = agent).
//  2. Durably create the incoming record for the original stimulus
//     (sender = world).
//  3. Run the evaluator chain over both records.
//  4. Dispatch the decision's first behavior, if it names one.
//
// A persistence failure at step 1 or 2 returns [ErrPersistenceFailure] and
// aborts everything downstream. Silent decisions are a no-op.
func (c *Committer) Commit(ctx context.Context, d *decision.Decision, stim Stimulus) error {
	if d == nil || d.Silent() {
		return nil
	}
	if stim.Snapshot == nil {
		return fmt.Errorf("commit: stimulus has no world snapshot")
	}

	text := ComposeText(d, c.preserveEmoteOverwrite)

	outgoing := memory.ConversationRecord{
		ID:             uuid.NewString(),
		ConversationID: stim.ConversationID,
		SenderID:       stim.AgentID,
		SenderName:     stim.AgentName,
		Text:           text,
		Action:         d.FirstAction(),
		Actions:        d.Actions,
		Source:         recordSource,
		Raw:            d.Raw,
		CreatedAt:      c.now(),
	}
	if c.embedder != nil && text != "" {
		vec, err := c.embedder.Embed(ctx, text)
		if err != nil {
			c.logger.WarnContext(ctx, "embedding outgoing record failed",
				"conversation_id", stim.ConversationID, "error", err)
		} else {
			outgoing.Embedding = vec
		}
	}
	if err := c.store.CreateRecord(ctx, outgoing); err != nil {
		return fmt.Errorf("%w: outgoing: %v", ErrPersistenceFailure, err)
	}

	snapshotJSON, err := stim.Snapshot.Serialize()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	incoming := memory.ConversationRecord{
		ID:             uuid.NewString(),
		ConversationID: stim.ConversationID,
		SenderID:       memory.WorldSenderID,
		SenderName:     memory.WorldSenderID,
		Text:           snapshotJSON,
		Source:         recordSource,
		CreatedAt:      c.now(),
	}
	if err := c.store.CreateRecord(ctx, incoming); err != nil {
		return fmt.Errorf("%w: incoming: %v", ErrPersistenceFailure, err)
	}

	if c.evaluators != nil {
		c.evaluators.Run(ctx, outgoing, incoming)
	}

	if action := d.FirstAction(); action != "" && c.behaviors != nil {
		err := c.behaviors.Dispatch(ctx, behavior.Invocation{
			AgentID: stim.AgentID,
			Action:  action,
			Record:  incoming,
		})
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordBehaviorDispatch(ctx, action, status)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}
