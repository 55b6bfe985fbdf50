package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/peezy/hyperfy-eliza-client/internal/world"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings"
)

// Inputs carries the per-turn ingredients for one prompt assembly.
type Inputs struct {
	// AgentName is the display name substituted for {{agentName}}.
	AgentName string

	// Bio is the agent's persona description substituted for {{bio}}.
	Bio string

	// Snapshot is the parsed world state for this turn.
	Snapshot *world.Snapshot

	// ConversationID selects which conversation history to render.
	ConversationID string

	// Behaviors lists the action names available to the agent this turn.
	Behaviors []string

	// Template optionally overrides the assembler's template for this turn
	// (per-agent prompt overrides). Empty means use the assembler default.
	Template string

	// Attachments is pre-rendered attachment context, usually empty.
	Attachments string
}

// Assembler gathers the dynamic prompt ingredients and renders the decision
// prompt. Safe for concurrent use.
type Assembler struct {
	store        memory.Store
	embedder     embeddings.Provider
	template     string
	historyLimit int
	recallLimit  int
}

// Option configures an [Assembler] during construction.
type Option func(*Assembler)

// WithTemplate overrides [DefaultTemplate]. The override must resolve every
// placeholder it references or assembly fails.
func WithTemplate(t string) Option {
	return func(a *Assembler) { a.template = t }
}

// WithEmbedder enables semantic recall: the serialized snapshot is embedded
// and the closest prior records are appended to the rendered history.
func WithEmbedder(p embeddings.Provider) Option {
	return func(a *Assembler) { a.embedder = p }
}

// WithHistoryLimit caps the number of recent records rendered into
// {{recentMessages}}. Defaults to 20.
func WithHistoryLimit(n int) Option {
	return func(a *Assembler) { a.historyLimit = n }
}

// WithRecallLimit caps the number of semantically recalled records when an
// embedder is configured. Defaults to 5.
func WithRecallLimit(n int) Option {
	return func(a *Assembler) { a.recallLimit = n }
}

// NewAssembler creates an Assembler reading history from store.
func NewAssembler(store memory.Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:        store,
		template:     DefaultTemplate,
		historyLimit: 20,
		recallLimit:  5,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble builds the complete decision prompt for one turn.
//
// History and semantic recall are fetched concurrently. A recall failure is
// non-fatal (the turn proceeds on recent history alone), but a history fetch
// failure aborts assembly: a prompt with silently missing history would make
// the agent repeat itself.
func (a *Assembler) Assemble(ctx context.Context, in Inputs) (string, error) {
	if in.Snapshot == nil {
		return "", fmt.Errorf("prompt: assemble called without a world snapshot")
	}

	snapshotJSON, err := in.Snapshot.Serialize()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}

	var (
		recent   []memory.ConversationRecord
		recalled []memory.ConversationRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = a.store.Recent(gctx, in.ConversationID, a.historyLimit)
		if err != nil {
			return fmt.Errorf("prompt: fetch recent history: %w", err)
		}
		return nil
	})
	if a.embedder != nil {
		g.Go(func() error {
			vec, err := a.embedder.Embed(gctx, snapshotJSON)
			if err != nil {
				return nil // recall is best-effort
			}
			hits, err := a.store.SearchSimilar(gctx, in.ConversationID, vec, a.recallLimit)
			if err != nil {
				return nil
			}
			recalled = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	values := map[string]string{
		"agentName":      in.AgentName,
		"bio":            strings.TrimSpace(in.Bio),
		"hyperfy":        snapshotJSON,
		"emotes":         strings.Join(in.Snapshot.Emotes, " | "),
		"triggers":       strings.Join(in.Snapshot.Triggers, " | "),
		"actions":        strings.Join(in.Behaviors, " | "),
		"recentMessages": formatHistory(recent, recalled),
		"attachments":    in.Attachments,
	}

	template := a.template
	if in.Template != "" {
		template = in.Template
	}
	prompt, err := Render(template, values)
	if err != nil {
		return "", err
	}
	return prompt, nil
}

// formatHistory renders recent records (oldest first) preceded by any
// semantically recalled ones, one "Name: text" line each. Recalled records
// already present in the recent window are not repeated.
func formatHistory(recent, recalled []memory.ConversationRecord) string {
	if len(recent) == 0 && len(recalled) == 0 {
		return "(no prior conversation)"
	}

	seen := make(map[string]struct{}, len(recent))
	for _, r := range recent {
		seen[r.ID] = struct{}{}
	}

	var sb strings.Builder
	for _, r := range recalled {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		writeHistoryLine(&sb, r)
	}
	for _, r := range recent {
		writeHistoryLine(&sb, r)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeHistoryLine(sb *strings.Builder, r memory.ConversationRecord) {
	name := r.SenderName
	if name == "" {
		name = r.SenderID
	}
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(r.Text)
	if r.Action != "" {
		fmt.Fprintf(sb, " (%s)", r.Action)
	}
	sb.WriteByte('\n')
}
