package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/peezy/hyperfy-eliza-client/internal/world"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
	memmock "github.com/peezy/hyperfy-eliza-client/pkg/memory/mock"
	embmock "github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings/mock"
)

func testSnapshot(t *testing.T) *world.Snapshot {
	t.Helper()
	snap, err := world.ParseSnapshot([]byte(`{"roomId":"plaza","emotes":["wave","dance"],"triggers":["player1"],"event":"player joined"}`))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	return snap
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	t.Run("renders all ingredients", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{
			RecentResult: []memory.ConversationRecord{
				{ID: "r1", SenderID: memory.WorldSenderID, SenderName: "world", Text: "player joined", CreatedAt: time.Now()},
			},
		}
		a := NewAssembler(store)

		got, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Bio:            "A helpful plaza guide.",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
			Behaviors:      []string{"greet", "open-door"},
		})
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		for _, want := range []string{
			"Wren",
			"A helpful plaza guide.",
			"wave | dance",
			"player1",
			"greet | open-door",
			"world: player joined",
			`"event":"player joined"`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		if strings.Contains(got, "{{") {
			t.Errorf("prompt contains unresolved placeholders:\n%s", got)
		}
	})

	t.Run("empty history renders placeholder text", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(&memmock.Store{})
		got, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
		})
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if !strings.Contains(got, "(no prior conversation)") {
			t.Error("empty history not rendered")
		}
	})

	t.Run("history fetch failure aborts assembly", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{RecentErr: errors.New("db down")}
		a := NewAssembler(store)

		_, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
		})
		if err == nil {
			t.Fatal("Assemble() = nil error, want history failure")
		}
	})

	t.Run("semantic recall merged without duplicates", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{
			RecentResult: []memory.ConversationRecord{
				{ID: "r2", SenderName: "world", Text: "recent line"},
			},
			SearchSimilarResult: []memory.ConversationRecord{
				{ID: "r1", SenderName: "world", Text: "old similar line"},
				{ID: "r2", SenderName: "world", Text: "recent line"},
			},
		}
		a := NewAssembler(store, WithEmbedder(&embmock.Provider{}))

		got, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
		})
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if !strings.Contains(got, "old similar line") {
			t.Error("recalled record not rendered")
		}
		if strings.Count(got, "recent line") != 1 {
			t.Error("record present in both recall and recent rendered twice")
		}
	})

	t.Run("recall failure is non-fatal", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{
			SearchSimilarErr: errors.New("vector index missing"),
		}
		a := NewAssembler(store, WithEmbedder(&embmock.Provider{}))

		if _, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
		}); err != nil {
			t.Fatalf("Assemble() error = %v, want recall failure swallowed", err)
		}
	})

	t.Run("embedder failure is non-fatal", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		a := NewAssembler(store, WithEmbedder(&embmock.Provider{Err: errors.New("quota")}))

		if _, err := a.Assemble(context.Background(), Inputs{
			AgentName:      "Wren",
			Snapshot:       testSnapshot(t),
			ConversationID: "conv-1",
		}); err != nil {
			t.Fatalf("Assemble() error = %v, want embed failure swallowed", err)
		}
		if store.CallCount("SearchSimilar") != 0 {
			t.Error("SearchSimilar called despite embed failure")
		}
	})

	t.Run("missing snapshot rejected", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(&memmock.Store{})
		if _, err := a.Assemble(context.Background(), Inputs{AgentName: "Wren"}); err == nil {
			t.Fatal("Assemble() accepted nil snapshot")
		}
	})

	t.Run("custom template with unresolved placeholder fails", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(&memmock.Store{}, WithTemplate("Hello {{unknown}}"))
		if _, err := a.Assemble(context.Background(), Inputs{
			AgentName: "Wren",
			Snapshot:  testSnapshot(t),
		}); err == nil {
			t.Fatal("Assemble() accepted template with unresolved placeholder")
		}
	})
}
