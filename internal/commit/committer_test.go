package commit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/peezy/hyperfy-eliza-client/internal/behavior"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/eval"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/world"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
	memmock "github.com/peezy/hyperfy-eliza-client/pkg/memory/mock"
	embmock "github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStimulus(t *testing.T) Stimulus {
	t.Helper()
	snap, err := world.ParseSnapshot([]byte(`{"roomId":"hyperfy","emotes":["wave","laugh"],"triggers":["player1"]}`))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	return Stimulus{
		AgentID:        "agent-1",
		AgentName:      "Wren",
		ConversationID: "conv-1",
		Snapshot:       snap,
	}
}

func TestCommit(t *testing.T) {
	t.Parallel()

	t.Run("writes outgoing then incoming with composed text", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		c := NewCommitter(store, nil, nil, testLogger())

		d := &decision.Decision{
			Say:    strPtr("hi"),
			LookAt: strPtr("player1"),
			Emote:  strPtr("wave"),
		}
		if err := c.Commit(context.Background(), d, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		records := store.Records()
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		out, in := records[0], records[1]
		if out.SenderID != "agent-1" || out.SenderName != "Wren" {
			t.Errorf("outgoing sender = %q/%q, want agent-1/Wren", out.SenderID, out.SenderName)
		}
		if out.Text != "hi. Then I looked at player1 and " {
			t.Errorf("outgoing text = %q", out.Text)
		}
		if in.SenderID != memory.WorldSenderID {
			t.Errorf("incoming sender = %q, want %q", in.SenderID, memory.WorldSenderID)
		}
		if in.Text == "" {
			t.Error("incoming record has no serialized snapshot")
		}
		if out.ConversationID != "conv-1" || in.ConversationID != "conv-1" {
			t.Error("records not grouped under the stimulus conversation")
		}
	})

	t.Run("silent decision writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		c := NewCommitter(store, nil, nil, testLogger())

		if err := c.Commit(context.Background(), &decision.Decision{}, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := store.CallCount("CreateRecord"); n != 0 {
			t.Errorf("CreateRecord called %d times for a silent decision", n)
		}
	})

	t.Run("records first action tag and full list", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		c := NewCommitter(store, nil, nil, testLogger())

		d := &decision.Decision{Say: strPtr("hi"), Actions: []string{"greet", "open-door"}}
		if err := c.Commit(context.Background(), d, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		out := store.Records()[0]
		if out.Action != "greet" {
			t.Errorf("Action = %q, want first entry", out.Action)
		}
		if len(out.Actions) != 2 {
			t.Errorf("Actions = %v, want the full list preserved", out.Actions)
		}
	})

	t.Run("outgoing persistence failure aborts everything", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{CreateRecordErr: errors.New("disk full")}
		var dispatched, evaluated bool
		behaviors := NewTestBehaviors(t, "greet", &dispatched)
		evaluators := eval.NewChain(testLogger(), eval.Func{
			EvaluatorName: "probe",
			Fn: func(context.Context, memory.ConversationRecord, memory.ConversationRecord) error {
				evaluated = true
				return nil
			},
		})
		c := NewCommitter(store, behaviors, evaluators, testLogger())

		d := &decision.Decision{Say: strPtr("hi"), Actions: []string{"greet"}}
		err := c.Commit(context.Background(), d, testStimulus(t))
		if !errors.Is(err, ErrPersistenceFailure) {
			t.Fatalf("Commit() error = %v, want ErrPersistenceFailure", err)
		}
		if dispatched {
			t.Error("behavior dispatched despite persistence failure")
		}
		if evaluated {
			t.Error("evaluators ran despite persistence failure")
		}
	})

	t.Run("incoming persistence failure aborts dispatch", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{
			CreateRecordErr:      errors.New("disk full"),
			CreateRecordErrAfter: 1, // outgoing succeeds, incoming fails
		}
		var dispatched bool
		c := NewCommitter(store, NewTestBehaviors(t, "greet", &dispatched), nil, testLogger())

		d := &decision.Decision{Say: strPtr("hi"), Actions: []string{"greet"}}
		err := c.Commit(context.Background(), d, testStimulus(t))
		if !errors.Is(err, ErrPersistenceFailure) {
			t.Fatalf("Commit() error = %v, want ErrPersistenceFailure", err)
		}
		if dispatched {
			t.Error("behavior dispatched despite incoming persistence failure")
		}
	})

	t.Run("dispatches only the first action after evaluators", func(t *testing.T) {
		t.Parallel()

		var order []string
		behaviors := behavior.NewRegistry(testLogger())
		for _, name := range []string{"greet", "open-door"} {
			name := name
			_ = behaviors.Register(behavior.Func{
				HandlerName: name,
				Fn: func(context.Context, behavior.Invocation) (string, error) {
					order = append(order, "dispatch:"+name)
					return "", nil
				},
			})
		}
		evaluators := eval.NewChain(testLogger(), eval.Func{
			EvaluatorName: "probe",
			Fn: func(context.Context, memory.ConversationRecord, memory.ConversationRecord) error {
				order = append(order, "evaluate")
				return nil
			},
		})
		c := NewCommitter(&memmock.Store{}, behaviors, evaluators, testLogger())

		d := &decision.Decision{Say: strPtr("hi"), Actions: []string{"greet", "open-door"}}
		if err := c.Commit(context.Background(), d, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if len(order) != 2 || order[0] != "evaluate" || order[1] != "dispatch:greet" {
			t.Errorf("order = %v, want [evaluate dispatch:greet]", order)
		}
	})

	t.Run("no dispatch without actions", func(t *testing.T) {
		t.Parallel()

		var dispatched bool
		c := NewCommitter(&memmock.Store{}, NewTestBehaviors(t, "greet", &dispatched), nil, testLogger())

		if err := c.Commit(context.Background(), &decision.Decision{Say: strPtr("hi")}, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if dispatched {
			t.Error("behavior dispatched for a decision with no actions")
		}
	})

	t.Run("embeds outgoing text when embedder configured", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		embedder := &embmock.Provider{EmbedResult: []float32{1, 2, 3, 4}}
		c := NewCommitter(store, nil, nil, testLogger(), WithEmbedder(embedder))

		if err := c.Commit(context.Background(), &decision.Decision{Say: strPtr("hi")}, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		out := store.Records()[0]
		if len(out.Embedding) != 4 {
			t.Errorf("outgoing embedding = %v, want the provider vector", out.Embedding)
		}
	})

	t.Run("embedding failure does not abort the commit", func(t *testing.T) {
		t.Parallel()

		store := &memmock.Store{}
		embedder := &embmock.Provider{Err: errors.New("quota")}
		c := NewCommitter(store, nil, nil, testLogger(), WithEmbedder(embedder))

		if err := c.Commit(context.Background(), &decision.Decision{Say: strPtr("hi")}, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if len(store.Records()) != 2 {
			t.Error("records not written after embedding failure")
		}
	})
}

// NewTestBehaviors builds a registry with a single probe handler that flags
// dispatch through dispatched.
func NewTestBehaviors(t *testing.T, name string, dispatched *bool) *behavior.Registry {
	t.Helper()
	reg := behavior.NewRegistry(testLogger())
	if err := reg.Register(behavior.Func{
		HandlerName: name,
		Fn: func(context.Context, behavior.Invocation) (string, error) {
			*dispatched = true
			return "", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func TestDispatchMetric(t *testing.T) {
	t.Parallel()

	newTestMetrics := func(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
		t.Helper()
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
		m, err := observe.NewMetrics(mp)
		if err != nil {
			t.Fatalf("NewMetrics() error = %v", err)
		}
		return m, reader
	}

	dispatches := func(t *testing.T, reader *sdkmetric.ManualReader) int64 {
		t.Helper()
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		var total int64
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name != "hyperfy.behavior.dispatches" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", m.Data)
				}
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
		return total
	}

	t.Run("dispatch increments the counter", func(t *testing.T) {
		t.Parallel()

		metrics, reader := newTestMetrics(t)
		var dispatched bool
		c := NewCommitter(&memmock.Store{}, NewTestBehaviors(t, "greet", &dispatched), nil, testLogger(),
			WithMetrics(metrics))

		d := &decision.Decision{Say: strPtr("hi"), Actions: []string{"greet"}}
		if err := c.Commit(context.Background(), d, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if !dispatched {
			t.Fatal("behavior was not dispatched")
		}
		if n := dispatches(t, reader); n != 1 {
			t.Errorf("dispatch count = %d, want 1", n)
		}
	})

	t.Run("no dispatch leaves the counter at zero", func(t *testing.T) {
		t.Parallel()

		metrics, reader := newTestMetrics(t)
		var dispatched bool
		c := NewCommitter(&memmock.Store{}, NewTestBehaviors(t, "greet", &dispatched), nil, testLogger(),
			WithMetrics(metrics))

		d := &decision.Decision{Say: strPtr("hi")}
		if err := c.Commit(context.Background(), d, testStimulus(t)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := dispatches(t, reader); n != 0 {
			t.Errorf("dispatch count = %d, want 0", n)
		}
	})
}
