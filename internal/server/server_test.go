package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/peezy/hyperfy-eliza-client/internal/agent"
	"github.com/peezy/hyperfy-eliza-client/internal/commit"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/health"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/prompt"
	"github.com/peezy/hyperfy-eliza-client/internal/turn"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm"
	llmmock "github.com/peezy/hyperfy-eliza-client/pkg/provider/llm/mock"
	memmock "github.com/peezy/hyperfy-eliza-client/pkg/memory/mock"
)

const scenarioABody = `{"roomId":"hyperfy","emotes":["wave","laugh"],"triggers":["player1"]}`

type fixture struct {
	ts        *httptest.Server
	provider  *llmmock.Provider
	store     *memmock.Store
	committed chan error
}

func newFixture(t *testing.T, provider *llmmock.Provider) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	registry := agent.NewRegistry()
	if err := registry.Register(&agent.Agent{ID: "agent-1", Name: "Wren", Bio: "A guide."}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	store := &memmock.Store{}
	committed := make(chan error, 4)

	coordinator := turn.NewCoordinator(
		registry,
		prompt.NewAssembler(store),
		decision.NewEngine(provider),
		commit.NewCommitter(store, nil, nil, logger),
		logger,
		turn.WithMetrics(metrics),
		turn.WithAfterCommit(func(_ string, _ *decision.Decision, err error) { committed <- err }),
	)

	srv := New("", coordinator, registry, health.New(registry), metrics, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, provider: provider, store: store, committed: committed}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, payload
}

func (f *fixture) waitCommit(t *testing.T) {
	t.Helper()
	select {
	case err := <-f.committed:
		if err != nil {
			t.Fatalf("commit error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("detached commit did not finish")
	}
}

func TestScenarioA_ActingDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"lookAt":"player1","emote":"wave","say":"hi","actions":null}`,
		},
	})

	resp, payload := f.post(t, "/agents/agent-1/message", scenarioABody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, payload)
	}

	var d struct {
		LookAt  *string  `json:"lookAt"`
		Emote   *string  `json:"emote"`
		Say     *string  `json:"say"`
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal(payload, &d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d.LookAt == nil || *d.LookAt != "player1" || d.Emote == nil || *d.Emote != "wave" || d.Say == nil || *d.Say != "hi" {
		t.Errorf("response = %s, want the backend fields echoed", payload)
	}
	if d.Actions != nil {
		t.Errorf("actions = %v, want null", d.Actions)
	}

	f.waitCommit(t)
	records := f.store.Records()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want outgoing + incoming", len(records))
	}
	if records[0].Text != "hi. Then I looked at player1 and " {
		t.Errorf("outgoing text = %q", records[0].Text)
	}
	if records[0].SenderID != "agent-1" {
		t.Errorf("outgoing sender = %q", records[0].SenderID)
	}
}

func TestScenarioB_SilentDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"lookAt":null,"emote":null,"say":null,"actions":null}`,
		},
	})

	resp, payload := f.post(t, "/agents/agent-1/message",
		`{"roomId":"hyperfy","emotes":[],"triggers":[]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, payload)
	}
	if f.store.CallCount("CreateRecord") != 0 {
		t.Error("records created for a silent turn")
	}
}

func TestScenarioC_UnknownAgent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{})

	resp, payload := f.post(t, "/agents/nonexistent/message", scenarioABody)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body = %s", resp.StatusCode, payload)
	}
	if f.provider.CallCount() != 0 {
		t.Errorf("backend called %d times for unknown agent", f.provider.CallCount())
	}
}

func TestMissingVocabularyIsBadRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{})

	resp, _ := f.post(t, "/agents/agent-1/message", `{"roomId":"hyperfy","emotes":["wave"]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if f.provider.CallCount() != 0 {
		t.Error("backend called despite missing vocabulary")
	}
}

func TestBackendUnavailableIsGeneric500(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{Err: errors.New("secret internal detail")})

	resp, payload := f.post(t, "/agents/agent-1/message", scenarioABody)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if strings.Contains(string(payload), "secret internal detail") {
		t.Error("backend error detail leaked into the response body")
	}
}

func TestSchemaViolationCarriesRetryHint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `not json at all`},
	})

	resp, payload := f.post(t, "/agents/agent-1/message", scenarioABody)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(strings.ToLower(string(payload)), "retry") {
		t.Errorf("body = %s, want a retry hint", payload)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{})

	resp, _ := f.post(t, "/agents/agent-1/message", `{"emotes": [`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthzListsAgents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{})

	resp, err := http.Get(f.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string   `json:"status"`
		Agents []string `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || len(body.Agents) != 1 || body.Agents[0] != "agent-1" {
		t.Errorf("healthz = %+v, want ok with [agent-1]", body)
	}
}

func TestDecisionFeedStreamsCommittedDecisions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"lookAt":null,"emote":null,"say":"hello there","actions":null}`,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, f.ts.URL+"/agents/agent-1/decisions", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	resp, _ := f.post(t, "/agents/agent-1/message", scenarioABody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	kind, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}
	if kind != websocket.MessageText {
		t.Fatalf("message type = %v, want text", kind)
	}

	var event DecisionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.AgentID != "agent-1" || event.Outcome != observe.OutcomeAct {
		t.Errorf("event = %+v, want acting decision for agent-1", event)
	}
	if event.Say == nil || *event.Say != "hello there" {
		t.Errorf("event say = %v", event.Say)
	}
}

func TestFeedForUnknownAgentIs404(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{})

	resp, err := http.Get(f.ts.URL + "/agents/nonexistent/decisions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDecisionFeedQuietOnFailedCommit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"lookAt":null,"emote":null,"say":"hi","actions":null}`,
		},
	})
	f.store.CreateRecordErr = errors.New("disk full")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, f.ts.URL+"/agents/agent-1/decisions", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The decision is returned before the commit runs, so the request
	// still succeeds.
	resp, _ := f.post(t, "/agents/agent-1/message", scenarioABody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	select {
	case err := <-f.committed:
		if err == nil {
			t.Fatal("commit unexpectedly succeeded")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("detached commit did not finish")
	}

	readCtx, cancelRead := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancelRead()
	if _, payload, err := conn.Read(readCtx); err == nil {
		t.Fatalf("received feed event %s for a decision that was never committed", payload)
	}
}
