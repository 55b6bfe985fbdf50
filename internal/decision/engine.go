package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm"
)

// Engine invokes the generative backend with an assembled prompt and a
// per-turn action schema, enforces conformance, and classifies the result.
//
// The engine never retries: [ErrBackendUnavailable] and [ErrSchemaViolation]
// are both surfaced to the caller as a failed turn, and retry/backoff policy
// (if any) belongs to the transport layer wrapping this core.
//
// Safe for concurrent use.
type Engine struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// Option configures an [Engine] during construction.
type Option func(*Engine)

// WithTemperature sets the sampling temperature passed to the backend.
// The default of 0 requests the provider default.
func WithTemperature(t float64) Option {
	return func(e *Engine) { e.temperature = t }
}

// WithMaxTokens caps the completion length. Zero means provider default.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// NewEngine creates an Engine backed by the given provider.
func NewEngine(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{provider: provider}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ProviderName reports the backing provider's name, for telemetry labels.
func (e *Engine) ProviderName() string {
	return e.provider.Name()
}

// Decide runs one backend invocation:
//
//  1. Send (prompt, schema) to the backend. No result → ErrBackendUnavailable.
//  2. Re-validate the returned object against schema even if the backend
//     claims conformance — providers are not trusted to enforce their own
//     schema hints. Failure → ErrSchemaViolation.
//  3. Classify: all four fields null is an explicit "stay silent" decision;
//     the returned Decision reports it via [Decision.Silent].
func (e *Engine) Decide(ctx context.Context, prompt string, schema *jsonschema.Schema) (*Decision, error) {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.Message{{Role: "user", Content: prompt}},
		ResponseSchema: schema,
		Temperature:    e.temperature,
		MaxTokens:      e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, ErrBackendUnavailable
	}

	raw := stripFence(resp.Content)

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrSchemaViolation, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("decision: resolve action schema: %w", err)
	}
	if err := resolved.Validate(obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	canonical, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("decision: re-encode backend output: %w", err)
	}

	d := &Decision{Raw: canonical}
	if err := json.Unmarshal(canonical, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return d, nil
}

// stripFence removes a surrounding Markdown code fence from the backend's
// reply. Models routinely wrap JSON in ```json fences despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
