// Package llm defines the Provider interface for the generative text backends
// that drive agent decisions.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, …) and exposes a uniform completion interface. When a
// request carries a response schema, the provider steers the model towards
// JSON output conforming to that schema — but callers must not trust the
// steering: providers differ in how strictly (if at all) they enforce a
// schema hint, so the decision engine re-validates every response.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Message is a single entry in the conversation passed to the model.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string

	// Name optionally identifies the participant who produced the message
	// (a player handle or an agent name).
	Name string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and differ between providers for the same text.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the backend needs to produce a response.
// At minimum Messages or SystemPrompt must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// ResponseSchema, when non-nil, asks the model to answer with a single
	// JSON object conforming to this schema. Providers embed the schema into
	// the request in whatever form the backend supports (native structured
	// output, JSON mode, or plain prompt instructions). Conformance is a
	// hint, not a guarantee.
	ResponseSchema *jsonschema.Schema

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the full, non-streamed model reply.
type CompletionResponse struct {
	// Content is the raw text of the reply. When a ResponseSchema was
	// supplied this should be a JSON document, possibly wrapped in a
	// Markdown code fence by less disciplined models.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any generative text backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider's short identifier (e.g. "openai", "ollama")
	// for logging and metrics attributes.
	Name() string
}
