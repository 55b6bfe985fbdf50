// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the decision engine sends correct
// CompletionRequests and to feed controlled responses without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: `{"say":"hi"}`},
//	}
//	resp, err := p.Complete(ctx, req)
//	if p.CallCount() != 1 { … }
package mock

import (
	"context"
	"sync"

	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause Complete to return an empty response.
// Set Err to inject a failure. Safe for concurrent use.
type Provider struct {
	mu    sync.Mutex
	calls []CompleteCall

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// CompleteResponse is returned by Complete when Err is nil.
	// When nil, Complete returns a response with empty content.
	CompleteResponse *llm.CompletionResponse

	// Err is returned by Complete when non-nil.
	Err error

	// CompleteFunc, when non-nil, overrides the canned response entirely.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

var _ llm.Provider = (*Provider)(nil)

// Name implements llm.Provider.
func (p *Provider) Name() string {
	if p.NameResult == "" {
		return "mock"
	}
	return p.NameResult
}

// Complete implements llm.Provider. It records the call and returns the
// configured response or error.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Req: req})
	fn := p.CompleteFunc
	resp := p.CompleteResponse
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &llm.CompletionResponse{}, nil
	}
	out := *resp
	return &out, nil
}

// Calls returns a copy of all recorded Complete invocations.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
