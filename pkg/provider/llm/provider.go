// Package llm defines the Provider interface for Large Language Model backends.
//
// The tutor uses a language model for three things: judging a learner's answer,
// phrasing hints and feedback, and generating a conversation lesson when no
// lesson is configured. All of them are single-shot completions, so the
// interface exposes exactly that.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction injected before Messages.
	SystemPrompt string

	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// JSON asks for a single JSON object as the reply. Backends without a
	// JSON mode ignore it, so callers still run the reply through ExtractJSON.
	JSON bool
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	// Content is the text generated by the model.
	Content string

	// Usage reports token consumption when the backend provides it.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and blocks until the full response is available.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}
