// Package llm defines the coach LLM port and its implementations: a Gemini
// client over the google genai SDK and a deterministic null client for
// offline operation and tests. The variant is selected once at construction,
// never re-checked per call.
package llm

import (
	"context"

	"intentforge/internal/types"
)

// Message is one role-tagged entry of the prompt transcript.
type Message struct {
	Role types.Role
	Text string
}

// Client is the LLM port. CompleteWithStreaming yields tokens incrementally
// on the first channel; after the token channel closes, usage (if known) is
// delivered on the usage channel. Any terminal failure arrives on the error
// channel. All three channels are closed when the call finishes.
type Client interface {
	// Complete performs a blocking, non-streamed completion.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, types.Usage, error)

	// CompleteWithStreaming performs a streamed completion over an ordered,
	// role-tagged transcript.
	CompleteWithStreaming(ctx context.Context, systemPrompt string, msgs []Message) (<-chan string, <-chan types.Usage, <-chan error)
}
