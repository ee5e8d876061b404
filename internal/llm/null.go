package llm

import (
	"context"
	"strings"

	"intentforge/internal/logging"
	"intentforge/internal/types"
)

// NullClient is the offline Client. It produces deterministic coach turns
// from simple rules so the engine, parser, and tests can run without any
// provider. Token counts are approximated by whitespace word counts.
type NullClient struct{}

// NewNullClient creates the offline client.
func NewNullClient() *NullClient {
	return &NullClient{}
}

var affirmativeWords = []string{
	"yes", "yep", "yeah", "perfect", "exactly", "looks good", "that's it",
	"love it", "correct", "confirmed", "go ahead",
}

func looksAffirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := map[string]bool{}
	for _, w := range strings.Fields(lower) {
		words[strings.Trim(w, `.,!?'"`)] = true
	}
	for _, w := range affirmativeWords {
		if strings.ContainsRune(w, ' ') {
			if strings.Contains(lower, w) {
				return true
			}
		} else if words[w] {
			return true
		}
	}
	return false
}

// respondTo builds a canned coach reply for the latest user message.
func (c *NullClient) respondTo(msgs []Message) string {
	var lastUser string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			lastUser = msgs[i].Text
			break
		}
	}

	subject := strings.TrimSpace(lastUser)
	if subject == "" {
		return "Tell me about the image you have in mind.\nWhat's the main subject?"
	}

	if looksAffirmative(lastUser) {
		return "Great - locking that in. Ready to generate!\n" +
			"Summary: your vision is confirmed and complete."
	}

	var sb strings.Builder
	sb.WriteString("Here's what I've got so far:\n")
	sb.WriteString("Render: " + subject + " (center)\n")
	sb.WriteString("Does this match your vision?")
	return sb.String()
}

// Complete returns a canned response. Prompts that ask for a grounding
// self-assessment get a well-formed JSON verdict.
func (c *NullClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, types.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", types.Usage{}, err
	}

	if strings.Contains(userPrompt, "needs_search") || strings.Contains(systemPrompt, "needs_search") {
		out := `{"needs_search": false, "confidence": 0.9, "reason": "general creative request", "suggested_query": ""}`
		return out, types.Usage{TokensIn: len(strings.Fields(userPrompt)), TokensOut: len(strings.Fields(out))}, nil
	}

	out := c.respondTo([]Message{{Role: types.RoleUser, Text: userPrompt}})
	return out, types.Usage{
		TokensIn:  len(strings.Fields(systemPrompt)) + len(strings.Fields(userPrompt)),
		TokensOut: len(strings.Fields(out)),
	}, nil
}

// CompleteWithStreaming streams the canned response word by word.
func (c *NullClient) CompleteWithStreaming(ctx context.Context, systemPrompt string, msgs []Message) (<-chan string, <-chan types.Usage, <-chan error) {
	tokenChan := make(chan string, 100)
	usageChan := make(chan types.Usage, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer close(tokenChan)
		defer close(usageChan)
		defer close(errorChan)

		response := c.respondTo(msgs)
		logging.APIDebug("[Null] streaming %d chars", len(response))

		tokensIn := len(strings.Fields(systemPrompt))
		for _, m := range msgs {
			tokensIn += len(strings.Fields(m.Text))
		}

		words := strings.SplitAfter(response, " ")
		for _, w := range words {
			select {
			case tokenChan <- w:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}

		usageChan <- types.Usage{
			TokensIn:  tokensIn,
			TokensOut: len(strings.Fields(response)),
		}
	}()

	return tokenChan, usageChan, errorChan
}
