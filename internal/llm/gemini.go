package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"intentforge/internal/logging"
	"intentforge/internal/types"
)

// GeminiClient implements Client over the google genai SDK.
type GeminiClient struct {
	client          *genai.Client
	model           string
	timeout         time.Duration
	maxOutputTokens int32
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:          client,
		model:           cfg.Model,
		timeout:         cfg.Timeout,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

func (c *GeminiClient) generateConfig(systemPrompt string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxOutputTokens,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	return cfg
}

func transcriptToContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}

func usageFrom(meta *genai.GenerateContentResponseUsageMetadata) types.Usage {
	if meta == nil {
		return types.Usage{}
	}
	return types.Usage{
		TokensIn:  int(meta.PromptTokenCount),
		TokensOut: int(meta.CandidatesTokenCount),
	}
}

// Complete performs a blocking completion.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, types.Usage, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("[Gemini] Complete: model=%s promptLen=%d", c.model, len(userPrompt))

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(userPrompt), c.generateConfig(systemPrompt))
	if err != nil {
		logging.APIError("[Gemini] Complete failed after %v: %v", time.Since(start), err)
		return "", types.Usage{}, &types.ProviderError{Provider: "gemini", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		logging.APIWarn("[Gemini] Complete: empty candidates (safety filter?)")
		return "", usageFrom(resp.UsageMetadata), &types.ProviderError{
			Provider: "gemini",
			Err:      fmt.Errorf("empty response"),
		}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	logging.API("[Gemini] Complete: %d chars in %v", sb.Len(), time.Since(start))
	return sb.String(), usageFrom(resp.UsageMetadata), nil
}

// CompleteWithStreaming streams a completion over the transcript.
func (c *GeminiClient) CompleteWithStreaming(ctx context.Context, systemPrompt string, msgs []Message) (<-chan string, <-chan types.Usage, <-chan error) {
	tokenChan := make(chan string, 100)
	usageChan := make(chan types.Usage, 1)
	errorChan := make(chan error, 1)

	logging.APIDebug("[Gemini] CompleteWithStreaming: starting model=%s turns=%d", c.model, len(msgs))

	go func() {
		defer close(tokenChan)
		defer close(usageChan)
		defer close(errorChan)

		// Auto-apply timeout if context has no deadline
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		var usage types.Usage

		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model,
			transcriptToContents(msgs), c.generateConfig(systemPrompt)) {
			if err != nil {
				if ctx.Err() != nil {
					logging.APIWarn("[Gemini] CompleteWithStreaming: cancelled after %v", time.Since(start))
					errorChan <- ctx.Err()
					return
				}
				logging.APIError("[Gemini] CompleteWithStreaming: stream error after %v: %v", time.Since(start), err)
				errorChan <- &types.ProviderError{Provider: "gemini", Err: err}
				return
			}
			if chunk.UsageMetadata != nil {
				usage = usageFrom(chunk.UsageMetadata)
			}
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case tokenChan <- part.Text:
				case <-ctx.Done():
					errorChan <- ctx.Err()
					return
				}
			}
		}

		usageChan <- usage
		logging.API("[Gemini] CompleteWithStreaming: completed in %v (in=%d out=%d)",
			time.Since(start), usage.TokensIn, usage.TokensOut)
	}()

	return tokenChan, usageChan, errorChan
}
