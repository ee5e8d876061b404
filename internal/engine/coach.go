package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"intentforge/internal/grounding"
	"intentforge/internal/intent"
	"intentforge/internal/llm"
	"intentforge/internal/logging"
	"intentforge/internal/search"
	"intentforge/internal/session"
	"intentforge/internal/types"
	"intentforge/internal/validator"
)

const coachSystemPrompt = `You are a creative-asset coach. You help the user refine a vision for one image without ever exposing prompt engineering.

Rules:
- Structure your understanding with marker lines, one element each:
  Keep: <existing asset to reuse> (<region>)
  Render: <content to draw> (<region>)
  Display text: "<literal text>" (<region>)
- When something could be either literal text or an instruction, ask.
- Ask at most one clarifying question per reply.
- Only after the user explicitly confirms, reply with "Ready to generate!" and a line starting with "Summary:".`

// Deps are the injected ports. Constructed once at the composition root; no
// package-level singletons.
type Deps struct {
	Sessions  *session.Store
	LLM       llm.Client
	Search    search.Provider
	Grounding *grounding.Engine
	Cache     *grounding.Cache
	Validator *validator.Validator

	// TierResolver reports whether an owner's tier grants grounding.
	// nil grants everyone.
	TierResolver func(ownerID string) bool

	// MaxSearchResults caps each retrieval. Zero means 5.
	MaxSearchResults int
}

// Coach is the orchestrating session service.
type Coach struct {
	deps Deps
}

// NewCoach wires the engine from its ports.
func NewCoach(deps Deps) (*Coach, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if deps.Search == nil {
		deps.Search = search.NewNullProvider()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.DefaultConfig())
	}
	if deps.MaxSearchResults <= 0 {
		deps.MaxSearchResults = 5
	}
	return &Coach{deps: deps}, nil
}

func (c *Coach) privileged(ownerID string) bool {
	if c.deps.TierResolver == nil {
		return true
	}
	return c.deps.TierResolver(ownerID)
}

// Start opens a session and runs the first turn with the user's opening
// description.
func (c *Coach) Start(ctx context.Context, ownerID string, sctx types.SessionContext, description string) (string, <-chan Event, error) {
	sess, err := c.deps.Sessions.Create(ownerID, sctx)
	if err != nil {
		return "", nil, err
	}
	logging.Engine("Start: session=%s owner=%s", sess.ID, ownerID)

	events := make(chan Event, 64)
	go c.runTurn(ctx, events, sess.ID, ownerID, description)
	return sess.ID, events, nil
}

// Continue runs one more turn against an existing session.
func (c *Coach) Continue(ctx context.Context, sessionID, ownerID, message string) (<-chan Event, error) {
	if _, err := c.deps.Sessions.GetOwned(sessionID, ownerID); err != nil {
		return nil, err
	}

	events := make(chan Event, 64)
	go c.runTurn(ctx, events, sessionID, ownerID, message)
	return events, nil
}

// emit delivers an event unless the caller has gone away.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// runTurn executes the per-turn control flow. The events channel always
// receives a terminal done or error event before closing (unless the caller
// cancelled, in which case delivery itself is abandoned).
func (c *Coach) runTurn(ctx context.Context, events chan<- Event, sessionID, ownerID, message string) {
	defer close(events)

	fail := func(err error) {
		logging.EngineWarn("Turn failed on session %s: %v", sessionID, err)
		emit(ctx, events, Event{Type: EventError, Message: err.Error()})
	}

	// Commit the user's turn first: it counts against the budgets and must
	// survive a provider failure.
	userMsg := types.Message{
		Role:      types.RoleUser,
		Text:      message,
		Timestamp: time.Now().UTC(),
		TokensIn:  len(strings.Fields(message)),
	}
	sess, err := c.deps.Sessions.AppendMessage(sessionID, userMsg)
	if err != nil {
		fail(err)
		return
	}

	// Grounding: best effort, silently degraded on every failure path.
	groundingContext := c.ground(ctx, events, sess, message)

	// Stream the coach's reply.
	transcript := buildTranscript(sess)
	tokens, usages, errs := c.deps.LLM.CompleteWithStreaming(ctx, systemPromptFor(sess, groundingContext), transcript)

	var reply strings.Builder
	var usage types.Usage
	streamErr := error(nil)

	for tokens != nil {
		select {
		case tok, ok := <-tokens:
			if !ok {
				tokens = nil
				continue
			}
			reply.WriteString(tok)
			if !emit(ctx, events, Event{Type: EventToken, Token: tok}) {
				streamErr = ctx.Err()
				tokens = nil
			}
		case u, ok := <-usages:
			if !ok {
				usages = nil
				continue
			}
			usage = u
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				streamErr = err
				tokens = nil
			}
		case <-ctx.Done():
			streamErr = ctx.Err()
			tokens = nil
		}
	}
	// Drain usage if it arrived after the token channel closed.
	if usage == (types.Usage{}) {
		select {
		case u, ok := <-usages:
			if ok {
				usage = u
			}
		default:
		}
	}

	replyText := reply.String()

	// Commit the completed portion and fold the turn into the schema.
	// Partial replies from a failed stream are committed too; tokens already
	// streamed are never retracted.
	updated, commitErr := c.commitTurn(sessionID, message, replyText, usage, groundingContext != "")
	if commitErr != nil {
		fail(commitErr)
		return
	}

	if streamErr != nil {
		fail(&types.ProviderError{Provider: "llm", Err: streamErr})
		return
	}

	// Readiness after this turn.
	schema := updated.Schema
	state := intent.Readiness(schema)
	description := intent.GenerationDescription(schema, updated.Context)
	status := &IntentStatus{
		IsReady:                state == types.ReadinessReady,
		ReadinessState:         state,
		Confidence:             intent.Confidence(schema),
		MissingInfo:            intent.MissingInfo(schema),
		ClarificationQuestions: intent.ClarificationQuestions(schema),
		RefinedDescription:     description,
	}
	if !emit(ctx, events, Event{Type: EventIntentStatus, Intent: status}) {
		return
	}

	emit(ctx, events, Event{Type: EventDone, Done: &DoneInfo{
		TurnsUsed:      updated.TurnCount,
		TurnsRemaining: c.deps.Sessions.TurnsRemaining(updated),
		TokensIn:       updated.TokensInTotal,
		TokensOut:      updated.TokensOutTotal,
	}})
}

// ground runs the grounding decision ladder and retrieval, returning the
// context text to inject (empty when the turn stays ungrounded).
func (c *Coach) ground(ctx context.Context, events chan<- Event, sess *types.Session, message string) string {
	if c.deps.Grounding == nil {
		return ""
	}

	decision := c.deps.Grounding.ShouldGround(ctx, message, c.privileged(sess.OwnerID))
	if !decision.Should {
		logging.GroundingDebug("Turn ungrounded: %s", decision.Reason)
		return ""
	}

	topic := decision.Topic
	if topic == "" {
		topic = "general"
	}

	if !emit(ctx, events, Event{Type: EventGroundingStart, Topic: topic, Query: decision.Query}) {
		return ""
	}

	usedSearch := false
	contextText := ""
	if c.deps.Cache != nil {
		if entry, hit := c.deps.Cache.Get(topic, decision.Query); hit {
			contextText = entry.ContextText
		}
	}

	if contextText == "" {
		results := c.deps.Search.Search(ctx, decision.Query, c.deps.MaxSearchResults)
		usedSearch = true
		if len(results) > 0 {
			var sb strings.Builder
			urls := make([]string, 0, len(results))
			for _, r := range results {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", r.Title, r.Snippet))
				urls = append(urls, r.URL)
			}
			contextText = sb.String()
			if c.deps.Cache != nil {
				c.deps.Cache.Set(topic, decision.Query, grounding.Entry{
					ContextText: contextText,
					SourceURLs:  urls,
					Query:       decision.Query,
				})
			}
		}
	}

	emit(ctx, events, Event{Type: EventGroundingComplete, Topic: topic, UsedSearch: usedSearch})
	return contextText
}

// commitTurn persists the assistant reply and the parsed schema delta in one
// mutation, appending a prompt version when the description changed.
func (c *Coach) commitTurn(sessionID, userText, replyText string, usage types.Usage, grounded bool) (*types.Session, error) {
	return c.deps.Sessions.Mutate(sessionID, func(sess *types.Session) error {
		if sess.Schema == nil {
			sess.Schema = types.NewIntentSchema()
			sess.Schema.TurnCount = sess.TurnCount
		}

		prevDescription := intent.GenerationDescription(sess.Schema, sess.Context)

		intent.ParseUserText(sess.Schema, userText)
		if replyText != "" {
			if err := intent.ParseAssistantText(sess.Schema, replyText); err != nil &&
				len(sess.Schema.SceneElements) == 0 && len(sess.Schema.Ambiguities) == 0 {
				// No structure anywhere yet: treat the raw user message as
				// the working draft so refinement and readiness can proceed.
				logging.IntentWarn("Session %s: %v; seeding draft from user text", sessionID, err)
				intent.SeedDraft(sess.Schema, userText)
			}
			if usage.TokensIn > 0 {
				// Provider usage covers the whole prompt including the user
				// message; the word-count estimate recorded on append would
				// count it twice.
				if n := len(sess.Messages); n > 0 {
					if last := &sess.Messages[n-1]; last.Role == types.RoleUser {
						sess.TokensInTotal -= last.TokensIn
						last.TokensIn = 0
					}
				}
			}
			sess.Messages = append(sess.Messages, types.Message{
				Role:      types.RoleAssistant,
				Text:      replyText,
				Timestamp: time.Now().UTC(),
				TokensIn:  usage.TokensIn,
				TokensOut: usage.TokensOut,
			})
			sess.TokensInTotal += usage.TokensIn
			sess.TokensOutTotal += usage.TokensOut
		}

		if grounded {
			sess.GroundingCallCount++
		}

		newDescription := intent.GenerationDescription(sess.Schema, sess.Context)
		if newDescription != "" && newDescription != prevDescription {
			sess.PromptVersions = append(sess.PromptVersions, types.PromptVersion{
				Version:           len(sess.PromptVersions) + 1,
				Text:              newDescription,
				RefinementRequest: userText,
				Diff:              intent.DiffDescriptions(prevDescription, newDescription),
				Timestamp:         time.Now().UTC(),
			})
		}
		return nil
	})
}

// buildTranscript flattens session history into the ordered role-tagged
// prompt. Grounding context travels in the system prompt instead.
func buildTranscript(sess *types.Session) []llm.Message {
	msgs := make([]llm.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.Role == types.RoleSystem {
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Text: m.Text})
	}
	return msgs
}

func systemPromptFor(sess *types.Session, groundingContext string) string {
	var sb strings.Builder
	sb.WriteString(coachSystemPrompt)
	sb.WriteString(fmt.Sprintf("\n\nAsset type: %s.", sess.Context.AssetType))
	if sess.Context.Mood != "" {
		sb.WriteString(fmt.Sprintf(" Mood: %s (a style direction, never literal text in the image).", sess.Context.Mood))
	}
	if sess.Context.GameContext != "" {
		sb.WriteString(fmt.Sprintf(" Game: %s.", sess.Context.GameContext))
	}
	if sess.Context.BrandContext != "" {
		sb.WriteString(fmt.Sprintf(" Brand: %s.", sess.Context.BrandContext))
	}
	if groundingContext != "" {
		sb.WriteString("\n\nFresh reference material:\n")
		sb.WriteString(groundingContext)
	}
	return sb.String()
}

// readinessFor reports the session's readiness, with the lifecycle status
// taking precedence: an ended or expired session is terminal regardless of
// what the schema would compute.
func readinessFor(sess *types.Session) types.ReadinessState {
	switch sess.Status {
	case types.StatusEnded:
		return types.ReadinessEnded
	case types.StatusExpired:
		return types.ReadinessExpired
	}
	return intent.Readiness(sess.Schema)
}

// End finalizes the session and returns the validated hand-off payload.
func (c *Coach) End(ctx context.Context, sessionID, ownerID string) (*types.FinalIntent, error) {
	sess, err := c.deps.Sessions.End(sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	description := intent.GenerationDescription(sess.Schema, sess.Context)
	report := c.deps.Validator.Validate(description, sess.Context.AssetType, brandFromContext(sess.Context))
	if report.FixedDescription != "" {
		description = report.FixedDescription
	}

	logging.Engine("End: session=%s score=%.2f ready=%v", sessionID, report.QualityScore, report.IsGenerationReady)

	return &types.FinalIntent{
		Description: description,
		Confidence:  intent.Confidence(sess.Schema),
		Keywords:    intent.Keywords(description),
		Metadata: map[string]string{
			"asset_type":       sess.Context.AssetType,
			"readiness":        string(readinessFor(sess)),
			"quality_score":    fmt.Sprintf("%.2f", report.QualityScore),
			"generation_ready": fmt.Sprintf("%v", report.IsGenerationReady),
			"turns_used":       fmt.Sprintf("%d", sess.TurnCount),
		},
	}, nil
}

// GetState returns a read-only snapshot for the owner.
func (c *Coach) GetState(ctx context.Context, sessionID, ownerID string) (*Snapshot, error) {
	sess, err := c.deps.Sessions.GetOwned(sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		SessionID:              sess.ID,
		Status:                 sess.Status,
		AssetType:              sess.Context.AssetType,
		TurnCount:              sess.TurnCount,
		ReadinessState:         readinessFor(sess),
		Confidence:             intent.Confidence(sess.Schema),
		ClarificationQuestions: intent.ClarificationQuestions(sess.Schema),
		Description:            intent.GenerationDescription(sess.Schema, sess.Context),
		TokensIn:               sess.TokensInTotal,
		TokensOut:              sess.TokensOutTotal,
		GroundingCalls:         sess.GroundingCallCount,
	}, nil
}

func brandFromContext(sctx types.SessionContext) *validator.BrandContext {
	if sctx.BrandContext == "" {
		return nil
	}
	// BrandContext is a comma-separated palette, e.g. "purple, black, gold".
	var palette []string
	for _, c := range strings.Split(sctx.BrandContext, ",") {
		if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
			palette = append(palette, trimmed)
		}
	}
	if len(palette) == 0 {
		return nil
	}
	return &validator.BrandContext{Palette: palette}
}
