// Package types provides shared type definitions used across intentforge
// packages. This package exists to break import cycles between the session
// store, the intent state machine, and the coach engine. Types in this
// package should be foundational data structures with no complex dependencies.
package types

import (
	"time"
)

// SchemaVersion is the current serialization version for persisted sessions.
// Bump whenever the Session or IntentSchema wire shape changes incompatibly.
const SchemaVersion = 2

// =============================================================================
// SESSION
// =============================================================================

// SessionStatus is the lifecycle state of a coaching session.
// Transitions are monotonic: Active -> Ended or Active -> Expired.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
	StatusExpired SessionStatus = "expired"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn fragment in the conversation transcript.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
}

// SessionContext carries the creative brief the session was opened with.
type SessionContext struct {
	AssetType    string `json:"asset_type"`
	Mood         string `json:"mood,omitempty"`
	GameContext  string `json:"game_context,omitempty"`
	BrandContext string `json:"brand_context,omitempty"`
}

// Session is one end-to-end conversation instance between a user and the
// assistant, scoped to a single creative asset.
type Session struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Status             SessionStatus   `json:"status"`
	Context            SessionContext  `json:"context"`
	Messages           []Message       `json:"messages"`
	TurnCount          int             `json:"turn_count"`
	TokensInTotal      int             `json:"tokens_in_total"`
	TokensOutTotal     int             `json:"tokens_out_total"`
	GroundingCallCount int             `json:"grounding_call_count"`
	Schema             *IntentSchema   `json:"intent_schema"`
	PromptVersions     []PromptVersion `json:"prompt_version_history"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	TTL                time.Duration   `json:"ttl"`

	// Revision is a monotonic stamp compared on write for optimistic
	// concurrency. Not part of the user-visible contract.
	Revision int64 `json:"revision"`
}

// PromptVersion is one append-only entry in the session's description
// history. Never mutated after creation; a refinement appends a new version.
type PromptVersion struct {
	Version           int             `json:"version"` // 1-based, monotonic
	Text              string          `json:"text"`
	RefinementRequest string          `json:"refinement_request,omitempty"`
	Diff              DescriptionDiff `json:"diff"`
	Timestamp         time.Time       `json:"timestamp"`
}

// DescriptionDiff records the word-level delta between two consecutive
// description versions.
type DescriptionDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// =============================================================================
// INTENT SCHEMA
// =============================================================================

// SourceKind classifies how a scene element reaches the final image.
type SourceKind string

const (
	// SourceKeepAsset marks a region that reuses an existing uploaded asset.
	SourceKeepAsset SourceKind = "keep_asset"
	// SourceRender marks content the generator must draw.
	SourceRender SourceKind = "render"
	// SourceDisplayText marks literal text to be rendered as visible text.
	SourceDisplayText SourceKind = "display_text"
)

// SceneElement is one structured piece of the target composition.
type SceneElement struct {
	Region     string     `json:"region"`
	Content    string     `json:"content"`
	SourceKind SourceKind `json:"source_kind"`
}

// Ambiguity is a piece of user-authored text whose interpretation (literal
// display text vs. a rendering instruction) is unresolved.
type Ambiguity struct {
	Content               string `json:"content"`
	ClarificationQuestion string `json:"clarification_question"`
	Resolved              bool   `json:"resolved"`
}

// IntentSchema is the structured representation of the conversation: scene
// elements, ambiguities, and the user's confirmation state. It is owned
// exclusively by its Session.
type IntentSchema struct {
	SceneElements       []SceneElement `json:"scene_elements"`
	Ambiguities         []Ambiguity    `json:"ambiguous_annotations"`
	UserConfirmedVision bool           `json:"user_confirmed_vision"`
	TurnCount           int            `json:"turn_count"`
	LastCoachSummary    string         `json:"last_coach_summary,omitempty"`

	// ModelClaimedReady records that the latest assistant text carried an
	// explicit readiness marker. Informational: readiness is computed from
	// the schema, never taken from the model's claim.
	ModelClaimedReady bool `json:"model_claimed_ready,omitempty"`

	// LastReplyEndedWithQuestion tracks whether the coach's latest reply
	// trailed off with a question. Feeds the confidence heuristic.
	LastReplyEndedWithQuestion bool `json:"last_reply_ended_with_question,omitempty"`
}

// NewIntentSchema returns a fresh schema at turn zero.
func NewIntentSchema() *IntentSchema {
	return &IntentSchema{
		SceneElements: []SceneElement{},
		Ambiguities:   []Ambiguity{},
	}
}

// UnresolvedAmbiguities returns the ambiguities still awaiting an answer.
func (s *IntentSchema) UnresolvedAmbiguities() []Ambiguity {
	var out []Ambiguity
	for _, a := range s.Ambiguities {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

// ReadinessState is the state machine value indicating whether the intent
// schema is complete and confirmed enough to generate from.
type ReadinessState string

const (
	ReadinessNotReady           ReadinessState = "not_ready"
	ReadinessNeedsClarification ReadinessState = "needs_clarification"
	ReadinessAwaitingConfirm    ReadinessState = "awaiting_confirmation"
	ReadinessReady              ReadinessState = "ready"
	ReadinessEnded              ReadinessState = "ended"
	ReadinessExpired            ReadinessState = "expired"
)

// =============================================================================
// LLM / USAGE
// =============================================================================

// Usage reports token consumption for one LLM call.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// FinalIntent is the hand-off payload produced when a session ends.
type FinalIntent struct {
	Description string            `json:"description"`
	Confidence  float64           `json:"confidence"`
	Keywords    []string          `json:"keywords"`
	Metadata    map[string]string `json:"metadata"`
}
