// Package engine orchestrates one conversation turn end to end: session
// fetch, grounding, the streamed LLM call, intent parsing, readiness, and
// persistence. Every turn terminates with exactly one done or error event.
package engine

import "intentforge/internal/types"

// EventType discriminates streamed events.
type EventType string

const (
	EventToken             EventType = "token"
	EventGroundingStart    EventType = "grounding_start"
	EventGroundingComplete EventType = "grounding_complete"
	EventIntentStatus      EventType = "intent_status"
	EventDone              EventType = "done"
	EventError             EventType = "error"
)

// Event is one streamed update. Exactly one payload field is set, matching
// the Type tag.
type Event struct {
	Type EventType `json:"type"`

	// EventToken
	Token string `json:"token,omitempty"`

	// EventGroundingStart / EventGroundingComplete
	Topic      string `json:"topic,omitempty"`
	Query      string `json:"query,omitempty"`
	UsedSearch bool   `json:"used_search,omitempty"`

	// EventIntentStatus
	Intent *IntentStatus `json:"intent,omitempty"`

	// EventDone
	Done *DoneInfo `json:"done,omitempty"`

	// EventError
	Message string `json:"message,omitempty"`
}

// IntentStatus reports the schema's readiness after a turn.
type IntentStatus struct {
	IsReady                bool                 `json:"is_ready"`
	ReadinessState         types.ReadinessState `json:"readiness_state"`
	Confidence             float64              `json:"confidence"`
	MissingInfo            []string             `json:"missing_info,omitempty"`
	ClarificationQuestions []string             `json:"clarification_questions,omitempty"`
	RefinedDescription     string               `json:"refined_description,omitempty"`
}

// DoneInfo closes a successful turn.
type DoneInfo struct {
	TurnsUsed      int `json:"turns_used"`
	TurnsRemaining int `json:"turns_remaining"` // -1 when unlimited
	TokensIn       int `json:"tokens_in"`
	TokensOut      int `json:"tokens_out"`
}

// Snapshot is the read-only session view returned by GetState.
type Snapshot struct {
	SessionID              string               `json:"session_id"`
	Status                 types.SessionStatus  `json:"status"`
	AssetType              string               `json:"asset_type"`
	TurnCount              int                  `json:"turn_count"`
	ReadinessState         types.ReadinessState `json:"readiness_state"`
	Confidence             float64              `json:"confidence"`
	ClarificationQuestions []string             `json:"clarification_questions,omitempty"`
	Description            string               `json:"description,omitempty"`
	TokensIn               int                  `json:"tokens_in"`
	TokensOut              int                  `json:"tokens_out"`
	GroundingCalls         int                  `json:"grounding_calls"`
}
