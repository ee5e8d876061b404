package intent

import (
	"intentforge/internal/logging"
	"intentforge/internal/types"
)

// Readiness computes the state machine value for a schema.
//
// Hard invariant: turn 0 can never be Ready, even if the model's text carried
// an explicit readiness marker. The override is applied here, after parsing,
// and logged when the model's claim conflicts with the schema.
func Readiness(schema *types.IntentSchema) types.ReadinessState {
	if schema == nil {
		return types.ReadinessNotReady
	}

	if schema.TurnCount == 0 {
		if schema.ModelClaimedReady {
			logging.IntentWarn("Model claimed readiness on turn 0; overriding to not_ready")
		}
		return types.ReadinessNotReady
	}

	if len(schema.UnresolvedAmbiguities()) > 0 {
		return types.ReadinessNeedsClarification
	}

	if len(schema.SceneElements) == 0 {
		return types.ReadinessNotReady
	}

	if !schema.UserConfirmedVision {
		return types.ReadinessAwaitingConfirm
	}

	return types.ReadinessReady
}

// IsReady reports whether the schema has reached the Ready state.
func IsReady(schema *types.IntentSchema) bool {
	return Readiness(schema) == types.ReadinessReady
}

// Confidence scores how settled the current vision is.
func Confidence(schema *types.IntentSchema) float64 {
	switch Readiness(schema) {
	case types.ReadinessReady:
		return 0.9
	case types.ReadinessAwaitingConfirm:
		if !schema.LastReplyEndedWithQuestion {
			return 0.7
		}
		return 0.5
	default:
		return 0.5
	}
}

// ClarificationQuestions lists the open questions blocking readiness, in the
// order they were raised.
func ClarificationQuestions(schema *types.IntentSchema) []string {
	if schema == nil {
		return nil
	}
	var out []string
	for _, a := range schema.Ambiguities {
		if !a.Resolved {
			out = append(out, a.ClarificationQuestion)
		}
	}
	return out
}

// MissingInfo names what the schema still lacks, for the intent_status event.
func MissingInfo(schema *types.IntentSchema) []string {
	if schema == nil {
		return []string{"subject"}
	}
	var missing []string
	if len(schema.SceneElements) == 0 {
		missing = append(missing, "subject")
	}
	if len(schema.UnresolvedAmbiguities()) > 0 {
		missing = append(missing, "clarifications")
	}
	if !schema.UserConfirmedVision {
		missing = append(missing, "confirmation")
	}
	return missing
}
