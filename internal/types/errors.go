package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Forbidden access is deliberately
// folded into ErrSessionNotFound so a lookup by a non-owner is
// indistinguishable from a missing session.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionEnded    = errors.New("session already ended")
)

// LimitType names which session budget was exhausted.
type LimitType string

const (
	LimitTurns     LimitType = "turns"
	LimitTokensIn  LimitType = "tokens_in"
	LimitTokensOut LimitType = "tokens_out"
)

// SessionLimitError reports an exhausted per-session budget. Terminal for the
// current turn; surfaced verbatim to the caller as an error event.
type SessionLimitError struct {
	LimitType LimitType
	Current   int
	Max       int
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("session limit exceeded: %s %d/%d", e.LimitType, e.Current, e.Max)
}

// SchemaVersionError reports a persisted record whose serialization version
// does not match the running binary. Deserialization failures are typed
// errors, never silent default substitutions.
type SchemaVersionError struct {
	Got  int
	Want int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("unsupported session schema version %d (want %d)", e.Got, e.Want)
}

// ExtractionError reports that the intent parser could not find structure in
// model output. The caller falls back to treating the prior description plus
// the raw message as the new draft.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("intent extraction failed: %s", e.Reason)
}

// ProviderError reports a failed or timed-out external call (LLM or search).
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
