// Package session provides the durable, TTL-bounded conversation store. The
// kv store is authoritative for live operation; a best-effort asynchronous
// mirror to a relational store serves analytics and never propagates errors.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intentforge/internal/kv"
	"intentforge/internal/logging"
	"intentforge/internal/types"
)

const keyPrefix = "session:"

// Limits are the per-session budgets enforced on every appended message.
type Limits struct {
	MaxTurns     int
	MaxTokensIn  int
	MaxTokensOut int
}

// Store persists sessions in the kv store under refreshed TTLs.
type Store struct {
	kv     kv.Store
	ttl    time.Duration
	limits Limits
	mirror *Mirror // nil disables mirroring
	locks  *keyedMutex
}

// envelope is the persisted wire shape. The explicit version field makes a
// format mismatch a typed error instead of a silently defaulted record.
type envelope struct {
	SchemaVersion int            `json:"schema_version"`
	Session       *types.Session `json:"session"`
}

// NewStore creates a session store. mirror may be nil.
func NewStore(store kv.Store, ttl time.Duration, limits Limits, mirror *Mirror) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		kv:     store,
		ttl:    ttl,
		limits: limits,
		mirror: mirror,
		locks:  newKeyedMutex(),
	}
}

func sessionKey(id string) string { return keyPrefix + id }

// Create opens a new Active session for ownerID.
func (s *Store) Create(ownerID string, sctx types.SessionContext) (*types.Session, error) {
	now := time.Now().UTC()
	sess := &types.Session{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Status:         types.StatusActive,
		Context:        sctx,
		Messages:       []types.Message{},
		Schema:         types.NewIntentSchema(),
		PromptVersions: []types.PromptVersion{},
		CreatedAt:      now,
		UpdatedAt:      now,
		TTL:            s.ttl,
		Revision:       1,
	}

	if err := s.write(sess); err != nil {
		return nil, err
	}

	logging.Session("Created session %s for owner %s (asset=%s)", sess.ID, ownerID, sctx.AssetType)
	s.mirrorAsync(sess)
	return sess, nil
}

// Get fetches a session by id. Missing or TTL-lapsed keys and expired
// records both surface as typed errors.
func (s *Store) Get(id string) (*types.Session, error) {
	data, found, err := s.kv.Get(sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("session read failed: %w", err)
	}
	if !found {
		return nil, types.ErrSessionNotFound
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("session record corrupt: %w", err)
	}
	if env.SchemaVersion != types.SchemaVersion {
		return nil, &types.SchemaVersionError{Got: env.SchemaVersion, Want: types.SchemaVersion}
	}

	if env.Session.Status == types.StatusExpired {
		return nil, types.ErrSessionExpired
	}
	return env.Session, nil
}

// GetOwned fetches a session only for its owner. A lookup by anyone else is
// indistinguishable from "not found".
func (s *Store) GetOwned(id, ownerID string) (*types.Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		logging.SessionWarn("Ownership mismatch on session %s; reporting not found", id)
		return nil, types.ErrSessionNotFound
	}
	return sess, nil
}

// Mutate applies fn to the session under the per-id lock, bumps the
// revision, and rewrites the record with a refreshed TTL.
func (s *Store) Mutate(id string, fn func(*types.Session) error) (*types.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	sess.Revision++
	sess.UpdatedAt = time.Now().UTC()
	sess.TTL = s.ttl

	if err := s.write(sess); err != nil {
		return nil, err
	}
	s.mirrorAsync(sess)
	return sess, nil
}

// AppendMessage appends one message, counting turns and tokens. User
// messages increase the turn count by exactly one and are checked against
// the session budgets first.
func (s *Store) AppendMessage(id string, msg types.Message) (*types.Session, error) {
	return s.Mutate(id, func(sess *types.Session) error {
		if sess.Status != types.StatusActive {
			return types.ErrSessionEnded
		}

		if msg.Role == types.RoleUser {
			if err := s.checkLimits(sess); err != nil {
				return err
			}
		}

		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		sess.Messages = append(sess.Messages, msg)
		sess.TokensInTotal += msg.TokensIn
		sess.TokensOutTotal += msg.TokensOut

		if msg.Role == types.RoleUser {
			sess.TurnCount++
			if sess.Schema != nil {
				sess.Schema.TurnCount = sess.TurnCount
			}
		}
		return nil
	})
}

// checkLimits enforces the turn and token budgets.
func (s *Store) checkLimits(sess *types.Session) error {
	if s.limits.MaxTurns > 0 && sess.TurnCount >= s.limits.MaxTurns {
		return &types.SessionLimitError{LimitType: types.LimitTurns, Current: sess.TurnCount, Max: s.limits.MaxTurns}
	}
	if s.limits.MaxTokensIn > 0 && sess.TokensInTotal >= s.limits.MaxTokensIn {
		return &types.SessionLimitError{LimitType: types.LimitTokensIn, Current: sess.TokensInTotal, Max: s.limits.MaxTokensIn}
	}
	if s.limits.MaxTokensOut > 0 && sess.TokensOutTotal >= s.limits.MaxTokensOut {
		return &types.SessionLimitError{LimitType: types.LimitTokensOut, Current: sess.TokensOutTotal, Max: s.limits.MaxTokensOut}
	}
	return nil
}

// TurnsRemaining reports how many user turns the session has left.
func (s *Store) TurnsRemaining(sess *types.Session) int {
	if s.limits.MaxTurns <= 0 {
		return -1
	}
	remaining := s.limits.MaxTurns - sess.TurnCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// End marks the session Ended. Only the owner may end a session; anyone else
// gets "not found". Ending an already ended session is idempotent.
func (s *Store) End(id, ownerID string) (*types.Session, error) {
	if _, err := s.GetOwned(id, ownerID); err != nil {
		return nil, err
	}
	return s.Mutate(id, func(sess *types.Session) error {
		// Status transitions are monotonic; Ended never reverts.
		sess.Status = types.StatusEnded
		return nil
	})
}

// RefreshTTL rewrites the session with a fresh TTL without other changes.
func (s *Store) RefreshTTL(id string) error {
	_, err := s.Mutate(id, func(*types.Session) error { return nil })
	return err
}

// write serializes and stores the session under a fresh TTL.
func (s *Store) write(sess *types.Session) error {
	env := envelope{SchemaVersion: types.SchemaVersion, Session: sess}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("session marshal failed: %w", err)
	}
	if err := s.kv.SetWithTTL(sessionKey(sess.ID), data, s.ttl); err != nil {
		return fmt.Errorf("session write failed: %w", err)
	}
	logging.SessionDebug("Wrote session %s rev=%d ttl=%v", sess.ID, sess.Revision, s.ttl)
	return nil
}

// mirrorAsync queues a best-effort analytics upsert.
func (s *Store) mirrorAsync(sess *types.Session) {
	if s.mirror == nil {
		return
	}
	s.mirror.UpsertAsync(sess)
}

// Close flushes the mirror.
func (s *Store) Close() error {
	if s.mirror != nil {
		return s.mirror.Close()
	}
	return nil
}
