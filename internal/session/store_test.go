package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"intentforge/internal/kv"
	"intentforge/internal/types"
)

func newTestStore(mem *kv.MemoryStore, limits Limits) *Store {
	return NewStore(mem, 30*time.Minute, limits, nil)
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})

	sess, err := s.Create("owner-1", types.SessionContext{AssetType: "twitch_emote", Mood: "hype"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has no id")
	}
	if sess.Status != types.StatusActive {
		t.Errorf("status = %v, want active", sess.Status)
	}
	if sess.Revision != 1 {
		t.Errorf("revision = %d, want 1", sess.Revision)
	}
	if sess.Schema == nil {
		t.Fatal("new session has no intent schema")
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Context.AssetType != "twitch_emote" {
		t.Errorf("asset type = %q", got.Context.AssetType)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})

	_, err := s.Get("no-such-id")
	if !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestStore_OwnershipFoldsToNotFound(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	// A foreign owner's lookup is indistinguishable from a missing session.
	_, err := s.GetOwned(sess.ID, "owner-2")
	if !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("foreign lookup: got %v, want ErrSessionNotFound", err)
	}

	if _, err := s.GetOwned(sess.ID, "owner-1"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestStore_TurnCounting(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi", TokensIn: 1}); err != nil {
			t.Fatalf("user append %d failed: %v", i, err)
		}
		if _, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleAssistant, Text: "hello", TokensOut: 1}); err != nil {
			t.Fatalf("assistant append %d failed: %v", i, err)
		}
	}

	got, _ := s.Get(sess.ID)
	if got.TurnCount != n {
		t.Errorf("turn count = %d after %d user messages, want %d", got.TurnCount, n, n)
	}
	if got.Schema.TurnCount != n {
		t.Errorf("schema turn count = %d, want %d", got.Schema.TurnCount, n)
	}
	if len(got.Messages) != 2*n {
		t.Errorf("message count = %d, want %d", len(got.Messages), 2*n)
	}
	if got.TokensInTotal != n || got.TokensOutTotal != n {
		t.Errorf("token totals = %d/%d, want %d/%d", got.TokensInTotal, got.TokensOutTotal, n, n)
	}
}

func TestStore_TurnLimit(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{MaxTurns: 2})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	for i := 0; i < 2; i++ {
		if _, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi"}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	_, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "one too many"})
	var limitErr *types.SessionLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("got %v, want SessionLimitError", err)
	}
	if limitErr.LimitType != types.LimitTurns {
		t.Errorf("limit type = %v, want turns", limitErr.LimitType)
	}

	// The failed append must not have counted.
	got, _ := s.Get(sess.ID)
	if got.TurnCount != 2 {
		t.Errorf("turn count = %d, want 2", got.TurnCount)
	}
}

func TestStore_TokenLimit(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{MaxTokensIn: 10})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	if _, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi", TokensIn: 10}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	_, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi", TokensIn: 1})
	var limitErr *types.SessionLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("got %v, want SessionLimitError", err)
	}
	if limitErr.LimitType != types.LimitTokensIn {
		t.Errorf("limit type = %v", limitErr.LimitType)
	}
}

func TestStore_TurnsRemaining(t *testing.T) {
	unlimited := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := unlimited.Create("o", types.SessionContext{})
	if got := unlimited.TurnsRemaining(sess); got != -1 {
		t.Errorf("unlimited store: %d, want -1", got)
	}

	bounded := newTestStore(kv.NewMemoryStore(), Limits{MaxTurns: 3})
	sess, _ = bounded.Create("o", types.SessionContext{})
	bounded.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi"})
	got, _ := bounded.Get(sess.ID)
	if remaining := bounded.TurnsRemaining(got); remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestStore_EndIsMonotonic(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	ended, err := s.End(sess.ID, "owner-1")
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.Status != types.StatusEnded {
		t.Errorf("status = %v, want ended", ended.Status)
	}

	// Appending to an ended session is rejected; the status never reverts.
	_, err = s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi"})
	if !errors.Is(err, types.ErrSessionEnded) {
		t.Errorf("append after end: got %v, want ErrSessionEnded", err)
	}

	// Ending twice is idempotent.
	if _, err := s.End(sess.ID, "owner-1"); err != nil {
		t.Errorf("second End failed: %v", err)
	}

	// Only the owner may end.
	other, _ := s.Create("owner-1", types.SessionContext{})
	if _, err := s.End(other.ID, "owner-2"); !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("foreign End: got %v, want ErrSessionNotFound", err)
	}
}

func TestStore_TTLRefreshOnMutation(t *testing.T) {
	mem := kv.NewMemoryStore()
	now := time.Now()
	mem.SetClock(func() time.Time { return now })
	s := newTestStore(mem, Limits{})

	sess, _ := s.Create("owner-1", types.SessionContext{})

	// Touch the session just before the deadline; the write resets it.
	now = now.Add(29 * time.Minute)
	if err := s.RefreshTTL(sess.ID); err != nil {
		t.Fatalf("RefreshTTL failed: %v", err)
	}

	// Past the original deadline but inside the refreshed one.
	now = now.Add(20 * time.Minute)
	if _, err := s.Get(sess.ID); err != nil {
		t.Errorf("refreshed session lapsed: %v", err)
	}

	// Idle past the refreshed deadline, the session is gone.
	now = now.Add(31 * time.Minute)
	if _, err := s.Get(sess.ID); !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("lapsed session: got %v, want ErrSessionNotFound", err)
	}
}

func TestStore_SchemaVersionMismatch(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := newTestStore(mem, Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	// Overwrite the record with a stale format version.
	stale, _ := json.Marshal(map[string]interface{}{
		"schema_version": types.SchemaVersion - 1,
		"session":        sess,
	})
	mem.SetWithTTL("session:"+sess.ID, stale, time.Hour)

	_, err := s.Get(sess.ID)
	var verr *types.SchemaVersionError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want SchemaVersionError", err)
	}
	if verr.Got != types.SchemaVersion-1 || verr.Want != types.SchemaVersion {
		t.Errorf("version error = %+v", verr)
	}
}

func TestStore_MutateBumpsRevision(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	updated, err := s.Mutate(sess.ID, func(sess *types.Session) error {
		sess.GroundingCallCount++
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if updated.Revision != sess.Revision+1 {
		t.Errorf("revision = %d, want %d", updated.Revision, sess.Revision+1)
	}
	if !updated.UpdatedAt.After(sess.UpdatedAt) && !updated.UpdatedAt.Equal(sess.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}
}

func TestStore_MutateErrorDiscardsChanges(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	boom := errors.New("boom")
	_, err := s.Mutate(sess.ID, func(sess *types.Session) error {
		sess.GroundingCallCount = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	got, _ := s.Get(sess.ID)
	if got.GroundingCallCount != 0 {
		t.Error("failed mutation leaked into the stored record")
	}
	if got.Revision != 1 {
		t.Errorf("revision = %d, want 1", got.Revision)
	}
}

func TestStore_ConcurrentAppendsSerialize(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), Limits{})
	sess, _ := s.Create("owner-1", types.SessionContext{})

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi"})
		}()
	}
	wg.Wait()

	got, _ := s.Get(sess.ID)
	if got.TurnCount != n {
		t.Errorf("turn count = %d after %d concurrent appends, want %d", got.TurnCount, n, n)
	}
	if got.Revision != int64(n+1) {
		t.Errorf("revision = %d, want %d", got.Revision, n+1)
	}
}

func TestMirror_UpsertAndClose(t *testing.T) {
	m, err := NewMirror(t.TempDir() + "/analytics.db")
	if err != nil {
		t.Fatalf("NewMirror failed: %v", err)
	}

	s := NewStore(kv.NewMemoryStore(), time.Minute, Limits{}, m)
	sess, err := s.Create("owner-1", types.SessionContext{AssetType: "banner"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.AppendMessage(sess.ID, types.Message{Role: types.RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Close drains the worker pool; the row must be visible afterwards.
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
