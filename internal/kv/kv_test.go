package kv

import (
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore()

	if err := s.SetWithTTL("k", []byte("v"), 0); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	val, found, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if string(val) != "v" {
		t.Errorf("got %q, want %q", val, "v")
	}
}

func TestMemoryStore_MissingKey(t *testing.T) {
	s := NewMemoryStore()

	val, found, err := s.Get("nope")
	if err != nil {
		t.Fatalf("missing key must not error, got: %v", err)
	}
	if found || val != nil {
		t.Errorf("missing key must report (nil, false), got (%v, %v)", val, found)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.SetWithTTL("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	// Still live just before the deadline.
	now = now.Add(59 * time.Second)
	if _, found, _ := s.Get("k"); !found {
		t.Fatal("key expired early")
	}

	// Lapsed keys are indistinguishable from never-written ones.
	now = now.Add(2 * time.Second)
	val, found, err := s.Get("k")
	if err != nil {
		t.Fatalf("expired key must not error, got: %v", err)
	}
	if found || val != nil {
		t.Error("expired key must report (nil, false)")
	}
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.SetWithTTL("k", []byte("v"), 0); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	now = now.Add(1000 * time.Hour)
	if _, found, _ := s.Get("k"); !found {
		t.Error("zero TTL key must never expire")
	}
}

func TestMemoryStore_OverwriteRefreshesTTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.SetWithTTL("k", []byte("v1"), time.Minute)
	now = now.Add(50 * time.Second)
	s.SetWithTTL("k", []byte("v2"), time.Minute)

	// Past the first deadline, within the second.
	now = now.Add(30 * time.Second)
	val, found, _ := s.Get("k")
	if !found {
		t.Fatal("rewrite must refresh the deadline")
	}
	if string(val) != "v2" {
		t.Errorf("got %q, want v2", val)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	s.SetWithTTL("k", []byte("v"), 0)

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := s.Get("k"); found {
		t.Error("deleted key still found")
	}

	// Deleting a missing key is a no-op.
	if err := s.Delete("k"); err != nil {
		t.Errorf("deleting missing key must not error: %v", err)
	}
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	s := NewMemoryStore()
	s.SetWithTTL("grounding:fortnite:a", []byte("1"), 0)
	s.SetWithTTL("grounding:fortnite:b", []byte("2"), 0)
	s.SetWithTTL("grounding:valorant:a", []byte("3"), 0)
	s.SetWithTTL("session:x", []byte("4"), 0)

	removed, err := s.DeleteByPrefix("grounding:fortnite:")
	if err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d entries, want 2", removed)
	}
	if s.Len() != 2 {
		t.Errorf("store has %d entries, want 2", s.Len())
	}
	if _, found, _ := s.Get("grounding:valorant:a"); !found {
		t.Error("unrelated topic entry was removed")
	}
}

func TestMemoryStore_FailAll(t *testing.T) {
	s := NewMemoryStore()
	s.SetWithTTL("k", []byte("v"), 0)
	s.FailAll(true)

	if _, _, err := s.Get("k"); err == nil {
		t.Error("Get must error in failure mode")
	}
	if err := s.SetWithTTL("k", []byte("v"), 0); err == nil {
		t.Error("SetWithTTL must error in failure mode")
	}
	if err := s.Delete("k"); err == nil {
		t.Error("Delete must error in failure mode")
	}
	if _, err := s.DeleteByPrefix("k"); err == nil {
		t.Error("DeleteByPrefix must error in failure mode")
	}

	s.FailAll(false)
	if _, found, err := s.Get("k"); err != nil || !found {
		t.Error("store must recover after failure mode is cleared")
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer s.Close()

	if err := s.SetWithTTL("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}
	val, found, err := s.Get("k")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if string(val) != "v" {
		t.Errorf("got %q, want v", val)
	}

	if _, found, err := s.Get("missing"); err != nil || found {
		t.Errorf("missing key must report (false, nil), got found=%v err=%v", found, err)
	}
}

func TestBadgerStore_DeleteByPrefix(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer s.Close()

	s.SetWithTTL("p:a", []byte("1"), 0)
	s.SetWithTTL("p:b", []byte("2"), 0)
	s.SetWithTTL("q:a", []byte("3"), 0)

	removed, err := s.DeleteByPrefix("p:")
	if err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	if _, found, _ := s.Get("q:a"); !found {
		t.Error("entry outside the prefix was removed")
	}
}
