package cache

import (
	"errors"
	"testing"
	"time"
)

func key() Key { return Key{Entity: "impact.platform", Window: "7d"} }

func TestGetMissingIsIdle(t *testing.T) {
	s := New()
	e := s.Get(key())
	if e.Status != StatusIdle {
		t.Fatalf("status %s, want idle", e.Status)
	}
}

func TestPutThenGet(t *testing.T) {
	s := New()
	start := time.Now().UTC()
	if !s.Put(key(), 42, start) {
		t.Fatal("put rejected")
	}
	e := s.Get(key())
	if !e.Fresh() || e.Value.(int) != 42 {
		t.Fatalf("entry %+v", e)
	}
}

func TestInvalidateKeepsValue(t *testing.T) {
	s := New()
	s.Put(key(), "v1", time.Now().UTC())
	s.Invalidate(key())
	e := s.Get(key())
	if e.Fresh() {
		t.Fatal("stale entry reported fresh")
	}
	if e.Value != "v1" {
		t.Fatalf("invalidate evicted value: %+v", e)
	}
}

func TestLateStaleResponseDiscarded(t *testing.T) {
	s := New()
	slowStart := time.Now().UTC()
	fastStart := slowStart.Add(50 * time.Millisecond)

	// fast refetch resolves first
	if !s.Put(key(), "fresh", fastStart) {
		t.Fatal("fast put rejected")
	}
	// slow initial fetch resolves late and must be discarded
	if s.Put(key(), "stale", slowStart) {
		t.Fatal("late stale put accepted")
	}
	if e := s.Get(key()); e.Value != "fresh" {
		t.Fatalf("store corrupted by late response: %+v", e)
	}
}

func TestEqualStartTimestampWins(t *testing.T) {
	// last-resolved wins when the start timestamps are equal
	s := New()
	start := time.Now().UTC()
	s.Put(key(), "first", start)
	s.Put(key(), "second", start)
	if e := s.Get(key()); e.Value != "second" {
		t.Fatalf("value %v, want second", e.Value)
	}
}

func TestFailGuardedByStartTimestamp(t *testing.T) {
	s := New()
	slowStart := time.Now().UTC()
	s.Put(key(), "fresh", slowStart.Add(time.Millisecond))
	if s.Fail(key(), errors.New("late failure"), slowStart) {
		t.Fatal("late failure accepted")
	}
	if e := s.Get(key()); !e.Fresh() {
		t.Fatalf("late failure corrupted entry: %+v", e)
	}
}

func TestApplyBeatsInFlightFetch(t *testing.T) {
	s := New()
	fetchStart := time.Now().UTC().Add(-time.Second)
	s.MarkLoading(key(), fetchStart)
	s.Apply(key(), "optimistic")
	// the older fetch resolves after the local write and is discarded
	if s.Put(key(), "authoritative-but-old", fetchStart) {
		t.Fatal("old fetch overwrote local write")
	}
	if e := s.Get(key()); e.Value != "optimistic" {
		t.Fatalf("value %v", e.Value)
	}
}

func TestInvalidateEntityPrefix(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	k7 := Key{Entity: "impact.platform", Window: "7d"}
	k30 := Key{Entity: "impact.platform", Window: "30d"}
	other := Key{Entity: "referrals.me"}
	s.Put(k7, 1, now)
	s.Put(k30, 2, now)
	s.Put(other, 3, now)
	s.InvalidateEntity("impact.platform")
	if s.Get(k7).Fresh() || s.Get(k30).Fresh() {
		t.Fatal("prefix invalidation missed a window-scoped entry")
	}
	if !s.Get(other).Fresh() {
		t.Fatal("prefix invalidation hit an unrelated entity")
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Put(key(), 1, time.Now().UTC())
	s.Clear()
	if e := s.Get(key()); e.Status != StatusIdle {
		t.Fatalf("status %s after clear", e.Status)
	}
}

func TestTypedValue(t *testing.T) {
	s := New()
	s.Put(key(), "str", time.Now().UTC())
	if _, ok := Value[int](s, key()); ok {
		t.Fatal("wrong type read succeeded")
	}
	if v, ok := Value[string](s, key()); !ok || v != "str" {
		t.Fatalf("typed read failed: %v %v", v, ok)
	}
}
