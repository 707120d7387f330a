package cache

import (
	"sync"
	"time"

	"snowball/internal/metrics"
)

// Status is the lifecycle state of a cached entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Key addresses an entry as a structured tuple so prefix invalidation
// ("all impact queries") is well-defined. Scope and Window are empty when the
// entity has no such parameter.
type Key struct {
	Entity string
	Scope  string
	Window string
}

func (k Key) String() string {
	s := k.Entity
	if k.Scope != "" {
		s += ":" + k.Scope
	}
	if k.Window != "" {
		s += ":" + k.Window
	}
	return s
}

// Entry is one keyed snapshot. Stale entries keep their value; this client
// always refetches stale entries before dependents read them.
type Entry struct {
	Status    Status
	Value     any
	Err       error
	Stale     bool
	StartedAt time.Time
	FetchedAt time.Time
}

// Fresh reports whether the entry can serve an authoritative read.
func (e Entry) Fresh() bool {
	return e.Status == StatusSuccess && !e.Stale
}

// Store holds keyed, versioned snapshots of fetched entities.
type Store struct {
	mu      sync.Mutex
	entries map[Key]Entry
}

func New() *Store {
	return &Store{entries: make(map[Key]Entry)}
}

// Get returns the entry for k, or an idle entry when nothing was ever
// fetched.
func (s *Store) Get(k Key) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok {
		return e
	}
	return Entry{Status: StatusIdle}
}

// MarkLoading records that a fetch started at startedAt. The previous value
// is kept so callers that render stale data still can.
func (s *Store) MarkLoading(k Key, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[k]
	e.Status = StatusLoading
	e.StartedAt = startedAt
	s.entries[k] = e
}

// Put applies a resolved fetch. Last-fetch-resolved wins, but only if its
// start timestamp is not older than the stored entry's: a late response from
// a fetch that started before the current one is discarded, guarding against
// the race between a slow initial fetch and a fast refetch after
// invalidation.
func (s *Store) Put(k Key, v any, startedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[k]; ok && startedAt.Before(cur.StartedAt) {
		metrics.StalePutsDiscarded.Inc()
		return false
	}
	s.entries[k] = Entry{
		Status:    StatusSuccess,
		Value:     v,
		StartedAt: startedAt,
		FetchedAt: time.Now().UTC(),
	}
	return true
}

// Fail records a fetch error under the same start-timestamp guard.
func (s *Store) Fail(k Key, err error, startedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[k]; ok && startedAt.Before(cur.StartedAt) {
		metrics.StalePutsDiscarded.Inc()
		return false
	}
	e := s.entries[k]
	e.Status = StatusError
	e.Err = err
	e.StartedAt = startedAt
	s.entries[k] = e
	return true
}

// Apply writes a local (optimistic) value. Local writes are always the newest
// observation, so the guard timestamp is bumped to now.
func (s *Store) Apply(k Key, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.entries[k] = Entry{
		Status:    StatusSuccess,
		Value:     v,
		StartedAt: now,
		FetchedAt: now,
	}
}

// Invalidate marks entries stale without evicting their values.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			e.Stale = true
			s.entries[k] = e
		}
	}
}

// InvalidateEntity marks every entry of the given entities stale, regardless
// of scope or window.
func (s *Store) InvalidateEntity(entities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		for _, ent := range entities {
			if k.Entity == ent {
				e.Stale = true
				s.entries[k] = e
				break
			}
		}
	}
}

// Clear drops everything (logout).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[Key]Entry)
}

// Keys returns the keys currently present, for invalidation sweeps.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

// Value reads a typed fresh value from the store. ok is false when the entry
// is missing, stale, failed, or holds a different type.
func Value[T any](s *Store, k Key) (T, bool) {
	var zero T
	e := s.Get(k)
	if !e.Fresh() {
		return zero, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
