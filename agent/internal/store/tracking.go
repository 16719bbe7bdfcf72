package store

import (
	"sync"
	"time"
)

type TrackedToken struct {
	TokenID    string    `json:"token"`
	InsertedAt time.Time `json:"inserted_at"`
}

// TrackingSet holds the tokens currently eligible for refresh alerts.
// Tokens that leave the set are remembered and never admitted again in this process.
type TrackingSet struct {
	mu          sync.Mutex
	entries     map[string]time.Time
	order       []string
	evicted     map[string]struct{}
	maxDuration time.Duration
}

func NewTrackingSet(maxDuration time.Duration) *TrackingSet {
	return &TrackingSet{
		entries:     map[string]time.Time{},
		evicted:     map[string]struct{}{},
		maxDuration: maxDuration,
	}
}

// Add inserts tokenID. It reports false when the token is already tracked or was evicted earlier.
func (s *TrackingSet) Add(tokenID string, insertedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[tokenID]; ok {
		return false
	}
	if _, ok := s.evicted[tokenID]; ok {
		return false
	}
	s.entries[tokenID] = insertedAt
	s.order = append(s.order, tokenID)
	return true
}

func (s *TrackingSet) IsTracked(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[tokenID]
	return ok
}

// ExpireAndGet drops entries older than the tracking window and returns the rest in insertion order.
func (s *TrackingSet) ExpireAndGet(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make([]string, 0, len(s.order))
	kept := s.order[:0]
	for _, id := range s.order {
		if now.Sub(s.entries[id]) >= s.maxDuration {
			delete(s.entries, id)
			s.evicted[id] = struct{}{}
			continue
		}
		kept = append(kept, id)
		live = append(live, id)
	}
	s.order = kept
	return live
}

// Evict removes tokenID. Evicting an untracked token is a no-op.
func (s *TrackingSet) Evict(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[tokenID]; !ok {
		return false
	}
	delete(s.entries, tokenID)
	s.evicted[tokenID] = struct{}{}
	for i, id := range s.order {
		if id == tokenID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *TrackingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *TrackingSet) Snapshot() []TrackedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedToken, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, TrackedToken{TokenID: id, InsertedAt: s.entries[id]})
	}
	return out
}
