package store

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"

	"go.uber.org/zap"
)

// Subscribers is the persisted set of alert destinations.
type Subscribers struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	ids     map[int64]struct{}
	backend persist.Backend
	log     *logger.Logger
}

func NewSubscribers(backend persist.Backend, appLogger *logger.Logger) *Subscribers {
	return &Subscribers{
		ids:     map[int64]struct{}{},
		backend: backend,
		log:     appLogger.With("store", DocSubscribers),
	}
}

// Load reads the destination list. Lines that are not chat ids are skipped.
func (s *Subscribers) Load(ctx context.Context) {
	var lines []string
	if !loadDocument(ctx, s.backend, DocSubscribers, &lines, s.log) {
		return
	}
	ids := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		id, err := strconv.ParseInt(strings.TrimSpace(l), 10, 64)
		if err != nil {
			s.log.Debug("Skipping invalid subscriber line", zap.String("line", l))
			continue
		}
		ids[id] = struct{}{}
	}
	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	s.log.Info("Subscribers loaded", zap.Int("count", len(ids)))
}

// Add registers chatID and reports whether it was new.
func (s *Subscribers) Add(ctx context.Context, chatID int64) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if _, ok := s.ids[chatID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.ids[chatID] = struct{}{}
	lines := s.linesLocked()
	s.mu.Unlock()
	return true, s.save(ctx, lines)
}

// Remove unregisters chatID and reports whether it was present.
func (s *Subscribers) Remove(ctx context.Context, chatID int64) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if _, ok := s.ids[chatID]; !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.ids, chatID)
	lines := s.linesLocked()
	s.mu.Unlock()
	return true, s.save(ctx, lines)
}

func (s *Subscribers) Has(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[chatID]
	return ok
}

// List returns the destinations in ascending order.
func (s *Subscribers) List() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *Subscribers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Subscribers) linesLocked() []string {
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = strconv.FormatInt(id, 10)
	}
	return lines
}

// save must be called with saveMu held.
func (s *Subscribers) save(ctx context.Context, lines []string) error {
	if err := s.backend.Save(ctx, DocSubscribers, &lines); err != nil {
		s.log.Warn("Subscriber list write failed", zap.Error(err))
		return err
	}
	return nil
}
