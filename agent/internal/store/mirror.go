package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"
	"mint-radar/shared/types"

	"go.uber.org/zap"
)

type MirrorEntry struct {
	// Seq is the insertion order of the token, starting at 1.
	Seq           uint64              `json:"seq,omitempty"`
	FirstSeen     int64               `json:"first_seen"`
	LastSeen      int64               `json:"last_seen"`
	Seen          int64               `json:"seen"`
	LastPair      string              `json:"last_pair,omitempty"`
	PairCreatedAt *int64              `json:"pair_created_at,omitempty"`
	Last          types.TokenSnapshot `json:"last"`
}

type MirrorStats struct {
	Tokens int `json:"tokens"`
	Pairs  int `json:"pairs"`
}

type mirrorDoc struct {
	Tokens  map[string]MirrorEntry `json:"tokens"`
	Pairs   map[string]string      `json:"pairs"`
	NextSeq uint64                 `json:"next_seq,omitempty"`
}

// Mirror keeps the latest known snapshot per token. Entries are never deleted.
type Mirror struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex
	doc     mirrorDoc
	backend persist.Backend
	now     func() time.Time
	log     *logger.Logger
}

func NewMirror(backend persist.Backend, appLogger *logger.Logger) *Mirror {
	return &Mirror{
		doc:     mirrorDoc{Tokens: map[string]MirrorEntry{}, Pairs: map[string]string{}},
		backend: backend,
		now:     time.Now,
		log:     appLogger.With("store", DocMirror),
	}
}

// Load replaces the in-memory mirror with the stored one.
func (m *Mirror) Load(ctx context.Context) {
	var doc mirrorDoc
	if !loadDocument(ctx, m.backend, DocMirror, &doc, m.log) {
		return
	}
	if doc.Tokens == nil {
		doc.Tokens = map[string]MirrorEntry{}
	}
	if doc.Pairs == nil {
		doc.Pairs = map[string]string{}
	}
	for _, e := range doc.Tokens {
		doc.NextSeq = max(doc.NextSeq, e.Seq)
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
	m.log.Info("Mirror loaded", zap.Int("tokens", len(doc.Tokens)), zap.Int("pairs", len(doc.Pairs)))
}

// Upsert records an observation of tokenID.
func (m *Mirror) Upsert(tokenID, pairID string, createdAt *int64, snap types.TokenSnapshot) {
	if tokenID == "" {
		return
	}
	now := m.now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.doc.Tokens[tokenID]
	if !ok {
		m.doc.NextSeq++
		e = MirrorEntry{Seq: m.doc.NextSeq, FirstSeen: now}
	}
	e.LastSeen = max(now, e.FirstSeen)
	if createdAt != nil && *createdAt > 0 {
		ts := *createdAt
		e.PairCreatedAt = &ts
	}
	if pairID != "" {
		e.LastPair = pairID
		m.doc.Pairs[pairID] = tokenID
	}
	e.Last = snap
	e.Seen++
	m.doc.Tokens[tokenID] = e
}

// All enumerates the mirror in insertion order. Entries stored without a sequence come
// first, by first-seen time. Each call iterates a fresh copy.
func (m *Mirror) All() iter.Seq2[string, types.TokenSnapshot] {
	return func(yield func(string, types.TokenSnapshot) bool) {
		type row struct {
			id    string
			seq   uint64
			first int64
			snap  types.TokenSnapshot
		}
		m.mu.RLock()
		rows := make([]row, 0, len(m.doc.Tokens))
		for id, e := range m.doc.Tokens {
			rows = append(rows, row{id, e.Seq, e.FirstSeen, e.Last})
		}
		m.mu.RUnlock()

		sort.Slice(rows, func(i, j int) bool {
			if rows[i].seq != rows[j].seq {
				return rows[i].seq < rows[j].seq
			}
			if rows[i].first != rows[j].first {
				return rows[i].first < rows[j].first
			}
			return rows[i].id < rows[j].id
		})
		for _, r := range rows {
			if !yield(r.id, r.snap) {
				return
			}
		}
	}
}

func (m *Mirror) Get(tokenID string) (MirrorEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.doc.Tokens[tokenID]
	if !ok {
		return MirrorEntry{}, fmt.Errorf("mirror entry %s: %w", tokenID, ErrNotFound)
	}
	return e, nil
}

func (m *Mirror) Stats() MirrorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MirrorStats{Tokens: len(m.doc.Tokens), Pairs: len(m.doc.Pairs)}
}

// Flush persists the mirror. Failures are logged; the next flush writes the full document again.
func (m *Mirror) Flush(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	doc := mirrorDoc{
		Tokens:  make(map[string]MirrorEntry, len(m.doc.Tokens)),
		Pairs:   make(map[string]string, len(m.doc.Pairs)),
		NextSeq: m.doc.NextSeq,
	}
	for k, v := range m.doc.Tokens {
		doc.Tokens[k] = v
	}
	for k, v := range m.doc.Pairs {
		doc.Pairs[k] = v
	}
	m.mu.RUnlock()

	if err := m.backend.Save(ctx, DocMirror, doc); err != nil {
		m.log.Warn("Mirror flush failed", zap.Error(err))
		return err
	}
	return nil
}
