package store

import (
	"context"
	"testing"
	"time"

	"mint-radar/shared/logger"
	"mint-radar/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorUpsertCountsObservations(t *testing.T) {
	m := NewMirror(newFileBackend(t), logger.NewNop())
	clock := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return clock }

	created := int64(1_699_999_000_000)
	m.Upsert("T1", "P1", &created, types.TokenSnapshot{TokenID: "T1", Name: "ONE"})
	clock = clock.Add(time.Minute)
	m.Upsert("T1", "P2", nil, types.TokenSnapshot{TokenID: "T1", Name: "ONE v2"})

	e, err := m.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Seen)
	assert.Equal(t, int64(1_700_000_000), e.FirstSeen)
	assert.Equal(t, int64(1_700_000_060), e.LastSeen)
	assert.Equal(t, "P2", e.LastPair)
	require.NotNil(t, e.PairCreatedAt)
	assert.Equal(t, created, *e.PairCreatedAt, "a missing creation time keeps the known one")
	assert.Equal(t, "ONE v2", e.Last.Name)

	assert.Equal(t, MirrorStats{Tokens: 1, Pairs: 2}, m.Stats())

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirrorUpsertIgnoresEmptyToken(t *testing.T) {
	m := NewMirror(newFileBackend(t), logger.NewNop())
	m.Upsert("", "P", nil, types.TokenSnapshot{})
	assert.Equal(t, 0, m.Stats().Tokens)
}

func TestMirrorAllIsFirstSeenOrderedAndRestartable(t *testing.T) {
	m := NewMirror(newFileBackend(t), logger.NewNop())
	clock := time.Unix(100, 0)
	m.now = func() time.Time { return clock }
	for _, id := range []string{"B", "A", "C"} {
		m.Upsert(id, "", nil, types.TokenSnapshot{TokenID: id})
		clock = clock.Add(time.Second)
	}

	collect := func() []string {
		var ids []string
		for id, snap := range m.All() {
			assert.Equal(t, id, snap.TokenID)
			ids = append(ids, id)
		}
		return ids
	}
	assert.Equal(t, []string{"B", "A", "C"}, collect())
	assert.Equal(t, []string{"B", "A", "C"}, collect())

	for id := range m.All() {
		assert.Equal(t, "B", id)
		break
	}
}

func TestMirrorFlushAndLoad(t *testing.T) {
	backend := newFileBackend(t)
	m := NewMirror(backend, logger.NewNop())
	m.Upsert("T1", "P1", nil, types.TokenSnapshot{TokenID: "T1", MarketCapUSD: types.Float(1000)})
	require.NoError(t, m.Flush(context.Background()))

	reloaded := NewMirror(backend, logger.NewNop())
	reloaded.Load(context.Background())
	e, err := reloaded.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, e.Last.MarketCap())
	assert.Equal(t, MirrorStats{Tokens: 1, Pairs: 1}, reloaded.Stats())
}

func TestMirrorAllKeepsInsertionOrderWithinOneSecond(t *testing.T) {
	backend := newFileBackend(t)
	m := NewMirror(backend, logger.NewNop())
	clock := time.Unix(100, 0)
	m.now = func() time.Time { return clock }
	for _, id := range []string{"C", "A", "B"} {
		m.Upsert(id, "", nil, types.TokenSnapshot{TokenID: id})
	}
	m.Upsert("A", "", nil, types.TokenSnapshot{TokenID: "A"})

	collect := func(m *Mirror) []string {
		var ids []string
		for id := range m.All() {
			ids = append(ids, id)
		}
		return ids
	}
	assert.Equal(t, []string{"C", "A", "B"}, collect(m))

	require.NoError(t, m.Flush(context.Background()))
	reloaded := NewMirror(backend, logger.NewNop())
	reloaded.now = func() time.Time { return clock }
	reloaded.Load(context.Background())
	reloaded.Upsert("0", "", nil, types.TokenSnapshot{TokenID: "0"})
	assert.Equal(t, []string{"C", "A", "B", "0"}, collect(reloaded))
}
