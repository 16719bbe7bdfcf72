package store

import (
	"context"
	"testing"

	"mint-radar/shared/logger"
	"mint-radar/shared/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapWithMcap(v *float64) types.TokenSnapshot {
	return types.TokenSnapshot{MarketCapUSD: v, PriceUSD: decimal.RequireFromString("0.0001")}
}

func TestDecorateFirstTimeThenStable(t *testing.T) {
	b := NewBaselines(newFileBackend(t), logger.NewNop())

	first, mcap := b.Decorate("T", snapWithMcap(types.Float(80000)))
	assert.True(t, first)
	assert.Equal(t, 80000.0, mcap)

	first, mcap = b.Decorate("T", snapWithMcap(types.Float(120000)))
	assert.False(t, first)
	assert.Equal(t, 80000.0, mcap, "a positive baseline never changes")
}

func TestDecorateBackfillsZeroOnce(t *testing.T) {
	b := NewBaselines(newFileBackend(t), logger.NewNop())

	first, mcap := b.Decorate("T", snapWithMcap(nil))
	assert.True(t, first)
	assert.Zero(t, mcap)

	first, mcap = b.Decorate("T", snapWithMcap(types.Float(0)))
	assert.False(t, first)
	assert.Zero(t, mcap)

	_, mcap = b.Decorate("T", snapWithMcap(types.Float(50000)))
	assert.Equal(t, 50000.0, mcap)

	_, mcap = b.Decorate("T", snapWithMcap(types.Float(90000)))
	assert.Equal(t, 50000.0, mcap)
}

func TestBaselinesSurviveReload(t *testing.T) {
	backend := newFileBackend(t)
	b := NewBaselines(backend, logger.NewNop())
	b.Decorate("T", snapWithMcap(types.Float(80000)))
	b.SetSocial("T", "alpha", "https://x.com/alpha")
	require.NoError(t, b.Flush(context.Background()))

	reloaded := NewBaselines(backend, logger.NewNop())
	reloaded.Load(context.Background())
	first, mcap := reloaded.Decorate("T", snapWithMcap(types.Float(1)))
	assert.False(t, first)
	assert.Equal(t, 80000.0, mcap)

	rec, err := reloaded.Get("T")
	require.NoError(t, err)
	assert.Equal(t, "alpha", rec.SocialHandle)
	assert.True(t, rec.FirstPrice.Equal(decimal.RequireFromString("0.0001")))
}

func TestBaselineFlushRetriesAfterFailure(t *testing.T) {
	backend := &flakyBackend{Backend: newFileBackend(t), failing: true}
	b := NewBaselines(backend, logger.NewNop())
	b.Decorate("T", snapWithMcap(types.Float(10)))

	require.Error(t, b.Flush(context.Background()))
	backend.setFailing(false)
	require.NoError(t, b.Flush(context.Background()))
	require.NoError(t, b.Flush(context.Background()), "clean flush is a no-op")
	assert.Equal(t, 2, backend.saves)

	_, err := b.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBaselineOverlappingFlushesKeepNewest(t *testing.T) {
	ctx := context.Background()
	files := newFileBackend(t)
	gated := newGatedBackend(files)
	b := NewBaselines(gated, logger.NewNop())
	b.Decorate("X", snapWithMcap(types.Float(80000)))

	firstDone := make(chan error, 1)
	go func() { firstDone <- b.Flush(ctx) }()
	<-gated.entered

	b.Decorate("Y", snapWithMcap(types.Float(50000)))
	secondDone := make(chan error, 1)
	go func() { secondDone <- b.Flush(ctx) }()

	close(gated.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	require.NoError(t, b.Flush(ctx))

	reloaded := NewBaselines(files, logger.NewNop())
	reloaded.Load(ctx)
	rec, err := reloaded.Get("Y")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, rec.FirstMcap)

	first, mcap := reloaded.Decorate("Y", snapWithMcap(types.Float(200000)))
	assert.False(t, first)
	assert.Equal(t, 50000.0, mcap)
}
