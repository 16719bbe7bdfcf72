package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"mint-radar/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinsClaimIsExclusive(t *testing.T) {
	p := NewPins(newFileBackend(t), logger.NewNop())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Claim(7, "T") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, p.Claim(8, "T"), "other destinations have their own slot")
}

func TestPinsReleaseAndConfirm(t *testing.T) {
	backend := newFileBackend(t)
	p := NewPins(backend, logger.NewNop())

	require.True(t, p.Claim(7, "T"))
	p.Release(7, "T")
	assert.False(t, p.Has(7, "T"))

	require.True(t, p.Claim(7, "T"))
	require.NoError(t, p.Confirm(context.Background(), 7, "T", 42))
	p.Release(7, "T")
	assert.True(t, p.Has(7, "T"), "confirmed pins are not released")
	assert.Equal(t, 1, p.Count())

	require.True(t, p.Claim(7, "U"))

	reloaded := NewPins(backend, logger.NewNop())
	reloaded.Load(context.Background())
	assert.True(t, reloaded.Has(7, "T"))
	assert.False(t, reloaded.Has(7, "U"), "pending claims are not persisted")
	assert.False(t, reloaded.Claim(7, "T"))
}
