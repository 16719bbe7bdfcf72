package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeMinutes(t *testing.T) {
	now := time.Date(2025, 9, 26, 12, 0, 0, 0, time.UTC)

	s := TokenSnapshot{PairCreatedAt: Millis(now.Add(-10 * time.Minute))}
	age, ok := s.AgeMinutes(now)
	assert.True(t, ok)
	assert.InDelta(t, 10.0, age, 0.0001)

	age, ok = TokenSnapshot{}.AgeMinutes(now)
	assert.False(t, ok)
	assert.True(t, math.IsInf(age, 1))

	future := TokenSnapshot{PairCreatedAt: Millis(now.Add(time.Minute))}
	age, ok = future.AgeMinutes(now)
	assert.True(t, ok)
	assert.Zero(t, age)
}

func TestUnknownValuesReadAsZero(t *testing.T) {
	s := TokenSnapshot{LiquidityUSD: Float(40000)}
	assert.Equal(t, 40000.0, s.Liquidity())
	assert.Zero(t, s.MarketCap())
	assert.Zero(t, s.Volume24h())
}
