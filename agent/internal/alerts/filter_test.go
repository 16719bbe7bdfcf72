package alerts

import (
	"testing"
	"time"

	"mint-radar/shared/types"

	"github.com/stretchr/testify/assert"
)

func TestFilterSkipsUnknownFields(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	base := types.TokenSnapshot{
		LiquidityUSD:  types.Float(40000),
		MarketCapUSD:  types.Float(0),
		VolumeH24USD:  types.Float(0),
		PairCreatedAt: types.Millis(now.Add(-5 * time.Minute)),
	}

	tests := []struct {
		name       string
		mutate     func(*types.TokenSnapshot)
		wantOK     bool
		wantReason string
	}{
		{"zero mcap and volume are skipped", func(*types.TokenSnapshot) {}, true, ""},
		{"unknown mcap and volume are skipped", func(s *types.TokenSnapshot) { s.MarketCapUSD, s.VolumeH24USD = nil, nil }, true, ""},
		{"known low mcap fails", func(s *types.TokenSnapshot) { s.MarketCapUSD = types.Float(50000) }, false, "mcap"},
		{"known low volume fails", func(s *types.TokenSnapshot) { s.VolumeH24USD = types.Float(100) }, false, "volume"},
		{"low liquidity fails", func(s *types.TokenSnapshot) { s.LiquidityUSD = types.Float(1000) }, false, "liquidity"},
		{"unknown liquidity fails", func(s *types.TokenSnapshot) { s.LiquidityUSD = nil }, false, "liquidity"},
		{"unknown age passes", func(s *types.TokenSnapshot) { s.PairCreatedAt = nil }, true, ""},
		{"too old fails", func(s *types.TokenSnapshot) { s.PairCreatedAt = types.Millis(now.Add(-121 * time.Minute)) }, false, "age"},
		{"exactly max age passes", func(s *types.TokenSnapshot) { s.PairCreatedAt = types.Millis(now.Add(-120 * time.Minute)) }, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			ok, reason := defaultFilter.Check(s, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestFilterZeroThresholdsDisableChecks(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	s := types.TokenSnapshot{PairCreatedAt: types.Millis(now.Add(-48 * time.Hour))}
	assert.True(t, Filter{}.Passes(s, now))
}
