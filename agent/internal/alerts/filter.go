package alerts

import (
	"time"

	"mint-radar/shared/config"
	"mint-radar/shared/types"
)

// Filter is the threshold predicate shared by discovery and refresh.
// Market cap and volume are only checked when known and positive; an unknown age passes.
type Filter struct {
	MinLiquidityUSD float64
	MinMarketCapUSD float64
	MinVolumeH24USD float64
	MaxAgeMinutes   float64
}

func NewFilter(cfg config.FilterConfig) Filter {
	return Filter{
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MinMarketCapUSD: cfg.MinMarketCapUSD,
		MinVolumeH24USD: cfg.MinVolumeH24USD,
		MaxAgeMinutes:   cfg.MaxAgeMinutes,
	}
}

// Check reports whether s passes and, if not, which threshold rejected it.
func (f Filter) Check(s types.TokenSnapshot, now time.Time) (bool, string) {
	if s.Liquidity() < f.MinLiquidityUSD {
		return false, "liquidity"
	}
	if f.TooOld(s, now) {
		return false, "age"
	}
	if mc := s.MarketCap(); f.MinMarketCapUSD > 0 && mc > 0 && mc < f.MinMarketCapUSD {
		return false, "mcap"
	}
	if vol := s.Volume24h(); f.MinVolumeH24USD > 0 && vol > 0 && vol < f.MinVolumeH24USD {
		return false, "volume"
	}
	return true, ""
}

func (f Filter) Passes(s types.TokenSnapshot, now time.Time) bool {
	ok, _ := f.Check(s, now)
	return ok
}

// TooOld reports whether the known pair age exceeds the maximum age.
func (f Filter) TooOld(s types.TokenSnapshot, now time.Time) bool {
	if f.MaxAgeMinutes <= 0 {
		return false
	}
	age, known := s.AgeMinutes(now)
	return known && age > f.MaxAgeMinutes
}
