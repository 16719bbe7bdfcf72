package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// TokenSnapshot is one observation of a token's best-known market pair.
// Liquidity, market cap, volume and creation time are nil when the provider did not report them.
type TokenSnapshot struct {
	TokenID       string          `json:"token"`
	PairAddress   string          `json:"pair"`
	Name          string          `json:"name"`
	PriceUSD      decimal.Decimal `json:"price_usd"`
	LiquidityUSD  *float64        `json:"liquidity_usd,omitempty"`
	MarketCapUSD  *float64        `json:"mcap_usd,omitempty"`
	VolumeH24USD  *float64        `json:"vol24_usd,omitempty"`
	PairCreatedAt *int64          `json:"pair_created_at,omitempty"`
	XHandle       string          `json:"x_handle,omitempty"`
	XURL          string          `json:"x_url,omitempty"`
	LogoHint      string          `json:"logo_hint,omitempty"`
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Liquidity returns the liquidity in USD, or 0 when unknown.
func (s TokenSnapshot) Liquidity() float64 { return value(s.LiquidityUSD) }

// MarketCap returns the market cap in USD, or 0 when unknown.
func (s TokenSnapshot) MarketCap() float64 { return value(s.MarketCapUSD) }

// Volume24h returns the 24h volume in USD, or 0 when unknown.
func (s TokenSnapshot) Volume24h() float64 { return value(s.VolumeH24USD) }

// AgeMinutes returns the pair age at now. ok is false when the creation time is unknown.
func (s TokenSnapshot) AgeMinutes(now time.Time) (age float64, ok bool) {
	if s.PairCreatedAt == nil || *s.PairCreatedAt <= 0 {
		return math.Inf(1), false
	}
	age = float64(now.UnixMilli()-*s.PairCreatedAt) / 60000.0
	return math.Max(0, age), true
}

// Float returns a pointer to v, for building snapshots.
func Float(v float64) *float64 { return &v }

// Millis returns a pointer to the unix-millisecond timestamp of t.
func Millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
