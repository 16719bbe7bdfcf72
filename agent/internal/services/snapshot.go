package services

import (
	"fmt"
	"regexp"
	"strings"

	"mint-radar/shared/types"

	"github.com/shopspring/decimal"
)

var xProfileRe = regexp.MustCompile(`(?i)(?:twitter|x)\.com/([A-Za-z0-9_]+)`)

// TokenID returns the token address a pair record refers to.
func (p Pair) TokenID() string {
	if p.BaseToken.Address != "" {
		return p.BaseToken.Address
	}
	return p.TokenAddress
}

// CreatedAtMillis returns the pair creation time, or nil when absent.
func (p Pair) CreatedAtMillis() *int64 {
	if p.PairCreatedAt == nil || *p.PairCreatedAt <= 0 {
		return nil
	}
	ms := int64(*p.PairCreatedAt)
	return &ms
}

// ToSnapshot maps a provider pair record onto a TokenSnapshot. Fields the provider
// did not report stay nil. Records without a valid token address are rejected.
func ToSnapshot(p Pair, chain string) (types.TokenSnapshot, error) {
	mint := p.TokenID()
	if err := ValidateAddress(chain, mint); err != nil {
		return types.TokenSnapshot{}, fmt.Errorf("pair %q: %w", p.PairAddress, err)
	}

	s := types.TokenSnapshot{
		TokenID:       mint,
		PairAddress:   p.PairAddress,
		Name:          displayName(p.BaseToken),
		PriceUSD:      priceUSD(p),
		PairCreatedAt: p.CreatedAtMillis(),
	}
	if p.Liquidity != nil && p.Liquidity.Usd != nil {
		s.LiquidityUSD = types.Float(float64(*p.Liquidity.Usd))
	}
	if p.FDV != nil {
		s.MarketCapUSD = types.Float(float64(*p.FDV))
	} else if p.MarketCap != nil {
		s.MarketCapUSD = types.Float(float64(*p.MarketCap))
	}
	if v, ok := p.Volume["h24"]; ok {
		s.VolumeH24USD = types.Float(float64(v))
	}
	if p.Info != nil {
		s.XHandle, s.XURL = ExtractX(p.Info)
		s.LogoHint = p.Info.ImageURL
	}
	if s.LogoHint == "" {
		s.LogoHint = p.BaseToken.Logo
	}
	return s, nil
}

func displayName(t Token) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	if t.Name != "" {
		return t.Name
	}
	return "Unknown"
}

func priceUSD(p Pair) decimal.Decimal {
	if p.PriceUsd.Valid {
		return p.PriceUsd.Decimal
	}
	if p.Price != nil && p.Price.USD.Valid {
		return p.Price.USD.Decimal
	}
	return decimal.Zero
}

// ExtractX finds the token's X/Twitter handle and URL in the pair info block.
func ExtractX(info *TokenInfo) (handle, url string) {
	if info == nil {
		return "", ""
	}
	for _, list := range [][]LinkInfo{info.Socials, info.Links, info.Websites} {
		for _, it := range list {
			u := it.URL
			if u == "" {
				u = it.Link
			}
			plat := strings.ToLower(it.Platform)
			if plat == "" {
				plat = strings.ToLower(it.Type)
			}
			lu := strings.ToLower(u)
			if u == "" || !(strings.Contains(lu, "twitter") || strings.Contains(lu, "x.com") || strings.Contains(plat, "twitter") || plat == "x") {
				continue
			}
			if !strings.HasPrefix(lu, "http") {
				u = "https://" + u
			}
			h := ""
			if m := xProfileRe.FindStringSubmatch(u); m != nil {
				h = m[1]
			} else if it.Handle != "" {
				h = strings.TrimPrefix(strings.TrimSpace(it.Handle), "@")
			}
			if h != "" {
				return strings.ToLower(h), u
			}
		}
	}

	for _, v := range []string{info.TwitterURL, info.Twitter, info.X, info.TwitterHandle} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		lv := strings.ToLower(v)
		if strings.Contains(lv, "http") || strings.Contains(lv, "twitter.com") || strings.Contains(lv, "x.com") {
			if !strings.HasPrefix(lv, "http") {
				v = "https://" + v
			}
			if m := xProfileRe.FindStringSubmatch(v); m != nil {
				return strings.ToLower(m[1]), v
			}
			continue
		}
		h := strings.ToLower(strings.TrimPrefix(v, "@"))
		if h != "" && len(h) <= 15 {
			return h, "https://x.com/" + h
		}
	}
	return "", ""
}
