package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mint-radar/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *DexScreener {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewDexScreener(DexScreenerOptions{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		Tries:     2,
		RateLimit: 1000,
		RateBurst: 10,
	}, logger.NewNop())
}

func TestSearchNewTokensSkipsMalformedRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "chain:solana new", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"pairAddress":"P1","baseToken":{"address":"` + wsolMint + `","symbol":"AAA"},"liquidity":{"usd":50000}},
			{"pairAddress":"P2","baseToken":{"address":"` + usdcMint + `"},"liquidity":{"usd":"not-a-number"}},
			{"pairAddress":"P3","baseToken":{"address":"` + usdcMint + `","symbol":"CCC"},"fdv":"120000"}
		]}`))
	})

	pairs, err := client.SearchNewTokens(context.Background(), "solana")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "P1", pairs[0].PairAddress)
	assert.Equal(t, "P3", pairs[1].PairAddress)
	require.NotNil(t, pairs[1].FDV)
	assert.Equal(t, 120000.0, float64(*pairs[1].FDV))
}

func TestPairsForTokenRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-pairs/v1/solana/"+wsolMint, r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"pairAddress":"A","liquidity":{"usd":10}},{"pairAddress":"B","liquidity":{"usd":20}}]`))
	})

	pairs, err := client.PairsForToken(context.Background(), "solana", wsolMint)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPairsForTokenGivesUpAfterTries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.PairsForToken(context.Background(), "solana", wsolMint)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPairsForTokenNotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	pairs, err := client.PairsForToken(context.Background(), "solana", wsolMint)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestBestPair(t *testing.T) {
	liq := func(v float64) *Liquidity { f := FlexFloat(v); return &Liquidity{Usd: &f} }
	created := func(v float64) *FlexFloat { f := FlexFloat(v); return &f }

	pairs := []Pair{
		{PairAddress: "low", Liquidity: liq(10), PairCreatedAt: created(5)},
		{PairAddress: "old", Liquidity: liq(50), PairCreatedAt: created(1)},
		{PairAddress: "new", Liquidity: liq(50), PairCreatedAt: created(9)},
		{PairAddress: "none"},
	}
	best, ok := BestPair(pairs)
	require.True(t, ok)
	assert.Equal(t, "new", best.PairAddress)

	_, ok = BestPair(nil)
	assert.False(t, ok)
}

func decodePair(t *testing.T, raw string) Pair {
	t.Helper()
	var p Pair
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestToSnapshotKnownFields(t *testing.T) {
	p := decodePair(t, `{
		"pairAddress":"PAIR1",
		"baseToken":{"address":"`+wsolMint+`","name":"Alpha","symbol":"ALP"},
		"priceUsd":"0.00001234",
		"liquidity":{"usd":50000},
		"fdv":80000,"marketCap":70000,
		"volume":{"h24":"45000","h1":100},
		"pairCreatedAt":1758888000000,
		"info":{"imageUrl":"https://img/x.png","socials":[{"type":"twitter","url":"https://x.com/AlphaCoin"}]}
	}`)

	s, err := ToSnapshot(p, "solana")
	require.NoError(t, err)
	assert.Equal(t, wsolMint, s.TokenID)
	assert.Equal(t, "PAIR1", s.PairAddress)
	assert.Equal(t, "ALP", s.Name)
	assert.Equal(t, "0.00001234", s.PriceUSD.String())
	require.NotNil(t, s.MarketCapUSD)
	assert.Equal(t, 80000.0, *s.MarketCapUSD, "fdv wins over market cap")
	assert.Equal(t, 50000.0, s.Liquidity())
	assert.Equal(t, 45000.0, s.Volume24h())
	require.NotNil(t, s.PairCreatedAt)
	assert.Equal(t, int64(1758888000000), *s.PairCreatedAt)
	assert.Equal(t, "alphacoin", s.XHandle)
	assert.Equal(t, "https://x.com/AlphaCoin", s.XURL)
	assert.Equal(t, "https://img/x.png", s.LogoHint)
}

func TestToSnapshotUnknownFieldsStayNil(t *testing.T) {
	p := decodePair(t, `{"pairAddress":"P","baseToken":{"address":"`+wsolMint+`"},"price":{"usd":"1.5"}}`)

	s, err := ToSnapshot(p, "solana")
	require.NoError(t, err)
	assert.Nil(t, s.LiquidityUSD)
	assert.Nil(t, s.MarketCapUSD)
	assert.Nil(t, s.VolumeH24USD)
	assert.Nil(t, s.PairCreatedAt)
	assert.Equal(t, "Unknown", s.Name)
	assert.Equal(t, "1.5", s.PriceUSD.String())
}

func TestToSnapshotRejectsBadAddress(t *testing.T) {
	_, err := ToSnapshot(Pair{PairAddress: "P", BaseToken: Token{Address: "not-base58-0OIl"}}, "solana")
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = ToSnapshot(Pair{PairAddress: "P"}, "solana")
	require.ErrorIs(t, err, ErrMalformedRecord)

	s, err := ToSnapshot(Pair{TokenAddress: "0xabc"}, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", s.TokenID)
}

func TestExtractX(t *testing.T) {
	tests := []struct {
		name       string
		info       *TokenInfo
		wantHandle string
		wantURL    string
	}{
		{"nil", nil, "", ""},
		{"social url", &TokenInfo{Socials: []LinkInfo{{Type: "telegram", URL: "https://t.me/a"}, {Type: "twitter", URL: "https://twitter.com/Foo_1"}}}, "foo_1", "https://twitter.com/Foo_1"},
		{"link without scheme", &TokenInfo{Links: []LinkInfo{{Platform: "x", Link: "x.com/bar"}}}, "bar", "https://x.com/bar"},
		{"handle field", &TokenInfo{Socials: []LinkInfo{{Type: "twitter", URL: "https://twitter/", Handle: "@Baz"}}}, "baz", "https://twitter/"},
		{"community", &TokenInfo{Websites: []LinkInfo{{URL: "https://x.com/i/communities/123"}}}, "i", "https://x.com/i/communities/123"},
		{"direct url key", &TokenInfo{TwitterURL: "twitter.com/qux"}, "qux", "https://twitter.com/qux"},
		{"direct handle key", &TokenInfo{TwitterHandle: "@Quux"}, "quux", "https://x.com/quux"},
		{"too long handle", &TokenInfo{X: "averyveryverylonghandle"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, u := ExtractX(tt.info)
			assert.Equal(t, tt.wantHandle, h)
			assert.Equal(t, tt.wantURL, u)
		})
	}
}
