package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mint-radar/shared/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	searchNewPath  = "/latest/dex/search?q=chain:%s%%20new"
	tokenPairsPath = "/token-pairs/v1/%s/%s"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// FlexFloat decodes a JSON number or a numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = FlexFloat(v)
	return nil
}

type Pair struct {
	ChainID       string               `json:"chainId"`
	DexID         string               `json:"dexId"`
	URL           string               `json:"url"`
	PairAddress   string               `json:"pairAddress"`
	TokenAddress  string               `json:"tokenAddress"`
	BaseToken     Token                `json:"baseToken"`
	QuoteToken    Token                `json:"quoteToken"`
	PriceNative   string               `json:"priceNative"`
	PriceUsd      decimal.NullDecimal  `json:"priceUsd"`
	Price         *PriceInfo           `json:"price"`
	Volume        map[string]FlexFloat `json:"volume"`
	Liquidity     *Liquidity           `json:"liquidity"`
	FDV           *FlexFloat           `json:"fdv"`
	MarketCap     *FlexFloat           `json:"marketCap"`
	PairCreatedAt *FlexFloat           `json:"pairCreatedAt"`
	Info          *TokenInfo           `json:"info"`
}

type PriceInfo struct {
	USD decimal.NullDecimal `json:"usd"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Logo    string `json:"logo"`
}

type Liquidity struct {
	Usd   *FlexFloat `json:"usd"`
	Base  FlexFloat  `json:"base"`
	Quote FlexFloat  `json:"quote"`
}

// LinkInfo covers the socials, links and websites entries, which vary in shape.
type LinkInfo struct {
	URL      string `json:"url"`
	Link     string `json:"link"`
	Type     string `json:"type"`
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
	Label    string `json:"label"`
}

type TokenInfo struct {
	ImageURL      string     `json:"imageUrl"`
	Header        string     `json:"header"`
	OpenGraph     string     `json:"openGraph"`
	Websites      []LinkInfo `json:"websites"`
	Socials       []LinkInfo `json:"socials"`
	Links         []LinkInfo `json:"links"`
	TwitterURL    string     `json:"twitterUrl"`
	Twitter       string     `json:"twitter"`
	X             string     `json:"x"`
	TwitterHandle string     `json:"twitterHandle"`
}

type DexScreenerOptions struct {
	BaseURL   string
	Timeout   time.Duration
	Tries     int
	RateLimit float64
	RateBurst int
}

// DexScreener is the market-data provider client.
type DexScreener struct {
	client  *http.Client
	baseURL string
	tries   int
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewDexScreener(opts DexScreenerOptions, appLogger *logger.Logger) *DexScreener {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.dexscreener.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Tries < 1 {
		opts.Tries = 2
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 4.66
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 5
	}
	return &DexScreener{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tries:   opts.Tries,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		log:     appLogger,
	}
}

// SearchNewTokens returns the pairs of the "new" search for chain.
func (d *DexScreener) SearchNewTokens(ctx context.Context, chain string) ([]Pair, error) {
	u := d.baseURL + fmt.Sprintf(searchNewPath, url.QueryEscape(chain))
	body, err := d.getWithRetry(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("search new tokens on %s: %w", chain, err)
	}
	var resp struct {
		Pairs []json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return d.decodePairs(resp.Pairs), nil
}

// PairsForToken returns every pool the provider knows for token on chain.
func (d *DexScreener) PairsForToken(ctx context.Context, chain, token string) ([]Pair, error) {
	u := d.baseURL + fmt.Sprintf(tokenPairsPath, url.PathEscape(chain), url.PathEscape(token))
	body, err := d.getWithRetry(ctx, u)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token pairs for %s: %w", token, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		// Some error responses come back as an object; treat as no pools.
		d.log.Debug("Token pairs response is not a list", zap.String("token", token), zap.Error(err))
		return nil, nil
	}
	return d.decodePairs(raw), nil
}

// decodePairs decodes each record on its own so one malformed record cannot drop the batch.
func (d *DexScreener) decodePairs(raw []json.RawMessage) []Pair {
	out := make([]Pair, 0, len(raw))
	for _, r := range raw {
		var p Pair
		if err := json.Unmarshal(r, &p); err != nil {
			d.log.Debug("Skipping malformed pair record", zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

// BestPair picks the pool with the highest liquidity, newest first on ties.
func BestPair(pairs []Pair) (Pair, bool) {
	if len(pairs) == 0 {
		return Pair{}, false
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		bl, pl := best.liquidityUSD(), p.liquidityUSD()
		if pl > bl || (pl == bl && p.createdAt() > best.createdAt()) {
			best = p
		}
	}
	return best, true
}

func (p Pair) liquidityUSD() float64 {
	if p.Liquidity == nil || p.Liquidity.Usd == nil {
		return 0
	}
	return float64(*p.Liquidity.Usd)
}

func (p Pair) createdAt() float64 {
	if p.PairCreatedAt == nil {
		return 0
	}
	return float64(*p.PairCreatedAt)
}
