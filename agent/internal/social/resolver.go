package social

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"mint-radar/agent/internal/metrics"
	"mint-radar/shared/logger"

	"go.uber.org/zap"
)

const maxClassified = 50

type Options struct {
	MaxUsernames  int
	ProxyDelay    time.Duration
	VariantDelay  time.Duration
	MinBodyLength int
	Blacklist     []string
}

// Resolver turns a social reference into the set of handles found on its rendered pages.
type Resolver struct {
	proxies   []Proxy
	lastGood  atomic.Int32
	cache     *Cache
	blacklist Blacklist
	opts      Options
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger
}

func NewResolver(proxies []Proxy, cache *Cache, opts Options, appLogger *logger.Logger) *Resolver {
	if opts.MaxUsernames <= 0 {
		opts.MaxUsernames = 200
	}
	if opts.MinBodyLength <= 0 {
		opts.MinBodyLength = 500
	}
	return &Resolver{
		proxies:   proxies,
		cache:     cache,
		blacklist: NewBlacklist(opts.Blacklist),
		opts:      opts,
		now:       time.Now,
		sleep:     sleepCtx,
		log:       appLogger.With("component", "social"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// proxyOrder puts the last successful proxy first and keeps the rest in configured order.
func (r *Resolver) proxyOrder() []int {
	n := len(r.proxies)
	if n == 0 {
		return nil
	}
	order := make([]int, 0, n)
	first := int(r.lastGood.Load())
	if first < 0 || first >= n {
		first = 0
	}
	order = append(order, first)
	for i := 0; i < n; i++ {
		if i != first {
			order = append(order, i)
		}
	}
	return order
}

// Resolve returns the handles referenced by ref. Exhausting every proxy is not an
// error: the empty result is cached like any other. Only context cancellation is returned.
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]string, error) {
	key := CacheKey(ref)
	if key == "" {
		return nil, nil
	}
	if handles, ok := r.cache.Get(key, r.now()); ok {
		metrics.ResolverLookups.WithLabelValues("hit").Inc()
		return handles, nil
	}
	metrics.ResolverLookups.WithLabelValues("miss").Inc()

	var handles []string
	variants := Variants(ref)
	for vi, variant := range variants {
		if vi > 0 {
			if err := r.sleep(ctx, r.opts.VariantDelay); err != nil {
				return nil, err
			}
		}
		body, ok, err := r.fetch(ctx, variant)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		handles = mergeHandles(handles, ExtractHandles(body, r.blacklist, r.opts.MaxUsernames), r.opts.MaxUsernames)
		if len(handles) >= r.opts.MaxUsernames {
			break
		}
	}

	r.log.Debug("Social reference resolved", zap.String("ref", ref), zap.Int("handles", len(handles)),
		zap.Int("variants", len(variants)))
	r.cache.Put(ctx, key, handles, r.now())
	return handles, nil
}

// fetch tries every proxy for target and returns the first usable rendering.
func (r *Resolver) fetch(ctx context.Context, target string) (string, bool, error) {
	for n, idx := range r.proxyOrder() {
		if n > 0 {
			if err := r.sleep(ctx, r.opts.ProxyDelay); err != nil {
				return "", false, err
			}
		}
		p := r.proxies[idx]
		body, err := p.Render(ctx, target)
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		switch {
		case err != nil:
			metrics.ProxyAttempts.WithLabelValues(p.Name(), "error").Inc()
			r.log.Debug("Reader proxy failed", zap.String("proxy", p.Name()), zap.String("url", target), zap.Error(err))
		case len(body) <= r.opts.MinBodyLength:
			metrics.ProxyAttempts.WithLabelValues(p.Name(), "short").Inc()
			r.log.Debug("Reader proxy returned too little text", zap.String("proxy", p.Name()),
				zap.String("url", target), zap.Int("bytes", len(body)))
		default:
			metrics.ProxyAttempts.WithLabelValues(p.Name(), "ok").Inc()
			r.lastGood.Store(int32(idx))
			return body, true, nil
		}
	}
	return "", false, nil
}

// LastGood names the proxy that will be tried first.
func (r *Resolver) LastGood() string {
	if len(r.proxies) == 0 {
		return ""
	}
	return r.proxies[r.proxyOrder()[0]].Name()
}

// Followed reports whether the operator follows a handle.
type Followed interface {
	Contains(handle string) bool
}

type Classification struct {
	Followed []string `json:"followed"`
	Extras   []string `json:"extras"`
}

// Split sorts handles into followed and extra accounts, each sorted and capped.
func Split(handles []string, followed Followed) Classification {
	var c Classification
	for _, h := range handles {
		if followed != nil && followed.Contains(h) {
			c.Followed = append(c.Followed, h)
		} else {
			c.Extras = append(c.Extras, h)
		}
	}
	slices.Sort(c.Followed)
	slices.Sort(c.Extras)
	if len(c.Followed) > maxClassified {
		c.Followed = c.Followed[:maxClassified]
	}
	if len(c.Extras) > maxClassified {
		c.Extras = c.Extras[:maxClassified]
	}
	return c
}

// Cached returns the fresh cached handles for ref without fetching.
func (r *Resolver) Cached(ref string) ([]string, bool) {
	key := CacheKey(ref)
	if key == "" {
		return nil, false
	}
	return r.cache.Get(key, r.now())
}

// Lookup classifies cached resolutions against the followed set.
type Lookup struct {
	resolver *Resolver
	followed Followed
}

func NewLookup(resolver *Resolver, followed Followed) *Lookup {
	return &Lookup{resolver: resolver, followed: followed}
}

func (l *Lookup) Cached(ref string) (Classification, bool) {
	handles, ok := l.resolver.Cached(ref)
	if !ok {
		return Classification{}, false
	}
	return Split(handles, l.followed), true
}

// RefFor picks the reference to resolve for a token: its profile url, else its handle.
func RefFor(handle, url string) string {
	if url != "" {
		return url
	}
	if handle != "" {
		return "https://x.com/" + handle
	}
	return ""
}
