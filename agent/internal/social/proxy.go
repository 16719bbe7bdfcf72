package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrProxyStatus = errors.New("proxy returned non-200 status")

const maxRenderBytes = 4 << 20

// Proxy renders the visible text of a page.
type Proxy interface {
	Name() string
	Render(ctx context.Context, target string) (string, error)
}

// PrefixProxy is a reader service addressed as prefix + target without its scheme,
// e.g. https://r.jina.ai/x.com/someone.
type PrefixProxy struct {
	name    string
	prefix  string
	client  *http.Client
	limiter *rate.Limiter
}

var _ Proxy = (*PrefixProxy)(nil)

// NewPrefixProxy builds a proxy allowing perSecond renders per second. Zero or less
// means unlimited.
func NewPrefixProxy(name, prefix string, timeout time.Duration, perSecond float64) *PrefixProxy {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &PrefixProxy{
		name:    name,
		prefix:  prefix,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *PrefixProxy) Name() string { return p.name }

func stripScheme(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.TrimPrefix(u, "http://")
}

func (p *PrefixProxy) Render(ctx context.Context, target string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limiter: %w", p.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.prefix+stripScheme(target), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; mint-radar)")
	req.Header.Set("Accept", "text/plain, text/html;q=0.9, */*;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: %s", p.name, ErrProxyStatus, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderBytes))
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", p.name, err)
	}
	return string(body), nil
}
