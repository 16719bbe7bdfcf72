package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var errNotFound = errors.New("not found")

const maxBodyBytes = 8 << 20

// getWithRetry GETs url up to d.tries times with a linear 200ms*(attempt) backoff.
// 404 is returned immediately as errNotFound.
func (d *DexScreener) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for i := 0; i < d.tries; i++ {
		body, err := d.get(ctx, url)
		if err == nil || errors.Is(err, errNotFound) {
			return body, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.log.Debug("DexScreener request failed", zap.String("url", url), zap.Int("attempt", i+1), zap.Error(err))

		backoff := time.Duration(i+1) * 200 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", d.tries, lastErr)
}

func (d *DexScreener) get(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mint-radar")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
