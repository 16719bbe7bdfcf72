package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"
	"mint-radar/shared/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Baseline is the first market cap and price observed for a token.
type Baseline struct {
	FirstMcap     float64         `json:"first"`
	FirstPrice    decimal.Decimal `json:"first_price"`
	EstablishedAt int64           `json:"ts"`
	SocialHandle  string          `json:"social_handle,omitempty"`
	SocialURL     string          `json:"social_url,omitempty"`
}

// Baselines is the single record of per-token baselines. A baseline never changes once
// FirstMcap is positive; a zero FirstMcap is filled in once by the first positive reading.
type Baselines struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	records map[string]Baseline
	dirty   bool
	backend persist.Backend
	now     func() time.Time
	log     *logger.Logger
}

func NewBaselines(backend persist.Backend, appLogger *logger.Logger) *Baselines {
	return &Baselines{
		records: map[string]Baseline{},
		backend: backend,
		now:     time.Now,
		log:     appLogger.With("store", DocBaselines),
	}
}

func (b *Baselines) Load(ctx context.Context) {
	records := map[string]Baseline{}
	if !loadDocument(ctx, b.backend, DocBaselines, &records, b.log) {
		return
	}
	b.mu.Lock()
	b.records = records
	b.dirty = false
	b.mu.Unlock()
	b.log.Info("Baselines loaded", zap.Int("tokens", len(records)))
}

// Decorate establishes or backfills the baseline of tokenID from snap and reports
// whether this call created it, along with the baseline market cap.
func (b *Baselines) Decorate(tokenID string, snap types.TokenSnapshot) (isFirstTime bool, firstMcap float64) {
	current := snap.MarketCap()

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[tokenID]
	if !ok {
		rec = Baseline{
			FirstMcap:     current,
			FirstPrice:    snap.PriceUSD,
			EstablishedAt: b.now().Unix(),
			SocialHandle:  snap.XHandle,
			SocialURL:     snap.XURL,
		}
		b.records[tokenID] = rec
		b.dirty = true
		return true, rec.FirstMcap
	}

	if rec.FirstMcap <= 0 && current > 0 {
		rec.FirstMcap = current
		if rec.FirstPrice.IsZero() {
			rec.FirstPrice = snap.PriceUSD
		}
		b.records[tokenID] = rec
		b.dirty = true
		b.log.Debug("Baseline backfilled", zap.String("token", tokenID), zap.Float64("firstMcap", current))
	}
	return false, rec.FirstMcap
}

func (b *Baselines) Get(tokenID string) (Baseline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[tokenID]
	if !ok {
		return Baseline{}, fmt.Errorf("baseline %s: %w", tokenID, ErrNotFound)
	}
	return rec, nil
}

// SetSocial records the social reference of a token that already has a baseline.
func (b *Baselines) SetSocial(tokenID, handle, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[tokenID]
	if !ok || (rec.SocialHandle == handle && rec.SocialURL == url) {
		return
	}
	rec.SocialHandle, rec.SocialURL = handle, url
	b.records[tokenID] = rec
	b.dirty = true
}

func (b *Baselines) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Flush writes the record set if anything changed since the last successful write.
// A failed write leaves the set dirty so the next flush retries it. Flushes are
// serialized, so a later snapshot is never overwritten by an earlier one.
func (b *Baselines) Flush(ctx context.Context) error {
	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	records := make(map[string]Baseline, len(b.records))
	for k, v := range b.records {
		records[k] = v
	}
	b.dirty = false
	b.mu.Unlock()

	if err := b.backend.Save(ctx, DocBaselines, records); err != nil {
		b.mu.Lock()
		b.dirty = true
		b.mu.Unlock()
		b.log.Warn("Baseline flush failed", zap.Error(err))
		return err
	}
	return nil
}
