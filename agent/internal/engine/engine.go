// Package engine runs the periodic ingest, discovery, refresh and social tasks.
package engine

import (
	"context"
	"sync"
	"time"

	"mint-radar/agent/internal/alerts"
	"mint-radar/agent/internal/metrics"
	"mint-radar/agent/internal/services"
	"mint-radar/agent/internal/social"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/config"
	"mint-radar/shared/logger"

	"go.uber.org/zap"
)

// Market is the market-data provider.
type Market interface {
	SearchNewTokens(ctx context.Context, chain string) ([]services.Pair, error)
	PairsForToken(ctx context.Context, chain, token string) ([]services.Pair, error)
}

// Resolver resolves social references. *social.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, ref string) ([]string, error)
	Cached(ref string) ([]string, bool)
}

type socialJob struct {
	tokenID string
	handle  string
	url     string
}

type Engine struct {
	market     Market
	chain      string
	mirror     *store.Mirror
	baselines  *store.Baselines
	tracking   *store.TrackingSet
	dispatcher *alerts.Dispatcher
	resolver   Resolver
	schedule   config.ScheduleConfig

	socialQueue chan socialJob
	pendingMu   sync.Mutex
	pending     map[string]struct{}

	tasks []*task
	now   func() time.Time
	log   *logger.Logger
}

type Deps struct {
	Market     Market
	Mirror     *store.Mirror
	Baselines  *store.Baselines
	Tracking   *store.TrackingSet
	Dispatcher *alerts.Dispatcher
	// Resolver may be nil when the social scraper is disabled.
	Resolver Resolver
}

func New(deps Deps, chain string, schedule config.ScheduleConfig, socialQueueSize int, appLogger *logger.Logger) *Engine {
	if socialQueueSize <= 0 {
		socialQueueSize = 256
	}
	e := &Engine{
		market:      deps.Market,
		chain:       chain,
		mirror:      deps.Mirror,
		baselines:   deps.Baselines,
		tracking:    deps.Tracking,
		dispatcher:  deps.Dispatcher,
		resolver:    deps.Resolver,
		schedule:    schedule,
		socialQueue: make(chan socialJob, socialQueueSize),
		pending:     map[string]struct{}{},
		now:         time.Now,
		log:         appLogger.With("component", "engine"),
	}
	e.tasks = []*task{
		{name: TaskIngest, interval: schedule.IngestInterval, fn: e.Ingest},
		{name: TaskDiscovery, interval: schedule.DiscoveryInterval, fn: e.Discover},
		{name: TaskRefresh, interval: schedule.RefreshInterval, fn: e.Refresh},
		{name: TaskHeartbeat, interval: schedule.HeartbeatInterval, fn: e.Heartbeat},
	}
	if e.resolver != nil {
		e.tasks = append(e.tasks, &task{name: TaskSocial, interval: schedule.SocialInterval, fn: e.ResolveSocial})
	}
	return e
}

// Ingest pulls the newest pairs, keeps the best pool per token and mirrors it.
func (e *Engine) Ingest(ctx context.Context, log *logger.Logger) error {
	pairs, err := e.market.SearchNewTokens(ctx, e.chain)
	if err != nil {
		return err
	}

	byToken := map[string][]services.Pair{}
	var order []string
	for _, p := range pairs {
		id := p.TokenID()
		if id == "" {
			continue
		}
		if _, ok := byToken[id]; !ok {
			order = append(order, id)
		}
		byToken[id] = append(byToken[id], p)
	}

	mirrored := 0
	for _, id := range order {
		best, _ := services.BestPair(byToken[id])
		snap, err := services.ToSnapshot(best, e.chain)
		if err != nil {
			log.Debug("Skipping pair", zap.String("token", id), zap.Error(err))
			continue
		}
		e.mirror.Upsert(snap.TokenID, snap.PairAddress, snap.PairCreatedAt, snap)
		e.enqueueSocial(snap.TokenID, snap.XHandle, snap.XURL)
		mirrored++
	}

	stats := e.mirror.Stats()
	metrics.MirrorTokens.Set(float64(stats.Tokens))
	log.Debug("Ingest finished", zap.Int("pairs", len(pairs)), zap.Int("mirrored", mirrored),
		zap.Int("mirrorTokens", stats.Tokens))
	if err := e.mirror.Flush(ctx); err != nil {
		log.Warn("Mirror not persisted this cycle", zap.Error(err))
	}
	return nil
}

// Discover walks the mirror and announces qualifying tokens, at most TopNPerTick per run
// when that cap is set.
func (e *Engine) Discover(ctx context.Context, log *logger.Logger) error {
	announced := 0
	for id, snap := range e.mirror.All() {
		if ctx.Err() != nil {
			break
		}
		if top := e.schedule.TopNPerTick; top > 0 && announced >= top {
			break
		}
		d, ok := e.dispatcher.Discover(ctx, id, snap)
		if !ok {
			continue
		}
		announced++
		log.Info("Token discovered", zap.String("token", id), zap.String("name", snap.Name),
			zap.Bool("firstTime", d.FirstTime), zap.Float64("firstMcap", d.FirstMcap),
			zap.Int("sent", d.Sent), zap.Int("pinned", d.Pinned), zap.Int("removed", d.Removed))
	}
	metrics.TrackedTokens.Set(float64(e.tracking.Len()))
	if announced > 0 {
		if err := e.baselines.Flush(ctx); err != nil {
			log.Warn("Baselines not persisted this cycle", zap.Error(err))
		}
	}
	return ctx.Err()
}

// Refresh re-fetches every tracked token and sends its update.
func (e *Engine) Refresh(ctx context.Context, log *logger.Logger) error {
	ids := e.tracking.ExpireAndGet(e.now())
	metrics.TrackedTokens.Set(float64(len(ids)))
	if len(ids) == 0 {
		return nil
	}

	sent := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		pairs, err := e.market.PairsForToken(ctx, e.chain, id)
		if err != nil {
			log.Warn("Refresh fetch failed", zap.String("token", id), zap.Error(err))
			continue
		}
		best, ok := services.BestPair(pairs)
		if !ok {
			log.Debug("No pools for tracked token", zap.String("token", id))
			continue
		}
		snap, err := services.ToSnapshot(best, e.chain)
		if err != nil {
			log.Debug("Skipping malformed refresh record", zap.String("token", id), zap.Error(err))
			continue
		}
		e.mirror.Upsert(snap.TokenID, snap.PairAddress, snap.PairCreatedAt, snap)
		if d, ok := e.dispatcher.Refresh(ctx, id, snap); ok {
			sent += d.Sent
		}
	}

	metrics.TrackedTokens.Set(float64(e.tracking.Len()))
	log.Info("Refresh finished", zap.Int("tracked", len(ids)), zap.Int("alertsSent", sent))
	if err := e.mirror.Flush(ctx); err != nil {
		log.Warn("Mirror not persisted this cycle", zap.Error(err))
	}
	if err := e.baselines.Flush(ctx); err != nil {
		log.Warn("Baselines not persisted this cycle", zap.Error(err))
	}
	return ctx.Err()
}

// Heartbeat logs the engine's state.
func (e *Engine) Heartbeat(_ context.Context, log *logger.Logger) error {
	stats := e.mirror.Stats()
	log.Info("Heartbeat", zap.Int("mirrorTokens", stats.Tokens), zap.Int("mirrorPairs", stats.Pairs),
		zap.Int("baselines", e.baselines.Len()), zap.Int("tracked", e.tracking.Len()),
		zap.Int("socialQueue", len(e.socialQueue)))
	return nil
}

// enqueueSocial schedules a token's social reference for resolution unless it is
// already queued or cached.
func (e *Engine) enqueueSocial(tokenID, handle, url string) {
	if e.resolver == nil {
		return
	}
	ref := social.RefFor(handle, url)
	if ref == "" {
		return
	}
	if _, ok := e.resolver.Cached(ref); ok {
		e.baselines.SetSocial(tokenID, handle, url)
		return
	}
	key := social.CacheKey(ref)
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	if _, ok := e.pending[key]; ok {
		return
	}
	select {
	case e.socialQueue <- socialJob{tokenID: tokenID, handle: handle, url: url}:
		e.pending[key] = struct{}{}
		metrics.SocialQueueDepth.Set(float64(len(e.socialQueue)))
	default:
		e.log.Debug("Social queue full, dropping reference", zap.String("ref", ref))
	}
}

// ResolveSocial drains the queued social references.
func (e *Engine) ResolveSocial(ctx context.Context, log *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-e.socialQueue:
			metrics.SocialQueueDepth.Set(float64(len(e.socialQueue)))
			ref := social.RefFor(job.handle, job.url)
			handles, err := e.resolver.Resolve(ctx, ref)
			e.pendingMu.Lock()
			delete(e.pending, social.CacheKey(ref))
			e.pendingMu.Unlock()
			if err != nil {
				return err
			}
			e.baselines.SetSocial(job.tokenID, job.handle, job.url)
			log.Debug("Social reference resolved", zap.String("token", job.tokenID), zap.String("ref", ref),
				zap.Int("handles", len(handles)))
		default:
			return nil
		}
	}
}
