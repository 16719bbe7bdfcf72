package alerts

import (
	"context"
	"errors"
	"time"

	"mint-radar/agent/internal/metrics"
	"mint-radar/agent/internal/social"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/logger"
	"mint-radar/shared/notifications"
	"mint-radar/shared/types"

	"go.uber.org/zap"
)

// Kind of alert, used for labels and logs.
type Kind string

const (
	KindDiscovery Kind = "discovery"
	KindRefresh   Kind = "refresh"
	KindManual    Kind = "manual"
)

// Messenger delivers alerts. notifications.Telegram satisfies it.
type Messenger interface {
	SendAlert(ctx context.Context, chatID int64, html string, kb notifications.Keyboard) (int, error)
	PinMessage(ctx context.Context, chatID int64, messageID int) error
}

// Socials returns cached handle classifications for a social reference.
type Socials interface {
	Cached(ref string) (social.Classification, bool)
}

// Delivery summarizes one alert fan-out.
type Delivery struct {
	Kind      Kind
	FirstTime bool
	FirstMcap float64
	Sent      int
	Failed    int
	Removed   int
	Pinned    int
}

type Dispatcher struct {
	messenger   Messenger
	subscribers *store.Subscribers
	pins        *store.Pins
	tracking    *store.TrackingSet
	baselines   *store.Baselines
	socials     Socials
	filter      Filter
	chain       string
	now         func() time.Time
	log         *logger.Logger
}

type Deps struct {
	Messenger   Messenger
	Subscribers *store.Subscribers
	Pins        *store.Pins
	Tracking    *store.TrackingSet
	Baselines   *store.Baselines
	Socials     Socials
}

func NewDispatcher(deps Deps, filter Filter, chain string, appLogger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		messenger:   deps.Messenger,
		subscribers: deps.Subscribers,
		pins:        deps.Pins,
		tracking:    deps.Tracking,
		baselines:   deps.Baselines,
		socials:     deps.Socials,
		filter:      filter,
		chain:       chain,
		now:         time.Now,
		log:         appLogger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) Filter() Filter { return d.filter }

func (d *Dispatcher) card(snap types.TokenSnapshot, firstTime bool, firstMcap float64) Card {
	c := Card{Snapshot: snap, FirstTime: firstTime, FirstMcap: firstMcap, Now: d.now()}
	if d.socials != nil {
		if cls, ok := d.socials.Cached(social.RefFor(snap.XHandle, snap.XURL)); ok {
			c.Social = cls
		}
	}
	return c
}

// Discover announces a qualifying token that is not yet tracked. It reports false when
// the token fails the filter or was tracked or evicted before.
func (d *Dispatcher) Discover(ctx context.Context, tokenID string, snap types.TokenSnapshot) (Delivery, bool) {
	now := d.now()
	if ok, reason := d.filter.Check(snap, now); !ok {
		d.log.Debug("Candidate filtered out", zap.String("token", tokenID), zap.String("reason", reason))
		return Delivery{}, false
	}
	if d.tracking.IsTracked(tokenID) {
		return Delivery{}, false
	}
	// The baseline exists before the token becomes visible to refresh.
	firstTime, firstMcap := d.baselines.Decorate(tokenID, snap)
	if !d.tracking.Add(tokenID, now) {
		return Delivery{}, false
	}
	out := d.fanOut(ctx, KindDiscovery, tokenID, d.card(snap, firstTime, firstMcap), true)
	out.FirstTime, out.FirstMcap = firstTime, firstMcap
	return out, true
}

// Refresh sends the periodic update for a tracked token. A token past the maximum age is
// evicted instead; a token failing any other threshold is skipped this cycle.
func (d *Dispatcher) Refresh(ctx context.Context, tokenID string, snap types.TokenSnapshot) (Delivery, bool) {
	now := d.now()
	firstTime, firstMcap := d.baselines.Decorate(tokenID, snap)
	if d.filter.TooOld(snap, now) {
		d.tracking.Evict(tokenID)
		d.log.Info("Token aged out of tracking", zap.String("token", tokenID))
		return Delivery{}, false
	}
	if ok, reason := d.filter.Check(snap, now); !ok {
		d.log.Debug("Tracked token below thresholds, skipping update", zap.String("token", tokenID),
			zap.String("reason", reason))
		return Delivery{}, false
	}
	out := d.fanOut(ctx, KindRefresh, tokenID, d.card(snap, firstTime, firstMcap), false)
	out.FirstTime, out.FirstMcap = firstTime, firstMcap
	return out, true
}

// Push sends one token to a single chat on request. It marks the token tracked but never pins.
func (d *Dispatcher) Push(ctx context.Context, chatID int64, tokenID string, snap types.TokenSnapshot) (Delivery, error) {
	firstTime, firstMcap := d.baselines.Decorate(tokenID, snap)
	d.tracking.Add(tokenID, d.now())
	c := d.card(snap, firstTime, firstMcap)
	out := Delivery{Kind: KindManual, FirstTime: firstTime, FirstMcap: firstMcap}
	if _, err := d.messenger.SendAlert(ctx, chatID, Caption(c), Buttons(d.chain, snap)); err != nil {
		metrics.AlertFailures.WithLabelValues(string(KindManual)).Inc()
		out.Failed++
		return out, err
	}
	metrics.AlertsSent.WithLabelValues(string(KindManual)).Inc()
	out.Sent++
	return out, nil
}

// fanOut sends the card to every subscriber. Gone destinations are dropped and the loop
// continues; other failures are counted and logged.
func (d *Dispatcher) fanOut(ctx context.Context, kind Kind, tokenID string, c Card, pin bool) Delivery {
	out := Delivery{Kind: kind}
	caption := Caption(c)
	kb := Buttons(d.chain, c.Snapshot)

	for _, chatID := range d.subscribers.List() {
		if ctx.Err() != nil {
			break
		}
		msgID, err := d.messenger.SendAlert(ctx, chatID, caption, kb)
		if errors.Is(err, notifications.ErrDestinationGone) {
			out.Failed++
			metrics.AlertFailures.WithLabelValues(string(kind)).Inc()
			if removed, _ := d.subscribers.Remove(ctx, chatID); removed {
				out.Removed++
				metrics.DestinationsRemoved.Inc()
				d.log.Warn("Destination gone, unsubscribed", zap.Int64("chatID", chatID), zap.Error(err))
			}
			continue
		}
		if err != nil {
			out.Failed++
			metrics.AlertFailures.WithLabelValues(string(kind)).Inc()
			d.log.Error("Alert delivery failed", zap.String("kind", string(kind)), zap.String("token", tokenID),
				zap.Int64("chatID", chatID), zap.Error(err))
			continue
		}
		out.Sent++
		metrics.AlertsSent.WithLabelValues(string(kind)).Inc()

		if pin && d.pinOnce(ctx, chatID, tokenID, msgID) {
			out.Pinned++
		}
	}
	return out
}

// pinOnce pins msgID unless this destination already has a pin for tokenID.
func (d *Dispatcher) pinOnce(ctx context.Context, chatID int64, tokenID string, msgID int) bool {
	if !d.pins.Claim(chatID, tokenID) {
		return false
	}
	if err := d.messenger.PinMessage(ctx, chatID, msgID); err != nil {
		d.pins.Release(chatID, tokenID)
		d.log.Warn("Pin failed", zap.Int64("chatID", chatID), zap.String("token", tokenID), zap.Error(err))
		return false
	}
	if err := d.pins.Confirm(ctx, chatID, tokenID, msgID); err != nil {
		d.log.Warn("Pin recorded in memory only", zap.Int64("chatID", chatID), zap.String("token", tokenID), zap.Error(err))
	}
	metrics.PinsCreated.Inc()
	return true
}
