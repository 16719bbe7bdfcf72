package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mint-radar/agent/internal/social"

	"go.uber.org/zap"
)

const (
	defaultTradeCount = 10
	maxScrapeListed   = 30
	handlesSample     = 20
)

func (b *Bot) HandleCommand(ctx context.Context, chatID int64, command, args string) {
	b.log.Info("Processing command", zap.String("command", command), zap.String("args", args),
		zap.Int64("chatID", chatID))

	switch command {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.SendReply(ctx, chatID, helpMessage)
	case "id":
		b.SendReply(ctx, chatID, fmt.Sprintf("Chat ID: %d", chatID))
	case "subscribe":
		b.handleSubscribe(ctx, chatID)
	case "unsubscribe":
		b.handleUnsubscribe(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "trade":
		b.handleTrade(ctx, chatID, args)
	case "mirror":
		b.handleMirror(ctx, chatID)
	case "scrape":
		b.handleScrape(ctx, chatID, args)
	case "handles":
		b.handleHandles(ctx, chatID)
	default:
		b.log.Debug("Unknown command received", zap.String("command", command))
		b.SendReply(ctx, chatID, fmt.Sprintf("Unknown command: /%s\n\n%s", command, helpMessage))
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if _, err := b.subscribers.Add(ctx, chatID); err != nil {
		b.log.Error("Subscribe on /start not persisted", zap.Int64("chatID", chatID), zap.Error(err))
	}
	s := b.cfg.Schedule
	b.SendReply(ctx, chatID, fmt.Sprintf(
		"Subscribed. New tokens are checked every %s, discoveries every %s and tracked tokens refresh every %s for up to %s.\n\n%s",
		s.IngestInterval, s.DiscoveryInterval, s.RefreshInterval, s.MaxTrackingWindow, helpMessage))
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID int64) {
	added, err := b.subscribers.Add(ctx, chatID)
	switch {
	case err != nil:
		b.log.Error("Subscribe not persisted", zap.Int64("chatID", chatID), zap.Error(err))
		b.SendReply(ctx, chatID, errorMessage)
	case added:
		b.SendReply(ctx, chatID, "Subscribed to alerts.")
	default:
		b.SendReply(ctx, chatID, "Already subscribed.")
	}
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID int64) {
	removed, err := b.subscribers.Remove(ctx, chatID)
	switch {
	case err != nil:
		b.log.Error("Unsubscribe not persisted", zap.Int64("chatID", chatID), zap.Error(err))
		b.SendReply(ctx, chatID, errorMessage)
	case removed:
		b.SendReply(ctx, chatID, "Unsubscribed.")
	default:
		b.SendReply(ctx, chatID, "This chat was not subscribed.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	f := b.cfg.Filters
	s := b.cfg.Schedule
	stats := b.mirror.Stats()
	b.SendReply(ctx, chatID, fmt.Sprintf(`Status
Subscribers: %d (this chat subscribed: %t)
Tracked: %d
Mirror: %d tokens, %d pairs
Filters: liq >= $%.0f, mcap >= $%.0f, vol24h >= $%.0f, age <= %.0f min
Intervals: ingest %s, discovery %s, refresh %s, max tracking %s
Top N per tick: %d`,
		b.subscribers.Len(), b.subscribers.Has(chatID), b.tracking.Len(),
		stats.Tokens, stats.Pairs,
		f.MinLiquidityUSD, f.MinMarketCapUSD, f.MinVolumeH24USD, f.MaxAgeMinutes,
		s.IngestInterval, s.DiscoveryInterval, s.RefreshInterval, s.MaxTrackingWindow,
		s.TopNPerTick))
}

// tradeCount parses the optional /trade argument.
func (b *Bot) tradeCount(args string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 {
		return n
	}
	if n := b.cfg.Schedule.TopNPerTick; n > 0 {
		return n
	}
	if n := b.cfg.Schedule.ManualTradeDefault; n > 0 {
		return n
	}
	return defaultTradeCount
}

func (b *Bot) handleTrade(ctx context.Context, chatID int64, args string) {
	limit := b.tradeCount(args)
	filter := b.dispatcher.Filter()
	now := time.Now()

	pushed := 0
	for id, snap := range b.mirror.All() {
		if pushed >= limit || ctx.Err() != nil {
			break
		}
		if !filter.Passes(snap, now) {
			continue
		}
		if _, err := b.dispatcher.Push(ctx, chatID, id, snap); err != nil {
			b.log.Warn("Manual push failed", zap.Int64("chatID", chatID), zap.String("token", id), zap.Error(err))
			break
		}
		pushed++
	}
	if pushed == 0 {
		b.SendReply(ctx, chatID, noMatchesMessage)
	}
}

func (b *Bot) handleMirror(ctx context.Context, chatID int64) {
	out, err := json.MarshalIndent(b.mirror.Stats(), "", "  ")
	if err != nil {
		b.SendReply(ctx, chatID, errorMessage)
		return
	}
	b.SendReply(ctx, chatID, string(out))
}

func listHandles(hs []string) string {
	if len(hs) == 0 {
		return "—"
	}
	if len(hs) > maxScrapeListed {
		hs = hs[:maxScrapeListed]
	}
	return "@" + strings.Join(hs, ", @")
}

func (b *Bot) handleScrape(ctx context.Context, chatID int64, args string) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		b.SendReply(ctx, chatID, "Usage: /scrape <x.com profile, post or community url>")
		return
	}
	if b.scraper == nil {
		b.SendReply(ctx, chatID, scraperOffMessage)
		return
	}
	handles, err := b.scraper.Resolve(ctx, ref)
	if err != nil {
		b.log.Warn("Scrape command failed", zap.String("ref", ref), zap.Error(err))
		b.SendReply(ctx, chatID, errorMessage)
		return
	}
	c := social.Split(handles, b.following)
	b.SendReply(ctx, chatID, fmt.Sprintf("Scraped %s (%s)\nHandles found: %d\n\nFollowed (%d): %s\n\nExtras (%d): %s",
		ref, social.Classify(ref), len(handles),
		len(c.Followed), listHandles(c.Followed),
		len(c.Extras), listHandles(c.Extras)))
}

func (b *Bot) handleHandles(ctx context.Context, chatID int64) {
	if err := b.following.Reload(); err != nil {
		b.log.Warn("Followed handles file unreadable", zap.String("path", b.following.Path()), zap.Error(err))
		b.SendReply(ctx, chatID, errorMessage)
		return
	}
	sample := b.following.Sample(handlesSample)
	text := fmt.Sprintf("File: %s\nHandles: %d", b.following.Path(), b.following.Len())
	if len(sample) > 0 {
		text += "\nSample: @" + strings.Join(sample, ", @")
	}
	b.SendReply(ctx, chatID, text)
}

func (b *Bot) SendReply(ctx context.Context, chatID int64, text string) {
	if err := b.replier.Reply(ctx, chatID, text); err != nil {
		b.log.Error("Failed to send reply message", zap.Int64("chatID", chatID), zap.Error(err))
	}
}
