package bot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mint-radar/agent/internal/alerts"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/config"
	"mint-radar/shared/logger"
	"mint-radar/shared/notifications"
	"mint-radar/shared/persist"
	"mint-radar/shared/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mint = "So11111111111111111111111111111111111111112"

type fakeChat struct {
	mu      sync.Mutex
	replies map[int64][]string
	alerts  map[int64][]string
}

func newFakeChat() *fakeChat {
	return &fakeChat{replies: map[int64][]string{}, alerts: map[int64][]string{}}
}

func (c *fakeChat) Reply(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[chatID] = append(c.replies[chatID], text)
	return nil
}

func (c *fakeChat) SendAlert(_ context.Context, chatID int64, html string, _ notifications.Keyboard) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts[chatID] = append(c.alerts[chatID], html)
	return len(c.alerts[chatID]), nil
}

func (c *fakeChat) PinMessage(context.Context, int64, int) error { return nil }

func (c *fakeChat) lastReply(chatID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.replies[chatID]
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

type fakeScraper struct{ handles []string }

func (s fakeScraper) Resolve(context.Context, string) ([]string, error) { return s.handles, nil }

type fixture struct {
	bot      *Bot
	chat     *fakeChat
	subs     *store.Subscribers
	mirror   *store.Mirror
	tracking *store.TrackingSet
	handles  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	backend := persist.NewFiles(map[string]string{
		store.DocMirror:      filepath.Join(dir, "mirror.json"),
		store.DocBaselines:   filepath.Join(dir, "first_seen_caps.json"),
		store.DocPins:        filepath.Join(dir, "pins.json"),
		store.DocSubscribers: filepath.Join(dir, "subscribers.txt"),
	})
	log := logger.NewNop()
	f := &fixture{
		chat:     newFakeChat(),
		subs:     store.NewSubscribers(backend, log),
		mirror:   store.NewMirror(backend, log),
		tracking: store.NewTrackingSet(time.Hour),
		handles:  filepath.Join(dir, "handles.txt"),
	}
	cfg := &config.Config{
		Filters:  config.FilterConfig{MinLiquidityUSD: 35000, MinMarketCapUSD: 70000, MaxAgeMinutes: 120},
		Schedule: config.ScheduleConfig{IngestInterval: 12 * time.Second, ManualTradeDefault: 10},
	}
	dispatcher := alerts.NewDispatcher(alerts.Deps{
		Messenger:   f.chat,
		Subscribers: f.subs,
		Pins:        store.NewPins(backend, log),
		Tracking:    f.tracking,
		Baselines:   store.NewBaselines(backend, log),
	}, alerts.NewFilter(cfg.Filters), "solana", log)

	f.bot = New(Deps{
		Replier:     f.chat,
		Subscribers: f.subs,
		Mirror:      f.mirror,
		Tracking:    f.tracking,
		Dispatcher:  dispatcher,
		Scraper:     fakeScraper{handles: []string{"zed", "bob", "amy"}},
		Following:   store.NewFollowing(f.handles),
		Config:      cfg,
	}, log)
	return f
}

func TestStartSubscribesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleCommand(ctx, 5, "start", "")
	assert.True(t, f.subs.Has(5))
	assert.Contains(t, f.chat.lastReply(5), "every 12s")

	f.bot.HandleCommand(ctx, 5, "subscribe", "")
	assert.Equal(t, "Already subscribed.", f.chat.lastReply(5))

	f.bot.HandleCommand(ctx, 5, "unsubscribe", "")
	assert.Equal(t, "Unsubscribed.", f.chat.lastReply(5))
	assert.False(t, f.subs.Has(5))
}

func TestIDAndUnknown(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleCommand(context.Background(), -100123, "id", "")
	assert.Equal(t, "Chat ID: -100123", f.chat.lastReply(-100123))

	f.bot.HandleCommand(context.Background(), 1, "nope", "")
	assert.Contains(t, f.chat.lastReply(1), "Unknown command: /nope")
}

func TestTradePushesQualifyingTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleCommand(ctx, 9, "trade", "")
	assert.Equal(t, noMatchesMessage, f.chat.lastReply(9))

	snap := types.TokenSnapshot{
		TokenID:       mint,
		PairAddress:   "PAIR1",
		Name:          "ALPHA",
		LiquidityUSD:  types.Float(50000),
		MarketCapUSD:  types.Float(80000),
		PairCreatedAt: types.Millis(time.Now().Add(-5 * time.Minute)),
	}
	f.mirror.Upsert(mint, "PAIR1", snap.PairCreatedAt, snap)
	f.mirror.Upsert("LOWLIQ", "P2", nil, types.TokenSnapshot{TokenID: "LOWLIQ", LiquidityUSD: types.Float(10)})

	f.bot.HandleCommand(ctx, 9, "trade", "5")
	require.Len(t, f.chat.alerts[9], 1)
	assert.Contains(t, f.chat.alerts[9][0], "🔥 <b>ALPHA</b>")
	assert.True(t, f.tracking.IsTracked(mint))

	f.bot.HandleCommand(ctx, 9, "trade", "")
	require.Len(t, f.chat.alerts[9], 2)
	assert.Contains(t, f.chat.alerts[9][1], "🧊 <b>ALPHA</b>")
}

func TestTradeCount(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 3, f.bot.tradeCount(" 3 "))
	assert.Equal(t, 10, f.bot.tradeCount("x"))
	f.bot.cfg.Schedule.TopNPerTick = 4
	assert.Equal(t, 4, f.bot.tradeCount(""))
}

func TestScrapeAndHandles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(f.handles, []byte("@Bob\nzed\n"), 0o644))
	require.NoError(t, f.bot.following.Reload())

	f.bot.HandleCommand(ctx, 3, "scrape", "")
	assert.Contains(t, f.chat.lastReply(3), "Usage")

	f.bot.HandleCommand(ctx, 3, "scrape", "https://x.com/alpha")
	reply := f.chat.lastReply(3)
	assert.Contains(t, reply, "(profile)")
	assert.Contains(t, reply, "Followed (2): @bob, @zed")
	assert.Contains(t, reply, "Extras (1): @amy")

	f.bot.HandleCommand(ctx, 3, "handles", "")
	assert.Contains(t, f.chat.lastReply(3), "Handles: 2")
	assert.Contains(t, f.chat.lastReply(3), "Sample: @bob, @zed")

	f.bot.scraper = nil
	f.bot.HandleCommand(ctx, 3, "scrape", "https://x.com/alpha")
	assert.Equal(t, scraperOffMessage, f.chat.lastReply(3))
}

func TestMirrorAndStatus(t *testing.T) {
	f := newFixture(t)
	f.mirror.Upsert(mint, "PAIR1", nil, types.TokenSnapshot{TokenID: mint})

	f.bot.HandleCommand(context.Background(), 4, "mirror", "")
	assert.JSONEq(t, `{"tokens":1,"pairs":1}`, f.chat.lastReply(4))

	f.bot.HandleCommand(context.Background(), 4, "status", "")
	assert.Contains(t, f.chat.lastReply(4), "Mirror: 1 tokens, 1 pairs")
	assert.Contains(t, f.chat.lastReply(4), "liq >= $35000")
}

func TestHandleUpdateIgnoresNonCommands(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello",
		Chat: &tgbotapi.Chat{ID: 8},
	}})
	assert.Empty(t, f.chat.lastReply(8))

	f.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/id",
		Chat:     &tgbotapi.Chat{ID: 8},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 3}},
	}})
	assert.Equal(t, "Chat ID: 8", f.chat.lastReply(8))
}
