package bot

import (
	"context"

	"mint-radar/agent/internal/alerts"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/config"
	"mint-radar/shared/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Replier sends plain-text command replies.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Scraper resolves a social reference into handles.
type Scraper interface {
	Resolve(ctx context.Context, ref string) ([]string, error)
}

type Deps struct {
	Replier     Replier
	Subscribers *store.Subscribers
	Mirror      *store.Mirror
	Tracking    *store.TrackingSet
	Dispatcher  *alerts.Dispatcher
	// Scraper is nil when the social scraper is disabled.
	Scraper   Scraper
	Following *store.Following
	Config    *config.Config
}

// Bot answers chat commands.
type Bot struct {
	replier     Replier
	subscribers *store.Subscribers
	mirror      *store.Mirror
	tracking    *store.TrackingSet
	dispatcher  *alerts.Dispatcher
	scraper     Scraper
	following   *store.Following
	cfg         *config.Config
	log         *logger.Logger
}

func New(deps Deps, appLogger *logger.Logger) *Bot {
	return &Bot{
		replier:     deps.Replier,
		subscribers: deps.Subscribers,
		mirror:      deps.Mirror,
		tracking:    deps.Tracking,
		dispatcher:  deps.Dispatcher,
		scraper:     deps.Scraper,
		following:   deps.Following,
		cfg:         deps.Config,
		log:         appLogger.With("component", "bot"),
	}
}

// StartListening long-polls for updates until ctx is cancelled.
func (b *Bot) StartListening(ctx context.Context, api *tgbotapi.BotAPI) {
	b.log.Info("Starting bot command listener (long polling)")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case update := <-updates:
			go b.HandleUpdate(ctx, update)
		case <-ctx.Done():
			b.log.Info("Context cancelled. Stopping Telegram listener.")
			return
		}
	}
}

// HandleUpdate routes a command message. Non-command updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	var from string
	if msg.From != nil {
		from = msg.From.UserName
	}
	b.log.Debug("Received command message", zap.Int64("chatID", msg.Chat.ID),
		zap.String("fromUser", from), zap.String("text", msg.Text))
	b.HandleCommand(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
}
