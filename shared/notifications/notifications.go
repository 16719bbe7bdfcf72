package notifications

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"mint-radar/shared/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrDestinationGone marks a chat that no longer accepts messages from the bot.
var ErrDestinationGone = errors.New("destination gone")

// Button is a single URL button of an inline keyboard.
type Button struct {
	Text string
	URL  string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

type Options struct {
	SendRate   float64
	SendBurst  int
	MaxRetries int
	OpsChatID  int64
}

// Telegram delivers alerts and command replies through the Bot API.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	limiter    *rate.Limiter
	maxRetries int
	opsChatID  int64
	log        *logger.Logger
}

func InitTelegramBot(token string, opts Options, appLogger *logger.Logger) (*Telegram, error) {
	return initTelegram(token, tgbotapi.APIEndpoint, http.DefaultClient, opts, appLogger)
}

// NewWithEndpoint builds a Telegram client against a custom Bot API endpoint format.
func NewWithEndpoint(token, endpoint string, client *http.Client, opts Options, appLogger *logger.Logger) (*Telegram, error) {
	return initTelegram(token, endpoint, client, opts, appLogger)
}

func initTelegram(token, endpoint string, client *http.Client, opts Options, appLogger *logger.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("critical error: TELEGRAM_BOT_TOKEN missing from env configuration")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot API: %w", err)
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 20
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	t := &Telegram{
		bot:        bot,
		limiter:    rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst),
		maxRetries: opts.MaxRetries,
		opsChatID:  opts.OpsChatID,
		log:        appLogger,
	}
	appLogger.Info("Telegram bot initialized", zap.String("username", bot.Self.UserName),
		zap.Float64("sendRate", opts.SendRate))
	return t, nil
}

// API exposes the underlying client for the update listener.
func (t *Telegram) API() *tgbotapi.BotAPI {
	return t.bot
}

func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

func buildMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendAlert sends an HTML message with an optional URL keyboard and returns its message id.
func (t *Telegram) SendAlert(ctx context.Context, chatID int64, html string, kb Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if len(kb) > 0 {
		msg.ReplyMarkup = buildMarkup(kb)
	}
	sent, err := t.sendWithRetry(ctx, chatID, msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) Reply(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.sendWithRetry(ctx, chatID, msg)
	return err
}

func (t *Telegram) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	pin := tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram limiter: %w", err)
	}
	if _, err := t.bot.Request(pin); err != nil {
		return classify(err)
	}
	return nil
}

// ValidateDestination reports whether the chat is still reachable. Errors other than
// a gone destination are returned so callers can keep the chat on transient failures.
func (t *Telegram) ValidateDestination(ctx context.Context, chatID int64) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("telegram limiter: %w", err)
	}
	_, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err == nil {
		return true, nil
	}
	if err = classify(err); errors.Is(err, ErrDestinationGone) {
		return false, nil
	}
	return false, err
}

// SetWebhook registers url for update delivery. An empty url removes any webhook.
func (t *Telegram) SetWebhook(url string) error {
	if url == "" {
		_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	_, err = t.bot.Request(wh)
	return err
}

// SendOps implements logger.Sink. Delivery is best effort and never logged above debug.
func (t *Telegram) SendOps(text string) {
	if t.opsChatID == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msg := tgbotapi.NewMessage(t.opsChatID, text)
		if _, err := t.sendWithRetry(ctx, t.opsChatID, msg); err != nil {
			t.log.Debug("Ops message not delivered", zap.Error(err))
		}
	}()
}

func (t *Telegram) sendWithRetry(ctx context.Context, chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return tgbotapi.Message{}, fmt.Errorf("telegram limiter: %w", err)
		}
		sent, err := t.bot.Send(msg)
		if err == nil {
			return sent, nil
		}
		lastErr = classify(err)
		if errors.Is(lastErr, ErrDestinationGone) {
			return tgbotapi.Message{}, lastErr
		}

		wait := time.Duration(math.Pow(2, float64(i))) * time.Second
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			if tgErr.Code == http.StatusTooManyRequests {
				retryAfter := tgErr.RetryAfter
				if retryAfter <= 0 {
					retryAfter = 1
				}
				wait = time.Duration(retryAfter) * time.Second
			} else if tgErr.Code == http.StatusBadRequest {
				// Malformed message; retrying will not help.
				return tgbotapi.Message{}, lastErr
			}
		}
		if i == t.maxRetries-1 {
			break
		}
		t.log.Debug("Retrying Telegram send", zap.Int64("chatID", chatID), zap.Int("attempt", i+1),
			zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return tgbotapi.Message{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return tgbotapi.Message{}, fmt.Errorf("telegram send to %d failed after %d attempts: %w", chatID, t.maxRetries, lastErr)
}

var goneMarkers = []string{
	"chat not found",
	"bot was blocked",
	"bot was kicked",
	"user is deactivated",
	"group chat was deactivated",
	"chat was deleted",
	"bot is not a member",
	"have no rights to send",
}

// classify maps Bot API failures that mean the chat is unusable onto ErrDestinationGone.
func classify(err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}
	if tgErr.Code == http.StatusBadRequest || tgErr.Code == http.StatusForbidden {
		lower := strings.ToLower(tgErr.Message)
		for _, m := range goneMarkers {
			if strings.Contains(lower, m) {
				return fmt.Errorf("%w: %s", ErrDestinationGone, tgErr.Message)
			}
		}
	}
	return fmt.Errorf("telegram api error %d: %s", tgErr.Code, tgErr.Message)
}
