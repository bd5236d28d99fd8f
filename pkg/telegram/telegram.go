package telegram

import (
	"context"
	"errors"
	"fmt"

	"quant-platform/config"
	"quant-platform/pkg/ratelimit"

	"gopkg.in/telebot.v3"
)

var ErrAlertRateLimited = errors.New("alert rate limit exceeded")

type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier delivers operational alerts to one Telegram chat. It satisfies
// logger.AlertSink.
type Notifier struct {
	cfg     *config.TelegramConfig
	bot     sender
	chat    telebot.ChatID
	limiter *ratelimit.TokenLimiter
}

// NewNotifier creates an offline bot client; no update polling is started.
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newNotifier(cfg, bot), nil
}

func newNotifier(cfg *config.TelegramConfig, bot sender) *Notifier {
	perMin := cfg.MaxAlertPerMin
	if perMin <= 0 {
		perMin = 20
	}
	return &Notifier{
		cfg:     cfg,
		bot:     bot,
		chat:    telebot.ChatID(cfg.ChatID),
		limiter: ratelimit.NewTokenLimiter(perMin),
	}
}

// SendAlert sends msg unless the per-minute budget is spent.
func (n *Notifier) SendAlert(msg string) error {
	ctx := context.Background()
	if n.cfg.TimeoutDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.TimeoutDuration)
		defer cancel()
	}

	if err := n.limiter.Wait(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrAlertRateLimited, err)
	}
	if _, err := n.bot.Send(n.chat, msg); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}
