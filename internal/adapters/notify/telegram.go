package notify

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers notifications to a single chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger ports.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64, logger ports.Logger) (*Telegram, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for telegram notifier")
	}
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required: %w", ports.ErrConfigurationError)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect failed: %w", err)
	}
	bot.Debug = false
	logger.Info(context.Background(), "Telegram connected", map[string]interface{}{"bot": bot.Self.UserName})
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error(ctx, err, "Telegram: send failed", map[string]interface{}{"chatID": t.chatID})
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

func (t *Telegram) SendTradeNotification(ctx context.Context, trade *domain.Trade) error {
	return t.send(ctx, TradeMessage(trade))
}

func (t *Telegram) SendSignalNotification(ctx context.Context, signal *domain.TradingSignal) error {
	return t.send(ctx, SignalMessage(signal))
}

func (t *Telegram) SendErrorNotification(ctx context.Context, message string) error {
	return t.send(ctx, ErrorMessage(message))
}
