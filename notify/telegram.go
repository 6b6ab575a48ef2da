package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-shop-bot/orders"
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts the order summary to the operator chat, followed by
// a location pin when the order has coordinates.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	lang   string
}

func NewTelegramNotifier(sender Sender, chatID int64, lang string) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, lang: lang}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Notify ignores ctx: the bot client has no per-call cancellation.
func (t *TelegramNotifier) Notify(_ context.Context, o orders.Order) error {
	msg := tgbotapi.NewMessage(t.chatID, Format(o, t.lang))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send order %d summary: %w", o.ID, err)
	}

	if o.HasGeo() {
		if _, err := t.sender.Send(tgbotapi.NewLocation(t.chatID, *o.Lat, *o.Lon)); err != nil {
			return fmt.Errorf("send order %d location: %w", o.ID, err)
		}
	}
	return nil
}
