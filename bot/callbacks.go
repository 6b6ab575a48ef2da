package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"telegram-shop-bot/cart"
	"telegram-shop-bot/i18n"
	"telegram-shop-bot/session"
)

func (b *ShopBot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		b.answer(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	s, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.logger.WithField("chat_id", chatID).WithError(err).Error("Failed to load session")
		b.answer(cb.ID, "")
		return
	}
	defer b.saveSession(ctx, s)

	lang := b.lang(s)
	parts := strings.Split(cb.Data, ":")

	switch parts[0] {
	case "lang":
		b.onLanguage(cb, s, parts)
	case "info":
		b.onInfo(cb, lang, parts)
	case "sel", "back":
		if len(parts) != 2 {
			b.answer(cb.ID, "")
			return
		}
		b.answer(cb.ID, "")
		markup := productKeyboard(parts[1], lang)
		if parts[0] == "sel" {
			markup = selectionKeyboard(parts[1], 1, lang)
		}
		b.editMarkup(cb.Message, markup)
	case "qinc", "qdec":
		b.onQuantity(cb, lang, parts)
	case "addsel":
		b.onAdd(cb, s, lang, parts)
	case "checkout":
		b.answer(cb.ID, "")
		b.sendOutcome(chatID, lang, b.machine.StartClassic(s))
	case "quick":
		b.answer(cb.ID, "")
		b.sendOutcome(chatID, lang, b.machine.StartQuick(s))
	case "clear_cart":
		b.answer(cb.ID, "OK")
		s.Clear()
		b.sendText(chatID, i18n.T(lang, "cart_cleared"), nil)
	default:
		b.answer(cb.ID, "")
	}
}

func (b *ShopBot) onLanguage(cb *tgbotapi.CallbackQuery, s *session.Session, parts []string) {
	if len(parts) != 2 || !i18n.Supported(parts[1]) {
		b.answer(cb.ID, "")
		return
	}
	s.Lang = parts[1]
	b.answer(cb.ID, "OK")
	b.sendWelcome(cb.Message.Chat.ID, s.Lang)
}

func (b *ShopBot) onInfo(cb *tgbotapi.CallbackQuery, lang string, parts []string) {
	b.answer(cb.ID, "")

	info := ""
	if len(parts) == 2 {
		if p, ok := b.catalog.Get(parts[1]); ok {
			info = p.Info()
		}
	}
	if info == "" {
		info = i18n.T(lang, "info_missing")
	}
	b.sendText(cb.Message.Chat.ID, escape(info), nil)
}

// onQuantity re-renders the selector with the clamped quantity. At the bounds
// the quantity does not change and the message is left as is.
func (b *ShopBot) onQuantity(cb *tgbotapi.CallbackQuery, lang string, parts []string) {
	b.answer(cb.ID, "")
	if len(parts) != 3 {
		return
	}
	q, err := strconv.Atoi(parts[2])
	if err != nil {
		return
	}

	next := q + 1
	if parts[0] == "qdec" {
		next = q - 1
	}
	next = cart.Clamp(next)
	if next == q {
		return
	}
	b.editMarkup(cb.Message, selectionKeyboard(parts[1], next, lang))
}

func (b *ShopBot) onAdd(cb *tgbotapi.CallbackQuery, s *session.Session, lang string, parts []string) {
	if len(parts) != 3 {
		b.answer(cb.ID, "")
		return
	}
	p, ok := b.catalog.Get(parts[1])
	if !ok {
		b.answer(cb.ID, i18n.T(lang, "not_found"))
		return
	}
	q, err := strconv.Atoi(parts[2])
	if err != nil {
		b.answer(cb.ID, "")
		return
	}

	line := cart.NewLine(p, lang, cart.Clamp(q))
	if line.Name == "" {
		line.Name = displayName(p, lang)
	}
	s.Cart.Add(line)

	b.logger.WithFields(logrus.Fields{
		"chat_id":    cb.Message.Chat.ID,
		"product_id": p.ID,
		"qty":        line.Qty,
	}).Debug("Added to cart")

	b.answer(cb.ID, "OK")
	b.sendText(cb.Message.Chat.ID, i18n.T(lang, "added", escape(line.Name), line.Qty, line.Total()), cartKeyboard(lang))
}

func (b *ShopBot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.WithError(err).Warn("Failed to answer callback")
	}
}

func (b *ShopBot) editMarkup(message *tgbotapi.Message, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageReplyMarkup(message.Chat.ID, message.MessageID, markup)
	if _, err := b.api.Request(edit); err != nil {
		b.logger.WithField("chat_id", message.Chat.ID).WithError(err).Warn("Failed to edit keyboard")
	}
}
