package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-shop-bot/i18n"
)

// The client library predates web_app buttons, so the main keyboard is
// marshalled from these types instead of tgbotapi.ReplyKeyboardMarkup.
type webAppInfo struct {
	URL string `json:"url"`
}

type replyButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type replyKeyboard struct {
	Keyboard       [][]replyButton `json:"keyboard"`
	ResizeKeyboard bool            `json:"resize_keyboard"`
}

func (b *ShopBot) mainKeyboard(lang string) replyKeyboard {
	return replyKeyboard{
		Keyboard: [][]replyButton{
			{{Text: i18n.T(lang, "menu_cart")}},
			{{Text: i18n.T(lang, "menu_contact")}},
			{{Text: i18n.T(lang, "webapp"), WebApp: &webAppInfo{URL: b.cfg.WebAppURL(lang)}}},
		},
		ResizeKeyboard: true,
	}
}

func langSelectKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(i18n.T(i18n.Uzbek, "uzbek"), "lang:uz")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(i18n.T(i18n.Russian, "russian"), "lang:ru")),
	)
}

func productKeyboard(pid, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "select"), "sel:"+pid),
			tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "info_btn"), "info:"+pid),
		),
	)
}

func selectionKeyboard(pid string, qty int, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("−", fmt.Sprintf("qdec:%s:%d", pid, qty)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s: %d", i18n.T(lang, "qty"), qty), "noop"),
			tgbotapi.NewInlineKeyboardButtonData("+", fmt.Sprintf("qinc:%s:%d", pid, qty)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "add_to_cart"), fmt.Sprintf("addsel:%s:%d", pid, qty)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "back"), "back:"+pid),
		),
	)
}

// cartKeyboard is attached to the cart view and to the "added" confirmation,
// so checkout always starts from an explicit choice.
func cartKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "checkout"), "checkout")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "quick"), "quick")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, "clear_cart"), "clear_cart")),
	)
}

func sharePhoneKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(i18n.T(lang, "phone_btn"))),
	)
	kb.ResizeKeyboard = true
	return kb
}

func shareLocationKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(i18n.T(lang, "loc_btn"))),
	)
	kb.ResizeKeyboard = true
	return kb
}
