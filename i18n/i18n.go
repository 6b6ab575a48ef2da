// Package i18n holds the bot's user-facing strings in Uzbek and Russian.
//
// Templates use fmt verbs; T formats only when arguments are given, so a
// template with a literal % is safe to look up without args.
package i18n

import (
	"fmt"
	"strings"
)

const (
	Uzbek   = "uz"
	Russian = "ru"
)

// Fallback is used for unknown languages and for keys missing in a table.
const Fallback = Uzbek

var tables = map[string]map[string]string{
	Uzbek: {
		"welcome":       "Assalomu alaykum! <b>Asalboy</b>ga xush kelibsiz.\nKatalog uchun <b>“Katalog”</b> yoki <b>“🛒 Interaktiv menyu”</b> tugmasini bosing.",
		"menu_catalog":  "Katalog",
		"menu_cart":     "Savatcha",
		"menu_contact":  "Kontakt",
		"contact":       "<b>Kontakt</b>\n📞 +998953442020\n📲 Instagram: @asalboy_att",
		"choose_lang":   "Bot tilini tanlang:",
		"uzbek":         "🇺🇿 O‘zbekcha",
		"russian":       "🇷🇺 Русский",
		"price_kg_only": "Narx (1 kg): <b>%d</b> so'm",
		"no_products":   "Hozircha mahsulotlar yo‘q.",
		"cart_empty":    "Savatcha bo'sh.",
		"cart_line":     "%d. %s — 1 kg x%d — %d so'm",
		"cart_total":    "<b>Jami:</b> %d so'm",
		"cart_cleared":  "Savatcha tozalandi.",
		"name_ask":      "Ismingizni kiriting:",
		"name_short":    "Ism juda qisqa. To‘liqroq kiriting.",
		"phone_ask":     "Telefon (masalan +998901234567):",
		"phone_bad":     "Telefon formati xato. Masalan: +998901234567",
		"addr_ask":      "Yetkazib berish manzili:",
		"addr_short":    "Manzil juda qisqa.",
		"order_ok":      "✅ Buyurtmangiz qabul qilindi! Tez orada bog‘lanamiz.",
		"order_failed":  "❌ Buyurtmani saqlab bo‘lmadi. Iltimos, qayta urinib ko‘ring.",
		"added":         "%s — %d ta (1 kg) savatchaga qo‘shildi. %d so‘m",
		"select":        "Tanlash",
		"qty":           "Miqdor",
		"add_to_cart":   "➕ Savatchaga",
		"back":          "⬅️ Orqaga",
		"checkout":      "Checkout",
		"quick":         "⚡ Tezkor buyurtma",
		"clear_cart":    "Clear cart",
		"webapp":        "🛒 Interaktiv menyu",
		"phone_share":   "📱 Telefon raqamingizni yuboring (tugma orqali yoki yozib):",
		"phone_btn":     "📱 Telefonni yuborish",
		"loc_ask":       "📍 Iltimos, lokatsiyangizni yuboring (tugma orqali):",
		"loc_btn":       "📍 Lokatsiyani yuborish",
		"loc_bad":       "Lokatsiya olinmadi. 'Lokatsiyani yuborish' tugmasini bosing.",
		"thanks":        "✅ Rahmat! Buyurtmangiz qabul qilindi.",
		"info_btn":      "Asal haqida",
		"info_missing":  "Ma'lumot mavjud emas.",
		"not_found":     "Topilmadi",
		"cancelled":     "Bekor qilindi.",
		"bad_payload":   "Ma'lumotni o‘qib bo‘lmadi.",
		"ord_new":       "🆕 Buyurtma #%d",
		"ord_new_quick": "🆕 Quick buyurtma #%d",
		"ord_new_web":   "🆕 WebApp buyurtma #%d",
		"ord_from":      "👤 Kimdan: %s",
		"ord_user":      "🧑‍💻 User: %s",
		"ord_phone":     "📞 Telefon: %s",
		"ord_addr":      "🏠 Manzil: %s",
		"ord_geo":       "📍 Geo: %.6f, %.6f",
		"ord_items":     "🛒 Mahsulotlar:",
		"ord_item":      "• %s — 1 kg x%d — %d so'm",
		"ord_total":     "<b>Jami:</b> %d so'm",
		"ord_map":       "📍 <a href='%s'>Google Xarita</a>",
		"ord_received":  "✅ WebApp orqali buyurtma qabul qilindi. Rahmat!",
	},
	Russian: {
		"welcome":       "Здравствуйте! Добро пожаловать в <b>Asalboy</b>.",
		"menu_catalog":  "Каталог",
		"menu_cart":     "Корзина",
		"menu_contact":  "Контакт",
		"contact":       "<b>Контакты</b>\n📞 +998953442020\n📲 Instagram: @asalboy_att",
		"choose_lang":   "Выберите язык:",
		"uzbek":         "🇺🇿 Узбекский",
		"russian":       "🇷🇺 Русский",
		"price_kg_only": "Цена (1 кг): <b>%d</b> сум",
		"no_products":   "Пока нет товаров.",
		"cart_empty":    "Корзина пустая.",
		"cart_line":     "%d. %s — 1 кг x%d — %d сум",
		"cart_total":    "<b>Итого:</b> %d сум",
		"cart_cleared":  "Корзина очищена.",
		"name_ask":      "Введите имя:",
		"name_short":    "Имя слишком короткое.",
		"phone_ask":     "Введите телефон (например +998901234567):",
		"phone_bad":     "Неверный формат телефона.",
		"addr_ask":      "Адрес доставки:",
		"addr_short":    "Адрес слишком короткий.",
		"order_ok":      "✅ Заказ принят! Мы скоро свяжемся.",
		"order_failed":  "❌ Не удалось сохранить заказ. Попробуйте ещё раз.",
		"added":         "%s — %d шт (1 кг) добавлен. %d сум",
		"select":        "Выбрать",
		"qty":           "Кол-во",
		"add_to_cart":   "➕ В корзину",
		"back":          "⬅️ Назад",
		"checkout":      "Оформить",
		"quick":         "⚡ Быстрый заказ",
		"clear_cart":    "Очистить",
		"webapp":        "🛒 Интерактивное меню",
		"phone_share":   "📱 Отправьте номер телефона (кнопкой или текстом):",
		"phone_btn":     "📱 Отправить телефон",
		"loc_ask":       "📍 Отправьте вашу геолокацию (кнопкой):",
		"loc_btn":       "📍 Отправить локацию",
		"loc_bad":       "Геолокация не получена.",
		"thanks":        "✅ Спасибо! Заказ принят.",
		"info_btn":      "О мёде",
		"info_missing":  "Информация отсутствует.",
		"not_found":     "Не найдено",
		"cancelled":     "Отменено.",
		"bad_payload":   "Не удалось прочитать данные.",
		"ord_new":       "🆕 Заказ #%d",
		"ord_new_quick": "🆕 Быстрый заказ #%d",
		"ord_new_web":   "🆕 Заказ WebApp #%d",
		"ord_from":      "👤 От: %s",
		"ord_user":      "🧑‍💻 User: %s",
		"ord_phone":     "📞 Телефон: %s",
		"ord_addr":      "🏠 Адрес: %s",
		"ord_geo":       "📍 Гео: %.6f, %.6f",
		"ord_items":     "🛒 Товары:",
		"ord_item":      "• %s — 1 кг x%d — %d сум",
		"ord_total":     "<b>Итого:</b> %d сум",
		"ord_map":       "📍 <a href='%s'>Google Maps</a>",
		"ord_received":  "✅ Заказ через WebApp принят. Спасибо!",
	},
}

// Supported reports whether lang has its own table.
func Supported(lang string) bool {
	_, ok := tables[lang]
	return ok
}

// Normalize maps an unsupported language to def, and def to Fallback when it
// is unsupported too.
func Normalize(lang, def string) string {
	if Supported(lang) {
		return lang
	}
	if Supported(def) {
		return def
	}
	return Fallback
}

// T looks key up for lang and formats it with args. Missing keys resolve to
// the fallback table, then to "".
func T(lang, key string, args ...any) string {
	s, ok := tables[lang][key]
	if !ok {
		s = tables[Fallback][key]
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}

type MenuItem int

const (
	MenuNone MenuItem = iota
	MenuCatalog
	MenuCart
	MenuContact
)

var menuKeys = map[string]MenuItem{
	"menu_catalog": MenuCatalog,
	"menu_cart":    MenuCart,
	"menu_contact": MenuContact,
}

// MatchMenu recognises a main-menu word in any language, case-insensitively.
func MatchMenu(text string) MenuItem {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return MenuNone
	}
	for _, table := range tables {
		for key, item := range menuKeys {
			if strings.ToLower(table[key]) == text {
				return item
			}
		}
	}
	return MenuNone
}
