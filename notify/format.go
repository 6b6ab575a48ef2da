package notify

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-shop-bot/i18n"
	"telegram-shop-bot/orders"
)

// MapLink points at a coordinate on Google Maps.
func MapLink(lat, lon float64) string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(lon, 'f', -1, 64)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

// Format renders the operator summary of an order in HTML parse mode.
func Format(o orders.Order, lang string) string {
	var b strings.Builder

	switch o.Source {
	case orders.SourceQuick:
		b.WriteString(i18n.T(lang, "ord_new_quick", o.ID))
	case orders.SourceWebApp:
		b.WriteString(i18n.T(lang, "ord_new_web", o.ID))
	default:
		b.WriteString(i18n.T(lang, "ord_new", o.ID))
	}
	b.WriteByte('\n')

	handle := "N/A"
	if o.UserHandle != "" {
		handle = "@" + o.UserHandle
	}
	fmt.Fprintln(&b, i18n.T(lang, "ord_from", escape(o.UserName)))
	fmt.Fprintln(&b, i18n.T(lang, "ord_user", fmt.Sprintf("%s (%d)", escape(handle), o.UserID)))
	fmt.Fprintln(&b, i18n.T(lang, "ord_phone", escape(o.Phone)))

	switch {
	case o.HasGeo() && strings.HasPrefix(o.Address, "geo:"):
		fmt.Fprintln(&b, i18n.T(lang, "ord_geo", *o.Lat, *o.Lon))
		fmt.Fprintln(&b, MapLink(*o.Lat, *o.Lon))
	case o.HasGeo():
		fmt.Fprintln(&b, i18n.T(lang, "ord_addr", escape(o.Address)))
		fmt.Fprintln(&b, i18n.T(lang, "ord_map", MapLink(*o.Lat, *o.Lon)))
	default:
		fmt.Fprintln(&b, i18n.T(lang, "ord_addr", escape(o.Address)))
	}

	b.WriteByte('\n')
	fmt.Fprintln(&b, i18n.T(lang, "ord_items"))
	for _, l := range o.Lines {
		fmt.Fprintln(&b, i18n.T(lang, "ord_item", escape(l.Name), l.Qty, l.Total()))
	}
	b.WriteByte('\n')
	b.WriteString(i18n.T(lang, "ord_total", o.Total))

	return b.String()
}
