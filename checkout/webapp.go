package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"telegram-shop-bot/cart"
	"telegram-shop-bot/catalog"
	"telegram-shop-bot/orders"
)

// Catalog resolves product ids to current catalog records.
type Catalog interface {
	Get(id string) (catalog.Product, bool)
}

// looseString accepts a JSON string or number.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	id, err := catalog.ParseID(data)
	if err != nil {
		return err
	}
	*l = looseString(id)
	return nil
}

// looseInt accepts a JSON integer or a numeric string.
type looseInt int

func (l *looseInt) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*l = looseInt(int(v))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("qty %q is not a number: %w", v, err)
		}
		*l = looseInt(n)
	default:
		return fmt.Errorf("qty has unsupported type %T", raw)
	}
	return nil
}

// WebItem is one cart entry assembled by the mini-app.
type WebItem struct {
	ID  looseString `json:"id"`
	Qty *looseInt   `json:"qty"`
}

// WebPayload is the JSON document the mini-app sends back through the bot.
type WebPayload struct {
	Items   []WebItem `json:"items"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Address string    `json:"address"`
	Lat     *float64  `json:"lat"`
	Lon     *float64  `json:"lon"`
}

// ParseWebPayload decodes raw mini-app data.
func ParseWebPayload(raw []byte) (WebPayload, error) {
	var p WebPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return WebPayload{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return p, nil
}

// Lines prices the payload against the current catalog. Unknown ids are
// dropped; quantities are used as sent, 1 when missing.
func (p WebPayload) Lines(c Catalog, lang string) []cart.Line {
	var lines []cart.Line
	for _, it := range p.Items {
		prod, ok := c.Get(string(it.ID))
		if !ok {
			continue
		}
		qty := 1
		if it.Qty != nil {
			qty = int(*it.Qty)
		}

		line := cart.NewLine(prod, lang, qty)
		if line.Name == "" {
			line.Name = prod.NameUz
		}
		if line.Name == "" {
			line.Name = "Nomsiz"
		}
		lines = append(lines, line)
	}
	return lines
}

// SubmitWeb places an order from a mini-app payload in one shot. It does not
// read or change the session state.
func (m *Machine) SubmitWeb(ctx context.Context, lang string, u User, raw []byte) (Outcome, error) {
	payload, err := ParseWebPayload(raw)
	if err != nil {
		return Outcome{Reply: "bad_payload"}, err
	}

	lines := payload.Lines(m.catalog, lang)
	if len(lines) == 0 {
		return Outcome{Reply: "cart_empty"}, ErrEmptyCart
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		name = u.FullName
	}

	d := orders.Draft{
		UserID:     u.ID,
		UserHandle: u.Handle,
		UserName:   name,
		Phone:      strings.TrimSpace(payload.Phone),
		Address:    strings.TrimSpace(payload.Address),
		Lines:      lines,
		Total:      cart.Total(lines),
		Source:     orders.SourceWebApp,
	}
	if payload.Lat != nil && payload.Lon != nil {
		d.Lat, d.Lon = payload.Lat, payload.Lon
		if d.Address == "" {
			d.Address = orders.GeoAddress(*d.Lat, *d.Lon)
		}
	}

	o, err := m.placer.Place(ctx, d)
	if err != nil {
		return Outcome{Reply: "order_failed"}, err
	}
	return Outcome{Reply: "ord_received", Order: o}, nil
}
