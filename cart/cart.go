package cart

import "telegram-shop-bot/catalog"

const (
	MinQty = 1
	MaxQty = 99
)

// Clamp keeps an interactive quantity within [MinQty, MaxQty].
func Clamp(q int) int {
	if q < MinQty {
		return MinQty
	}
	if q > MaxQty {
		return MaxQty
	}
	return q
}

// Line is a cart entry. Name and UnitPrice are snapshots taken when the line
// is created, so later catalog edits do not change an open cart.
type Line struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Kg        float64 `json:"kg"`
	Qty       int     `json:"qty"`
	UnitPrice int64   `json:"unit_price"`
	Price     int64   `json:"price"`
}

// NewLine snapshots a product in the given language. The quantity is used
// as is; interactive callers clamp it first.
func NewLine(p catalog.Product, lang string, qty int) Line {
	unit := p.UnitPrice()
	return Line{
		ProductID: p.ID,
		Name:      p.Name(lang),
		Kg:        1.0,
		Qty:       qty,
		UnitPrice: unit,
		Price:     unit * int64(qty),
	}
}

// Total is qty × unit price.
func (l Line) Total() int64 {
	return int64(l.Qty) * l.UnitPrice
}

// Total sums line totals.
func Total(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}

type Cart struct {
	Lines []Line `json:"lines"`
}

func (c *Cart) Add(l Line) {
	c.Lines = append(c.Lines, l)
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Total() int64 {
	return Total(c.Lines)
}

// Snapshot returns a copy of the lines that is safe to hand to an order.
func (c Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}
