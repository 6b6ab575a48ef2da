package orders

import (
	"context"
	"sync"
	"time"

	"telegram-shop-bot/cart"
)

// OrderManager keeps orders in process memory. It backs tests and local runs
// where a database file is not wanted.
type OrderManager struct {
	mu     sync.Mutex
	orders []Order
	now    func() time.Time
}

func NewOrderManager() *OrderManager {
	return &OrderManager{
		orders: make([]Order, 0),
		now:    time.Now,
	}
}

func (om *OrderManager) Save(_ context.Context, d Draft) (*Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if d.Source == "" {
		d.Source = SourceClassic
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	order := Order{
		ID:         int64(len(om.orders) + 1),
		UserID:     d.UserID,
		UserHandle: d.UserHandle,
		UserName:   d.UserName,
		Phone:      d.Phone,
		Address:    d.Address,
		Lines:      append([]cart.Line(nil), d.Lines...),
		Total:      d.Total,
		CreatedAt:  om.now().UTC(),
		Lat:        d.Lat,
		Lon:        d.Lon,
		Source:     d.Source,
	}

	om.orders = append(om.orders, order)
	return &order, nil
}

func (om *OrderManager) Get(_ context.Context, id int64) (*Order, error) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if id < 1 || id > int64(len(om.orders)) {
		return nil, ErrNotFound
	}
	order := om.orders[id-1]
	return &order, nil
}

func (om *OrderManager) Recent(_ context.Context, limit int) ([]Order, error) {
	om.mu.Lock()
	defer om.mu.Unlock()

	var out []Order
	for i := len(om.orders) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, om.orders[i])
	}
	return out, nil
}

// GetOrders returns every stored order, oldest first.
func (om *OrderManager) GetOrders() []Order {
	om.mu.Lock()
	defer om.mu.Unlock()

	return append([]Order(nil), om.orders...)
}
