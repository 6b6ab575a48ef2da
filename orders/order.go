package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-shop-bot/cart"
)

// Source tells which checkout path produced an order.
type Source string

const (
	SourceClassic Source = "classic"
	SourceQuick   Source = "quick"
	SourceWebApp  Source = "webapp"
)

var (
	ErrNotFound      = errors.New("orders: order not found")
	ErrTotalMismatch = errors.New("orders: total does not match cart lines")
)

type Order struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"user_id"`
	UserHandle string      `json:"user_handle"`
	UserName   string      `json:"user_name"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	Lines      []cart.Line `json:"cart"`
	Total      int64       `json:"total"`
	CreatedAt  time.Time   `json:"created_at"`
	Lat        *float64    `json:"lat,omitempty"`
	Lon        *float64    `json:"lon,omitempty"`
	Source     Source      `json:"source"`
}

// HasGeo reports whether both coordinates are present.
func (o Order) HasGeo() bool {
	return o.Lat != nil && o.Lon != nil
}

// Draft is an order before the repository assigns its id and timestamp.
type Draft struct {
	UserID     int64
	UserHandle string
	UserName   string
	Phone      string
	Address    string
	Lines      []cart.Line
	Total      int64
	Lat        *float64
	Lon        *float64
	Source     Source
}

// Validate enforces that the total is derived from the lines.
func (d Draft) Validate() error {
	if sum := cart.Total(d.Lines); sum != d.Total {
		return fmt.Errorf("%w: lines sum to %d, got %d", ErrTotalMismatch, sum, d.Total)
	}
	return nil
}

// GeoAddress is the address sentinel stored for location-only orders.
func GeoAddress(lat, lon float64) string {
	return fmt.Sprintf("geo:%v,%v", lat, lon)
}

// Repository is append-only: there is no update or delete.
type Repository interface {
	Save(ctx context.Context, d Draft) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	Recent(ctx context.Context, limit int) ([]Order, error)
}
