package session

import (
	"context"

	"telegram-shop-bot/cart"
	"telegram-shop-bot/catalog"
)

type State int

const (
	StateNone State = iota
	StateClassicName
	StateClassicPhone
	StateClassicAddress
	StateQuickPhone
	StateQuickLocation
	StateAdminPhoto
	StateAdminName
	StateAdminDesc
	StateAdminPrice
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateClassicName:
		return "classic_name"
	case StateClassicPhone:
		return "classic_phone"
	case StateClassicAddress:
		return "classic_address"
	case StateQuickPhone:
		return "quick_phone"
	case StateQuickLocation:
		return "quick_location"
	case StateAdminPhoto:
		return "admin_photo"
	case StateAdminName:
		return "admin_name"
	case StateAdminDesc:
		return "admin_desc"
	case StateAdminPrice:
		return "admin_price"
	default:
		return "unknown"
	}
}

// Checkout holds the fields collected by an in-progress checkout.
type Checkout struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Session is the per-conversation state. An empty Lang means the configured
// default language.
type Session struct {
	ChatID   int64         `json:"chat_id"`
	Lang     string        `json:"lang,omitempty"`
	State    State         `json:"state"`
	Cart     cart.Cart     `json:"cart"`
	Checkout Checkout      `json:"checkout"`
	Draft    catalog.Draft `json:"draft"`
}

// Clear ends any flow and empties the cart. The language survives.
func (s *Session) Clear() {
	s.State = StateNone
	s.Cart.Clear()
	s.Checkout = Checkout{}
	s.Draft = catalog.Draft{}
}

func (s Session) clone() Session {
	s.Cart = cart.Cart{Lines: s.Cart.Snapshot()}
	return s
}

// Store keeps sessions keyed by chat id. Get creates a fresh session on first
// touch; callers mutate the returned copy and Save it back.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
}
