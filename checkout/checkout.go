package checkout

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"telegram-shop-bot/metrics"
	"telegram-shop-bot/orders"
	"telegram-shop-bot/session"
)

const (
	minNameLen    = 2
	minAddressLen = 5
)

var phonePattern = regexp.MustCompile(`^\+?\d{9,15}$`)

var (
	ErrEmptyCart     = errors.New("checkout: cart is empty")
	ErrNotInCheckout = errors.New("checkout: session is not in a checkout flow")
	ErrBadPayload    = errors.New("checkout: malformed web app payload")
)

// ValidPhone reports whether s, once trimmed, is an optional plus sign
// followed by 9 to 15 digits.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// Keyboard names the reply keyboard the transport should attach.
type Keyboard int

const (
	KeyboardKeep Keyboard = iota
	KeyboardSharePhone
	KeyboardShareLocation
	KeyboardMain
)

// Outcome is a reply for the user as a translation key and its arguments.
// Order is set when the step placed an order.
type Outcome struct {
	Reply    string
	Args     []any
	Keyboard Keyboard
	Order    *orders.Order
}

type User struct {
	ID       int64
	Handle   string
	FullName string
}

type Contact struct {
	Phone     string
	FirstName string
	LastName  string
}

type Location struct {
	Lat float64
	Lon float64
}

// Input is one inbound message as seen by the state machine.
type Input struct {
	Text     string
	Contact  *Contact
	Location *Location
}

// Machine drives the classic (name, phone, address) and quick (phone,
// location) flows over a session. It never touches the transport.
type Machine struct {
	placer  *Placer
	catalog Catalog
	metrics *metrics.AppMetrics
}

func NewMachine(placer *Placer, catalog Catalog, m *metrics.AppMetrics) *Machine {
	return &Machine{placer: placer, catalog: catalog, metrics: m}
}

// Active reports whether the session is inside a checkout flow.
func Active(s *session.Session) bool {
	switch s.State {
	case session.StateClassicName, session.StateClassicPhone, session.StateClassicAddress,
		session.StateQuickPhone, session.StateQuickLocation:
		return true
	}
	return false
}

func (m *Machine) StartClassic(s *session.Session) Outcome {
	if s.Cart.Empty() {
		return Outcome{Reply: "cart_empty"}
	}
	s.Checkout = session.Checkout{}
	s.State = session.StateClassicName
	return Outcome{Reply: "name_ask"}
}

func (m *Machine) StartQuick(s *session.Session) Outcome {
	if s.Cart.Empty() {
		return Outcome{Reply: "cart_empty"}
	}
	s.Checkout = session.Checkout{}
	s.State = session.StateQuickPhone
	return Outcome{Reply: "phone_share", Keyboard: KeyboardSharePhone}
}

// Handle advances the session by one input. Validation failures re-prompt and
// leave the state alone. A persistence failure returns the order_failed reply
// together with the error and also leaves the state alone, so the user can
// repeat the last step.
func (m *Machine) Handle(ctx context.Context, s *session.Session, u User, in Input) (Outcome, error) {
	switch s.State {
	case session.StateClassicName:
		return m.classicName(ctx, s, in), nil
	case session.StateClassicPhone:
		return m.classicPhone(ctx, s, in), nil
	case session.StateClassicAddress:
		return m.classicAddress(ctx, s, u, in)
	case session.StateQuickPhone:
		return m.quickPhone(ctx, s, u, in), nil
	case session.StateQuickLocation:
		return m.quickLocation(ctx, s, u, in)
	default:
		return Outcome{}, ErrNotInCheckout
	}
}

func (m *Machine) reject(ctx context.Context, step, reply string, kb Keyboard) Outcome {
	m.metrics.RecordValidationFailure(ctx, step)
	return Outcome{Reply: reply, Keyboard: kb}
}

func (m *Machine) classicName(ctx context.Context, s *session.Session, in Input) Outcome {
	name := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(name) < minNameLen {
		return m.reject(ctx, "name", "name_short", KeyboardKeep)
	}
	s.Checkout.Name = name
	s.State = session.StateClassicPhone
	return Outcome{Reply: "phone_ask"}
}

func (m *Machine) classicPhone(ctx context.Context, s *session.Session, in Input) Outcome {
	phone := strings.TrimSpace(in.Text)
	if !ValidPhone(phone) {
		return m.reject(ctx, "phone", "phone_bad", KeyboardKeep)
	}
	s.Checkout.Phone = phone
	s.State = session.StateClassicAddress
	return Outcome{Reply: "addr_ask"}
}

func (m *Machine) classicAddress(ctx context.Context, s *session.Session, u User, in Input) (Outcome, error) {
	address := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(address) < minAddressLen {
		return m.reject(ctx, "address", "addr_short", KeyboardKeep), nil
	}
	if s.Cart.Empty() {
		s.Clear()
		return Outcome{Reply: "cart_empty"}, nil
	}

	lines := s.Cart.Snapshot()
	o, err := m.placer.Place(ctx, orders.Draft{
		UserID:     u.ID,
		UserHandle: u.Handle,
		UserName:   s.Checkout.Name,
		Phone:      s.Checkout.Phone,
		Address:    address,
		Lines:      lines,
		Total:      s.Cart.Total(),
		Source:     orders.SourceClassic,
	})
	if err != nil {
		return Outcome{Reply: "order_failed"}, err
	}

	s.Clear()
	return Outcome{Reply: "order_ok", Order: o}, nil
}

func (m *Machine) quickPhone(ctx context.Context, s *session.Session, u User, in Input) Outcome {
	var phone, name string
	if in.Contact != nil {
		phone = strings.TrimSpace(in.Contact.Phone)
		name = strings.TrimSpace(in.Contact.FirstName + " " + in.Contact.LastName)
	} else {
		phone = strings.TrimSpace(in.Text)
		if !ValidPhone(phone) {
			return m.reject(ctx, "phone", "phone_bad", KeyboardKeep)
		}
	}
	if name == "" {
		name = u.FullName
	}

	s.Checkout.Phone = phone
	s.Checkout.Name = name
	s.State = session.StateQuickLocation
	return Outcome{Reply: "loc_ask", Keyboard: KeyboardShareLocation}
}

func (m *Machine) quickLocation(ctx context.Context, s *session.Session, u User, in Input) (Outcome, error) {
	if in.Location == nil {
		return m.reject(ctx, "location", "loc_bad", KeyboardShareLocation), nil
	}
	if s.Cart.Empty() {
		s.Clear()
		return Outcome{Reply: "cart_empty", Keyboard: KeyboardMain}, nil
	}

	lat, lon := in.Location.Lat, in.Location.Lon
	name := s.Checkout.Name
	if name == "" {
		name = u.FullName
	}

	o, err := m.placer.Place(ctx, orders.Draft{
		UserID:     u.ID,
		UserHandle: u.Handle,
		UserName:   name,
		Phone:      s.Checkout.Phone,
		Address:    orders.GeoAddress(lat, lon),
		Lines:      s.Cart.Snapshot(),
		Total:      s.Cart.Total(),
		Lat:        &lat,
		Lon:        &lon,
		Source:     orders.SourceQuick,
	})
	if err != nil {
		return Outcome{Reply: "order_failed"}, err
	}

	s.Clear()
	return Outcome{Reply: "thanks", Keyboard: KeyboardMain, Order: o}, nil
}
