package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// PlaceholderPhoto is shown for products that carry no photo reference.
const PlaceholderPhoto = "https://via.placeholder.com/600x400?text=Asal"

var ErrInvalidPrice = errors.New("catalog: price must be positive")

// Product is a single catalog record as stored in the products file.
// Prices are kept as loose JSON numbers because hand-edited files mix
// integers and floats, and ids may be written as strings or numbers.
type Product struct {
	ID          string   `json:"id"`
	NameUz      string   `json:"name_uz,omitempty"`
	NameRu      string   `json:"name_ru,omitempty"`
	DescUz      string   `json:"desc_uz,omitempty"`
	DescRu      string   `json:"desc_ru,omitempty"`
	PricePerKg  *float64 `json:"price_per_kg,omitempty"`
	Price1      *float64 `json:"price_1,omitempty"`
	Photo       string   `json:"photo,omitempty"`
	PhotoFileID string   `json:"photo_file_id,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Available   *bool    `json:"available,omitempty"`
	InfoShort   string   `json:"info_short"`
	InfoFull    string   `json:"info_full"`

	// raw is the record as read; keys it holds are written back unchanged.
	raw map[string]json.RawMessage
}

// ParseID decodes a product id given as a JSON string or number.
func ParseID(data json.RawMessage) (string, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %w", err)
	}
	return n.String(), nil
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := ParseID(aux.ID)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product(aux.plain)
	p.ID = id
	p.raw = raw
	return nil
}

// MarshalJSON writes the record as it was read, adding only keys the file
// did not have.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	typed, err := json.Marshal(plain(p))
	if err != nil || len(p.raw) == 0 {
		return typed, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(typed, &out); err != nil {
		return nil, err
	}
	for k, v := range p.raw {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnitPrice returns the price of one kilogram in minor units.
func (p Product) UnitPrice() int64 {
	if p.PricePerKg != nil {
		return int64(*p.PricePerKg)
	}
	if p.Price1 != nil {
		return int64(*p.Price1)
	}
	return 0
}

// IsAvailable treats a missing flag as available.
func (p Product) IsAvailable() bool {
	return p.Available == nil || *p.Available
}

// Name returns the localized name, or "" when the language has none.
func (p Product) Name(lang string) string {
	if lang == "ru" {
		return p.NameRu
	}
	return p.NameUz
}

func (p Product) Description(lang string) string {
	if lang == "ru" {
		return p.DescRu
	}
	return p.DescUz
}

// PhotoRef picks the first usable photo reference.
func (p Product) PhotoRef() string {
	for _, ref := range []string{p.PhotoFileID, p.Photo, p.PhotoURL} {
		if ref != "" {
			return ref
		}
	}
	return PlaceholderPhoto
}

// Info returns the long-form text shown by the info button.
func (p Product) Info() string {
	for _, s := range []string{p.InfoFull, p.InfoShort, p.DescUz, p.DescRu} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Draft is what the admin flow collects before a product gets an id.
type Draft struct {
	Photo  string
	NameUz string
	DescUz string
	Price  int64
}

// Store holds the catalog in memory and rewrites the backing file on append.
type Store struct {
	mu       sync.RWMutex
	path     string
	products []Product
}

// Load reads the catalog file, creating an empty one when it does not exist.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.products = []Product{}
		if err := s.flush(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.products); err != nil {
		return nil, fmt.Errorf("catalog: decode %q: %w", path, err)
	}
	if s.products == nil {
		s.products = []Product{}
	}
	return s, nil
}

// Get looks a product up by id.
func (s *Store) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// List returns every product, including unavailable ones.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Available returns products that may be offered to customers.
func (s *Store) Available() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Product
	for _, p := range s.products {
		if p.IsAvailable() {
			out = append(out, p)
		}
	}
	return out
}

// Append assigns the lowest free p<N> id to the draft, stores it and
// rewrites the catalog file.
func (s *Store) Append(d Draft) (Product, error) {
	if d.Price <= 0 {
		return Product{}, ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price := float64(d.Price)
	available := true
	p := Product{
		ID:        s.nextID(),
		NameUz:    orDefault(d.NameUz, "Nomsiz"),
		NameRu:    orDefault(d.NameUz, "Без названия"),
		DescUz:    d.DescUz,
		DescRu:    d.DescUz,
		Price1:    &price,
		Photo:     d.Photo,
		Available: &available,
		InfoShort: d.DescUz,
		InfoFull:  d.DescUz,
	}

	s.products = append(s.products, p)
	if err := s.flush(); err != nil {
		s.products = s.products[:len(s.products)-1]
		return Product{}, err
	}
	return p, nil
}

func (s *Store) nextID() string {
	taken := make(map[string]struct{}, len(s.products))
	for _, p := range s.products {
		taken[p.ID] = struct{}{}
	}
	for n := 1; ; n++ {
		id := "p" + strconv.Itoa(n)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

// flush writes the catalog through a temp file so readers of the file never
// see a half-written list. Callers hold the write lock.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.products, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".products-*.json")
	if err != nil {
		return fmt.Errorf("catalog: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("catalog: replace %q: %w", s.path, err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
