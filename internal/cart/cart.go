// Package cart holds the tab-owned shopping cart: a list of line items with
// quantity clamping against the stock snapshot captured at add-time.
package cart

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/models"
)

const StorageKey = "bounty:cart"

// LineItem prices are in major currency units, converted once when the item
// is added. MaxQty is the stock snapshot captured at add-time; quantity
// never rises above it.
type LineItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Qty    int     `json:"qty"`
	Image  string  `json:"image"`
	MaxQty int     `json:"maxQty"`
}

type Store struct {
	mu    sync.Mutex
	items []LineItem
	kv    kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	s := &Store{kv: kv}
	s.load()
	return s
}

func (s *Store) load() {
	if s.kv == nil {
		return
	}
	raw, ok := s.kv.Get(StorageKey)
	if !ok {
		return
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return
	}
	s.items = items
}

func (s *Store) persist() {
	if s.kv == nil {
		return
	}
	raw, err := json.Marshal(s.items)
	if err != nil {
		return
	}
	_ = s.kv.Set(StorageKey, string(raw))
}

func clampQty(qty, maxQty int) int {
	if maxQty < 0 {
		maxQty = 0
	}
	if qty > maxQty {
		return maxQty
	}
	return qty
}

// Add merges into an existing line by product id (name fallback), otherwise
// inserts a new line with quantity 1. A product whose stock snapshot is zero
// is never added.
func (s *Store) Add(p *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID.String()
	if p.ID == uuid.Nil {
		id = p.Name
	}
	maxQty := p.StockQuantity

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Qty = clampQty(s.items[i].Qty+1, maxQty)
			s.items[i].MaxQty = maxQty
			s.persist()
			return
		}
	}

	if maxQty <= 0 {
		return
	}

	image := ""
	for _, img := range p.Images {
		if img.URL != "" {
			image = img.URL
			break
		}
	}

	s.items = append(s.items, LineItem{
		ID:     id,
		Name:   p.Name,
		Price:  float64(p.Price) / 100,
		Qty:    1,
		Image:  image,
		MaxQty: maxQty,
	})
	s.persist()
}

func (s *Store) Increment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Qty = clampQty(s.items[i].Qty+1, s.items[i].MaxQty)
		}
	}
	s.persist()
}

// Decrement never drops a line below quantity 1; removal is explicit.
func (s *Store) Decrement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].Qty > 1 {
			s.items[i].Qty--
		}
	}
	s.persist()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	s.items = next
	s.persist()
}

func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Subtotal is recomputed from the current lines on every call.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, it := range s.items {
		sum += it.Price * float64(it.Qty)
	}
	return sum
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, it := range s.items {
		n += it.Qty
	}
	return n
}

// Clear empties the cart, e.g. when authentication is lost.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persist()
}
