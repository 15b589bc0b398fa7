// Package cart holds the shopper's pending selection and keeps it in sync with
// durable storage. The in-memory copy is authoritative for the lifetime of a Store;
// storage failures are logged and never returned.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("product must have id, name and a non-negative price")

// Item is one product line. Name, price and image are captured when the product
// is added and are never re-synced with the catalog.
type Item struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	ProductImage *string         `json:"product_image"`
	Quantity     int             `json:"quantity"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Product is what callers hand to Add.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	ImageURL *string
}

type Snapshot struct {
	Items       []Item          `json:"items"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Store struct {
	mu      sync.Mutex
	storage Storage
	key     string
	log     *slog.Logger
	items   []Item
	newID   func() string
}

func NewStore(storage Storage, key string, log *slog.Logger) *Store {
	return &Store{
		storage: storage,
		key:     key,
		log:     log.With("cart_key", key),
		newID:   uuid.NewString,
	}
}

// Open builds a Store and loads it in one step.
func Open(ctx context.Context, storage Storage, key string, log *slog.Logger) *Store {
	s := NewStore(storage, key, log)
	s.Load(ctx)
	return s
}

func (s *Store) Key() string { return s.key }

// Load replaces the in-memory state with the durable one. Missing, unreadable or
// malformed data yields an empty cart.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.log.ErrorContext(ctx, "cart load failed", "event", "cart_load_failed", "err", err)
		return
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.WarnContext(ctx, "discarding malformed cart", "event", "cart_discarded", "err", err)
		return
	}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			s.log.WarnContext(ctx, "discarding malformed cart", "event", "cart_discarded",
				"err", "invalid item", "product_id", it.ProductID, "quantity", it.Quantity)
			return
		}
	}
	s.items = items
}

func (s *Store) Add(ctx context.Context, p Product) error {
	if p.ID == "" || p.Name == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity++
	} else {
		s.items = append(s.items, Item{
			ID:           s.newID(),
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			ProductImage: p.ImageURL,
			Quantity:     1,
		})
	}
	s.persist(ctx)
	return nil
}

// Remove drops every line for productID. Absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(ctx, productID)
}

// SetQuantity with quantity <= 0 behaves like Remove.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.remove(ctx, productID)
		return
	}
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.items[i].Quantity = quantity
	s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.log.ErrorContext(ctx, "cart clear failed", "event", "cart_persist_failed", "err", err)
	}
}

// Items returns a copy; callers never share the store's backing array.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countOf(s.items)
}

func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalOf(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:       s.copyItems(),
		ItemCount:   countOf(s.items),
		TotalAmount: totalOf(s.items),
	}
}

func (s *Store) copyItems() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) indexOf(productID string) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) remove(ctx context.Context, productID string) {
	kept := s.items[:0]
	removed := false
	for _, it := range s.items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return
	}
	s.items = kept
	s.persist(ctx)
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) {
	items := s.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.log.ErrorContext(ctx, "cart encode failed", "event", "cart_persist_failed", "err", err)
		return
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.log.ErrorContext(ctx, "cart persist failed", "event", "cart_persist_failed", "err", err)
	}
}

func countOf(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func totalOf(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
