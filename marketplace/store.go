// Package marketplace holds the product listings and the shopping cart of one signed-in user.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"land-assessment-system/models"
)

var (
	ErrUnknownProduct  = errors.New("product not found")
	ErrOutOfStock      = errors.New("not enough stock")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ProductSource lists the marketplace products.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Store is populated when the user signs in and cleared when they sign out.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	products map[models.FlexibleID]models.Product
	order    []models.FlexibleID
	cart     map[models.FlexibleID]float64
	logger   *zap.Logger
}

// NewStore creates an empty store. logger may be nil.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		products: make(map[models.FlexibleID]models.Product),
		cart:     make(map[models.FlexibleID]float64),
		logger:   logger,
	}
}

// Populate replaces the listings with those from source. Cart lines whose product is no
// longer listed are dropped and quantities above the new stock are lowered.
func (s *Store) Populate(ctx context.Context, source ProductSource) error {
	products, err := source.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[models.FlexibleID]models.Product, len(products))
	s.order = s.order[:0]
	for _, p := range products {
		s.putLocked(p)
	}
	for id, qty := range s.cart {
		p, ok := s.products[id]
		switch {
		case !ok || p.Quantity <= 0:
			delete(s.cart, id)
		case qty > p.Quantity:
			s.cart[id] = p.Quantity
		}
	}

	s.logger.Info("Marketplace populated", zap.Int("products", len(s.products)))
	return nil
}

// Upsert adds or refreshes listings without touching the rest.
func (s *Store) Upsert(products ...models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.putLocked(p)
	}
}

func (s *Store) putLocked(p models.Product) {
	if _, ok := s.products[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p
}

// Clear drops every listing and empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[models.FlexibleID]models.Product)
	s.order = nil
	s.cart = make(map[models.FlexibleID]float64)
}

// Products returns the listings in the order they were first seen.
func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// Product looks a listing up by id.
func (s *Store) Product(id models.FlexibleID) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// AddToCart adds qty of a product, refusing to exceed the listed stock.
func (s *Store) AddToCart(id models.FlexibleID, qty float64) error {
	if !(qty > 0) {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	if s.cart[id]+qty > p.Quantity {
		return fmt.Errorf("%w: %s has %g %s left", ErrOutOfStock, p.Name, p.Quantity-s.cart[id], p.Unit)
	}
	s.cart[id] += qty
	return nil
}

// RemoveFromCart removes the product from the cart entirely.
func (s *Store) RemoveFromCart(id models.FlexibleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cart, id)
}

// Cart returns the cart lines in listing order.
func (s *Store) Cart() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []models.CartLine
	for _, id := range s.order {
		qty, ok := s.cart[id]
		if !ok {
			continue
		}
		p := s.products[id]
		lines = append(lines, models.CartLine{ProductID: id, Name: p.Name, Price: p.Price, Quantity: qty})
	}
	return lines
}

// Total is the sum of the cart line subtotals.
func (s *Store) Total() float64 {
	var total float64
	for _, line := range s.Cart() {
		total += line.Subtotal()
	}
	return total
}
