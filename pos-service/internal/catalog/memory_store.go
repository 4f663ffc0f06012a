package catalog

import (
	"context"
	"sync"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product // productID -> product
	byBarcode map[string]string          // barcode -> productID
}

// NewMemoryStore creates an in-memory catalog seeded with the given products
func NewMemoryStore(seed ...domain.Product) *MemoryStore {
	s := &MemoryStore{
		products:  make(map[string]*domain.Product),
		byBarcode: make(map[string]string),
	}
	for i := range seed {
		_ = s.Upsert(context.Background(), &seed[i])
	}
	return s
}

func (s *MemoryStore) Resolve(_ context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, ErrInvalidBarcode
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byBarcode[barcode]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := *s.products[id]
	return &p, nil
}

func (s *MemoryStore) Get(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Decrement(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return ErrInsufficientStock
	}
	p.StockQuantity -= qty
	return nil
}

func (s *MemoryStore) Restock(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.StockQuantity += qty
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, p *domain.Product) error {
	if p.Barcode == "" {
		return ErrInvalidBarcode
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.products[p.ID]; ok && old.Barcode != p.Barcode {
		delete(s.byBarcode, old.Barcode)
	}
	cp := *p
	s.products[p.ID] = &cp
	s.byBarcode[p.Barcode] = p.ID
	return nil
}
