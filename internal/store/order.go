package store

import (
	"sync"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a primary
// index by order id and a secondary index by owner. Order ids are assigned
// from a monotonic sequence at creation time.
type OrderStore struct {
	mu          sync.RWMutex
	nextID      uint64
	orders      map[uint64]*domain.Order
	ownerOrders map[string][]*domain.Order // owner → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		nextID:      1,
		orders:      make(map[uint64]*domain.Order),
		ownerOrders: make(map[string][]*domain.Order),
	}
}

// Create assigns the next order id, stamps CreatedAt/ExpiresAt from now and
// ttl, marks the order active, and indexes it. Returns the assigned id.
func (s *OrderStore) Create(o *domain.Order, now time.Time, ttl time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	s.nextID++
	o.CreatedAt = now
	o.ExpiresAt = now.Add(ttl)
	o.FilledQuantity = 0
	o.Status = domain.OrderStatusActive

	s.orders[o.ID] = o
	s.ownerOrders[o.Owner] = append(s.ownerOrders[o.Owner], o)
	return o.ID
}

// Get retrieves an order by id. It returns domain.ErrOrderNotFound if the
// order does not exist.
func (s *OrderStore) Get(id uint64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByOwner returns an owner's orders in submission order.
func (s *OrderStore) ListByOwner(owner string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.ownerOrders[owner]
	result := make([]*domain.Order, len(all))
	copy(result, all)
	return result
}

// Count returns the total number of orders ever created. Useful for testing.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
