package store

import (
	"sync"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// TradeStore is a thread-safe, append-only store for settled trades,
// chronological with a primary index by trade id.
type TradeStore struct {
	mu     sync.RWMutex
	trades []*domain.Trade
	byID   map[string]*domain.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		byID: make(map[string]*domain.Trade),
	}
}

// Append adds a trade to the chronological list and the id index.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, t)
	s.byID[t.ID] = t
}

// Get retrieves a trade by id. It returns domain.ErrTradeNotFound if the
// trade does not exist.
func (s *TradeStore) Get(id string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return t, nil
}

// List returns all trades in chronological order.
func (s *TradeStore) List() []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trade, len(s.trades))
	copy(result, s.trades)
	return result
}

// ListByOrder returns the trades referencing the given order id as either
// leg, in chronological order.
func (s *TradeStore) ListByOrder(orderID uint64) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.trades {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			result = append(result, t)
		}
	}
	return result
}
