package store

import (
	"sync"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// ReconStore is a thread-safe, append-only log of reconciliation events
// recorded when a proposed trade's ledger commit is skipped.
type ReconStore struct {
	mu     sync.RWMutex
	events []*domain.ReconciliationEvent
}

// NewReconStore creates an empty ReconStore.
func NewReconStore() *ReconStore {
	return &ReconStore{}
}

// Append adds an event to the log.
func (s *ReconStore) Append(e *domain.ReconciliationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

// List returns all events in chronological order.
func (s *ReconStore) List() []*domain.ReconciliationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ReconciliationEvent, len(s.events))
	copy(result, s.events)
	return result
}
