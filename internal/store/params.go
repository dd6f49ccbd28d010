package store

import (
	"sync"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// ParamStore holds the current MarketParameters snapshot and the market's
// monotonic volume/trade counters. Parameter snapshots are immutable:
// UpdateParams publishes a new version rather than mutating the current one.
// The counters are written only by the settlement coordinator.
type ParamStore struct {
	mu     sync.RWMutex
	params *domain.MarketParameters
	stats  domain.MarketStats
}

// NewParamStore creates a ParamStore with version 1 of the given initial
// parameters.
func NewParamStore(feeBps int64, clearingEnabled bool) *ParamStore {
	return &ParamStore{
		params: &domain.MarketParameters{
			Version:         1,
			FeeBps:          feeBps,
			ClearingEnabled: clearingEnabled,
		},
	}
}

// Params returns the current parameter snapshot.
func (s *ParamStore) Params() *domain.MarketParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// UpdateParams publishes a new parameter version. Nil fields keep their
// current value. Returns the new snapshot, or domain.ErrInvalidFee when
// feeBps is out of bounds.
func (s *ParamStore) UpdateParams(feeBps *int64, clearingEnabled *bool) (*domain.MarketParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &domain.MarketParameters{
		Version:         s.params.Version + 1,
		FeeBps:          s.params.FeeBps,
		ClearingEnabled: s.params.ClearingEnabled,
	}
	if feeBps != nil {
		if *feeBps < 0 || *feeBps > domain.MaxFeeBps {
			return nil, domain.ErrInvalidFee
		}
		next.FeeBps = *feeBps
	}
	if clearingEnabled != nil {
		next.ClearingEnabled = *clearingEnabled
	}
	s.params = next
	return next, nil
}

// RecordTrade adds a settled trade to the monotonic counters.
func (s *ParamStore) RecordTrade(quantity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalVolume += quantity
	s.stats.TotalTrades++
}

// Stats returns a copy of the current counters.
func (s *ParamStore) Stats() domain.MarketStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
