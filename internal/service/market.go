package service

import (
	"context"

	"github.com/gridmarket/gridmarket/internal/auth"
	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/governance"
	"github.com/gridmarket/gridmarket/internal/store"
)

// UpdateParametersRequest carries a partial market-parameter update. Nil
// fields are left unchanged.
type UpdateParametersRequest struct {
	FeeBps          *int64
	ClearingEnabled *bool
}

// MarketService exposes market parameters, stats, book depth, trades, and
// the reconciliation log.
type MarketService struct {
	params  *store.ParamStore
	trades  *store.TradeStore
	recon   *store.ReconStore
	matcher *engine.Matcher
	pauser  governance.Pauser
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	params *store.ParamStore,
	trades *store.TradeStore,
	recon *store.ReconStore,
	matcher *engine.Matcher,
	pauser governance.Pauser,
) *MarketService {
	return &MarketService{
		params:  params,
		trades:  trades,
		recon:   recon,
		matcher: matcher,
		pauser:  pauser,
	}
}

// Parameters returns the current parameter snapshot and counters.
func (s *MarketService) Parameters() (*domain.MarketParameters, domain.MarketStats) {
	return s.params.Params(), s.params.Stats()
}

// UpdateParameters publishes a new parameter version. Admin only; blocked
// while governance reports an emergency pause.
func (s *MarketService) UpdateParameters(ctx context.Context, requester *auth.Identity, req UpdateParametersRequest) (*domain.MarketParameters, error) {
	if requester == nil || !requester.Admin {
		return nil, domain.ErrUnauthorized
	}
	if s.pauser.IsEmergencyPaused(ctx) {
		return nil, domain.ErrEmergencyPaused
	}
	return s.params.UpdateParams(req.FeeBps, req.ClearingEnabled)
}

// GetTrade retrieves a trade by id.
func (s *MarketService) GetTrade(id string) (*domain.Trade, error) {
	return s.trades.Get(id)
}

// ListTrades returns all settled trades in chronological order.
func (s *MarketService) ListTrades() []*domain.Trade {
	return s.trades.List()
}

// Depth returns up to n aggregated price levels per side.
func (s *MarketService) Depth(n int) (buys, sells []engine.PriceLevel) {
	return s.matcher.Depth(n)
}

// Reconciliation returns the skipped-commit log. Admin only.
func (s *MarketService) Reconciliation(requester *auth.Identity) ([]*domain.ReconciliationEvent, error) {
	if requester == nil || !requester.Admin {
		return nil, domain.ErrUnauthorized
	}
	return s.recon.List(), nil
}
