package service

import (
	"context"
	"math"
	"time"

	"github.com/gridmarket/gridmarket/internal/auth"
	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/governance"
	"github.com/gridmarket/gridmarket/internal/store"
)

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	Owner      string
	Side       domain.Side
	Quantity   int64
	LimitPrice int64
	TTL        time.Duration
}

// OrderService handles order submission, retrieval, cancellation, and
// listing. Fill bookkeeping belongs to the settlement coordinator; this
// service never touches FilledQuantity.
type OrderService struct {
	matcher  *engine.Matcher
	sweeper  *engine.ExpirySweeper
	orders   *store.OrderStore
	trades   *store.TradeStore
	registry *auth.Registry
	pauser   governance.Pauser
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	sweeper *engine.ExpirySweeper,
	orders *store.OrderStore,
	trades *store.TradeStore,
	registry *auth.Registry,
	pauser governance.Pauser,
) *OrderService {
	return &OrderService{
		matcher:  matcher,
		sweeper:  sweeper,
		orders:   orders,
		trades:   trades,
		registry: registry,
		pauser:   pauser,
	}
}

// Submit validates the request, creates the order, and rests it on the
// book. The order does not match immediately: crossing happens in the next
// clearing pass.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if req.LimitPrice <= 0 {
		return nil, &domain.ValidationError{Message: "limit_price must be a positive integer"}
	}
	if req.Quantity > math.MaxInt64/req.LimitPrice {
		return nil, &domain.ValidationError{Message: "quantity * limit_price exceeds the representable amount range"}
	}
	if req.TTL <= 0 {
		return nil, &domain.ValidationError{Message: "ttl must be positive"}
	}
	if !s.registry.Exists(req.Owner) {
		return nil, domain.ErrParticipantNotFound
	}
	if s.pauser.IsEmergencyPaused(ctx) {
		return nil, domain.ErrEmergencyPaused
	}

	o := &domain.Order{
		Owner:      req.Owner,
		Side:       req.Side,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	}
	s.orders.Create(o, time.Now(), req.TTL)
	s.matcher.Rest(o)
	s.sweeper.Add(o)
	return o, nil
}

// Cancel cancels an active order on behalf of its owner.
func (s *OrderService) Cancel(orderID uint64, requester string) (*domain.Order, error) {
	return s.matcher.Cancel(orderID, requester, time.Now())
}

// Get retrieves an order by id.
func (s *OrderService) Get(orderID uint64) (*domain.Order, error) {
	return s.orders.Get(orderID)
}

// ListActive returns active, unexpired orders in priority order, optionally
// filtered by side and limit-price range.
func (s *OrderService) ListActive(side *domain.Side, minPrice, maxPrice *int64) []*domain.Order {
	return s.matcher.ActiveOrders(side, minPrice, maxPrice, time.Now())
}

// TradesForOrder returns the trades referencing an order as either leg.
func (s *OrderService) TradesForOrder(orderID uint64) ([]*domain.Trade, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.trades.ListByOrder(orderID), nil
}
