package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/ledger"
	"github.com/gridmarket/gridmarket/internal/store"
)

// errAmountOverflow marks a proposed trade whose gross amount does not fit
// in int64. Submission validation bounds quantity*limit_price, so this only
// trips for orders injected outside that path.
var errAmountOverflow = errors.New("gross amount exceeds int64 range")

// TradeSink receives settled trade records for broadcast to external
// listeners. Implemented by the feed hub; dispatch happens outside the book
// lock so listeners can never stall a commit.
type TradeSink interface {
	PublishTrade(t *domain.Trade)
}

// PassResult summarizes one settlement pass.
type PassResult struct {
	Proposed int
	Settled  int
	Skipped  int
}

// Settler is the settlement coordinator. It consumes a matching pass's
// proposals in order and commits each trade individually against the
// ledger. It is the sole writer of FilledQuantity.
type Settler struct {
	book       *Book
	orders     *store.OrderStore
	trades     *store.TradeStore
	recon      *store.ReconStore
	params     *store.ParamStore
	ledger     ledger.Ledger
	sink       TradeSink
	logger     *slog.Logger
	feeAccount string
	timeout    time.Duration
	retries    int
}

// NewSettler creates a Settler. retries is the number of additional commit
// attempts after the first for timeout-class failures; timeout bounds each
// ledger call.
func NewSettler(
	book *Book,
	orders *store.OrderStore,
	trades *store.TradeStore,
	recon *store.ReconStore,
	params *store.ParamStore,
	lgr ledger.Ledger,
	sink TradeSink,
	logger *slog.Logger,
	feeAccount string,
	timeout time.Duration,
	retries int,
) *Settler {
	return &Settler{
		book:       book,
		orders:     orders,
		trades:     trades,
		recon:      recon,
		params:     params,
		ledger:     lgr,
		sink:       sink,
		logger:     logger,
		feeAccount: feeAccount,
		timeout:    timeout,
		retries:    retries,
	}
}

// SettlePass commits the proposals strictly in the order produced by the
// matching pass. A failed commit skips only that trade: the remaining
// proposals still settle, and because each commit re-derives actual
// remaining quantities from the order store, a skip never corrupts the fill
// state of the trades after it.
func (s *Settler) SettlePass(ctx context.Context, proposals []Proposal) PassResult {
	result := PassResult{Proposed: len(proposals)}
	for _, p := range proposals {
		trade, err := s.settleOne(ctx, p)
		if err != nil {
			result.Skipped++
			continue
		}
		result.Settled++
		if s.sink != nil {
			s.sink.PublishTrade(trade)
		}
	}
	return result
}

// settleOne validates, prices, and commits a single proposed trade. The
// book lock is held across re-derivation, the ledger commit, and fill
// application, so a cancellation either lands before validation (the trade
// is skipped) or after the fills are applied — never in between.
func (s *Settler) settleOne(ctx context.Context, p Proposal) (*domain.Trade, error) {
	s.book.Lock()
	defer s.book.Unlock()

	now := time.Now()

	buy, err := s.orders.Get(p.BuyOrderID)
	if err != nil {
		return nil, s.reconcile(p, "buy order missing", err)
	}
	sell, err := s.orders.Get(p.SellOrderID)
	if err != nil {
		return nil, s.reconcile(p, "sell order missing", err)
	}

	// Re-derive from the store, not from pass state: an earlier skip in
	// this pass means the proposal's assumed fills never happened.
	s.expireLocked(buy, now)
	s.expireLocked(sell, now)
	if buy.Status != domain.OrderStatusActive {
		return nil, s.reconcile(p, "buy order not active", domain.ErrNotActive)
	}
	if sell.Status != domain.OrderStatusActive {
		return nil, s.reconcile(p, "sell order not active", domain.ErrNotActive)
	}

	qty := p.Quantity
	if r := buy.Remaining(); r < qty {
		qty = r
	}
	if r := sell.Remaining(); r < qty {
		qty = r
	}
	if qty <= 0 {
		return nil, s.reconcile(p, "no remaining quantity", domain.ErrNotActive)
	}

	if qty > math.MaxInt64/p.ExecutionPrice {
		return nil, s.reconcile(p, "gross amount overflow", errAmountOverflow)
	}

	params := s.params.Params()
	gross := qty * p.ExecutionPrice
	fee := params.FeeFor(gross)
	net := gross - fee

	trade := &domain.Trade{
		ID:              uuid.New().String(),
		BuyOrderID:      buy.ID,
		SellOrderID:     sell.ID,
		Buyer:           buy.Owner,
		Seller:          sell.Owner,
		Quantity:        qty,
		ExecutionPrice:  p.ExecutionPrice,
		GrossAmount:     gross,
		FeeAmount:       fee,
		NetSellerAmount: net,
		ExecutedAt:      now,
	}

	legs := []ledger.Leg{
		{From: sell.Owner, To: buy.Owner, Asset: ledger.AssetEnergy, Amount: qty},
		{From: buy.Owner, To: sell.Owner, Asset: ledger.AssetCurrency, Amount: net},
		{From: buy.Owner, To: s.feeAccount, Asset: ledger.AssetCurrency, Amount: fee},
	}

	if err := s.commit(ctx, legs, trade.ID); err != nil {
		return nil, s.reconcile(p, "ledger commit failed", err)
	}

	// Commit acked: apply fills and re-evaluate statuses.
	buy.FilledQuantity += qty
	sell.FilledQuantity += qty
	if buy.Remaining() == 0 {
		buy.Status = domain.OrderStatusFilled
		s.book.Remove(buy.ID)
	}
	if sell.Remaining() == 0 {
		sell.Status = domain.OrderStatusFilled
		s.book.Remove(sell.ID)
	}

	s.trades.Append(trade)
	s.params.RecordTrade(qty)

	s.logger.Info("trade settled",
		slog.String("trade_id", trade.ID),
		slog.Uint64("buy_order_id", buy.ID),
		slog.Uint64("sell_order_id", sell.ID),
		slog.Int64("quantity", qty),
		slog.Int64("execution_price", p.ExecutionPrice),
		slog.Int64("fee", fee),
	)
	return trade, nil
}

// commit invokes the ledger with a bounded timeout per attempt, retrying
// timeout-class failures up to the configured bound. Rejections are
// terminal: a transfer the ledger refused cannot succeed as proposed.
func (s *Settler) commit(ctx context.Context, legs []ledger.Leg, ref string) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err = s.ledger.Transfer(cctx, legs, ref)
		cancel()
		if err == nil {
			return nil
		}
		if !ledger.IsRetryable(err) {
			return err
		}
	}
	return err
}

// expireLocked mirrors the matcher's lazy expiry transition for orders
// touched during settlement. Caller must hold the book lock.
func (s *Settler) expireLocked(o *domain.Order, now time.Time) {
	if o.Status == domain.OrderStatusActive && o.IsExpired(now) {
		o.Status = domain.OrderStatusExpired
		s.book.Remove(o.ID)
	}
}

// reconcile records a skipped commit and returns an error for the caller's
// skip accounting. The orders keep their pre-failure fill state.
func (s *Settler) reconcile(p Proposal, reason string, cause error) error {
	event := &domain.ReconciliationEvent{
		ID:             uuid.New().String(),
		BuyOrderID:     p.BuyOrderID,
		SellOrderID:    p.SellOrderID,
		Quantity:       p.Quantity,
		ExecutionPrice: p.ExecutionPrice,
		Reason:         reason + ": " + cause.Error(),
		OccurredAt:     time.Now(),
	}
	s.recon.Append(event)
	s.logger.Warn("trade skipped",
		slog.Uint64("buy_order_id", p.BuyOrderID),
		slog.Uint64("sell_order_id", p.SellOrderID),
		slog.Int64("quantity", p.Quantity),
		slog.String("reason", reason),
		slog.String("error", cause.Error()),
	)
	return cause
}
