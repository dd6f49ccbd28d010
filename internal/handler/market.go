package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/service"
)

// depthLevels caps the number of aggregated price levels returned per side.
const depthLevels = 20

// MarketHandler serves market parameters, trades, book depth, the
// reconciliation log, and the clearing trigger.
type MarketHandler struct {
	market    *service.MarketService
	scheduler *engine.Scheduler
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market *service.MarketService, scheduler *engine.Scheduler) *MarketHandler {
	return &MarketHandler{market: market, scheduler: scheduler}
}

type paramsJSON struct {
	Version         uint64 `json:"version"`
	FeeBps          int64  `json:"fee_bps"`
	ClearingEnabled bool   `json:"clearing_enabled"`
	TotalVolume     int64  `json:"total_volume"`
	TotalTrades     int64  `json:"total_trades"`
}

// GetParameters handles GET /market/parameters.
func (h *MarketHandler) GetParameters(w http.ResponseWriter, r *http.Request) {
	params, stats := h.market.Parameters()
	WriteJSON(w, http.StatusOK, paramsJSON{
		Version:         params.Version,
		FeeBps:          params.FeeBps,
		ClearingEnabled: params.ClearingEnabled,
		TotalVolume:     stats.TotalVolume,
		TotalTrades:     stats.TotalTrades,
	})
}

type updateParamsBody struct {
	FeeBps          *int64 `json:"fee_bps"`
	ClearingEnabled *bool  `json:"clearing_enabled"`
}

// UpdateParameters handles PATCH /market/parameters. Admin only.
func (h *MarketHandler) UpdateParameters(w http.ResponseWriter, r *http.Request) {
	var body updateParamsBody
	if err := ParseJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	params, err := h.market.UpdateParameters(r.Context(), IdentityFrom(r.Context()), service.UpdateParametersRequest{
		FeeBps:          body.FeeBps,
		ClearingEnabled: body.ClearingEnabled,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	_, stats := h.market.Parameters()
	WriteJSON(w, http.StatusOK, paramsJSON{
		Version:         params.Version,
		FeeBps:          params.FeeBps,
		ClearingEnabled: params.ClearingEnabled,
		TotalVolume:     stats.TotalVolume,
		TotalTrades:     stats.TotalTrades,
	})
}

// GetTrade handles GET /trades/{trade_id}.
func (h *MarketHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.market.GetTrade(chi.URLParam(r, "trade_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeJSON(trade))
}

// ListTrades handles GET /trades.
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades := h.market.ListTrades()
	result := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		result = append(result, toTradeJSON(t))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trades": result})
}

type levelJSON struct {
	Price         int64 `json:"price"`
	TotalQuantity int64 `json:"total_quantity"`
	OrderCount    int   `json:"order_count"`
}

// GetBook handles GET /market/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	buys, sells := h.market.Depth(depthLevels)
	toJSON := func(levels []engine.PriceLevel) []levelJSON {
		result := make([]levelJSON, 0, len(levels))
		for _, l := range levels {
			result = append(result, levelJSON{
				Price:         l.Price,
				TotalQuantity: l.TotalQuantity,
				OrderCount:    l.OrderCount,
			})
		}
		return result
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"buys":  toJSON(buys),
		"sells": toJSON(sells),
	})
}

// GetReconciliation handles GET /market/reconciliation. Admin only.
func (h *MarketHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	events, err := h.market.Reconciliation(IdentityFrom(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	type eventJSON struct {
		ID             string `json:"id"`
		BuyOrderID     uint64 `json:"buy_order_id"`
		SellOrderID    uint64 `json:"sell_order_id"`
		Quantity       int64  `json:"quantity"`
		ExecutionPrice int64  `json:"execution_price"`
		Reason         string `json:"reason"`
		OccurredAt     string `json:"occurred_at"`
	}
	result := make([]eventJSON, 0, len(events))
	for _, e := range events {
		result = append(result, eventJSON{
			ID:             e.ID,
			BuyOrderID:     e.BuyOrderID,
			SellOrderID:    e.SellOrderID,
			Quantity:       e.Quantity,
			ExecutionPrice: e.ExecutionPrice,
			Reason:         e.Reason,
			OccurredAt:     e.OccurredAt.UTC().Format(time.RFC3339Nano),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": result})
}

// TriggerClearing handles POST /clearing/trigger, the oracle collaborator's
// entry point. Idempotent with the scheduler's at-most-one-running
// guarantee.
func (h *MarketHandler) TriggerClearing(w http.ResponseWriter, r *http.Request) {
	report := h.scheduler.TriggerClearing(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":   string(report.Status),
		"proposed": report.Result.Proposed,
		"settled":  report.Result.Settled,
		"skipped":  report.Result.Skipped,
	})
}
