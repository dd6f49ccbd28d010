package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/service"
)

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type submitOrderBody struct {
	Side       string `json:"side"`
	Quantity   int64  `json:"quantity"`
	LimitPrice int64  `json:"limit_price"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// Submit handles POST /orders. The owner is the authenticated caller.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	var body submitOrderBody
	if err := ParseJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orders.Submit(r.Context(), service.SubmitOrderRequest{
		Owner:      identity.Name,
		Side:       domain.Side(body.Side),
		Quantity:   body.Quantity,
		LimitPrice: body.LimitPrice,
		TTL:        time.Duration(body.TTLSeconds) * time.Second,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toOrderJSON(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "order_id must be a positive integer")
		return
	}

	order, err := h.orders.Get(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderJSON(order))
}

// Cancel handles DELETE /orders/{order_id}. Only the owner may cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())

	id, err := parseOrderID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "order_id must be a positive integer")
		return
	}

	order, err := h.orders.Cancel(id, identity.Name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderJSON(order))
}

// ListActive handles GET /orders?side=&min_price=&max_price=.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	var side *domain.Side
	if v := r.URL.Query().Get("side"); v != "" {
		s := domain.Side(v)
		if s != domain.SideBuy && s != domain.SideSell {
			WriteError(w, http.StatusBadRequest, "invalid_request", "side must be 'buy' or 'sell'")
			return
		}
		side = &s
	}

	minPrice, err := parsePriceParam(r, "min_price")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "min_price must be a positive integer")
		return
	}
	maxPrice, err := parsePriceParam(r, "max_price")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "max_price must be a positive integer")
		return
	}

	orders := h.orders.ListActive(side, minPrice, maxPrice)
	result := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderJSON(o))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": result})
}

// ListTrades handles GET /orders/{order_id}/trades.
func (h *OrderHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "order_id must be a positive integer")
		return
	}

	trades, err := h.orders.TradesForOrder(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	result := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		result = append(result, toTradeJSON(t))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trades": result})
}

func parseOrderID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "order_id"), 10, 64)
}

func parsePriceParam(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	p, err := strconv.ParseInt(v, 10, 64)
	if err != nil || p < 0 {
		return nil, strconv.ErrSyntax
	}
	return &p, nil
}
