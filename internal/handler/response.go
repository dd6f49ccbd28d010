package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteDomainError maps domain errors to HTTP status codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "not found")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusForbidden, err.Error(), "not authorized")
	case errors.Is(err, domain.ErrNotActive):
		WriteError(w, http.StatusConflict, err.Error(), "order is not active")
	case errors.Is(err, domain.ErrParticipantExists):
		WriteError(w, http.StatusConflict, err.Error(), "participant already exists")
	case errors.Is(err, domain.ErrInvalidFee):
		WriteError(w, http.StatusBadRequest, err.Error(), fmt.Sprintf("fee_bps must be in [0, %d]", domain.MaxFeeBps))
	case errors.Is(err, domain.ErrEmergencyPaused):
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "market is emergency paused")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// ParseJSON decodes the request body as JSON into v, rejecting unknown
// fields.
func ParseJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body must be valid JSON")
	}
	return nil
}

// orderJSON is the wire form of an order. Quantities and prices are
// fixed-point integers; no floats appear anywhere on the wire.
type orderJSON struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Side              string `json:"side"`
	Quantity          int64  `json:"quantity"`
	LimitPrice        int64  `json:"limit_price"`
	FilledQuantity    int64  `json:"filled_quantity"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	ExpiresAt         string `json:"expires_at"`
}

func toOrderJSON(o *domain.Order) orderJSON {
	return orderJSON{
		ID:                o.ID,
		Owner:             o.Owner,
		Side:              string(o.Side),
		Quantity:          o.Quantity,
		LimitPrice:        o.LimitPrice,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.Remaining(),
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:         o.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

// tradeJSON is the wire form of a trade.
type tradeJSON struct {
	ID              string `json:"id"`
	BuyOrderID      uint64 `json:"buy_order_id"`
	SellOrderID     uint64 `json:"sell_order_id"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Quantity        int64  `json:"quantity"`
	ExecutionPrice  int64  `json:"execution_price"`
	GrossAmount     int64  `json:"gross_amount"`
	FeeAmount       int64  `json:"fee_amount"`
	NetSellerAmount int64  `json:"net_seller_amount"`
	ExecutedAt      string `json:"executed_at"`
}

func toTradeJSON(t *domain.Trade) tradeJSON {
	return tradeJSON{
		ID:              t.ID,
		BuyOrderID:      t.BuyOrderID,
		SellOrderID:     t.SellOrderID,
		Buyer:           t.Buyer,
		Seller:          t.Seller,
		Quantity:        t.Quantity,
		ExecutionPrice:  t.ExecutionPrice,
		GrossAmount:     t.GrossAmount,
		FeeAmount:       t.FeeAmount,
		NetSellerAmount: t.NetSellerAmount,
		ExecutedAt:      t.ExecutedAt.UTC().Format(time.RFC3339Nano),
	}
}
