package domain

import "time"

// Side indicates whether an order buys or sells energy.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus represents the lifecycle state of an order. Transitions are
// one-directional: active orders move to exactly one of the terminal states
// (filled, cancelled, expired) and never leave it.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// Order represents one resting intent to buy or sell energy.
//
// Quantity is in watt-hours (the smallest energy unit) and LimitPrice in the
// smallest currency unit per watt-hour. For a buy order LimitPrice is the
// maximum acceptable price; for a sell order it is the ask.
type Order struct {
	ID             uint64
	Owner          string
	Side           Side
	Quantity       int64
	LimitPrice     int64
	FilledQuantity int64
	Status         OrderStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Remaining returns the quantity still open for matching.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// IsExpired reports whether the order's expiry time has passed. Storage may
// still show the order as active; callers resolve that lazily via the
// engine's TouchExpiry before acting on the order.
func (o *Order) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
