package domain

import "time"

// Trade represents one immutable settlement record produced by a single
// crossing. ExecutionPrice is always the resting sell order's limit price.
type Trade struct {
	ID              string
	BuyOrderID      uint64
	SellOrderID     uint64
	Buyer           string
	Seller          string
	Quantity        int64
	ExecutionPrice  int64
	GrossAmount     int64
	FeeAmount       int64
	NetSellerAmount int64
	ExecutedAt      time.Time
}
