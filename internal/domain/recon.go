package domain

import "time"

// ReconciliationEvent records a proposed trade whose ledger commit was
// skipped. The underlying orders keep their pre-failure fill state and the
// quantity is eligible again in the next clearing pass.
type ReconciliationEvent struct {
	ID             string
	BuyOrderID     uint64
	SellOrderID    uint64
	Quantity       int64
	ExecutionPrice int64
	Reason         string
	OccurredAt     time.Time
}
