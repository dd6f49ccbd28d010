// Package ledger abstracts the execution substrate that holds participant
// balances. The matching/settlement engine only requires an atomic,
// all-or-nothing multi-leg transfer with a durable commit/ack; it assumes
// nothing else about the substrate's consistency model.
package ledger

import (
	"context"
	"errors"
)

// Asset names used by the market. Energy and payment are two distinct
// fungible assets moved atomically in one transfer.
const (
	AssetEnergy   = "ENERGY"
	AssetCurrency = "CURRENCY"
)

// ErrRejected indicates the ledger refused the transfer (e.g. insufficient
// balance detected at commit time). Rejections are terminal for the pass;
// timeout-class errors may be retried.
var ErrRejected = errors.New("ledger: transfer rejected")

// Leg is one asset movement within an atomic transfer.
type Leg struct {
	From   string
	To     string
	Asset  string
	Amount int64
}

// Ledger is the external balance substrate consumed by the settlement
// coordinator.
//
// Transfer applies all legs atomically: either every leg succeeds or none
// do. ref uniquely identifies the transfer for idempotency; committing the
// same ref twice is a no-op success.
//
// Balance is a read-only diagnostic. It is never used for commit decisions:
// the ledger's own commit-time check is authoritative.
type Ledger interface {
	Transfer(ctx context.Context, legs []Leg, ref string) error
	Balance(ctx context.Context, account, asset string) (int64, error)
}

// IsRetryable reports whether a Transfer error may be retried within the
// same pass. Only timeout-class failures qualify; an explicit rejection
// means the transfer can never succeed as proposed.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRejected) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
