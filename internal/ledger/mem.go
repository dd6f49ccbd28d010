package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemLedger is an in-memory Ledger for tests and local runs. Transfers are
// atomic under a single mutex and idempotent by ref.
type MemLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]int64 // account → asset → balance
	applied  map[string]bool             // ref → committed
	failures []error                     // queued Transfer failures, consumed FIFO
}

// NewMemLedger creates an empty MemLedger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances: make(map[string]map[string]int64),
		applied:  make(map[string]bool),
	}
}

// Credit seeds an account balance. Test setup helper.
func (l *MemLedger) Credit(account, asset string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, asset, amount)
}

// FailNext queues an error to be returned by the next Transfer call instead
// of committing. Multiple queued errors are consumed in order.
func (l *MemLedger) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

// Transfer applies all legs atomically. Any leg whose debit would overdraw
// the source account rejects the whole transfer with ErrRejected.
func (l *MemLedger) Transfer(ctx context.Context, legs []Leg, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		return err
	}

	if l.applied[ref] {
		return nil
	}

	// Validate every debit before applying anything.
	debits := make(map[string]map[string]int64)
	for _, leg := range legs {
		if debits[leg.From] == nil {
			debits[leg.From] = make(map[string]int64)
		}
		debits[leg.From][leg.Asset] += leg.Amount
	}
	for account, assets := range debits {
		for asset, amount := range assets {
			if l.balance(account, asset) < amount {
				return fmt.Errorf("%w: insufficient %s balance for %s", ErrRejected, asset, account)
			}
		}
	}

	for _, leg := range legs {
		l.credit(leg.From, leg.Asset, -leg.Amount)
		l.credit(leg.To, leg.Asset, leg.Amount)
	}
	l.applied[ref] = true
	return nil
}

// Balance returns the current balance of an account for an asset.
func (l *MemLedger) Balance(ctx context.Context, account, asset string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account, asset), nil
}

func (l *MemLedger) balance(account, asset string) int64 {
	return l.balances[account][asset]
}

func (l *MemLedger) credit(account, asset string, amount int64) {
	if l.balances[account] == nil {
		l.balances[account] = make(map[string]int64)
	}
	l.balances[account][asset] += amount
}
