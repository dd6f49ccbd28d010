package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestMemLedger_TransferMovesAllLegs(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	l.Credit("seller", AssetEnergy, 100)
	l.Credit("buyer", AssetCurrency, 1000)

	legs := []Leg{
		{From: "seller", To: "buyer", Asset: AssetEnergy, Amount: 100},
		{From: "buyer", To: "seller", Asset: AssetCurrency, Amount: 990},
		{From: "buyer", To: "fees", Asset: AssetCurrency, Amount: 10},
	}
	if err := l.Transfer(ctx, legs, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	check := func(account, asset string, want int64) {
		t.Helper()
		got, _ := l.Balance(ctx, account, asset)
		if got != want {
			t.Errorf("%s %s = %d, want %d", account, asset, got, want)
		}
	}
	check("buyer", AssetEnergy, 100)
	check("seller", AssetEnergy, 0)
	check("seller", AssetCurrency, 990)
	check("buyer", AssetCurrency, 0)
	check("fees", AssetCurrency, 10)
}

func TestMemLedger_InsufficientBalanceRejectsAtomically(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	l.Credit("seller", AssetEnergy, 100)
	// Buyer holds less than the required currency.
	l.Credit("buyer", AssetCurrency, 500)

	legs := []Leg{
		{From: "seller", To: "buyer", Asset: AssetEnergy, Amount: 100},
		{From: "buyer", To: "seller", Asset: AssetCurrency, Amount: 990},
		{From: "buyer", To: "fees", Asset: AssetCurrency, Amount: 10},
	}
	err := l.Transfer(ctx, legs, "ref-1")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	// No leg applied.
	if bal, _ := l.Balance(ctx, "seller", AssetEnergy); bal != 100 {
		t.Errorf("expected seller energy untouched, got %d", bal)
	}
	if bal, _ := l.Balance(ctx, "buyer", AssetCurrency); bal != 500 {
		t.Errorf("expected buyer currency untouched, got %d", bal)
	}
}

func TestMemLedger_DebitsAggregatePerAccount(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	// Two legs each within balance, but their sum overdraws.
	l.Credit("buyer", AssetCurrency, 100)

	legs := []Leg{
		{From: "buyer", To: "a", Asset: AssetCurrency, Amount: 60},
		{From: "buyer", To: "b", Asset: AssetCurrency, Amount: 60},
	}
	if err := l.Transfer(ctx, legs, "ref-1"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected on aggregate overdraw, got %v", err)
	}
}

func TestMemLedger_IdempotentByRef(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	l.Credit("a", AssetCurrency, 100)

	legs := []Leg{{From: "a", To: "b", Asset: AssetCurrency, Amount: 40}}
	if err := l.Transfer(ctx, legs, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same ref again: success, no double spend.
	if err := l.Transfer(ctx, legs, "ref-1"); err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if bal, _ := l.Balance(ctx, "b", AssetCurrency); bal != 40 {
		t.Errorf("expected b = 40 after replay, got %d", bal)
	}
}

func TestMemLedger_FailNextQueue(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	l.Credit("a", AssetCurrency, 100)

	injected := errors.New("boom")
	l.FailNext(injected)

	legs := []Leg{{From: "a", To: "b", Asset: AssetCurrency, Amount: 10}}
	if err := l.Transfer(ctx, legs, "ref-1"); !errors.Is(err, injected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	// Queue drained: next call succeeds.
	if err := l.Transfer(ctx, legs, "ref-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(ErrRejected) {
		t.Error("rejection must not be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline exceeded must be retryable")
	}
	if IsRetryable(errors.New("other")) {
		t.Error("unknown errors must not be retryable")
	}
}
