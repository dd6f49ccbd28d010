package engine

import (
	"testing"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
)

func bookOrder(id uint64, side domain.Side, price int64, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:         id,
		Owner:      "owner",
		Side:       side,
		Quantity:   100,
		LimitPrice: price,
		Status:     domain.OrderStatusActive,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(time.Hour),
	}
}

func TestBook_BuyPriorityOrder(t *testing.T) {
	b := NewBook()
	now := time.Now()

	b.Lock()
	b.Insert(bookOrder(1, domain.SideBuy, 20, now))
	b.Insert(bookOrder(2, domain.SideBuy, 25, now))
	b.Insert(bookOrder(3, domain.SideBuy, 25, now.Add(-time.Minute)))

	var got []uint64
	b.WalkBuys(func(e BookEntry) bool {
		got = append(got, e.OrderID)
		return true
	})
	b.Unlock()

	// Highest price first; at equal price, earlier created_at first.
	want := []uint64{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buy priority order = %v, want %v", got, want)
		}
	}
}

func TestBook_SellPriorityOrder(t *testing.T) {
	b := NewBook()
	now := time.Now()

	b.Lock()
	b.Insert(bookOrder(1, domain.SideSell, 20, now))
	b.Insert(bookOrder(2, domain.SideSell, 15, now))
	b.Insert(bookOrder(3, domain.SideSell, 20, now.Add(-time.Minute)))

	var got []uint64
	b.WalkSells(func(e BookEntry) bool {
		got = append(got, e.OrderID)
		return true
	})
	b.Unlock()

	// Lowest price first; at equal price, earlier created_at first.
	want := []uint64{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sell priority order = %v, want %v", got, want)
		}
	}
}

func TestBook_RemoveByID(t *testing.T) {
	b := NewBook()
	now := time.Now()

	b.Lock()
	defer b.Unlock()

	b.Insert(bookOrder(1, domain.SideBuy, 20, now))
	b.Insert(bookOrder(2, domain.SideSell, 25, now))

	b.Remove(1)
	if b.BuyCount() != 0 {
		t.Errorf("expected 0 buys after remove, got %d", b.BuyCount())
	}
	if b.SellCount() != 1 {
		t.Errorf("expected 1 sell, got %d", b.SellCount())
	}
	if b.Contains(1) {
		t.Error("expected order 1 to be gone from index")
	}

	// Removing a missing id is a no-op.
	b.Remove(99)
}

func TestBook_TopLevelsAggregation(t *testing.T) {
	b := NewBook()
	now := time.Now()

	b.Lock()
	defer b.Unlock()

	b.Insert(bookOrder(1, domain.SideSell, 20, now))
	b.Insert(bookOrder(2, domain.SideSell, 20, now.Add(time.Second)))
	b.Insert(bookOrder(3, domain.SideSell, 30, now))

	levels := b.TopSells(10)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 20 || levels[0].TotalQuantity != 200 || levels[0].OrderCount != 2 {
		t.Errorf("level 0 = %+v, want price 20, qty 200, count 2", levels[0])
	}
	if levels[1].Price != 30 || levels[1].TotalQuantity != 100 || levels[1].OrderCount != 1 {
		t.Errorf("level 1 = %+v, want price 30, qty 100, count 1", levels[1])
	}
}
