package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// BookEntry represents a single active order resting on the book.
type BookEntry struct {
	Price     int64
	CreatedAt time.Time
	OrderID   uint64
	Order     *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// buyLess defines ordering for the buy side: price descending, then
// created_at ascending, then order id ascending. Min() returns the best buy
// (highest price, earliest time).
func buyLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess defines ordering for the sell side: price ascending, then
// created_at ascending, then order id ascending. Min() returns the best ask
// (lowest price, earliest time).
func sellLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// Book maintains the buy and sell sides of the single energy market using
// B-trees in price-time-priority order, with a secondary index for O(log n)
// removal by order id.
//
// The book mutex is the market's serialization point: matching passes,
// per-trade settlement commits, cancellations, and expiry transitions all
// hold it, so no two of them interleave on the same order.
type Book struct {
	mu    sync.Mutex
	buys  *btree.BTreeG[BookEntry]
	sells *btree.BTreeG[BookEntry]
	index map[uint64]BookEntry // order id → entry
}

// NewBook creates an empty order book.
func NewBook() *Book {
	const degree = 32
	return &Book{
		buys:  btree.NewG[BookEntry](degree, buyLess),
		sells: btree.NewG[BookEntry](degree, sellLess),
		index: make(map[uint64]BookEntry),
	}
}

// Lock acquires the book mutex.
func (b *Book) Lock() {
	b.mu.Lock()
}

// Unlock releases the book mutex.
func (b *Book) Unlock() {
	b.mu.Unlock()
}

// Insert adds an order to the side matching its Side field.
// Caller must hold the book lock.
func (b *Book) Insert(o *domain.Order) {
	entry := BookEntry{
		Price:     o.LimitPrice,
		CreatedAt: o.CreatedAt,
		OrderID:   o.ID,
		Order:     o,
	}
	if o.Side == domain.SideBuy {
		b.buys.ReplaceOrInsert(entry)
	} else {
		b.sells.ReplaceOrInsert(entry)
	}
	b.index[o.ID] = entry
}

// Remove deletes an order from the book by id. No-op if the order is not on
// the book. Caller must hold the book lock.
func (b *Book) Remove(orderID uint64) {
	entry, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	if entry.Order.Side == domain.SideBuy {
		b.buys.Delete(entry)
	} else {
		b.sells.Delete(entry)
	}
}

// Contains reports whether the order is resting on the book.
// Caller must hold the book lock.
func (b *Book) Contains(orderID uint64) bool {
	_, ok := b.index[orderID]
	return ok
}

// WalkBuys iterates buys in priority order (highest price first). The
// callback returns true to continue. Caller must hold the book lock.
func (b *Book) WalkBuys(fn func(BookEntry) bool) {
	b.buys.Ascend(fn)
}

// WalkSells iterates sells in priority order (lowest price first). The
// callback returns true to continue. Caller must hold the book lock.
func (b *Book) WalkSells(fn func(BookEntry) bool) {
	b.sells.Ascend(fn)
}

// TopBuys returns up to n aggregated price levels from the buy side,
// ordered by price descending. Caller must hold the book lock.
func (b *Book) TopBuys(n int) []PriceLevel {
	return topLevels(b.buys, n)
}

// TopSells returns up to n aggregated price levels from the sell side,
// ordered by price ascending. Caller must hold the book lock.
func (b *Book) TopSells(n int) []PriceLevel {
	return topLevels(b.sells, n)
}

// topLevels iterates the B-tree in order and aggregates entries into at
// most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.Remaining()
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.Remaining(),
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BuyCount returns the number of buy orders on the book.
// Caller must hold the book lock.
func (b *Book) BuyCount() int {
	return b.buys.Len()
}

// SellCount returns the number of sell orders on the book.
// Caller must hold the book lock.
func (b *Book) SellCount() int {
	return b.sells.Len()
}
