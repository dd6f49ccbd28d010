package engine

import (
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/store"
)

// Proposal is one trade proposed by a matching pass. Proposals carry no
// monetary amounts: the settlement coordinator recomputes those against the
// parameter snapshot at commit time.
type Proposal struct {
	BuyOrderID     uint64
	SellOrderID    uint64
	Buyer          string
	Seller         string
	Quantity       int64
	ExecutionPrice int64
}

// Matcher owns the order book and the order lifecycle transitions that act
// on it: resting new orders, cancellation, lazy expiry, and the batch
// crossing pass that produces trade proposals.
type Matcher struct {
	book   *Book
	orders *store.OrderStore
}

// NewMatcher creates a Matcher over the given book and order store.
func NewMatcher(book *Book, orders *store.OrderStore) *Matcher {
	return &Matcher{book: book, orders: orders}
}

// Book returns the underlying order book.
func (m *Matcher) Book() *Book {
	return m.book
}

// Rest places a newly created active order on the book.
func (m *Matcher) Rest(o *domain.Order) {
	m.book.Lock()
	defer m.book.Unlock()
	m.book.Insert(o)
}

// Cancel transitions an active order to cancelled and removes it from the
// book. Expiry is resolved first: a lazily detected expired order is
// transitioned to expired and the cancellation reported as ErrNotActive.
//
// Returns domain.ErrUnauthorized when requester is not the owner and
// domain.ErrNotActive when the order is in a terminal state.
func (m *Matcher) Cancel(orderID uint64, requester string, now time.Time) (*domain.Order, error) {
	o, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if o.Owner != requester {
		return nil, domain.ErrUnauthorized
	}

	m.book.Lock()
	defer m.book.Unlock()

	m.touchExpiryLocked(o, now)
	if o.Status != domain.OrderStatusActive {
		return nil, domain.ErrNotActive
	}

	o.Status = domain.OrderStatusCancelled
	m.book.Remove(o.ID)
	return o, nil
}

// TouchExpiry transitions the order to expired if it is active and its
// expiry time has passed; otherwise it is a no-op. Idempotent: touching an
// already-expired order does nothing and returns no error.
func (m *Matcher) TouchExpiry(orderID uint64, now time.Time) error {
	o, err := m.orders.Get(orderID)
	if err != nil {
		return err
	}

	m.book.Lock()
	defer m.book.Unlock()
	m.touchExpiryLocked(o, now)
	return nil
}

// touchExpiryLocked is the lazy expiry transition. Caller must hold the
// book lock.
func (m *Matcher) touchExpiryLocked(o *domain.Order, now time.Time) {
	if o.Status != domain.OrderStatusActive {
		return
	}
	if !o.IsExpired(now) {
		return
	}
	o.Status = domain.OrderStatusExpired
	m.book.Remove(o.ID)
}

// Propose runs one uniform price-time-priority batch crossing over a
// consistent snapshot of the book and returns the ordered proposal list.
// Expired orders encountered in the snapshot are transitioned and excluded.
//
// The pass is deterministic: replaying the same snapshot always yields the
// same proposals, which is what allows safe retry after a partial
// settlement failure. Orders are not mutated; per-order remaining
// quantities are tracked in pass-local state so that fills proposed earlier
// in the pass constrain later crossings.
func (m *Matcher) Propose(now time.Time) []Proposal {
	m.book.Lock()
	defer m.book.Unlock()

	buys := m.snapshotSide(domain.SideBuy, now)
	sells := m.snapshotSide(domain.SideSell, now)

	remainingBuy := make([]int64, len(buys))
	for i, o := range buys {
		remainingBuy[i] = o.Remaining()
	}
	remainingSell := make([]int64, len(sells))
	for i, o := range sells {
		remainingSell[i] = o.Remaining()
	}

	var proposals []Proposal
	b, s := 0, 0
	for b < len(buys) && s < len(sells) && buys[b].LimitPrice >= sells[s].LimitPrice {
		qty := remainingBuy[b]
		if remainingSell[s] < qty {
			qty = remainingSell[s]
		}
		if qty > 0 {
			proposals = append(proposals, Proposal{
				BuyOrderID:     buys[b].ID,
				SellOrderID:    sells[s].ID,
				Buyer:          buys[b].Owner,
				Seller:         sells[s].Owner,
				Quantity:       qty,
				ExecutionPrice: sells[s].LimitPrice,
			})
			remainingBuy[b] -= qty
			remainingSell[s] -= qty
		}
		// A fully consumed leg is provisionally filled for the rest of
		// the pass; advance its cursor.
		if remainingBuy[b] == 0 {
			b++
		}
		if remainingSell[s] == 0 {
			s++
		}
	}
	return proposals
}

// snapshotSide collects one side of the book in priority order, resolving
// lazy expiry along the way. Caller must hold the book lock.
func (m *Matcher) snapshotSide(side domain.Side, now time.Time) []*domain.Order {
	var orders []*domain.Order
	var expired []*domain.Order

	collect := func(entry BookEntry) bool {
		o := entry.Order
		if o.Status == domain.OrderStatusActive && o.IsExpired(now) {
			expired = append(expired, o)
			return true
		}
		if o.Status != domain.OrderStatusActive || o.Remaining() <= 0 {
			return true
		}
		orders = append(orders, o)
		return true
	}

	if side == domain.SideBuy {
		m.book.WalkBuys(collect)
	} else {
		m.book.WalkSells(collect)
	}

	// Transition after the walk: the B-tree must not be mutated during
	// Ascend.
	for _, o := range expired {
		m.touchExpiryLocked(o, now)
	}
	return orders
}

// ActiveOrders returns active orders in priority order, optionally filtered
// by side and an inclusive limit-price range (pass nil to skip a bound).
// Orders past their expiry are excluded from the result but left for the
// next matching or cancellation touch to transition.
func (m *Matcher) ActiveOrders(side *domain.Side, minPrice, maxPrice *int64, now time.Time) []*domain.Order {
	m.book.Lock()
	defer m.book.Unlock()

	var orders []*domain.Order
	collect := func(entry BookEntry) bool {
		o := entry.Order
		if o.Status != domain.OrderStatusActive || o.IsExpired(now) {
			return true
		}
		if minPrice != nil && o.LimitPrice < *minPrice {
			return true
		}
		if maxPrice != nil && o.LimitPrice > *maxPrice {
			return true
		}
		orders = append(orders, o)
		return true
	}

	if side == nil || *side == domain.SideBuy {
		m.book.WalkBuys(collect)
	}
	if side == nil || *side == domain.SideSell {
		m.book.WalkSells(collect)
	}
	return orders
}

// Depth returns up to n aggregated price levels per side.
func (m *Matcher) Depth(n int) (buys, sells []PriceLevel) {
	m.book.Lock()
	defer m.book.Unlock()
	return m.book.TopBuys(n), m.book.TopSells(n)
}
