package domain

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"
)

// PriceLevel is the aggregate of all resting orders at one exact price.
// Amount always equals the sum of the per-order ledger and is never zero for
// a level present in the store.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal

	orders map[string]decimal.Decimal
}

// OrderCount returns the number of orders contributing to the level.
func (lv *PriceLevel) OrderCount() int {
	return len(lv.orders)
}

func (lv *PriceLevel) recompute() {
	sum := decimal.Zero
	for _, amount := range lv.orders {
		sum = sum.Add(amount)
	}
	lv.Amount = sum
}

// LevelChange describes what a store mutation did, so the caller can emit the
// matching observability event.
type LevelChange int

const (
	LevelUnchanged LevelChange = iota
	LevelAdded
	LevelUpdated
	LevelRemoved
	// LevelStale means the mutation referenced an order or price the store
	// does not hold. Absorbed as a no-op.
	LevelStale
)

func askComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

func bidComparator(a, b interface{}) int {
	return b.(decimal.Decimal).Cmp(a.(decimal.Decimal))
}

// PriceLevelStore is one side of the book: price levels ordered so that the
// leftmost tree node is the best price (max for bids, min for asks). The best
// level is cached and only recomputed when the removed price was the cached
// extreme.
type PriceLevelStore struct {
	side Side
	tree *rbt.Tree

	best *PriceLevel
}

func NewPriceLevelStore(side Side) *PriceLevelStore {
	cmp := askComparator
	if side == SideBid {
		cmp = bidComparator
	}
	return &PriceLevelStore{
		side: side,
		tree: rbt.NewWith(cmp),
	}
}

func (s *PriceLevelStore) Len() int {
	return s.tree.Size()
}

// Best returns the cached best level: highest price for bids, lowest for asks.
func (s *PriceLevelStore) Best() (*PriceLevel, bool) {
	if s.best == nil {
		return nil, false
	}
	return s.best, true
}

func (s *PriceLevelStore) Contains(price decimal.Decimal) bool {
	_, found := s.tree.Get(price)
	return found
}

func (s *PriceLevelStore) level(price decimal.Decimal) (*PriceLevel, bool) {
	v, found := s.tree.Get(price)
	if !found {
		return nil, false
	}
	return v.(*PriceLevel), true
}

// UpsertOrder adjusts one order's contribution at a price, replacing any prior
// contribution from the same order id, and recomputes the level aggregate.
// A zero amount removes the order; a level whose aggregate reaches zero is
// removed from the store entirely.
func (s *PriceLevelStore) UpsertOrder(price, amount decimal.Decimal, orderID string) LevelChange {
	lv, found := s.level(price)

	if amount.IsZero() {
		if !found {
			return LevelStale
		}
		if _, ok := lv.orders[orderID]; !ok {
			return LevelStale
		}
		delete(lv.orders, orderID)
		lv.recompute()
		if lv.Amount.IsZero() {
			s.removeLevel(price)
			return LevelRemoved
		}
		return LevelUpdated
	}

	if !found {
		lv = &PriceLevel{
			Price:  price,
			Amount: amount,
			orders: map[string]decimal.Decimal{orderID: amount},
		}
		s.insertLevel(lv)
		return LevelAdded
	}

	if lv.orders == nil {
		lv.orders = make(map[string]decimal.Decimal)
	}
	lv.orders[orderID] = amount
	lv.recompute()
	return LevelUpdated
}

// SetAggregate overwrites a level's aggregate directly (no per-order ledger).
// Used for aggregated update representations that carry no order id.
func (s *PriceLevelStore) SetAggregate(price, amount decimal.Decimal) LevelChange {
	lv, found := s.level(price)

	if amount.IsZero() {
		if !found {
			return LevelStale
		}
		s.removeLevel(price)
		return LevelRemoved
	}

	if !found {
		s.insertLevel(&PriceLevel{Price: price, Amount: amount})
		return LevelAdded
	}

	lv.Amount = amount
	lv.orders = nil
	return LevelUpdated
}

// RemoveOrder drops one order's contribution; removes the whole level when the
// remaining aggregate is zero.
func (s *PriceLevelStore) RemoveOrder(price decimal.Decimal, orderID string) LevelChange {
	return s.UpsertOrder(price, decimal.Zero, orderID)
}

// Depth returns the top levels in book order as (price, amount) pairs.
// A non-positive limit returns the full side.
func (s *PriceLevelStore) Depth(limit int) [][2]decimal.Decimal {
	out := make([][2]decimal.Decimal, 0, s.tree.Size())
	it := s.tree.Iterator()
	for it.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		lv := it.Value().(*PriceLevel)
		out = append(out, [2]decimal.Decimal{lv.Price, lv.Amount})
	}
	return out
}

func (s *PriceLevelStore) insertLevel(lv *PriceLevel) {
	s.tree.Put(lv.Price, lv)

	if s.best == nil || s.tree.Comparator(lv.Price, s.best.Price) < 0 {
		s.best = lv
	}
}

func (s *PriceLevelStore) removeLevel(price decimal.Decimal) {
	s.tree.Remove(price)

	// Only a removal of the cached extreme forces a recomputation.
	if s.best != nil && price.Cmp(s.best.Price) == 0 {
		if node := s.tree.Left(); node != nil {
			s.best = node.Value.(*PriceLevel)
		} else {
			s.best = nil
		}
	}
}
