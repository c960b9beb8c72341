package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPriceLevelStore_UpsertOrder(t *testing.T) {
	s := NewPriceLevelStore(SideBid)

	change := s.UpsertOrder(d("100.00"), d("2.0"), "o1")
	assert.Equal(t, LevelAdded, change)
	assert.True(t, s.Contains(d("100.00")))
	assert.Equal(t, 1, s.Len())

	// second order at the same price aggregates
	change = s.UpsertOrder(d("100.00"), d("3.0"), "o2")
	assert.Equal(t, LevelUpdated, change)

	lv, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, lv.Amount.Equal(d("5.0")), "aggregate should be the sum of order amounts")
	assert.Equal(t, 2, lv.OrderCount())

	// same order id replaces its prior contribution, never adds to it
	change = s.UpsertOrder(d("100.00"), d("1.5"), "o2")
	assert.Equal(t, LevelUpdated, change)

	lv, _ = s.Best()
	assert.True(t, lv.Amount.Equal(d("3.5")))
	assert.Equal(t, 2, lv.OrderCount())
}

func TestPriceLevelStore_ZeroAggregateLevelIsRemoved(t *testing.T) {
	s := NewPriceLevelStore(SideAsk)

	s.UpsertOrder(d("101.00"), d("1.0"), "o1")
	change := s.UpsertOrder(d("101.00"), decimal.Zero, "o1")

	assert.Equal(t, LevelRemoved, change)
	assert.False(t, s.Contains(d("101.00")), "a level with zero aggregate must not exist")
	assert.Equal(t, 0, s.Len())

	_, ok := s.Best()
	assert.False(t, ok, "empty store has no best")
}

func TestPriceLevelStore_RemoveUnknownOrderIsStale(t *testing.T) {
	s := NewPriceLevelStore(SideBid)
	s.UpsertOrder(d("100.00"), d("2.0"), "o1")

	assert.Equal(t, LevelStale, s.RemoveOrder(d("100.00"), "nope"))
	assert.Equal(t, LevelStale, s.RemoveOrder(d("99.00"), "o1"))

	lv, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, lv.Amount.Equal(d("2.0")), "stale removals must not mutate the store")
}

func TestPriceLevelStore_SetAggregate(t *testing.T) {
	s := NewPriceLevelStore(SideAsk)

	assert.Equal(t, LevelAdded, s.SetAggregate(d("101.00"), d("1.5")))
	assert.Equal(t, LevelUpdated, s.SetAggregate(d("101.00"), d("0.7")))

	lv, _ := s.Best()
	assert.True(t, lv.Amount.Equal(d("0.7")), "aggregate form overwrites, never adds")

	assert.Equal(t, LevelRemoved, s.SetAggregate(d("101.00"), decimal.Zero))
	assert.Equal(t, LevelStale, s.SetAggregate(d("101.00"), decimal.Zero))
}

func TestPriceLevelStore_BestOrdering(t *testing.T) {
	bids := NewPriceLevelStore(SideBid)
	bids.UpsertOrder(d("99.00"), d("1"), "b1")
	bids.UpsertOrder(d("101.00"), d("1"), "b2")
	bids.UpsertOrder(d("100.00"), d("1"), "b3")

	best, ok := bids.Best()
	assert.True(t, ok)
	assert.True(t, best.Price.Equal(d("101.00")), "best bid is the max price")

	asks := NewPriceLevelStore(SideAsk)
	asks.UpsertOrder(d("103.00"), d("1"), "a1")
	asks.UpsertOrder(d("102.00"), d("1"), "a2")
	asks.UpsertOrder(d("104.00"), d("1"), "a3")

	best, ok = asks.Best()
	assert.True(t, ok)
	assert.True(t, best.Price.Equal(d("102.00")), "best ask is the min price")
}

func TestPriceLevelStore_BestCacheOnRemoval(t *testing.T) {
	asks := NewPriceLevelStore(SideAsk)
	asks.UpsertOrder(d("102.00"), d("1"), "a1")
	asks.UpsertOrder(d("103.00"), d("1"), "a2")

	// removing a non-extreme price keeps the cached best
	asks.RemoveOrder(d("103.00"), "a2")
	best, _ := asks.Best()
	assert.True(t, best.Price.Equal(d("102.00")))

	// removing the extreme forces a recomputation
	asks.UpsertOrder(d("103.50"), d("1"), "a3")
	asks.RemoveOrder(d("102.00"), "a1")
	best, ok := asks.Best()
	assert.True(t, ok)
	assert.True(t, best.Price.Equal(d("103.50")))
}

func TestPriceLevelStore_AggregateNeverNegative(t *testing.T) {
	s := NewPriceLevelStore(SideBid)
	s.UpsertOrder(d("100.00"), d("1.0"), "o1")
	s.UpsertOrder(d("100.00"), d("0.4"), "o2")

	s.RemoveOrder(d("100.00"), "o1")
	// removing an order twice is stale, never a debit
	assert.Equal(t, LevelStale, s.RemoveOrder(d("100.00"), "o1"))

	lv, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, lv.Amount.Equal(d("0.4")))
	assert.False(t, lv.Amount.IsNegative())

	s.RemoveOrder(d("100.00"), "o2")
	assert.Equal(t, 0, s.Len(), "a fully drained level is removed, not held at zero")
}

func TestPriceLevelStore_EquivalentDecimalsAreOneLevel(t *testing.T) {
	s := NewPriceLevelStore(SideBid)
	s.UpsertOrder(d("100.00"), d("1"), "o1")
	s.UpsertOrder(d("100"), d("2"), "o2")

	assert.Equal(t, 1, s.Len(), "100.00 and 100 are the same price level")
	lv, _ := s.Best()
	assert.True(t, lv.Amount.Equal(d("3")))
}

func TestPriceLevelStore_Depth(t *testing.T) {
	bids := NewPriceLevelStore(SideBid)
	bids.UpsertOrder(d("99.00"), d("1"), "b1")
	bids.UpsertOrder(d("101.00"), d("2"), "b2")
	bids.UpsertOrder(d("100.00"), d("3"), "b3")

	depth := bids.Depth(2)
	assert.Len(t, depth, 2)
	assert.True(t, depth[0][0].Equal(d("101.00")))
	assert.True(t, depth[1][0].Equal(d("100.00")))

	full := bids.Depth(0)
	assert.Len(t, full, 3)
}
