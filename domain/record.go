package domain

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// DiffOrder is a single incremental change to one resting order, as delivered
// by the diff stream. A zero Price is the market-order sentinel: such records
// carry no resting price-level information and never touch the book.
// A zero Amount means the order is gone (cancelled or fully filled).
type DiffOrder struct {
	Side     Side
	Price    decimal.Decimal
	Amount   decimal.Decimal
	OrderID  string
	Sequence int64
}

// IsMarketOrder reports whether the record carries the zero-price sentinel.
func (d *DiffOrder) IsMarketOrder() bool {
	return d.Price.IsZero()
}

// Trade is an executed-trade notification. Trades are informational only:
// they carry no sequence-relevant book mutation and bypass the reconciler.
type Trade struct {
	TID    int64
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// SnapshotEntry is one resting order in a full book snapshot. OrderID may be
// empty when the provider serves an aggregated book.
type SnapshotEntry struct {
	Price   decimal.Decimal
	Amount  decimal.Decimal
	OrderID string
}

// BookSnapshot is a full point-in-time book state plus the sequence marker
// situating it in the diff stream.
type BookSnapshot struct {
	Bids     []SnapshotEntry
	Asks     []SnapshotEntry
	Sequence int64
}
