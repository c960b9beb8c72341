package domain

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type OrderBookSource string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"
)

// OrderBook is the locally replicated book: one ordered PriceLevelStore per
// side plus the sequence marker of the last applied record. It is created
// from a snapshot and replaced wholesale on resync, never repaired in place.
type OrderBook struct {
	Symbol *MarketSymbol

	Bids *PriceLevelStore
	Asks *PriceLevelStore

	LastSequence   int64
	LastUpdateTime int64
}

func NewOrderBook(symbol *MarketSymbol, snapshot *BookSnapshot) *OrderBook {
	ob := &OrderBook{
		Symbol:         symbol,
		Bids:           NewPriceLevelStore(SideBid),
		Asks:           NewPriceLevelStore(SideAsk),
		LastSequence:   snapshot.Sequence,
		LastUpdateTime: time.Now().Unix(),
	}

	for _, e := range snapshot.Bids {
		loadEntry(ob.Bids, e)
	}
	for _, e := range snapshot.Asks {
		loadEntry(ob.Asks, e)
	}

	return ob
}

func loadEntry(store *PriceLevelStore, e SnapshotEntry) {
	if e.Price.IsZero() || e.Amount.IsZero() {
		return
	}
	if e.OrderID == "" {
		store.SetAggregate(e.Price, e.Amount)
		return
	}
	store.UpsertOrder(e.Price, e.Amount, e.OrderID)
}

func (ob *OrderBook) Side(side Side) *PriceLevelStore {
	if side == SideBid {
		return ob.Bids
	}
	return ob.Asks
}

// BestBid returns the highest bid level, if any.
func (ob *OrderBook) BestBid() (*PriceLevel, bool) {
	return ob.Bids.Best()
}

// BestAsk returns the lowest ask level, if any.
func (ob *OrderBook) BestAsk() (*PriceLevel, bool) {
	return ob.Asks.Best()
}

// Spread returns best ask minus best bid. The second return is false when
// either side is empty.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// TakeSnapshot serializes the top levels of the book for serving to callers.
func (ob *OrderBook) TakeSnapshot(limit int) *SerializedSnapshot {
	return &SerializedSnapshot{
		Source:   OrderBookSource_LocalOrderBook,
		Sequence: ob.LastSequence,
		Bids:     serializeDepth(ob.Bids.Depth(limit)),
		Asks:     serializeDepth(ob.Asks.Depth(limit)),
	}
}

// SerializedSnapshot is the wire-friendly form of a book state, price and
// amount rendered as exact decimal strings.
type SerializedSnapshot struct {
	Source   OrderBookSource `json:"source"`
	Sequence int64           `json:"sequence"`
	Bids     [][]string      `json:"bids"`
	Asks     [][]string      `json:"asks"`
}

func serializeDepth(depth [][2]decimal.Decimal) [][]string {
	return lo.Map(depth, func(lv [2]decimal.Decimal, _ int) []string {
		return []string{lv[0].String(), lv[1].String()}
	})
}
