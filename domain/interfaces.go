package domain

import "context"

// Subscription is a handle to a stream of parsed records for one topic.
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}

// SnapshotProvider serves full book snapshots over request/response.
// Transient failures (network, 5xx) must be wrapped with ErrSnapshotTransient
// so the resync controller knows they are retryable.
type SnapshotProvider interface {
	OrderBookSnapshot(ctx context.Context, symbol *MarketSymbol) (*BookSnapshot, error)
}

// UpdateSource produces the unbounded streams of parsed diff-order and trade
// records. Connection lifecycle (dial, reconnect, keep-alive) is entirely the
// source's concern.
type UpdateSource interface {
	DiffOrderStream(symbol *MarketSymbol) (*Subscription[*DiffOrder], error)
	TradeStream(symbol *MarketSymbol) (*Subscription[*Trade], error)
}
