package domain

import "github.com/shopspring/decimal"

// BookListener receives engine observability events. Callbacks are invoked
// synchronously from the consumer loop, so implementations must be cheap and
// must not call back into the engine.
type BookListener interface {
	LevelAdded(side Side, price, amount decimal.Decimal)
	LevelUpdated(side Side, price, amount decimal.Decimal)
	LevelRemoved(side Side, price decimal.Decimal)

	// StaleUpdate fires when a record references an order or price the
	// replica no longer holds. The record is absorbed as a no-op.
	StaleUpdate(side Side, price decimal.Decimal, orderID string)

	GapDetected(lastApplied, received int64)
	ResyncStarted()
	ResyncCompleted(sequence int64, replayed int)
	ResyncFailed(err error)

	// MalformedRecord fires when the update source discards a record that
	// is missing fields the engine depends on.
	MalformedRecord(reason string)
}

// NoopListener is a BookListener base that ignores every event. Embed it to
// implement only the callbacks you care about.
type NoopListener struct{}

func (NoopListener) LevelAdded(Side, decimal.Decimal, decimal.Decimal)   {}
func (NoopListener) LevelUpdated(Side, decimal.Decimal, decimal.Decimal) {}
func (NoopListener) LevelRemoved(Side, decimal.Decimal)                  {}
func (NoopListener) StaleUpdate(Side, decimal.Decimal, string)           {}
func (NoopListener) GapDetected(int64, int64)                            {}
func (NoopListener) ResyncStarted()                                      {}
func (NoopListener) ResyncCompleted(int64, int)                          {}
func (NoopListener) ResyncFailed(error)                                  {}
func (NoopListener) MalformedRecord(string)                              {}
