package domain

// UpdateApplicator mutates an OrderBook with single diff-order records. It
// never touches sequence state and performs no I/O; gating is the
// SequenceReconciler's job.
type UpdateApplicator struct {
	listener BookListener
}

func NewUpdateApplicator(listener BookListener) *UpdateApplicator {
	if listener == nil {
		listener = NoopListener{}
	}
	return &UpdateApplicator{listener: listener}
}

// Apply routes one record to the matching side of the book. Market orders
// (zero-price sentinel) are discarded: they carry no resting price-level
// information. A removal referencing unknown state is absorbed as a no-op,
// since the stream may legitimately reference orders the replica already
// discarded.
func (a *UpdateApplicator) Apply(book *OrderBook, upd *DiffOrder) {
	if upd.IsMarketOrder() {
		return
	}

	store := book.Side(upd.Side)

	var change LevelChange
	if upd.OrderID != "" {
		change = store.UpsertOrder(upd.Price, upd.Amount, upd.OrderID)
	} else {
		change = store.SetAggregate(upd.Price, upd.Amount)
	}

	switch change {
	case LevelAdded:
		a.listener.LevelAdded(upd.Side, upd.Price, upd.Amount)
	case LevelUpdated:
		if lv, ok := store.level(upd.Price); ok {
			a.listener.LevelUpdated(upd.Side, upd.Price, lv.Amount)
		}
	case LevelRemoved:
		a.listener.LevelRemoved(upd.Side, upd.Price)
	case LevelStale:
		a.listener.StaleUpdate(upd.Side, upd.Price, upd.OrderID)
	}
}
