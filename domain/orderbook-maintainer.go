package domain

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// OrderbookMaintainer owns one book replica end to end: it subscribes to the
// diff stream, gates every record through the SequenceReconciler, and asks
// the ResyncController for a fresh snapshot whenever a gap is detected.
//
// All mutation happens on a single consumer goroutine; the snapshot fetch runs
// concurrently and hands its result back through a channel. Point-in-time
// reads take the same mutex, so one record's application is the atomic unit
// of work.
type OrderbookMaintainer struct {
	symbol    *MarketSymbol
	streamAPI UpdateSource
	listener  BookListener

	reconciler *SequenceReconciler
	resync     *ResyncController

	snapshotCh chan *BookSnapshot
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	ctx        context.Context

	mu    sync.Mutex
	stale bool
}

func NewOrderbookMaintainer(
	symbol *MarketSymbol,
	streamAPI UpdateSource,
	resync *ResyncController,
	listener BookListener,
) *OrderbookMaintainer {
	if listener == nil {
		listener = NoopListener{}
	}
	return &OrderbookMaintainer{
		symbol:     symbol,
		streamAPI:  streamAPI,
		listener:   listener,
		reconciler: NewSequenceReconciler(symbol, NewUpdateApplicator(listener), listener),
		resync:     resync,
		snapshotCh: make(chan *BookSnapshot, 1),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the diff stream and launches the consumer loop. Updates
// arriving before the initial snapshot are buffered by the reconciler, so the
// subscribe-then-fetch order guarantees the snapshot and the stream overlap.
func (m *OrderbookMaintainer) Start(ctx context.Context) error {
	m.ctx = ctx

	subscription, err := m.streamAPI.DiffOrderStream(m.symbol)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go m.consumerLoop(subscription)

	m.requestSnapshot()
	return nil
}

// Stop shuts the consumer loop down without leaving the replica mid-mutation.
func (m *OrderbookMaintainer) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *OrderbookMaintainer) consumerLoop(subscription *Subscription[*DiffOrder]) {
	defer m.wg.Done()
	defer subscription.Unsubscribe()

	for {
		select {
		case <-m.done:
			return
		case upd, ok := <-subscription.Stream:
			if !ok {
				return
			}
			m.Apply(upd)
		case snapshot := <-m.snapshotCh:
			m.OnSnapshot(snapshot)
		}
	}
}

// Apply feeds one diff-order into the engine. Exported so callers driving the
// engine directly (tests, replay tools) share the serialized path the stream
// uses.
func (m *OrderbookMaintainer) Apply(upd *DiffOrder) {
	m.mu.Lock()
	gap := m.reconciler.ApplyDiff(upd)
	m.mu.Unlock()

	if gap {
		m.requestSnapshot()
	}
}

// OnSnapshot feeds a freshly fetched snapshot into the engine.
func (m *OrderbookMaintainer) OnSnapshot(snapshot *BookSnapshot) {
	m.mu.Lock()
	gap := m.reconciler.ApplySnapshot(snapshot)
	m.stale = false
	m.mu.Unlock()

	if gap {
		m.requestSnapshot()
	}
}

func (m *OrderbookMaintainer) requestSnapshot() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx := m.ctx
		if ctx == nil {
			ctx = context.Background()
		}

		snapshot, err := m.resync.FetchSnapshot(ctx, m.symbol)
		if err != nil {
			// ResyncFailed was already emitted by the controller. Mark
			// reads stale until external intervention succeeds.
			m.mu.Lock()
			m.stale = true
			m.mu.Unlock()
			logger.Printf("resync failed for %s: %s", m.symbol.String(), err)
			return
		}

		select {
		case m.snapshotCh <- snapshot:
		case <-m.done:
		}
	}()
}

// State returns the reconciliation state, so callers can decide whether to
// trust a read.
func (m *OrderbookMaintainer) State() SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconciler.State()
}

// Stale reports whether the last resync attempt exhausted its budget.
func (m *OrderbookMaintainer) Stale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

func (m *OrderbookMaintainer) BestBid() (price, amount decimal.Decimal, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.reconciler.Book()
	if book == nil {
		return decimal.Zero, decimal.Zero, false
	}
	lv, ok := book.BestBid()
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	return lv.Price, lv.Amount, true
}

func (m *OrderbookMaintainer) BestAsk() (price, amount decimal.Decimal, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.reconciler.Book()
	if book == nil {
		return decimal.Zero, decimal.Zero, false
	}
	lv, ok := book.BestAsk()
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	return lv.Price, lv.Amount, true
}

func (m *OrderbookMaintainer) Spread() (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.reconciler.Book()
	if book == nil {
		return decimal.Zero, false
	}
	return book.Spread()
}

// TakeSnapshot serializes the current replica, nil before initialization.
func (m *OrderbookMaintainer) TakeSnapshot(limit int) *SerializedSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.reconciler.Book()
	if book == nil {
		return nil
	}
	return book.TakeSnapshot(limit)
}
