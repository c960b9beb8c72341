package domain

import (
	"log"
	"os"
	"sort"

	"github.com/gammazero/deque"
)

var logger = log.New(os.Stdout, "[domain] ", log.LstdFlags)

type SyncState string

const (
	// StateUninitialized: no snapshot applied yet, updates are buffered.
	StateUninitialized SyncState = "Uninitialized"
	// StateSynchronized: replica is contiguous with the diff stream.
	StateSynchronized SyncState = "Synchronized"
	// StateResyncing: a gap was detected, waiting for a fresh snapshot while
	// buffering incoming updates.
	StateResyncing SyncState = "Resyncing"
)

// SequenceReconciler gates every diff-order through sequence checks before it
// reaches the book. Sequence numbers are the only correctness oracle: any gap
// means the replica is unverifiable until a fresh snapshot re-baselines it.
//
// Not safe for concurrent use; the owning consumer loop serializes access.
type SequenceReconciler struct {
	state      SyncState
	book       *OrderBook
	symbol     *MarketSymbol
	applicator *UpdateApplicator
	listener   BookListener

	pending deque.Deque[*DiffOrder]
}

func NewSequenceReconciler(symbol *MarketSymbol, applicator *UpdateApplicator, listener BookListener) *SequenceReconciler {
	if listener == nil {
		listener = NoopListener{}
	}
	return &SequenceReconciler{
		state:      StateUninitialized,
		symbol:     symbol,
		applicator: applicator,
		listener:   listener,
	}
}

func (r *SequenceReconciler) State() SyncState {
	return r.state
}

// Book returns the current replica, nil until the first snapshot is applied.
func (r *SequenceReconciler) Book() *OrderBook {
	return r.book
}

func (r *SequenceReconciler) PendingLen() int {
	return r.pending.Len()
}

// ApplyDiff feeds one update into the state machine. It returns true when the
// record revealed a sequence gap and a fresh snapshot must be requested.
func (r *SequenceReconciler) ApplyDiff(upd *DiffOrder) (gap bool) {
	switch r.state {
	case StateUninitialized, StateResyncing:
		r.pending.PushBack(upd)
		return false

	default: // StateSynchronized
		seq := upd.Sequence

		if seq < r.book.LastSequence {
			// replayed record, already represented
			return false
		}

		// seq == LastSequence covers the remaining entries of a multi-order
		// diff message (one sequence stamps the whole payload). True
		// duplicates are harmless: contributions are overwritten, not added.
		if seq == r.book.LastSequence || seq == r.book.LastSequence+1 {
			r.applicator.Apply(r.book, upd)
			r.book.LastSequence = seq
			return false
		}

		// Missed at least one update. Buffer this record too: it may be
		// newer than the snapshot we are about to fetch.
		logger.Printf("sequence gap on %s: last applied %d, received %d",
			r.symbol.String(), r.book.LastSequence, seq)
		r.listener.GapDetected(r.book.LastSequence, seq)
		r.state = StateResyncing
		r.pending.PushBack(upd)
		return true
	}
}

// ApplySnapshot replaces the replica with a brand-new book built from the
// snapshot and replays buffered updates strictly newer than the snapshot's
// sequence, in ascending sequence order. Buffered updates at or below the
// snapshot sequence are already represented in it and are dropped.
//
// Returns true when the replay itself revealed another gap (the caller must
// fetch again).
func (r *SequenceReconciler) ApplySnapshot(snapshot *BookSnapshot) (gap bool) {
	r.book = NewOrderBook(r.symbol, snapshot)
	r.state = StateSynchronized

	buffered := make([]*DiffOrder, 0, r.pending.Len())
	for r.pending.Len() > 0 {
		buffered = append(buffered, r.pending.PopFront())
	}
	sort.SliceStable(buffered, func(i, j int) bool {
		return buffered[i].Sequence < buffered[j].Sequence
	})

	replayed := 0
	for i, upd := range buffered {
		if upd.Sequence <= snapshot.Sequence {
			continue
		}
		if r.ApplyDiff(upd) {
			// ApplyDiff re-buffered the gapped record; keep the rest too.
			for _, rest := range buffered[i+1:] {
				r.pending.PushBack(rest)
			}
			return true
		}
		replayed++
	}

	r.listener.ResyncCompleted(r.book.LastSequence, replayed)
	return false
}
