package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestReconciler(t *testing.T, listener BookListener) *SequenceReconciler {
	t.Helper()
	return NewSequenceReconciler(testSymbol(t), NewUpdateApplicator(listener), listener)
}

func bidDiff(price, amount string, oid string, seq int64) *DiffOrder {
	return &DiffOrder{Side: SideBid, Price: d(price), Amount: d(amount), OrderID: oid, Sequence: seq}
}

func askDiff(price, amount string, oid string, seq int64) *DiffOrder {
	return &DiffOrder{Side: SideAsk, Price: d(price), Amount: d(amount), OrderID: oid, Sequence: seq}
}

func TestSequenceReconciler_BuffersWhileUninitialized(t *testing.T) {
	r := newTestReconciler(t, nil)

	assert.Equal(t, StateUninitialized, r.State())
	assert.False(t, r.ApplyDiff(bidDiff("100.00", "1.0", "o5", 11)))
	assert.False(t, r.ApplyDiff(bidDiff("100.50", "1.0", "o6", 12)))

	assert.Nil(t, r.Book(), "no replica exists before the first snapshot")
	assert.Equal(t, 2, r.PendingLen())
}

func TestSequenceReconciler_SnapshotReplaysBufferedUpdates(t *testing.T) {
	r := newTestReconciler(t, nil)

	// buffered before the snapshot: one already in it, two newer
	r.ApplyDiff(bidDiff("99.00", "1.0", "old", 9))
	r.ApplyDiff(bidDiff("100.50", "1.0", "o5", 11))
	r.ApplyDiff(askDiff("101.00", "0.0", "o2", 12))

	gap := r.ApplySnapshot(testSnapshot())

	assert.False(t, gap)
	assert.Equal(t, StateSynchronized, r.State())
	assert.Equal(t, int64(12), r.Book().LastSequence)

	assert.False(t, r.Book().Bids.Contains(d("99.00")), "updates at or below the snapshot sequence are dropped")

	bid, _ := r.Book().BestBid()
	assert.True(t, bid.Price.Equal(d("100.50")))
	_, ok := r.Book().BestAsk()
	assert.False(t, ok, "buffered removal of o2 emptied the ask side")
}

func TestSequenceReconciler_ContiguousApply(t *testing.T) {
	r := newTestReconciler(t, nil)
	r.ApplySnapshot(testSnapshot())

	assert.False(t, r.ApplyDiff(bidDiff("100.00", "1.5", "o1", 11)))
	assert.Equal(t, int64(11), r.Book().LastSequence)

	bid, _ := r.Book().BestBid()
	assert.True(t, bid.Amount.Equal(d("1.5")))
}

func TestSequenceReconciler_ReplayedRecordIsIdempotent(t *testing.T) {
	r := newTestReconciler(t, nil)
	r.ApplySnapshot(testSnapshot())

	upd := bidDiff("100.00", "1.5", "o1", 11)
	r.ApplyDiff(upd)

	// re-applying records at or below the applied sequence leaves the
	// replica unchanged
	assert.False(t, r.ApplyDiff(upd))
	assert.False(t, r.ApplyDiff(bidDiff("55.00", "9.9", "o9", 5)))

	assert.Equal(t, int64(11), r.Book().LastSequence)
	bid, _ := r.Book().BestBid()
	assert.True(t, bid.Price.Equal(d("100.00")))
	assert.True(t, bid.Amount.Equal(d("1.5")))
	assert.False(t, r.Book().Bids.Contains(d("55.00")))
}

func TestSequenceReconciler_SharedSequenceEntriesAllApply(t *testing.T) {
	r := newTestReconciler(t, nil)
	r.ApplySnapshot(testSnapshot())

	// one diff message stamped multiple order changes with sequence 11
	assert.False(t, r.ApplyDiff(bidDiff("100.50", "1.0", "a", 11)))
	assert.False(t, r.ApplyDiff(bidDiff("100.60", "1.0", "b", 11)))

	assert.True(t, r.Book().Bids.Contains(d("100.50")))
	assert.True(t, r.Book().Bids.Contains(d("100.60")))
}

func TestSequenceReconciler_GapTriggersResync(t *testing.T) {
	listener := &recordingListener{}
	r := newTestReconciler(t, listener)
	r.ApplySnapshot(testSnapshot())

	gap := r.ApplyDiff(bidDiff("100.50", "1.0", "o5", 12))

	assert.True(t, gap, "sequence 12 after 10 skips 11")
	assert.Equal(t, StateResyncing, r.State())
	assert.Equal(t, [][2]int64{{10, 12}}, listener.gaps)
	assert.Equal(t, 1, r.PendingLen(), "the gapped record itself is buffered")

	// subsequent records are buffered, not applied
	assert.False(t, r.ApplyDiff(bidDiff("100.60", "1.0", "o6", 13)))
	assert.Equal(t, 2, r.PendingLen())
	assert.Equal(t, int64(10), r.Book().LastSequence, "stale replica is left untouched")
}

func TestSequenceReconciler_ResyncEquivalence(t *testing.T) {
	updates := []*DiffOrder{
		bidDiff("100.00", "1.5", "o1", 11),
		askDiff("101.50", "2.0", "o7", 12),
		bidDiff("99.50", "0.0", "o3", 13),
	}

	// live path: no gap, applied as they arrive
	live := newTestReconciler(t, nil)
	live.ApplySnapshot(testSnapshot())
	for _, upd := range updates {
		assert.False(t, live.ApplyDiff(upd))
	}

	// resync path: records buffered during the gap window, then replayed
	// against a fresh snapshot with the same baseline
	resynced := newTestReconciler(t, nil)
	for _, upd := range updates {
		resynced.ApplyDiff(upd)
	}
	resynced.ApplySnapshot(testSnapshot())

	assert.Equal(t, live.Book().LastSequence, resynced.Book().LastSequence)
	assert.Equal(t, live.Book().TakeSnapshot(0), resynced.Book().TakeSnapshot(0))
}

// The walkthrough from the engine's contract: snapshot at sequence 10,
// removal of the only bid, reduction of the only ask, then a skipped
// sequence.
func TestSequenceReconciler_Scenario(t *testing.T) {
	listener := &recordingListener{}
	r := newTestReconciler(t, listener)

	r.ApplySnapshot(&BookSnapshot{
		Sequence: 10,
		Bids:     []SnapshotEntry{{Price: d("100.00"), Amount: d("2.0"), OrderID: "o1"}},
		Asks:     []SnapshotEntry{{Price: d("101.00"), Amount: d("1.0"), OrderID: "o2"}},
	})

	r.ApplyDiff(&DiffOrder{Side: SideBid, Price: d("100.00"), Amount: decimal.Zero, OrderID: "o1", Sequence: 11})
	_, ok := r.Book().BestBid()
	assert.False(t, ok, "no bids remain")

	r.ApplyDiff(&DiffOrder{Side: SideAsk, Price: d("101.00"), Amount: d("0.5"), OrderID: "o2", Sequence: 12})
	ask, ok := r.Book().BestAsk()
	assert.True(t, ok)
	assert.True(t, ask.Price.Equal(d("101.00")))
	assert.True(t, ask.Amount.Equal(d("0.5")))

	gap := r.ApplyDiff(&DiffOrder{Side: SideAsk, Price: d("102.00"), Amount: d("1.0"), OrderID: "o8", Sequence: 14})
	assert.True(t, gap)
	assert.Equal(t, StateResyncing, r.State())
}

func TestSequenceReconciler_ReplayDetectsNestedGap(t *testing.T) {
	r := newTestReconciler(t, nil)

	// buffered records skip sequence 12
	r.ApplyDiff(bidDiff("100.50", "1.0", "o5", 11))
	r.ApplyDiff(bidDiff("100.60", "1.0", "o6", 13))

	gap := r.ApplySnapshot(testSnapshot())

	assert.True(t, gap, "replay itself revealed a gap")
	assert.Equal(t, StateResyncing, r.State())
	assert.Equal(t, 1, r.PendingLen(), "the gapped record is kept for the next snapshot")
}
