package usecase

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/samber/lo"

	"github.com/mariorz/go-bitso-livebook/config"
	"github.com/mariorz/go-bitso-livebook/domain"
)

const starting = "starting"

var logger = log.New(os.Stdout, "[book-snapshot-usecase] ", log.LstdFlags)

// BookSnapshotUseCase serves book snapshots: from the local replica once a
// book is live and synchronized, straight from the provider REST API while a
// local book is still initializing or resyncing.
type BookSnapshotUseCase struct {
	streamAPI domain.UpdateSource
	syncAPI   domain.SnapshotProvider
	listener  domain.BookListener
	storage   *domain.OrderBookStorage

	waitingRoom sync.Map
}

func NewBookSnapshotUseCase(
	streamAPI domain.UpdateSource,
	syncAPI domain.SnapshotProvider,
	listener domain.BookListener,
) *BookSnapshotUseCase {
	return &BookSnapshotUseCase{
		streamAPI: streamAPI,
		syncAPI:   syncAPI,
		listener:  listener,
		storage:   domain.NewOrderBookStorage(),
	}
}

func (u *BookSnapshotUseCase) GetBookSnapshot(
	ctx context.Context, symbol *domain.MarketSymbol, limit int,
) (*domain.SerializedSnapshot, error) {
	if _, ok := u.waitingRoom.Load(symbol.String()); ok {
		logger.Printf("book is initing, provider snapshot returned: Symbol=%s", symbol.String())
		return u.providerSnapshot(ctx, symbol, limit)
	}

	maintainer, err := u.storage.Get(symbol)
	if err != nil {
		// only the first concurrent requester opens the local replica
		if _, loaded := u.waitingRoom.LoadOrStore(symbol.String(), starting); !loaded {
			go u.createOrderBook(symbol)
		}
		return u.providerSnapshot(ctx, symbol, limit)
	}

	// a replica that is mid-resync or failed its resync budget is not a
	// trustworthy read
	if maintainer.State() != domain.StateSynchronized || maintainer.Stale() {
		return u.providerSnapshot(ctx, symbol, limit)
	}

	return maintainer.TakeSnapshot(limit), nil
}

// createOrderBook assumes the caller already holds the symbol's waiting-room
// slot; it releases the slot once the maintainer is registered (or failed).
func (u *BookSnapshotUseCase) createOrderBook(symbol *domain.MarketSymbol) {
	defer u.waitingRoom.Delete(symbol.String())

	resync := domain.NewResyncController(
		u.syncAPI, u.listener,
		config.ResyncMaxAttempts, config.ResyncBackoffMin, config.ResyncBackoffMax,
	)
	maintainer := domain.NewOrderbookMaintainer(symbol, u.streamAPI, resync, u.listener)

	// the maintainer outlives the request that triggered its creation
	if err := maintainer.Start(context.Background()); err != nil {
		logger.Printf("failed to start book maintainer for %s: %s", symbol.String(), err)
		return
	}

	u.storage.Add(symbol, maintainer)
	logger.Printf("book for %s added to the runtime storage", symbol.String())
}

// OpenBookCount reports how many local books are currently maintained.
func (u *BookSnapshotUseCase) OpenBookCount() int {
	return u.storage.OrderBookCount()
}

func (u *BookSnapshotUseCase) providerSnapshot(
	ctx context.Context, symbol *domain.MarketSymbol, limit int,
) (*domain.SerializedSnapshot, error) {
	snapshot, err := u.syncAPI.OrderBookSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	bids := snapshot.Bids
	asks := snapshot.Asks
	if limit > 0 {
		bids = lo.Slice(bids, 0, limit)
		asks = lo.Slice(asks, 0, limit)
	}

	return &domain.SerializedSnapshot{
		Source:   domain.OrderBookSource_Provider,
		Sequence: snapshot.Sequence,
		Bids:     serializeEntries(bids),
		Asks:     serializeEntries(asks),
	}, nil
}

func serializeEntries(entries []domain.SnapshotEntry) [][]string {
	return lo.Map(entries, func(e domain.SnapshotEntry, _ int) []string {
		return []string{e.Price.String(), e.Amount.String()}
	})
}
