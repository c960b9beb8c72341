package domain

import (
	"errors"
	"sync"
)

var ErrOrderBookNotFound = errors.New("order book not found")

// OrderBookStorage is the runtime registry of live book maintainers, keyed by
// market symbol. Each book is an independent engine instance.
type OrderBookStorage struct {
	mu      sync.RWMutex
	storage map[string]*OrderbookMaintainer
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		storage: make(map[string]*OrderbookMaintainer),
	}
}

func (o *OrderBookStorage) Add(symbol *MarketSymbol, maintainer *OrderbookMaintainer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.storage[symbol.String()] = maintainer
}

func (o *OrderBookStorage) Get(symbol *MarketSymbol) (*OrderbookMaintainer, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	maintainer, ok := o.storage[symbol.String()]
	if !ok {
		return nil, ErrOrderBookNotFound
	}
	return maintainer, nil
}

func (o *OrderBookStorage) Remove(symbol *MarketSymbol) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.storage, symbol.String())
}

func (o *OrderBookStorage) OrderBookCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.storage)
}
