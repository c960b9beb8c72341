package bitso

import (
	"encoding/json"
	"sync"

	"github.com/mariorz/go-bitso-livebook/domain"
)

// rawSubscriber hands out raw frame streams per book and channel. Satisfied
// by StreamClient.
type rawSubscriber interface {
	Subscribe(book, channel string) (*domain.Subscription[[]byte], error)
}

// BitsoStreamAPI turns raw websocket frames into typed, validated records.
// Records missing fields the engine depends on are discarded and reported as
// data-quality events; the stream keeps flowing.
type BitsoStreamAPI struct {
	client   rawSubscriber
	listener domain.BookListener
}

func NewBitsoStreamAPI(client rawSubscriber, listener domain.BookListener) *BitsoStreamAPI {
	if listener == nil {
		listener = domain.NoopListener{}
	}
	return &BitsoStreamAPI{
		client:   client,
		listener: listener,
	}
}

func (s *BitsoStreamAPI) DiffOrderStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.DiffOrder], error) {
	raw, err := s.client.Subscribe(symbol.String(), channelDiffOrders)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.DiffOrder)
	stop := make(chan struct{})
	go func() {
		defer close(out)

		for {
			var msg []byte
			var ok bool
			select {
			case <-stop:
				return
			case msg, ok = <-raw.Stream:
				if !ok {
					return
				}
			}

			var envelope wsMessage
			if err := json.Unmarshal(msg, &envelope); err != nil {
				s.listener.MalformedRecord("undecodable diff-orders frame")
				continue
			}
			// a diff-orders frame without a sequence is the "subscribed"
			// confirmation, not an update
			if envelope.Sequence == nil {
				continue
			}

			var entries []diffOrderEntry
			if err := json.Unmarshal(envelope.Payload, &entries); err != nil {
				s.listener.MalformedRecord("undecodable diff-orders payload")
				continue
			}

			for i := range entries {
				record, err := entries[i].toDiffOrder(*envelope.Sequence)
				if err != nil {
					logger.Printf("discarding malformed diff order (seq %d): %s", *envelope.Sequence, err)
					s.listener.MalformedRecord(err.Error())
					continue
				}
				select {
				case out <- record:
				case <-stop:
					return
				}
			}
		}
	}()

	var stopOnce sync.Once
	return &domain.Subscription[*domain.DiffOrder]{
		Stream: out,
		Unsubscribe: func() {
			raw.Unsubscribe()
			stopOnce.Do(func() { close(stop) })
		},
		Topic: raw.Topic,
	}, nil
}

func (s *BitsoStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.Trade], error) {
	raw, err := s.client.Subscribe(symbol.String(), channelTrades)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.Trade)
	stop := make(chan struct{})
	go func() {
		defer close(out)

		for {
			var msg []byte
			var ok bool
			select {
			case <-stop:
				return
			case msg, ok = <-raw.Stream:
				if !ok {
					return
				}
			}

			var envelope wsMessage
			if err := json.Unmarshal(msg, &envelope); err != nil {
				s.listener.MalformedRecord("undecodable trades frame")
				continue
			}
			if len(envelope.Payload) == 0 {
				continue
			}

			var entries []tradeEntry
			if err := json.Unmarshal(envelope.Payload, &entries); err != nil {
				s.listener.MalformedRecord("undecodable trades payload")
				continue
			}

			for i := range entries {
				trade, err := entries[i].toTrade()
				if err != nil {
					s.listener.MalformedRecord(err.Error())
					continue
				}
				select {
				case out <- trade:
				case <-stop:
					return
				}
			}
		}
	}()

	var stopOnce sync.Once
	return &domain.Subscription[*domain.Trade]{
		Stream: out,
		Unsubscribe: func() {
			raw.Unsubscribe()
			stopOnce.Do(func() { close(stop) })
		},
		Topic: raw.Topic,
	}, nil
}
