package bitso

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mariorz/go-bitso-livebook/domain"
)

const (
	channelDiffOrders = "diff-orders"
	channelTrades     = "trades"
	channelKeepAlive  = "ka"
)

type subscribeRequest struct {
	Action string `json:"action"`
	Book   string `json:"book"`
	Type   string `json:"type"`
}

// wsMessage is the envelope of every frame the stream sends. A diff-orders
// frame without a sequence is the subscription ack, not an update.
type wsMessage struct {
	Action   string          `json:"action"`
	Response string          `json:"response"`
	Type     string          `json:"type"`
	Book     string          `json:"book"`
	Sequence *int64          `json:"sequence"`
	Payload  json.RawMessage `json:"payload"`
}

// diffOrderEntry is one order change inside a diff-orders payload. The amount
// and value fields are absent when the order is gone (cancelled or filled).
type diffOrderEntry struct {
	OID       string       `json:"o"`
	Rate      *json.Number `json:"r"`
	Amount    *json.Number `json:"a"`
	Value     *json.Number `json:"v"`
	Side      *int         `json:"t"`
	Timestamp int64        `json:"d"`
}

type tradeEntry struct {
	TID    int64        `json:"i"`
	Amount *json.Number `json:"a"`
	Rate   *json.Number `json:"r"`
	Value  *json.Number `json:"v"`
	Side   *int         `json:"t"`
}

func sideFromWire(t *int) (domain.Side, error) {
	if t == nil {
		return "", fmt.Errorf("missing side field")
	}
	switch *t {
	case 0:
		return domain.SideBid, nil
	case 1:
		return domain.SideAsk, nil
	default:
		return "", fmt.Errorf("unknown side %d", *t)
	}
}

func decimalFromWire(n *json.Number, field string) (decimal.Decimal, error) {
	if n == nil {
		return decimal.Zero, fmt.Errorf("missing %s field", field)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad %s value %q", field, n.String())
	}
	return d, nil
}

// toDiffOrder converts one wire entry into the engine's record form. An
// absent amount means the order left the book and maps to a zero amount.
func (e *diffOrderEntry) toDiffOrder(sequence int64) (*domain.DiffOrder, error) {
	side, err := sideFromWire(e.Side)
	if err != nil {
		return nil, err
	}
	if e.OID == "" {
		return nil, fmt.Errorf("missing order id")
	}

	price, err := decimalFromWire(e.Rate, "rate")
	if err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("negative rate %s", price)
	}

	amount := decimal.Zero
	if e.Amount != nil {
		amount, err = decimalFromWire(e.Amount, "amount")
		if err != nil {
			return nil, err
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("negative amount %s", amount)
		}
	}

	return &domain.DiffOrder{
		Side:     side,
		Price:    price,
		Amount:   amount,
		OrderID:  e.OID,
		Sequence: sequence,
	}, nil
}

func (e *tradeEntry) toTrade() (*domain.Trade, error) {
	side, err := sideFromWire(e.Side)
	if err != nil {
		return nil, err
	}
	price, err := decimalFromWire(e.Rate, "rate")
	if err != nil {
		return nil, err
	}
	amount, err := decimalFromWire(e.Amount, "amount")
	if err != nil {
		return nil, err
	}

	return &domain.Trade{
		TID:    e.TID,
		Side:   side,
		Price:  price,
		Amount: amount,
	}, nil
}
