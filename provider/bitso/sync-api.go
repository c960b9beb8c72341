package bitso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mariorz/go-bitso-livebook/config"
	"github.com/mariorz/go-bitso-livebook/domain"
)

// BitsoSyncAPI fetches full book snapshots over REST. Network failures and
// 5xx responses are wrapped with domain.ErrSnapshotTransient so the resync
// controller retries them; malformed payloads and 4xx responses are protocol
// errors and abort the fetch.
type BitsoSyncAPI struct {
	endpoint   string
	httpClient *http.Client
}

func NewBitsoSyncAPI() *BitsoSyncAPI {
	return &BitsoSyncAPI{
		endpoint: config.BitsoRestEndpoint,
		httpClient: &http.Client{
			Timeout: config.SnapshotRequestTimeout,
		},
	}
}

type orderBookEntryModel struct {
	Book   string `json:"book"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
	OID    string `json:"oid"`
}

type orderBookResponseModel struct {
	Success bool `json:"success"`
	Payload struct {
		Asks      []orderBookEntryModel `json:"asks"`
		Bids      []orderBookEntryModel `json:"bids"`
		UpdatedAt string                `json:"updated_at"`
		Sequence  string                `json:"sequence"`
	} `json:"payload"`
}

// OrderBookSnapshot requests the ungrouped book so every entry carries its
// order id, plus the sequence marker situating the snapshot in the diff
// stream.
func (api *BitsoSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol) (*domain.BookSnapshot, error) {
	u := fmt.Sprintf("%s/v3/order_book/?%s", api.endpoint, url.Values{
		"book":      {symbol.String()},
		"aggregate": {"false"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: order_book returned status %d", domain.ErrSnapshotTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order_book returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading order_book body: %s", domain.ErrSnapshotTransient, err)
	}

	var model orderBookResponseModel
	if err := json.Unmarshal(body, &model); err != nil {
		return nil, fmt.Errorf("unmarshaling order_book response: %w", err)
	}
	if !model.Success {
		return nil, fmt.Errorf("order_book request was not successful")
	}

	sequence, err := strconv.ParseInt(model.Payload.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad snapshot sequence %q", model.Payload.Sequence)
	}

	bids, err := parseSnapshotEntries(model.Payload.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseSnapshotEntries(model.Payload.Asks)
	if err != nil {
		return nil, err
	}

	return &domain.BookSnapshot{
		Bids:     bids,
		Asks:     asks,
		Sequence: sequence,
	}, nil
}

func parseSnapshotEntries(entries []orderBookEntryModel) ([]domain.SnapshotEntry, error) {
	out := make([]domain.SnapshotEntry, 0, len(entries))
	for _, e := range entries {
		price, err := decimal.NewFromString(e.Price)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("bad snapshot price %q", e.Price)
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil || amount.IsNegative() {
			return nil, fmt.Errorf("bad snapshot amount %q", e.Amount)
		}
		out = append(out, domain.SnapshotEntry{
			Price:   price,
			Amount:  amount,
			OrderID: e.OID,
		})
	}
	return out, nil
}
