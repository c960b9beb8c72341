package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mariorz/go-bitso-livebook/config"
	"github.com/mariorz/go-bitso-livebook/domain"
	"github.com/mariorz/go-bitso-livebook/helpers"
	promclient "github.com/mariorz/go-bitso-livebook/infrastructure/prometheus"
	"github.com/mariorz/go-bitso-livebook/provider/bitso"
	"github.com/mariorz/go-bitso-livebook/usecase"
)

const snapshotServerAddr = ":8081"

func main() {
	config.Init()

	book := os.Getenv("BOOK")
	if book == "" {
		book = "btc_mxn"
	}
	symbol, err := domain.NewMarketSymbolFromString(book)
	if err != nil {
		log.Fatalf("invalid book %q: %s", book, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := bitso.NewStreamClient()
	if err := client.Connect(); err != nil {
		log.Fatalf("connecting to bitso stream: %s", err)
	}

	listener := promclient.BookEventCollector{}
	streamAPI := bitso.NewBitsoStreamAPI(client, listener)
	syncAPI := bitso.NewBitsoSyncAPI()

	uc := usecase.NewBookSnapshotUseCase(streamAPI, syncAPI, listener)

	go promclient.StartPromClientServer()
	go startSnapshotServer(uc)
	go logTrades(streamAPI, symbol)

	// the first request opens the local replica for the default book
	if _, err := uc.GetBookSnapshot(ctx, symbol, 1); err != nil {
		log.Printf("warming %s: %s", symbol, err)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			promclient.OpenOrderBookGauge.Set(float64(uc.OpenBookCount()))
			logTopOfBook(ctx, uc, symbol)
		case <-sigCh:
			log.Println("shutting down")
			cancel()
			client.Close()
			return
		}
	}
}

func startSnapshotServer(uc *usecase.BookSnapshotUseCase) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order_book", func(w http.ResponseWriter, r *http.Request) {
		symbol, err := domain.NewMarketSymbolFromString(r.URL.Query().Get("book"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		snapshot, err := uc.GetBookSnapshot(r.Context(), symbol, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(helpers.ToJsonString(snapshot)))
	})

	log.Println("snapshot server listening on", snapshotServerAddr)
	if err := http.ListenAndServe(snapshotServerAddr, mux); err != nil {
		log.Fatalf("snapshot server: %s", err)
	}
}

func logTopOfBook(ctx context.Context, uc *usecase.BookSnapshotUseCase, symbol *domain.MarketSymbol) {
	snapshot, err := uc.GetBookSnapshot(ctx, symbol, 1)
	if err != nil {
		log.Printf("fetching %s snapshot: %s", symbol, err)
		return
	}
	if len(snapshot.Bids) == 0 || len(snapshot.Asks) == 0 {
		log.Println("book has an empty side")
		return
	}

	bestBid, bestAsk := snapshot.Bids[0], snapshot.Asks[0]
	spread := decimal.RequireFromString(bestAsk[0]).Sub(decimal.RequireFromString(bestBid[0]))
	log.Printf("best ask: %s (%s), best bid: %s (%s), spread: %s [source=%s seq=%s]",
		bestAsk[0], bestAsk[1], bestBid[0], bestBid[1], spread,
		snapshot.Source, helpers.IntToString(snapshot.Sequence))
}

func logTrades(streamAPI *bitso.BitsoStreamAPI, symbol *domain.MarketSymbol) {
	trades, err := streamAPI.TradeStream(symbol)
	if err != nil {
		log.Printf("subscribing to trades: %s", err)
		return
	}

	for trade := range trades.Stream {
		log.Printf("new trade: %s %s @ %s", trade.Side, trade.Amount, trade.Price)
	}
}
