package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/mariorz/go-bitso-livebook/domain"
)

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bitso_open_order_books",
		Help: "number of locally maintained order books",
	},
)

var LevelUpdatesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bitso_book_level_updates_total",
		Help: "price level mutations applied to local books",
	},
	[]string{"kind"},
)

var SequenceGapsCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bitso_sequence_gaps_total",
		Help: "sequence gaps detected on the diff stream",
	},
)

var ResyncsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bitso_resyncs_total",
		Help: "snapshot resynchronizations by outcome",
	},
	[]string{"outcome"},
)

var DroppedRecordsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bitso_dropped_records_total",
		Help: "stream records discarded before application",
	},
	[]string{"reason"},
)

// BookEventCollector bridges engine observability events into the metrics
// above. It satisfies domain.BookListener.
type BookEventCollector struct {
	domain.NoopListener
}

func (BookEventCollector) LevelAdded(domain.Side, decimal.Decimal, decimal.Decimal) {
	LevelUpdatesCounter.WithLabelValues("added").Inc()
}

func (BookEventCollector) LevelUpdated(domain.Side, decimal.Decimal, decimal.Decimal) {
	LevelUpdatesCounter.WithLabelValues("updated").Inc()
}

func (BookEventCollector) LevelRemoved(domain.Side, decimal.Decimal) {
	LevelUpdatesCounter.WithLabelValues("removed").Inc()
}

func (BookEventCollector) StaleUpdate(domain.Side, decimal.Decimal, string) {
	DroppedRecordsCounter.WithLabelValues("stale").Inc()
}

func (BookEventCollector) MalformedRecord(string) {
	DroppedRecordsCounter.WithLabelValues("malformed").Inc()
}

func (BookEventCollector) GapDetected(int64, int64) {
	SequenceGapsCounter.Inc()
}

func (BookEventCollector) ResyncCompleted(int64, int) {
	ResyncsCounter.WithLabelValues("completed").Inc()
}

func (BookEventCollector) ResyncFailed(error) {
	ResyncsCounter.WithLabelValues("failed").Inc()
}

func StartPromClientServer() {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(LevelUpdatesCounter)
	reg.MustRegister(SequenceGapsCounter)
	reg.MustRegister(ResyncsCounter)
	reg.MustRegister(DroppedRecordsCounter)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
