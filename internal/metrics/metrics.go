// Package metrics exposes the indexer's observable lag: the distance between
// ledger truth and the relational projection.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/distributed_lab/logan/v3"
)

var (
	ChainHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_indexer_chain_head",
		Help: "Latest block number reported by the RPC provider.",
	})

	CursorHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_indexer_cursor_height",
		Help: "Last block whose events have been durably applied.",
	})

	ConfirmationLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_indexer_confirmation_lag",
		Help: "Blocks between the chain head and the applied cursor.",
	})

	EventsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_indexer_events_indexed_total",
		Help: "Ledger events applied to the order store, by kind.",
	}, []string{"kind"})

	ReorgRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_indexer_reorg_rollbacks_total",
		Help: "Reorg recoveries that rolled back indexed state.",
	})

	OrdersSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_indexer_orders_swept_total",
		Help: "Orders cancelled by nonce bulk invalidation.",
	})
)

// Serve blocks on the ops listener; run it in its own goroutine.
func Serve(log *logan.Entry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics listener stopped")
	}
}
