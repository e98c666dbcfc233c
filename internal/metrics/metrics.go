// Package metrics exposes the bot's Prometheus metrics:
//   - bot_orders_total{side}           – orders accepted by the venue
//   - bot_exits_total{rule}            – position exits split by triggering rule
//   - bot_reconcile_events_total{kind} – reconciliation outcomes (adopt/remove/resync)
//   - bot_equity_krw                   – last account equity snapshot
//   - bot_open_positions               – currently tracked positions
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders accepted by the venue",
		},
		[]string{"side"},
	)

	Exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exits_total",
			Help: "Position exits split by triggering rule",
		},
		[]string{"rule"},
	)

	ReconcileEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reconcile_events_total",
			Help: "Holdings reconciliation outcomes",
		},
		[]string{"kind"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_krw",
			Help: "Account net asset value in KRW",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Currently tracked positions",
		},
	)
)

func init() {
	prometheus.MustRegister(Orders, Exits, ReconcileEvents, Equity, OpenPositions)
}

// Serve starts the /metrics endpoint on addr. Blocking; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
