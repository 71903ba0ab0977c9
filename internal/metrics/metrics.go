// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_received_total", Help: "Valid ticks decoded from the stream"},
		[]string{"symbol"},
	)
	TicksMalformed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ticks_malformed_total", Help: "Messages dropped during decode/validation"},
	)
	QueueDrops = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "queue_drops_total", Help: "Ticks dropped because the ingest queue was full"},
	)
	TicksStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_stored_total", Help: "Ticks written to the tick store"},
		[]string{"symbol"},
	)
	StoreWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "store_write_failures_total", Help: "Tick store writes that failed and were skipped"},
	)
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "stream_reconnects_total", Help: "Websocket reconnect attempts"},
	)
	ConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "stream_connection_state", Help: "0=disconnected 1=connecting 2=connected"},
	)
	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alerts_fired_total", Help: "Alert events emitted"},
		[]string{"rule"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksReceived, TicksMalformed, QueueDrops, TicksStored,
		StoreWriteFailures, Reconnects, ConnectionState, AlertsFired,
	)
}

// Serve exposes /metrics on addr. The server runs until the process exits.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
