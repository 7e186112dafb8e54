package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=authenticating, 3=authenticated, 4=error)",
		},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_reconnect_attempts_total",
			Help: "Total reconnect attempts",
		},
	)

	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_heartbeat_timeouts_total",
			Help: "Connections closed for missing pongs",
		},
	)

	// Frame metrics
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_frames_received_total",
			Help: "Total inbound frames by namespace",
		},
		[]string{"namespace"},
	)

	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_frames_sent_total",
			Help: "Total outbound frames",
		},
	)

	ParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_parse_errors_total",
			Help: "Inbound frames dropped as malformed",
		},
	)

	// Reconciliation metrics
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_reconcile_outcomes_total",
			Help: "Message reconciliation outcomes",
		},
		[]string{"outcome"}, // "correlation", "heuristic", "duplicate", "insert"
	)

	// Outbound metrics
	PendingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_pending_queue_depth",
			Help: "Commands queued while unauthenticated",
		},
	)
)

// Serve exposes the metrics endpoint. Blocks until the server fails.
func Serve(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
