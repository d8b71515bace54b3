package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sinkflow/internal/event"
	"sinkflow/internal/logging"
)

var (
	SendResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_http_send_total",
			Help: "Terminal send attempt outcomes",
		},
		[]string{"task", "stream", "result"},
	)

	SendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sinkflow_http_send_duration_seconds",
			Help:    "Time from dispatch to terminal outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "result"},
	)

	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sinkflow_http_in_flight",
			Help: "Requests holding a dispatch slot",
		},
		[]string{"task"},
	)

	Requeued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_http_requeued_total",
			Help: "Events returned to the retry queue",
		},
		[]string{"task"},
	)

	Cancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_http_cancelled_total",
			Help: "Sends cancelled before completion",
		},
		[]string{"task"},
	)

	Dropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_http_dropped_total",
			Help: "Events dropped without ack on a non-retryable path",
		},
		[]string{"task", "reason"},
	)

	DeadLetterErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sinkflow_dead_letter_errors_total",
			Help: "Dead-letter records that could not be published",
		},
	)

	SourceAcked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_source_acked_total",
			Help: "Upstream records acknowledged by a sink",
		},
		[]string{"topic"},
	)

	SourceSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkflow_source_settled_total",
			Help: "Upstream records a sink gave up on; committed past without delivery",
		},
		[]string{"topic"},
	)
)

// Recorder is the outcome hook handed to sinks.
type Recorder struct{}

func (Recorder) RecordOutcome(ev event.ProfileEvent, taskName string, success bool, sentAt time.Time) {
	result := "failure"
	if success {
		result = "success"
	}
	SendResults.WithLabelValues(taskName, ev.StreamID(), result).Inc()
	SendLatency.WithLabelValues(taskName, result).Observe(time.Since(sentAt).Seconds())
}

// Expose serves /metrics until the returned server is shut down.
func Expose(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics listener stopped", "err", err)
		}
	}()
	return srv
}

func Shutdown(ctx context.Context, srv *http.Server) {
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
}
