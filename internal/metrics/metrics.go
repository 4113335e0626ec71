// Package metrics holds the Prometheus collectors for the notification pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects every mailer metric. It is separate from the default registry so
// tests and embedding processes get a predictable set of series.
var Registry = prometheus.NewRegistry()

var (
	JobsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_jobs_enqueued_total",
		Help: "Total notification jobs appended to the queue",
	})
	JobsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_jobs_sent_total",
		Help: "Total notification jobs handed to the transport successfully",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_jobs_failed_total",
		Help: "Total notification jobs dropped after a failed send",
	})
	JobsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_jobs_skipped_total",
		Help: "Total sends skipped because no transport is configured",
	})
	DrainLoops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_drain_loops_total",
		Help: "Total drain loops started",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_queue_depth",
		Help: "Jobs currently waiting in the queue",
	})
	sendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mail_send_duration_seconds",
		Help:    "Duration of individual transport sends",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

func init() {
	Registry.MustRegister(
		JobsEnqueued,
		JobsSent,
		JobsFailed,
		JobsSkipped,
		DrainLoops,
		queueDepth,
		sendDuration,
	)
}

// SetQueueDepth records the current queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// ObserveSendDuration records how long one transport send took.
func ObserveSendDuration(d time.Duration) {
	sendDuration.Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
