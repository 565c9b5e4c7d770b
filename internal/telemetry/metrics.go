package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "coursejobs_enqueued_total", Help: "Jobs written to the queue"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "coursejobs_completed_total", Help: "Jobs resolved successfully"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "coursejobs_failed_total", Help: "Handler failures routed through the retry path"})
	BatchInvocations = prometheus.NewCounter(prometheus.CounterOpts{Name: "coursejobs_batch_invocations_total", Help: "Trigger-endpoint batch runs"})
	TriggerRejects   = prometheus.NewCounter(prometheus.CounterOpts{Name: "coursejobs_trigger_rejects_total", Help: "Trigger requests rejected before touching the queue"})
	QueueDepth       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "coursejobs_queued", Help: "Jobs currently in queued state"})
	DeadJobs         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "coursejobs_dead", Help: "Jobs in the dead-letter state awaiting manual requeue"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsFailed,
			BatchInvocations,
			TriggerRejects,
			QueueDepth,
			DeadJobs,
		)
	})
	return promhttp.Handler()
}
