package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every docproc collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	uploadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "docproc_uploads_total",
		Help: "Uploads processed, by outcome",
	}, []string{"outcome"})

	fetchTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "docproc_fetch_total",
		Help: "Record queries served, by outcome",
	}, []string{"outcome"})

	stageFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "docproc_stage_failures_total",
		Help: "Pipeline stage failures, by stage",
	}, []string{"stage"})

	stageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docproc_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncUpload counts an upload with outcome "success" or "failure".
func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// IncFetch counts a fetch with outcome "found", "empty" or "failure".
func IncFetch(outcome string) {
	fetchTotal.WithLabelValues(outcome).Inc()
}

// IncStageFailure counts a failed pipeline stage.
func IncStageFailure(stage string) {
	stageFailures.WithLabelValues(stage).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
