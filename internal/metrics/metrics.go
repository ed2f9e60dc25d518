package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scanlike"

var (
	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Total pages processed by result (kept, removed, scanned, failed)",
		},
		[]string{"result"},
	)

	stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages (render, effect stages, encode, pack)",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total runs by mode (remove, scan, remove+scan, noop) and result",
		},
		[]string{"mode", "result"},
	)

	runLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of whole runs by mode",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"mode"},
	)

	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_inflight",
			Help:      "Jobs currently running in serve mode",
		},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(pagesProcessed, stageLatency, runsTotal, runLatency, jobsInflight)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncProcessed(result string) { pagesProcessed.WithLabelValues(result).Inc() }

func AddProcessed(result string, n int) { pagesProcessed.WithLabelValues(result).Add(float64(n)) }

func ObserveStage(stage string, dur time.Duration) {
	stageLatency.WithLabelValues(stage).Observe(dur.Seconds())
}

func ObserveRun(mode, result string, dur time.Duration) {
	runsTotal.WithLabelValues(mode, result).Inc()
	runLatency.WithLabelValues(mode).Observe(dur.Seconds())
}

func JobStarted()  { jobsInflight.Inc() }
func JobFinished() { jobsInflight.Dec() }
