package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfconvert"

var (
	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions by export kind, mode and result",
		},
		[]string{"kind", "mode", "result"},
	)

	conversionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall-clock duration of conversions by export kind",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Page batches converted by result",
		},
		[]string{"result"},
	)

	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rendered_total",
			Help:      "Pages rendered to raster by purpose (thumbnail, preview, image, slide)",
		},
		[]string{"purpose"},
	)

	sweptFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_swept_files_total",
			Help:      "Files removed by the retention sweeper",
		},
	)

	timeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_timeouts_total",
			Help:      "Conversions abandoned at the deadline",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(conversions, conversionLatency, batches, pagesRendered, sweptFiles, timeouts)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveConversion(kind, mode, result string, dur time.Duration) {
	conversions.WithLabelValues(kind, mode, result).Inc()
	conversionLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func IncBatch(result string)                 { batches.WithLabelValues(result).Inc() }
func AddPagesRendered(purpose string, n int) { pagesRendered.WithLabelValues(purpose).Add(float64(n)) }
func AddSwept(n int)                         { sweptFiles.Add(float64(n)) }
func IncTimeout()                            { timeouts.Inc() }
