package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	StagesEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stages_enqueued_total",
			Help: "Total number of pipeline stage tasks enqueued",
		},
		[]string{"stage"},
	)
	StagesProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stages_processing",
			Help: "Number of stage tasks currently processing",
		},
		[]string{"stage"},
	)
	StagesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stages_completed_total",
			Help: "Total number of stage tasks completed",
		},
		[]string{"stage"},
	)
	StagesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stages_failed_total",
			Help: "Total number of stage tasks failed",
		},
		[]string{"stage"},
	)

	// Valuation outcome distribution, in BRL.
	BaseValuationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuation_base_brl",
			Help:    "Distribution of computed base valuations",
			Buckets: prometheus.ExponentialBuckets(10000, 4, 10),
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(StagesEnqueuedTotal)
	prometheus.MustRegister(StagesProcessing)
	prometheus.MustRegister(StagesCompletedTotal)
	prometheus.MustRegister(StagesFailedTotal)
	prometheus.MustRegister(BaseValuationHistogram)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil.
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

func EnqueueStage(stage string) {
	StagesEnqueuedTotal.WithLabelValues(stage).Inc()
}

func StartStage(stage string) {
	StagesProcessing.WithLabelValues(stage).Inc()
}

func CompleteStage(stage string) {
	StagesProcessing.WithLabelValues(stage).Dec()
	StagesCompletedTotal.WithLabelValues(stage).Inc()
}

func FailStage(stage string) {
	StagesProcessing.WithLabelValues(stage).Dec()
	StagesFailedTotal.WithLabelValues(stage).Inc()
}

// ObserveUpstream records one call to an external provider.
func ObserveUpstream(provider, operation string, dur time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(provider, operation).Inc()
	UpstreamRequestDuration.WithLabelValues(provider, operation).Observe(dur.Seconds())
}

// ObserveValuation records the computed base valuation.
func ObserveValuation(base float64) {
	if base >= 0 {
		BaseValuationHistogram.Observe(base)
	}
}
