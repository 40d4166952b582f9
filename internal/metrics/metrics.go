// Package metrics exposes Prometheus series for the call-board backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the application registry served on /metrics
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Aggregation metrics

var AggregationsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "aggregations_total",
	Help:      "Call matrix aggregations computed",
})

var AggregationErrorsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "aggregation_errors_total",
	Help:      "Call matrix aggregations that failed before producing a matrix",
})

var AggregationDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "callboard",
	Name:      "aggregation_duration_seconds",
	Help:      "Time spent reading and aggregating the call log",
	Buckets:   prometheus.DefBuckets,
})

var CallsCountedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "calls_counted_total",
	Help:      "Call-log records counted into a matrix cell",
})

var RecordsSkippedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "records_skipped_total",
	Help:      "Call-log records left out of a matrix, by reason",
}, []string{"reason"})

// Cache metrics

var CacheLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "cache_lookups_total",
	Help:      "Response cache lookups by result (hit, miss)",
}, []string{"result"})

// Upstream metrics

var UpstreamErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "upstream_errors_total",
	Help:      "Failed calls to upstream services",
}, []string{"upstream"})

var UpstreamRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "callboard",
	Name:      "upstream_request_duration_seconds",
	Help:      "Latency of upstream calls",
	Buckets:   prometheus.DefBuckets,
}, []string{"upstream", "operation"})

// Counter-write metrics

var CounterWritesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "counter_writes_total",
	Help:      "Counter write operations by mode (increment, set, batch, log) and result",
}, []string{"mode", "result"})

var BatchCellsWrittenTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "batch_cells_written_total",
	Help:      "Cells written by batch counter updates",
})

// HTTP metrics

var HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callboard",
	Name:      "http_requests_total",
	Help:      "HTTP requests by route and status",
}, []string{"route", "status"})

var HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "callboard",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request latency by route",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordMatrix records the outcome of one aggregation
func RecordMatrix(m *types.CallMatrix, duration time.Duration) {
	AggregationsTotal.Inc()
	AggregationDuration.Observe(duration.Seconds())
	CallsCountedTotal.Add(float64(m.ProcessedCount))

	s := m.Skipped
	RecordsSkippedTotal.WithLabelValues("wrong_agent").Add(float64(s.WrongAgent))
	RecordsSkippedTotal.WithLabelValues("no_datetime").Add(float64(s.NoDateTime))
	RecordsSkippedTotal.WithLabelValues("short_duration").Add(float64(s.ShortDuration))
	RecordsSkippedTotal.WithLabelValues("wrong_date").Add(float64(s.WrongDate))
	RecordsSkippedTotal.WithLabelValues("outside_hours").Add(float64(s.OutsideHours))
}

// RecordCounterWrite records a counter write outcome
func RecordCounterWrite(mode string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	CounterWritesTotal.WithLabelValues(mode, result).Inc()
}

// RecordHTTPRequest records a completed HTTP request
func RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveUpstream times an upstream call and counts its failure
func ObserveUpstream(upstream, operation string, start time.Time, err error) {
	UpstreamRequestDuration.WithLabelValues(upstream, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		UpstreamErrorsTotal.WithLabelValues(upstream).Inc()
	}
}

// Handler returns the /metrics handler
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
