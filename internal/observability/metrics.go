package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asksql_http_requests_total",
			Help: "Total number of API requests, by method, matched route and status.",
		},
		[]string{"method", "route", "status"},
	)
	apiRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "asksql_http_request_duration_seconds",
			Help: "API request latency by route. Streaming answers stay open for the whole run.",
			// Ask requests span LLM round trips, so the tail is longer than DefBuckets.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)
	apiRequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asksql_http_requests_in_flight",
			Help: "API requests currently being served, by method.",
		},
		[]string{"method"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asksql_runs_total",
			Help: "Total number of questions processed, by terminal outcome.",
		},
		[]string{"outcome"},
	)
	synthesisAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asksql_synthesis_attempts",
			Help:    "Number of query synthesis attempts per question.",
			Buckets: []float64{1, 2, 3},
		},
	)
	stepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asksql_step_duration_seconds",
			Help:    "Latency of individual workflow steps.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step"},
	)
	safetyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asksql_safety_rejections_total",
			Help: "Total number of candidate queries blocked by the safety gate, by keyword.",
		},
		[]string{"keyword"},
	)
	storeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asksql_store_errors_total",
			Help: "Total number of query executions that returned a store error.",
		},
	)
	historyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asksql_history_failures_total",
			Help: "Total number of run records that could not be archived.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestSeconds,
		apiRequestsInFlight,
		runsTotal,
		synthesisAttempts,
		stepDurationSeconds,
		safetyRejectionsTotal,
		storeErrorsTotal,
		historyFailuresTotal,
	)
}

// trackAPIRequest marks a request as in flight and returns the function that
// records its outcome. The route is only known once the mux has matched it.
func trackAPIRequest(method string) func(route string, status int) {
	start := time.Now()
	inFlight := apiRequestsInFlight.WithLabelValues(method)
	inFlight.Inc()
	return func(route string, status int) {
		inFlight.Dec()
		apiRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		apiRequestSeconds.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func ObserveRun(outcome string, attempts int) {
	runsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		synthesisAttempts.Observe(float64(attempts))
	}
}

func ObserveStep(step string, elapsed time.Duration) {
	stepDurationSeconds.WithLabelValues(step).Observe(elapsed.Seconds())
}

func ObserveSafetyRejection(keywords []string) {
	for _, keyword := range keywords {
		safetyRejectionsTotal.WithLabelValues(keyword).Inc()
	}
}

func IncrementStoreErrors() {
	storeErrorsTotal.Inc()
}

func IncrementHistoryFailures() {
	historyFailuresTotal.Inc()
}
