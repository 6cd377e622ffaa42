package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"service", "method", "route", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardledger_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)

	DependencyCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_dependency_calls_total",
			Help: "Outbound calls to other services by outcome",
		},
		[]string{"caller", "target", "operation", "outcome"},
	)

	DependencyCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardledger_dependency_call_duration_seconds",
			Help:    "Outbound call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"caller", "target", "operation"},
	)

	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_database_operations_total",
			Help: "Database operations by entity",
		},
		[]string{"operation", "entity"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardledger_database_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "entity"},
	)

	TransactionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_transaction_create_total",
			Help: "Transaction create attempts by result kind",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardledger_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_cache_requests_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordHttpRequest(service, method, route, status string, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(service, method, route, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, route).Observe(duration.Seconds())
}

func RecordDependencyCall(caller, target, operation, outcome string, duration time.Duration) {
	DependencyCallsTotal.WithLabelValues(caller, target, operation, outcome).Inc()
	DependencyCallDuration.WithLabelValues(caller, target, operation).Observe(duration.Seconds())
}

func RecordDatabaseOperation(operation, entity string, duration time.Duration) {
	DatabaseOperationsTotal.WithLabelValues(operation, entity).Inc()
	DatabaseOperationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

func RecordTransactionCreate(result string) {
	TransactionsCreated.WithLabelValues(result).Inc()
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordCacheHit() {
	CacheRequests.WithLabelValues("hit").Inc()
}

func RecordCacheMiss() {
	CacheRequests.WithLabelValues("miss").Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
