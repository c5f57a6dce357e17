package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gkach_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	// LedgerMovements counts balance changes by entry kind.
	LedgerMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_ledger_movements_total",
		Help: "Balance changes written to the ledger, labeled by entry kind",
	}, []string{"kind"})

	// LedgerCredits sums moved credits by entry kind.
	LedgerCredits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_ledger_credits_total",
		Help: "Absolute credits moved through the ledger, labeled by entry kind",
	}, []string{"kind"})

	NegotiationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_negotiation_transitions_total",
		Help: "Negotiation state transitions, labeled by target status",
	}, []string{"status"})

	BatchOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_batch_operations_total",
		Help: "Batch rotation operations, labeled by outcome",
	}, []string{"op"})

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gkach_tx_retries_total",
		Help: "Transactions re-run after a transient store failure",
	})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gkach_notification_failures_total",
		Help: "Notifications that could not be delivered, labeled by event kind",
	}, []string{"kind"})
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(ctx.Request.Method, endpoint))
		ctx.Next()
		timer.ObserveDuration()

		httpRequestsTotal.WithLabelValues(ctx.Request.Method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}
