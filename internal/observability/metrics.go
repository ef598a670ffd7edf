package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gatewatch"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "envelopes_total",
			Help:      "Envelopes read from the gateway stream.",
		},
		[]string{"type"},
	)
	blocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "blocks_total",
			Help:      "Blocks dispatched, by tag.",
		},
		[]string{"tag"},
	)
	framingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "framing_errors_total",
			Help:      "Read loops terminated by a framing error.",
		},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "messages_total",
			Help:      "Inner-protocol messages decoded, by kind.",
		},
		[]string{"kind"},
	)
	shortfalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "shortfalls_total",
			Help:      "Messages shorter than their kind's layout.",
		},
		[]string{"kind"},
	)
	invalidFields = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "invalid_fields_total",
			Help:      "Fields decoded to an invalid sentinel.",
		},
		[]string{"kind", "field"},
	)
	orderChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "changes_total",
			Help:      "Order changes applied, by change kind.",
		},
		[]string{"change"},
	)
	correlationMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "correlation_misses_total",
			Help:      "Messages that could not be correlated to tracked state.",
		},
		[]string{"reason"},
	)
	trackedOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "tracked",
			Help:      "Orders currently tracked.",
		},
	)
	liveness = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "status",
			Help:      "Liveness status: 0 disconnected, 1 connected, 2 warning.",
		},
	)
	sinkPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "publishes_total",
			Help:      "Events handed to outbound sinks.",
		},
		[]string{"sink", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			envelopes, blocks, framingErrors,
			messages, shortfalls, invalidFields,
			orderChanges, correlationMisses, trackedOrders,
			liveness, sinkPublishes,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordEnvelope(heartbeat bool) {
	RegisterMetrics()
	if heartbeat {
		envelopes.WithLabelValues("heartbeat").Inc()
		return
	}
	envelopes.WithLabelValues("data").Inc()
}

func RecordBlock(tag string) {
	RegisterMetrics()
	blocks.WithLabelValues(tag).Inc()
}

func RecordFramingError() {
	RegisterMetrics()
	framingErrors.Inc()
}

func RecordMessage(kind string, truncated bool, invalid []string) {
	RegisterMetrics()
	messages.WithLabelValues(kind).Inc()
	if truncated {
		shortfalls.WithLabelValues(kind).Inc()
	}
	for _, field := range invalid {
		invalidFields.WithLabelValues(kind, field).Inc()
	}
}

func RecordOrderChange(change, miss string, tracked int) {
	RegisterMetrics()
	if change != "" {
		orderChanges.WithLabelValues(change).Inc()
	}
	if miss != "" {
		correlationMisses.WithLabelValues(miss).Inc()
	}
	trackedOrders.Set(float64(tracked))
}

func RecordLiveness(status int) {
	RegisterMetrics()
	liveness.Set(float64(status))
}

func RecordSinkPublish(sink string, success bool) {
	RegisterMetrics()
	sinkPublishes.WithLabelValues(sink, strconv.FormatBool(success)).Inc()
}
