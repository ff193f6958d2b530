// Package metrics holds the Prometheus collectors shared by the binaries.
// All collectors register on the default registry and are served by
// promhttp.Handler on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entrate"

// Generator

var GeneratorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "generator",
	Name:      "runs_total",
	Help:      "Materialization runs by result (ok, partial, error).",
}, []string{"result"})

var RecordsGenerated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "generator",
	Name:      "records_created_total",
	Help:      "Pending income records created from schedules.",
})

var StaleRecordsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "generator",
	Name:      "stale_records_deleted_total",
	Help:      "Auto-generated pending records pruned after going stale.",
})

var GeneratorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "generator",
	Name:      "run_duration_seconds",
	Help:      "Wall time of a full materialization run.",
	Buckets:   prometheus.DefBuckets,
})

// Export

var RecordsExported = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "sync",
	Name:      "records_exported_total",
	Help:      "Income records exported to the external ledger by result.",
}, []string{"result"})

// Messaging

var MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "amqp",
	Name:      "messages_published_total",
	Help:      "AMQP messages published by routing key and result.",
}, []string{"routing_key", "result"})

var MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "amqp",
	Name:      "messages_consumed_total",
	Help:      "AMQP deliveries handled by queue and outcome (ack, requeue, reject).",
}, []string{"queue", "outcome"})

// HTTP

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"route"})

// Cache

var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cache",
	Name:      "lookups_total",
	Help:      "Calculation cache lookups by result (hit, miss).",
}, []string{"result"})
