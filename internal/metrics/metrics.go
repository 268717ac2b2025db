// Package metrics exposes Prometheus collectors fed from bus events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
)

// Collector owns a private registry so several servers (or tests) in one
// process never collide on metric names.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
	responseSizes prometheus.Histogram

	operations         *prometheus.CounterVec
	operationDurations prometheus.Histogram
	operationErrors    prometheus.Counter

	resolverGroups    *prometheus.CounterVec
	resolverParents   *prometheus.HistogramVec
	resolverFailures  *prometheus.CounterVec
	resolverDurations *prometheus.HistogramVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_api_requests_total",
			Help: "A counter for served requests",
		}, []string{"code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_duration_seconds",
			Help:    "A histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{}),
		responseSizes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "A histogram of response sizes for responses",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphql_operations_total",
			Help: "Executed GraphQL operations by type and terminal state",
		}, []string{"type", "state"}),
		operationDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphql_operation_duration_seconds",
			Help:    "GraphQL operation execution time",
			Buckets: prometheus.DefBuckets,
		}),
		operationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphql_errors_total",
			Help: "Errors reported in GraphQL responses",
		}),
		resolverGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_groups_total",
			Help: "Resolver groups run, one per (type, field) per depth",
		}, []string{"field", "kind"}),
		resolverParents: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resolver_group_parents",
			Help:    "Parent objects covered by one resolver group",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"field"}),
		resolverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_failed_slots_total",
			Help: "Resolver result slots that ended in an error",
		}, []string{"field"}),
		resolverDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resolver_group_duration_seconds",
			Help:    "Time from group start until every slot settled",
			Buckets: prometheus.DefBuckets,
		}, []string{"field", "kind"}),
	}
	c.registry.MustRegister(
		c.httpRequests, c.httpDurations, c.responseSizes,
		c.operations, c.operationDurations, c.operationErrors,
		c.resolverGroups, c.resolverParents, c.resolverFailures, c.resolverDurations,
	)
	return c
}

// Register subscribes the collectors to the bus.
func (c *Collector) Register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			c.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
			c.httpDurations.WithLabelValues().Observe(e.Duration.Seconds())
			c.responseSizes.Observe(float64(e.Bytes))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			c.operations.WithLabelValues(e.OperationType, e.State).Inc()
			c.operationDurations.Observe(e.Duration.Seconds())
			c.operationErrors.Add(float64(len(e.Errors)))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.BatchFinish) {
			field := e.ObjectType + "." + e.Field
			c.resolverGroups.WithLabelValues(field, e.Kind).Inc()
			c.resolverParents.WithLabelValues(field).Observe(float64(e.Parents))
			c.resolverFailures.WithLabelValues(field).Add(float64(e.Failed))
			c.resolverDurations.WithLabelValues(field, e.Kind).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
