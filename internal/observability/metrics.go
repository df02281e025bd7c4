// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing setup for the API.
//
// Metrics live on a private registry owned by Metrics, so tests can build
// as many instances as they like without colliding on the global one.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JunoAX/familytasks-go/internal/database"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "familytasks"

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests.
	// Labels: method, route, status
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures handler latency.
	// Labels: method, route
	RequestDuration *prometheus.HistogramVec

	// DependenciesCreated counts accepted dependency edges.
	DependenciesCreated prometheus.Counter

	// DependencyRejections counts refused edges.
	// Labels: reason (not_found, self_loop, duplicate, cycle)
	DependencyRejections *prometheus.CounterVec

	// CycleSearchVisited records how many tasks one cycle check touched.
	CycleSearchVisited prometheus.Histogram

	// IdentitySyncs counts identity reconciliations.
	// Labels: outcome (existing, linked, created, error)
	IdentitySyncs *prometheus.CounterVec
}

// NewMetrics creates and registers every metric on a fresh registry, along
// with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		DependenciesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "dependencies",
				Name:      "created_total",
				Help:      "Dependency edges accepted",
			},
		),
		DependencyRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "dependencies",
				Name:      "rejected_total",
				Help:      "Dependency edges refused, by reason",
			},
			[]string{"reason"},
		),
		CycleSearchVisited: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "dependencies",
				Name:      "cycle_search_visited_tasks",
				Help:      "Tasks visited by one cycle check",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		IdentitySyncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "identity",
				Name:      "syncs_total",
				Help:      "Identity sync calls by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Unmatched routes share one
// label value to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// DependencyCreated, DependencyRejected and CycleSearch implement graph.Observer.

func (m *Metrics) DependencyCreated() {
	m.DependenciesCreated.Inc()
}

func (m *Metrics) DependencyRejected(reason string) {
	m.DependencyRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) CycleSearch(visited int) {
	m.CycleSearchVisited.Observe(float64(visited))
}

// IdentitySynced implements identity.Observer.
func (m *Metrics) IdentitySynced(outcome string) {
	m.IdentitySyncs.WithLabelValues(outcome).Inc()
}

// RegisterPool exports connection pool statistics.
func (m *Metrics) RegisterPool(stats func() database.PoolStats) {
	m.registry.MustRegister(newPoolCollector(stats))
}

// poolCollector reads pool counters at scrape time.
type poolCollector struct {
	stats func() database.PoolStats

	acquired      *prometheus.Desc
	idle          *prometheus.Desc
	total         *prometheus.Desc
	max           *prometheus.Desc
	acquires      *prometheus.Desc
	emptyAcquires *prometheus.Desc
	canceled      *prometheus.Desc
}

func newPoolCollector(stats func() database.PoolStats) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "db_pool", name), help, nil, nil)
	}
	return &poolCollector{
		stats:         stats,
		acquired:      desc("acquired_conns", "Connections currently checked out"),
		idle:          desc("idle_conns", "Idle connections"),
		total:         desc("total_conns", "Open connections"),
		max:           desc("max_conns", "Configured connection limit"),
		acquires:      desc("acquires_total", "Successful acquires"),
		emptyAcquires: desc("empty_acquires_total", "Acquires that had to wait for a connection"),
		canceled:      desc("canceled_acquires_total", "Acquires abandoned by timeout or cancellation"),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.emptyAcquires
	ch <- c.canceled
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquireCount))
	ch <- prometheus.MustNewConstMetric(c.canceled, prometheus.CounterValue, float64(s.CanceledAcquires))
}
