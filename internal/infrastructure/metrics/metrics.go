// Package metrics exposes Prometheus collectors for the HTTP layer, the
// stock ledger, sales and the database pool.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const namespace = "pharmadesk"

// Metrics holds every collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.HistogramVec

	movements     *prometheus.CounterVec
	movedUnits    *prometheus.CounterVec
	stockRejected *prometheus.CounterVec
	sales         prometheus.Counter
	salesRevenue  prometheus.Counter
	saleLines     prometheus.Histogram
	salesFailed   *prometheus.CounterVec
	numberRetries prometheus.Counter
}

var (
	_ stock.Recorder   = (*Metrics)(nil)
	_ invoice.Recorder = (*Metrics)(nil)
)

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "movements_total",
			Help:      "Ledger entries appended by type.",
		}, []string{"type"}),
		movedUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "moved_units_total",
			Help:      "Absolute units moved by type.",
		}, []string{"type"}),
		stockRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "mutations_rejected_total",
			Help:      "Rejected stock mutations by error code.",
		}, []string{"code"}),
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "completed_total",
			Help:      "Committed sales.",
		}),
		salesRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "revenue_total",
			Help:      "Sum of committed invoice totals.",
		}),
		saleLines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "lines",
			Help:      "Lines per committed sale.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		salesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "failed_total",
			Help:      "Failed sales by error code.",
		}, []string{"code"}),
		numberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "invoice_number_collisions_total",
			Help:      "Invoice number unique violations that caused a retry.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.movements,
		m.movedUnits,
		m.stockRejected,
		m.sales,
		m.salesRevenue,
		m.saleLines,
		m.salesFailed,
		m.numberRetries,
	)
	return m
}

// MovementRecorded implements stock.Recorder.
func (m *Metrics) MovementRecorded(t stock.MovementType, quantity int64) {
	if quantity < 0 {
		quantity = -quantity
	}
	m.movements.WithLabelValues(string(t)).Inc()
	m.movedUnits.WithLabelValues(string(t)).Add(float64(quantity))
}

// MutationRejected implements stock.Recorder.
func (m *Metrics) MutationRejected(code string) {
	m.stockRejected.WithLabelValues(code).Inc()
}

// SaleCompleted implements invoice.Recorder.
func (m *Metrics) SaleCompleted(total decimal.Decimal, lines int) {
	m.sales.Inc()
	m.salesRevenue.Add(total.InexactFloat64())
	m.saleLines.Observe(float64(lines))
}

// SaleFailed implements invoice.Recorder.
func (m *Metrics) SaleFailed(code string) {
	m.salesFailed.WithLabelValues(code).Inc()
}

// NumberCollision implements invoice.Recorder.
func (m *Metrics) NumberCollision() {
	m.numberRetries.Inc()
}

// Middleware observes request latency. Unmatched routes share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// StatsSource is satisfied by *postgres.Pool.
type StatsSource interface {
	Stats() postgres.PoolStats
}

// RegisterPool exports connection pool gauges read at scrape time.
func (m *Metrics) RegisterPool(src StatsSource) {
	gauge := func(name, help string, read func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(src.Stats()) })
	}

	m.Registry.MustRegister(
		gauge("total_conns", "Open connections.", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("acquired_conns", "Connections in use.", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("idle_conns", "Idle connections.", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("max_conns", "Configured pool size.", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
		gauge("acquire_seconds", "Cumulative time spent acquiring connections.", func(s postgres.PoolStats) float64 {
			return s.AcquireDuration.Seconds()
		}),
	)
}
