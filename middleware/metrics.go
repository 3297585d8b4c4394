package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shrek82/jbulk/core"
)

// MetricsMiddleware exports per-sink batch counters and latency histograms.
type MetricsMiddleware struct {
	reg prometheus.Registerer

	batches      *prometheus.CounterVec
	rows         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	rowsPerBatch *prometheus.HistogramVec
	inflight     *prometheus.GaugeVec
}

// NewMetrics creates the collectors under namespace. They are registered
// with reg on Init; a nil reg means prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *MetricsMiddleware {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &MetricsMiddleware{
		reg: reg,
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of written batches",
			},
			[]string{"sink", "table", "status"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of rows reported by the sink",
			},
			[]string{"sink", "table"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch writes in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"sink"},
		),
		rowsPerBatch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_rows",
				Help:      "Rows per batch",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"sink"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_batches",
				Help:      "Number of batches being written",
			},
			[]string{"sink"},
		),
	}
}

func (m *MetricsMiddleware) Name() string {
	return "Metrics"
}

func (m *MetricsMiddleware) Init(e *core.Engine) error {
	for _, c := range m.collectors() {
		if err := m.reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *MetricsMiddleware) Shutdown() error {
	for _, c := range m.collectors() {
		m.reg.Unregister(c)
	}
	return nil
}

func (m *MetricsMiddleware) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.batches, m.rows, m.duration, m.rowsPerBatch, m.inflight}
}

// Batches returns the batch counter, labelled by sink, table and status.
func (m *MetricsMiddleware) Batches() *prometheus.CounterVec { return m.batches }

// Rows returns the row counter, labelled by sink and table.
func (m *MetricsMiddleware) Rows() *prometheus.CounterVec { return m.rows }

func (m *MetricsMiddleware) Process(ctx context.Context, batch *core.Batch, next core.BatchFunc) (*core.Result, error) {
	m.inflight.WithLabelValues(batch.Sink).Inc()
	defer m.inflight.WithLabelValues(batch.Sink).Dec()

	start := time.Now()
	res, err := next(ctx, batch)
	m.duration.WithLabelValues(batch.Sink).Observe(time.Since(start).Seconds())
	m.rowsPerBatch.WithLabelValues(batch.Sink).Observe(float64(batch.Table.Len()))

	status := "success"
	if err != nil {
		status = "error"
	}
	m.batches.WithLabelValues(batch.Sink, batch.Table.Name, status).Inc()
	if err == nil && res != nil {
		m.rows.WithLabelValues(batch.Sink, batch.Table.Name).Add(float64(res.RowsAffected))
	}
	return res, err
}
