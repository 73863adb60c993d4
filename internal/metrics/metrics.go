package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domalend/oracle/internal/domain"
)

const namespace = "oracle"

// Metrics holds the Prometheus collectors for the pipelines.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	UpdatesTotal    *prometheus.CounterVec
	AssetsCollected *prometheus.GaugeVec
	LastSuccess     *prometheus.GaugeVec
	CompositeRank   prometheus.Histogram
	GasUsed         *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry, with Go and process collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Total number of pipeline cycles by result",
		}, []string{"pipeline", "result"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of pipeline cycles",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"pipeline"}),
		UpdatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "updates_total",
			Help:      "Total number of price updates by status",
		}, []string{"pipeline", "status"}),
		AssetsCollected: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_collected",
			Help:      "Number of items collected in the last cycle",
		}, []string{"pipeline"}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful cycle",
		}, []string{"pipeline"}),
		CompositeRank: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "composite_rank",
			Help:      "Distribution of composite ranks",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		GasUsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "gas_used_total",
			Help:      "Total gas used by confirmed updates",
		}, []string{"pipeline"}),
	}
}

// AfterCycle records a finished cycle.
func (m *Metrics) AfterCycle(_ context.Context, report domain.CycleReport) error {
	p := report.Pipeline

	result := "success"
	if report.Err != nil {
		result = "error"
	} else {
		m.LastSuccess.WithLabelValues(p).Set(float64(report.FinishedAt.Unix()))
	}
	m.CyclesTotal.WithLabelValues(p, result).Inc()
	m.CycleDuration.WithLabelValues(p).Observe(report.Duration().Seconds())
	m.AssetsCollected.WithLabelValues(p).Set(float64(report.Collected))

	for _, o := range report.Summary.Outcomes {
		m.UpdatesTotal.WithLabelValues(p, string(o.Status)).Inc()
		if o.GasUsed > 0 {
			m.GasUsed.WithLabelValues(p).Add(float64(o.GasUsed))
		}
	}
	for _, v := range report.Valuations {
		m.CompositeRank.Observe(v.CompositeRank)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
