// Package metrics exposes crawl cycle counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jobwatch-engine/internal/domain"
)

const (
	Namespace = "jobwatch"
	Subsystem = "crawl"
)

// Cycle results.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
)

// Metrics holds the collectors updated by each crawl cycle. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec
	CyclesSkipped   prometheus.Counter
	CycleDuration   prometheus.Histogram
	ListingsChanged *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	WriteFailures   prometheus.Counter
	PagesFetched    prometheus.Counter
	LastSuccess     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "cycles_total",
			Help:      "Crawl cycles run, by result",
		}, []string{"result"}),
		CyclesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "cycles_skipped_total",
			Help:      "Ticks dropped because a cycle was still running",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one crawl cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}),
		ListingsChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "listings_total",
			Help:      "Listing records touched, by change",
		}, []string{"change"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "fetch_failures_total",
			Help:      "Failed feed requests, by kind",
		}, []string{"kind"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "write_failures_total",
			Help:      "Store writes or commits that failed",
		}),
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "pages_fetched_total",
			Help:      "Feed page requests made",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that read the whole feed",
		}),
	}
}

// ObserveCycle records the outcome of one cycle.
func (m *Metrics) ObserveCycle(result string, pages int, rep domain.ReconcileReport, took time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(took.Seconds())
	m.PagesFetched.Add(float64(pages))

	m.ListingsChanged.WithLabelValues("created").Add(float64(rep.Created))
	m.ListingsChanged.WithLabelValues("updated").Add(float64(rep.Updated))
	m.ListingsChanged.WithLabelValues("expired").Add(float64(rep.Expired))

	m.FetchFailures.WithLabelValues("detail").Add(float64(rep.DetailFailures))
	if result != ResultOK {
		m.FetchFailures.WithLabelValues("page").Inc()
	}
	m.WriteFailures.Add(float64(rep.WriteFailures))

	if result == ResultOK {
		m.LastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) SkippedCycle() {
	if m == nil {
		return
	}
	m.CyclesSkipped.Inc()
}
