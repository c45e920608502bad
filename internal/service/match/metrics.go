package match

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

var stageBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics records pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	events        *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg, reusing collectors
// that are already registered. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchd",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   stageBuckets,
		}, []string{"stage", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "pipeline",
			Name:      "degraded_events_total",
			Help:      "Degraded outcomes flagged by the pipeline",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Run lifecycle transitions by status",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{m.stageDuration, m.events, m.runs}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch v := are.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					if collector == m.events {
						m.events = v
					} else if collector == m.runs {
						m.runs = v
					}
				case *prometheus.HistogramVec:
					m.stageDuration = v
				}
			}
		}
	}
	return m
}

func (m *Metrics) observeStage(stage int, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.With(prometheus.Labels{"stage": strconv.Itoa(stage), "outcome": outcome}).Observe(d.Seconds())
}

func (m *Metrics) countEvents(events []domain.Event) {
	if m == nil {
		return
	}
	for _, ev := range events {
		m.events.With(prometheus.Labels{"kind": string(ev.Kind)}).Inc()
	}
}

func (m *Metrics) countRun(status string) {
	if m == nil {
		return
	}
	m.runs.With(prometheus.Labels{"status": status}).Inc()
}
