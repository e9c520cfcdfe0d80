package region

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure stages reported in the "stage" label.
const (
	stageAlloc    = "alloc"
	stageRegister = "register"
	stageRelease  = "release"
)

// Metrics exports allocator activity to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	allocations *prometheus.CounterVec
	releases    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	liveBytes   *prometheus.GaugeVec
}

// NewMetrics creates the allocator metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verbsmem",
			Subsystem: "region",
			Name:      "allocations_total",
			Help:      "Total number of regions allocated.",
		}, []string{"mode"}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verbsmem",
			Subsystem: "region",
			Name:      "releases_total",
			Help:      "Total number of regions released.",
		}, []string{"mode"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verbsmem",
			Subsystem: "region",
			Name:      "failures_total",
			Help:      "Total number of failed allocate or release calls by stage.",
		}, []string{"mode", "stage"}),
		liveBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "verbsmem",
			Subsystem: "region",
			Name:      "live_bytes",
			Help:      "Bytes currently held by live regions.",
		}, []string{"mode"}),
	}
}

func (m *Metrics) allocated(mode Mode, length int) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(mode.String()).Inc()
	m.liveBytes.WithLabelValues(mode.String()).Add(float64(length))
}

func (m *Metrics) released(mode Mode, length int) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(mode.String()).Inc()
	m.liveBytes.WithLabelValues(mode.String()).Sub(float64(length))
}

func (m *Metrics) failed(mode Mode, stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(mode.String(), stage).Inc()
}
