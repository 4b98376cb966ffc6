package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus collectors that report pipeline activity.
type Metrics struct {
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	refineRounds   *prometheus.CounterVec
	requestsActive prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once so
// building several pipelines (unit tests, embedded use) cannot trip
// duplicate-registration panics.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance on the provided registerer.
// Callers that need isolated metric names (tests) pass a fresh registry.
// Registration errors other than AlreadyRegistered panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conductor",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Stage executions that failed the request.",
		},
		[]string{"stage", "reason"},
	)
	refineRounds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "pipeline",
			Name:      "refine_rounds_total",
			Help:      "Revision rounds spent, labeled by terminal outcome.",
		},
		[]string{"outcome"},
	)
	requestsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conductor",
			Subsystem: "pipeline",
			Name:      "requests_active",
			Help:      "Requests currently inside the pipeline.",
		},
	)

	collectors := []prometheus.Collector{stageDuration, stageFailures, refineRounds, requestsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				// Reuse the existing collector when it matches the expected type.
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					stageDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case stageFailures:
						stageFailures = already.ExistingCollector.(*prometheus.CounterVec)
					case refineRounds:
						refineRounds = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					requestsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		stageDuration:  stageDuration,
		stageFailures:  stageFailures,
		refineRounds:   refineRounds,
		requestsActive: requestsActive,
	}
}

// ObserveStage records the time spent in a stage with its status label.
func (m *Metrics) ObserveStage(stage, status string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// IncStageFailure counts a stage failing the request for the given reason.
func (m *Metrics) IncStageFailure(stage, reason string) {
	if m == nil || m.stageFailures == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

// AddRefineRounds accumulates revision rounds under their terminal outcome.
func (m *Metrics) AddRefineRounds(outcome string, rounds int) {
	if m == nil || m.refineRounds == nil || rounds <= 0 {
		return
	}
	m.refineRounds.WithLabelValues(outcome).Add(float64(rounds))
}

// IncActiveRequests marks a request as inside the pipeline.
func (m *Metrics) IncActiveRequests() {
	if m == nil || m.requestsActive == nil {
		return
	}
	m.requestsActive.Inc()
}

// DecActiveRequests marks a request as finished or cancelled.
func (m *Metrics) DecActiveRequests() {
	if m == nil || m.requestsActive == nil {
		return
	}
	m.requestsActive.Dec()
}
