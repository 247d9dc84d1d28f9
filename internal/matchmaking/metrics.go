package matchmaking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives matchmaker observations.
type Metrics interface {
	QueueSize(n int)
	IterationOutcome(outcome Outcome)
	PlayerEvicted()
	ProvisioningElapsed(stage string, elapsed time.Duration)
	ProvisioningFailed(stage string)
	NotificationFailed()
}

type prometheusMetrics struct {
	queueSize            prometheus.Gauge
	iterations           *prometheus.CounterVec
	evictions            prometheus.Counter
	provisioningElapsed  *prometheus.HistogramVec
	provisioningFailures *prometheus.CounterVec
	notificationFailures prometheus.Counter
}

// NewMetrics registers the matchmaker collectors on registry.
func NewMetrics(registry prometheus.Registerer) Metrics {
	factory := promauto.With(registry)

	return &prometheusMetrics{
		queueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_matchmaking_queue_size",
			Help: "Number of players waiting in the match queue",
		}),
		iterations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_matchmaking_iterations_total",
			Help: "Matching loop iterations by outcome",
		}, []string{"outcome"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_matchmaking_evictions_total",
			Help: "Queued players evicted because their connection was gone",
		}),
		//nolint:promlinter
		provisioningElapsed: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexus_matchmaking_provisioning_elapsed_time_ms",
			Help:    "Provisioning call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stage"}),
		provisioningFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_matchmaking_provisioning_failures_total",
			Help: "Failed provisioning calls by stage",
		}, []string{"stage"}),
		notificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_matchmaking_notification_failures_total",
			Help: "Match notifications that could not be delivered",
		}),
	}
}

func (m *prometheusMetrics) QueueSize(n int) { m.queueSize.Set(float64(n)) }

func (m *prometheusMetrics) IterationOutcome(outcome Outcome) {
	m.iterations.WithLabelValues(outcome.String()).Inc()
}

func (m *prometheusMetrics) PlayerEvicted() { m.evictions.Inc() }

func (m *prometheusMetrics) ProvisioningElapsed(stage string, elapsed time.Duration) {
	m.provisioningElapsed.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func (m *prometheusMetrics) ProvisioningFailed(stage string) {
	m.provisioningFailures.WithLabelValues(stage).Inc()
}

func (m *prometheusMetrics) NotificationFailed() { m.notificationFailures.Inc() }

type nopMetrics struct{}

func (nopMetrics) QueueSize(int)                             {}
func (nopMetrics) IterationOutcome(Outcome)                  {}
func (nopMetrics) PlayerEvicted()                            {}
func (nopMetrics) ProvisioningElapsed(string, time.Duration) {}
func (nopMetrics) ProvisioningFailed(string)                 {}
func (nopMetrics) NotificationFailed()                       {}
