package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CycleRuns counts periodic task runs by task and outcome (ok, error, skipped)
	CycleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_cycle_runs_total",
			Help: "Total number of periodic task runs",
		},
		[]string{"task", "outcome"},
	)

	// CycleDuration tracks how long each periodic task run took
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_cycle_duration_seconds",
			Help:    "Periodic task duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"task"},
	)

	// AlertsSent counts delivered alerts by kind (discovery, refresh, manual)
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_alerts_sent_total",
			Help: "Total number of alerts delivered",
		},
		[]string{"kind"},
	)

	// AlertFailures counts alerts that could not be delivered
	AlertFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_alert_failures_total",
			Help: "Total number of failed alert deliveries",
		},
		[]string{"kind"},
	)

	PinsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_pins_created_total",
			Help: "Total number of discovery alerts pinned",
		},
	)

	DestinationsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_destinations_removed_total",
			Help: "Total number of subscribers dropped because the chat is gone",
		},
	)

	// ProxyAttempts counts reader proxy fetches by proxy and outcome (ok, short, error)
	ProxyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_proxy_attempts_total",
			Help: "Total number of reader proxy fetches",
		},
		[]string{"proxy", "outcome"},
	)

	// ResolverLookups counts handle resolutions by result (hit, miss)
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_resolver_lookups_total",
			Help: "Total number of social resolver lookups",
		},
		[]string{"result"},
	)

	TrackedTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_tracked_tokens",
			Help: "Number of tokens currently tracked for refresh alerts",
		},
	)

	MirrorTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_mirror_tokens",
			Help: "Number of tokens in the snapshot mirror",
		},
	)

	SocialQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_social_queue_depth",
			Help: "Number of social references waiting to be resolved",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
