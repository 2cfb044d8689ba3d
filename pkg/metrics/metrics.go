package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler loop metrics
	SchedulerActionsExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_scheduler_actions_executed_total",
			Help: "Total number of action tasks executed by the scheduler loop",
		},
	)

	SchedulerActionsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_scheduler_actions_failed_total",
			Help: "Total number of action tasks that completed with a Failed outcome or returned an execution error",
		},
	)

	SchedulerEventsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_scheduler_events_applied_total",
			Help: "Total number of scheduler events applied to the WBS tree",
		},
	)

	SchedulerIdleCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_scheduler_idle_cycles_total",
			Help: "Total number of idle tasks synthesized by the scheduler loop",
		},
	)

	ActionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadforge_action_latency_seconds",
			Help:    "Latency of a single action dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action_id"},
	)

	// IP pool metrics
	IPPoolAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadforge_ippool_allocations_total",
			Help: "Total number of successful IP allocations by pool",
		},
		[]string{"pool"},
	)

	IPPoolReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadforge_ippool_releases_total",
			Help: "Total number of IP releases by pool",
		},
		[]string{"pool"},
	)

	IPPoolExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadforge_ippool_exhausted_total",
			Help: "Total number of PoolFull errors encountered by pool",
		},
		[]string{"pool"},
	)

	IPPoolAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loadforge_ippool_available",
			Help: "Current number of available (unallocated, unreserved) ips by pool",
		},
		[]string{"pool"},
	)

	// Load driver metrics
	UsersSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_users_spawned_total",
			Help: "Total number of simulated users spawned across all ramp-up phases",
		},
	)

	UsersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loadforge_users_completed_total",
			Help: "Total number of simulated users that finished their workflow run",
		},
	)

	UsersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loadforge_users_active",
			Help: "Current number of simulated users with an in-flight workflow run",
		},
	)

	ThinkTimeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loadforge_think_time_seconds",
			Help:    "Observed think-time sleep duration between iterations",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SchedulerActionsExecuted)
	prometheus.MustRegister(SchedulerActionsFailed)
	prometheus.MustRegister(SchedulerEventsApplied)
	prometheus.MustRegister(SchedulerIdleCycles)
	prometheus.MustRegister(ActionLatency)

	prometheus.MustRegister(IPPoolAllocations)
	prometheus.MustRegister(IPPoolReleases)
	prometheus.MustRegister(IPPoolExhausted)
	prometheus.MustRegister(IPPoolAvailable)

	prometheus.MustRegister(UsersSpawned)
	prometheus.MustRegister(UsersCompleted)
	prometheus.MustRegister(UsersActive)
	prometheus.MustRegister(ThinkTimeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
