package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

var allStages = []lifecycle.Stage{
	lifecycle.StageInitializing,
	lifecycle.StageStarting,
	lifecycle.StageReady,
	lifecycle.StageDegraded,
	lifecycle.StageStopping,
	lifecycle.StageStopped,
	lifecycle.StageFailed,
}

// MetricsEmitter records lifecycle and health state as Prometheus metrics.
type MetricsEmitter struct {
	Stage             *prometheus.GaugeVec   // 1 for the current stage, 0 otherwise
	Transitions       *prometheus.CounterVec // stage changes by from/to
	HookDuration      *prometheus.HistogramVec
	SubsystemDuration *prometheus.HistogramVec
	HealthStatus      prometheus.Gauge     // 0 healthy, 1 degraded, 2 unhealthy
	ContributorStatus *prometheus.GaugeVec // per contributor, same encoding
	Ready             prometheus.Gauge
	ContributorReady  *prometheus.GaugeVec
}

// NewMetricsEmitter creates the metrics and registers them with reg.
// The stage gauge starts at Initializing.
func NewMetricsEmitter(reg prometheus.Registerer) *MetricsEmitter {
	m := &MetricsEmitter{
		Stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodecycle_stage",
			Help: "Current lifecycle stage (1 for the active stage)",
		}, []string{"stage"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodecycle_stage_transitions_total",
			Help: "Total number of lifecycle stage transitions",
		}, []string{"from", "to"}),
		HookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodecycle_hook_duration_seconds",
			Help:    "Duration of startup and shutdown hooks",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase", "hook", "outcome"}),
		SubsystemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodecycle_subsystem_duration_seconds",
			Help:    "Duration of subsystem begin and end calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "subsystem", "outcome"}),
		HealthStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecycle_health_status",
			Help: "Aggregate health (0 healthy, 1 degraded, 2 unhealthy)",
		}),
		ContributorStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodecycle_contributor_status",
			Help: "Health of each evaluated contributor (0 healthy, 1 degraded, 2 unhealthy)",
		}, []string{"name"}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecycle_ready",
			Help: "Aggregate readiness (1 ready, 0 not ready)",
		}),
		ContributorReady: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodecycle_readiness_contributor_ready",
			Help: "Readiness of each contributor (1 ready, 0 not ready)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.Stage,
		m.Transitions,
		m.HookDuration,
		m.SubsystemDuration,
		m.HealthStatus,
		m.ContributorStatus,
		m.Ready,
		m.ContributorReady,
	)

	m.setStage(lifecycle.StageInitializing)
	return m
}

func (m *MetricsEmitter) setStage(cur lifecycle.Stage) {
	for _, s := range allStages {
		v := 0.0
		if s == cur {
			v = 1
		}
		m.Stage.WithLabelValues(s.String()).Set(v)
	}
}

func (m *MetricsEmitter) OnStageChange(c lifecycle.StageChange) {
	m.Transitions.WithLabelValues(c.Previous.String(), c.Current.String()).Inc()
	m.setStage(c.Current)
}

func (m *MetricsEmitter) OnHookComplete(ev lifecycle.HookEvent) {
	m.HookDuration.
		WithLabelValues(string(ev.Phase), ev.Hook, outcome(ev.Err)).
		Observe(ev.Duration.Seconds())
}

func (m *MetricsEmitter) OnSubsystemComplete(ev lifecycle.SubsystemEvent) {
	m.SubsystemDuration.
		WithLabelValues(ev.Op, ev.Subsystem, outcome(ev.Err)).
		Observe(ev.Duration.Seconds())
}

func (m *MetricsEmitter) OnHealthCheck(r health.HealthReport) {
	m.HealthStatus.Set(float64(r.Status))
	// A fail-fast pass leaves later contributors out; drop their old values.
	m.ContributorStatus.Reset()
	for name, res := range r.Details {
		m.ContributorStatus.WithLabelValues(name).Set(float64(res.Status))
	}
}

func (m *MetricsEmitter) OnReadinessCheck(r health.ReadinessReport) {
	m.Ready.Set(boolToFloat(r.Ready))
	for name, res := range r.Details {
		m.ContributorReady.WithLabelValues(name).Set(boolToFloat(res.Ready))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
