package telemetry

import (
	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// LogEmitter logs health and readiness passes. Healthy and ready passes are
// logged at debug level. Stage, hook and subsystem records are already
// logged by the lifecycle package and are ignored here.
type LogEmitter struct {
	lifecycle.NoopEmitter

	logger log.Logger
}

// NewLogEmitter returns an emitter logging to logger.
func NewLogEmitter(logger log.Logger) *LogEmitter {
	return &LogEmitter{logger: log.OrNoop(logger).With(log.String("component", "telemetry"))}
}

func (e *LogEmitter) OnHealthCheck(r health.HealthReport) {
	fields := []log.Field{
		log.Stringer("status", r.Status),
		log.Int("evaluated", r.Evaluated),
		log.Int("total", r.Total),
		log.Duration("duration", r.Duration),
	}
	if r.Status == health.StatusHealthy {
		e.logger.Debug("health pass", fields...)
		return
	}
	var failing []string
	for name, res := range r.Details {
		if res.Status != health.StatusHealthy {
			failing = append(failing, name)
		}
	}
	e.logger.Warn("health pass", append(fields, log.Strings("failing", sorted(failing)))...)
}

func (e *LogEmitter) OnReadinessCheck(r health.ReadinessReport) {
	fields := []log.Field{
		log.Bool("ready", r.Ready),
		log.Int("evaluated", r.Evaluated),
		log.Duration("duration", r.Duration),
	}
	if r.Ready {
		e.logger.Debug("readiness pass", fields...)
		return
	}
	var blocking []string
	for name, res := range r.Details {
		if !res.Ready && r.Required[name] {
			blocking = append(blocking, name)
		}
	}
	e.logger.Warn("readiness pass", append(fields, log.Strings("blocking", sorted(blocking)))...)
}
