package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

const tracerName = "github.com/bft-labs/nodecycle/pkg/telemetry"

// TraceEmitter records hooks, subsystem calls and aggregation passes as
// spans. Records arrive after the work is done, so spans are back-dated by
// the recorded duration. Stage changes become zero-length spans.
type TraceEmitter struct {
	tracer trace.Tracer
	now    func() time.Time
}

// NewTraceEmitter returns an emitter using a tracer from tp.
func NewTraceEmitter(tp trace.TracerProvider, attrs ...attribute.KeyValue) *TraceEmitter {
	return &TraceEmitter{
		tracer: tp.Tracer(tracerName, trace.WithInstrumentationAttributes(attrs...)),
		now:    time.Now,
	}
}

func (e *TraceEmitter) record(name string, d time.Duration, err error, attrs ...attribute.KeyValue) {
	end := e.now()
	_, span := e.tracer.Start(context.Background(), name,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

func (e *TraceEmitter) OnStageChange(c lifecycle.StageChange) {
	at := c.At
	if at.IsZero() {
		at = e.now()
	}
	_, span := e.tracer.Start(context.Background(), "stage "+c.Current.String(),
		trace.WithTimestamp(at),
		trace.WithAttributes(
			attribute.String("stage.from", c.Previous.String()),
			attribute.String("stage.to", c.Current.String()),
			attribute.String("stage.reason", c.Reason),
		),
	)
	span.End(trace.WithTimestamp(at))
}

func (e *TraceEmitter) OnHookComplete(ev lifecycle.HookEvent) {
	e.record(string(ev.Phase)+" hook "+ev.Hook, ev.Duration, ev.Err,
		attribute.String("hook.phase", string(ev.Phase)),
		attribute.String("hook.name", ev.Hook),
		attribute.Int("hook.priority", ev.Priority),
	)
}

func (e *TraceEmitter) OnSubsystemComplete(ev lifecycle.SubsystemEvent) {
	e.record("subsystem "+ev.Subsystem+" "+ev.Op, ev.Duration, ev.Err,
		attribute.String("subsystem.name", ev.Subsystem),
		attribute.String("subsystem.op", ev.Op),
	)
}

func (e *TraceEmitter) OnHealthCheck(r health.HealthReport) {
	e.record("health check", r.Duration, nil,
		attribute.String("health.status", r.Status.String()),
		attribute.Int("health.evaluated", r.Evaluated),
		attribute.Int("health.total", r.Total),
		attribute.Bool("health.cancelled", r.Cancelled),
	)
}

func (e *TraceEmitter) OnReadinessCheck(r health.ReadinessReport) {
	e.record("readiness check", r.Duration, nil,
		attribute.Bool("readiness.ready", r.Ready),
		attribute.Int("readiness.evaluated", r.Evaluated),
		attribute.Bool("readiness.cancelled", r.Cancelled),
	)
}
