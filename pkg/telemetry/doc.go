// Package telemetry turns lifecycle and health records into logs, Prometheus
// metrics and OpenTelemetry spans.
//
// Every emitter in this package implements both lifecycle.EventEmitter and
// health.EventEmitter, so one value can be handed to the orchestrator and the
// aggregator. Use Multi to fan records out to several emitters.
package telemetry
