package health

import "time"

// HealthReport describes one CheckHealth pass.
type HealthReport struct {
	Status    Status
	Details   map[string]Result
	Critical  map[string]bool
	Duration  time.Duration
	Evaluated int
	Total     int
	// Cancelled is set when the context ended before every contributor ran.
	Cancelled bool
}

// ReadinessReport describes one CheckReadiness pass.
type ReadinessReport struct {
	Ready     bool
	Details   map[string]Readiness
	Required  map[string]bool
	Duration  time.Duration
	Evaluated int
	Cancelled bool
}

// EventEmitter receives a report after every aggregation pass.
// Implementations must not retain or modify the maps.
type EventEmitter interface {
	OnHealthCheck(HealthReport)
	OnReadinessCheck(ReadinessReport)
}

// NoopEmitter discards all reports.
type NoopEmitter struct{}

func (NoopEmitter) OnHealthCheck(HealthReport)       {}
func (NoopEmitter) OnReadinessCheck(ReadinessReport) {}
