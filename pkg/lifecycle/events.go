package lifecycle

import "time"

// Phase names which hook list is running.
type Phase string

const (
	PhaseStartup  Phase = "startup"
	PhaseShutdown Phase = "shutdown"
)

// StageChange records one applied stage transition.
type StageChange struct {
	Previous Stage
	Current  Stage
	Reason   string
	At       time.Time
}

// HookEvent records one hook execution.
type HookEvent struct {
	Phase    Phase
	Hook     string
	Priority int
	Duration time.Duration
	Err      error
}

// SubsystemEvent records one Begin or End call.
type SubsystemEvent struct {
	Op        string
	Subsystem string
	Duration  time.Duration
	Err       error
}

// EventEmitter receives structured lifecycle records.
//
// Methods are called synchronously on the Start/Stop call chain, or on the
// caller of the health aggregator for stage changes it applies, and must
// return quickly.
type EventEmitter interface {
	OnStageChange(change StageChange)
	OnHookComplete(event HookEvent)
	OnSubsystemComplete(event SubsystemEvent)
}

// NoopEmitter discards every record.
type NoopEmitter struct{}

func (NoopEmitter) OnStageChange(StageChange)          {}
func (NoopEmitter) OnHookComplete(HookEvent)           {}
func (NoopEmitter) OnSubsystemComplete(SubsystemEvent) {}

func emitterOrNoop(e EventEmitter) EventEmitter {
	if e == nil {
		return NoopEmitter{}
	}
	return e
}
