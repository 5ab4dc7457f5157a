package lifecycle

import (
	"errors"
	"fmt"
)

// Lifecycle errors, checked with errors.Is.
var (
	// ErrInvalidTransition is returned when a stage change is not permitted,
	// including Start or Stop called from the wrong stage.
	ErrInvalidTransition = errors.New("lifecycle: invalid stage transition")

	// ErrTerminalStage is returned when leaving Stopped or Failed is attempted.
	ErrTerminalStage = errors.New("lifecycle: stage is terminal")

	// ErrRegistrationClosed is returned when a hook or subsystem is registered
	// after the orchestrator has started.
	ErrRegistrationClosed = errors.New("lifecycle: registration closed")

	// ErrCancelled is returned when the context ends between two hooks or
	// subsystems.
	ErrCancelled = errors.New("lifecycle: cancelled")

	// ErrHookPanic wraps a recovered panic from a hook or subsystem body.
	ErrHookPanic = errors.New("lifecycle: panic")
)

// HookError reports which hook failed. Unwrap returns the hook's own error.
type HookError struct {
	Phase    Phase
	Hook     string
	Priority int
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook %q (priority %d): %v", e.Phase, e.Hook, e.Priority, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// SubsystemError reports which subsystem failed and in which operation.
type SubsystemError struct {
	Op        string // "begin" or "end"
	Subsystem string
	Err       error
}

func (e *SubsystemError) Error() string {
	return fmt.Sprintf("subsystem %s %s: %v", e.Subsystem, e.Op, e.Err)
}

func (e *SubsystemError) Unwrap() error { return e.Err }

func recovered(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrHookPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrHookPanic, r)
}
