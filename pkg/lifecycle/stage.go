package lifecycle

import (
	"fmt"
	"strings"
)

// Stage is the lifecycle phase of a node.
type Stage int32

const (
	StageInitializing Stage = iota
	StageStarting
	StageReady
	StageDegraded
	StageStopping
	StageStopped
	StageFailed
)

var stageNames = [...]string{
	StageInitializing: "Initializing",
	StageStarting:     "Starting",
	StageReady:        "Ready",
	StageDegraded:     "Degraded",
	StageStopping:     "Stopping",
	StageStopped:      "Stopped",
	StageFailed:       "Failed",
}

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
	return stageNames[s]
}

// MarshalText renders the stage name, so stages read well in JSON.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any name ParseStage does.
func (s *Stage) UnmarshalText(text []byte) error {
	v, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsTerminal reports whether no transition may leave s.
func (s Stage) IsTerminal() bool {
	return s == StageStopped || s == StageFailed
}

// Serving reports whether the node has finished startup and not begun shutdown.
func (s Stage) Serving() bool {
	return s == StageReady || s == StageDegraded
}

// ParseStage parses a stage name, case-insensitively.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// CanTransition reports whether from -> to is a legal step.
//
// Forward steps never skip a stage; the only backward steps are
// Ready <-> Degraded and any non-terminal stage -> Failed.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	switch from {
	case StageInitializing:
		return to == StageStarting
	case StageStarting:
		return to == StageReady
	case StageReady:
		return to == StageDegraded || to == StageStopping
	case StageDegraded:
		return to == StageReady || to == StageStopping
	case StageStopping:
		return to == StageStopped
	default:
		return false
	}
}
