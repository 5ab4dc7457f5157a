package health

import (
	"fmt"
	"strings"
)

// Status is a tri-state health value. Larger values are worse.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

var statusNames = [...]string{
	StatusHealthy:   "healthy",
	StatusDegraded:  "degraded",
	StatusUnhealthy: "unhealthy",
}

func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the three defined values.
func (s Status) Valid() bool {
	return s >= StatusHealthy && s <= StatusUnhealthy
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("health: invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return StatusUnhealthy, fmt.Errorf("health: unknown status %q", v)
}

// Worse returns the worse of a and b.
func Worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}
