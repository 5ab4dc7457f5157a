package telemetry

import (
	"sort"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

// Emitter receives every record the node produces.
type Emitter interface {
	lifecycle.EventEmitter
	health.EventEmitter
}

// Multi fans every record out to each emitter in order. Nil entries are
// skipped.
type Multi []Emitter

func (m Multi) OnStageChange(c lifecycle.StageChange) {
	for _, e := range m {
		if e != nil {
			e.OnStageChange(c)
		}
	}
}

func (m Multi) OnHookComplete(ev lifecycle.HookEvent) {
	for _, e := range m {
		if e != nil {
			e.OnHookComplete(ev)
		}
	}
}

func (m Multi) OnSubsystemComplete(ev lifecycle.SubsystemEvent) {
	for _, e := range m {
		if e != nil {
			e.OnSubsystemComplete(ev)
		}
	}
}

func (m Multi) OnHealthCheck(r health.HealthReport) {
	for _, e := range m {
		if e != nil {
			e.OnHealthCheck(r)
		}
	}
}

func (m Multi) OnReadinessCheck(r health.ReadinessReport) {
	for _, e := range m {
		if e != nil {
			e.OnReadinessCheck(r)
		}
	}
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
