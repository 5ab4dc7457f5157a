package lifecycle

import (
	"context"
	"sync"
)

// recorder collects everything the orchestrator emits and every hook or
// subsystem call, in order.
type recorder struct {
	mu         sync.Mutex
	calls      []string
	changes    []StageChange
	hooks      []HookEvent
	subsystems []SubsystemEvent
}

func (r *recorder) OnStageChange(c StageChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) OnHookComplete(e HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, e)
}

func (r *recorder) OnSubsystemComplete(e SubsystemEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subsystems = append(r.subsystems, e)
}

func (r *recorder) call(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (r *recorder) Changes() []StageChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StageChange{}, r.changes...)
}

// hook returns a hook that records its name and returns err.
func (r *recorder) hook(name string, priority int, err error) Hook {
	return HookFunc(name, priority, func(ctx context.Context) error {
		r.call(name)
		return err
	})
}

// subsystem returns a subsystem that records "<name>.begin" / "<name>.end".
func (r *recorder) subsystem(name string, beginErr, endErr error) Subsystem {
	return SubsystemFuncs{
		Label: name,
		BeginFn: func(ctx context.Context) error {
			r.call(name + ".begin")
			return beginErr
		},
		EndFn: func(ctx context.Context) error {
			r.call(name + ".end")
			return endErr
		},
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
