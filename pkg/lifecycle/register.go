package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// StageReader is the read-only view of a StageRegister.
type StageReader interface {
	Current() Stage
}

// StageRegister holds the node's current stage.
//
// Reads never block and never observe a torn value. Writers are serialized,
// and Apply runs its record callback before the next writer can move the
// stage, so records reach emitters in the order the register changed.
type StageRegister struct {
	v  atomic.Int32
	mu sync.Mutex
}

// NewStageRegister returns a register in StageInitializing.
func NewStageRegister() *StageRegister {
	return &StageRegister{}
}

// Current returns the current stage.
func (r *StageRegister) Current() Stage {
	return Stage(r.v.Load())
}

// Transition moves the register to next and returns the stage it replaced.
//
// Requesting the current stage is a no-op that returns (current, nil).
// Leaving a terminal stage fails with ErrTerminalStage, any other illegal
// step with ErrInvalidTransition; neither mutates the register.
func (r *StageRegister) Transition(next Stage) (Stage, error) {
	return r.Apply(next, nil)
}

// Apply is Transition that also calls record with the replaced stage while
// still holding the writer lock. record runs only when the stage changed and
// must not write to the register.
func (r *StageRegister) Apply(next Stage, record func(prev Stage)) (Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := Stage(r.v.Load())
	if cur == next {
		return cur, nil
	}
	if cur.IsTerminal() {
		return cur, fmt.Errorf("%w: %w: %s -> %s", ErrInvalidTransition, ErrTerminalStage, cur, next)
	}
	if !CanTransition(cur, next) {
		return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	r.v.Store(int32(next))
	if record != nil {
		record(cur)
	}
	return cur, nil
}

// Reader returns a view that can only read the register.
func (r *StageRegister) Reader() StageReader {
	return readOnly{r: r}
}

type readOnly struct {
	r *StageRegister
}

func (ro readOnly) Current() Stage { return ro.r.Current() }
