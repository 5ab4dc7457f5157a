package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/nodecycle/pkg/log"
)

// Subsystem is a long-lived component with its own begin/end lifecycle.
//
// Begin runs after the startup hooks; End runs before the shutdown hooks, so
// a subsystem is still running while shutdown hooks drain it. End is called
// even when Begin failed or never ran and must be safe in that case.
type Subsystem interface {
	Begin(ctx context.Context) error
	End(ctx context.Context) error
}

// Named is implemented by subsystems that want a readable name in logs.
type Named interface {
	Name() string
}

// SubsystemFuncs adapts a pair of functions into a Subsystem.
// A nil function is a no-op.
type SubsystemFuncs struct {
	Label   string
	BeginFn func(ctx context.Context) error
	EndFn   func(ctx context.Context) error
}

func (f SubsystemFuncs) Name() string { return f.Label }

func (f SubsystemFuncs) Begin(ctx context.Context) error {
	if f.BeginFn == nil {
		return nil
	}
	return f.BeginFn(ctx)
}

func (f SubsystemFuncs) End(ctx context.Context) error {
	if f.EndFn == nil {
		return nil
	}
	return f.EndFn(ctx)
}

// SubsystemSet runs Begin and End across subsystems in registration order.
type SubsystemSet struct {
	mu     sync.Mutex
	items  []Subsystem
	sealed bool

	logger  log.Logger
	emitter EventEmitter
}

// NewSubsystemSet returns an empty, unsealed set.
func NewSubsystemSet() *SubsystemSet {
	return &SubsystemSet{
		logger:  log.NoopLogger{},
		emitter: NoopEmitter{},
	}
}

// RegisterSubsystem appends s to the set.
func (s *SubsystemSet) RegisterSubsystem(sub Subsystem) error {
	if sub == nil {
		return fmt.Errorf("lifecycle: nil subsystem")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("%w: subsystem %s", ErrRegistrationClosed, subsystemName(sub, len(s.items)))
	}
	s.items = append(s.items, sub)
	return nil
}

// Seal rejects further registrations.
func (s *SubsystemSet) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Len returns the number of registered subsystems.
func (s *SubsystemSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// BeginAll calls Begin on each subsystem in order and stops at the first
// failure, which is returned as a *SubsystemError.
func (s *SubsystemSet) BeginAll(ctx context.Context) error {
	for i, sub := range s.snapshot() {
		name := subsystemName(sub, i)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: before subsystem %s begin: %w", ErrCancelled, name, err)
		}
		if err := s.call(ctx, "begin", name, sub.Begin); err != nil {
			return err
		}
	}
	return nil
}

// EndAll calls End on every subsystem in registration order, continuing past
// failures. All failures are returned together; nil means every End succeeded.
func (s *SubsystemSet) EndAll(ctx context.Context) error {
	var result *multierror.Error
	for i, sub := range s.snapshot() {
		if err := s.call(ctx, "end", subsystemName(sub, i), sub.End); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *SubsystemSet) call(ctx context.Context, op, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := invokeSubsystem(ctx, fn)
	elapsed := time.Since(start)

	s.emitter.OnSubsystemComplete(SubsystemEvent{
		Op:        op,
		Subsystem: name,
		Duration:  elapsed,
		Err:       err,
	})

	if err != nil {
		s.logger.Error("subsystem failed",
			log.String("op", op),
			log.String("subsystem", name),
			log.Err(err),
		)
		return &SubsystemError{Op: op, Subsystem: name, Err: err}
	}
	s.logger.Info("subsystem "+op,
		log.String("subsystem", name),
		log.Duration("duration", elapsed),
	)
	return nil
}

func (s *SubsystemSet) snapshot() []Subsystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subsystem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *SubsystemSet) observe(logger log.Logger, emitter EventEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log.OrNoop(logger)
	s.emitter = emitterOrNoop(emitter)
}

func invokeSubsystem(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(ctx)
}

func subsystemName(sub Subsystem, index int) string {
	if n, ok := sub.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("subsystem[%d]", index)
}
