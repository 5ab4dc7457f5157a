package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/nodecycle/pkg/log"
)

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	logger  log.Logger
	emitter EventEmitter
	now     func() time.Time
}

// WithLogger sets the logger used by the orchestrator, its hooks and subsystems.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventEmitter sets the receiver for stage, hook and subsystem records.
func WithEventEmitter(emitter EventEmitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// Orchestrator is the top-level startup/shutdown driver.
//
// Start and Stop are meant to be called once each by the host. Calls from
// the wrong stage are rejected with ErrInvalidTransition and change nothing.
type Orchestrator struct {
	register   *StageRegister
	hooks      *HookSet
	subsystems *SubsystemSet
	logger     log.Logger
	emitter    EventEmitter
	now        func() time.Time

	// mu serializes Start and Stop.
	mu sync.Mutex
}

// NewOrchestrator wires an orchestrator around the given register and sets.
// Nil sets are replaced with empty ones.
func NewOrchestrator(register *StageRegister, hooks *HookSet, subsystems *SubsystemSet, opts ...Option) *Orchestrator {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if register == nil {
		register = NewStageRegister()
	}
	if hooks == nil {
		hooks = NewHookSet()
	}
	if subsystems == nil {
		subsystems = NewSubsystemSet()
	}
	logger := log.OrNoop(o.logger)
	emitter := emitterOrNoop(o.emitter)

	hooks.observe(logger, emitter)
	subsystems.observe(logger, emitter)

	return &Orchestrator{
		register:   register,
		hooks:      hooks,
		subsystems: subsystems,
		logger:     logger,
		emitter:    emitter,
		now:        o.now,
	}
}

// Stage returns the current stage.
func (o *Orchestrator) Stage() Stage {
	return o.register.Current()
}

// Reader returns a read-only view of the stage.
func (o *Orchestrator) Reader() StageReader {
	return o.register.Reader()
}

// Start runs the startup sequence: Starting, startup hooks, subsystem Begin,
// Ready. Any failure moves the node to Failed and is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cur := o.register.Current(); cur != StageInitializing {
		return fmt.Errorf("%w: Start called in stage %s", ErrInvalidTransition, cur)
	}

	o.hooks.Seal()
	o.subsystems.Seal()

	if err := o.transition(StageStarting, "Start() called"); err != nil {
		return err
	}

	o.logger.Info("starting node",
		log.Strings("startup_hooks", o.hooks.StartupOrder()),
		log.Int("subsystems", o.subsystems.Len()),
	)

	if err := o.hooks.RunStartup(ctx); err != nil {
		o.fail("startup hook failed: " + err.Error())
		return err
	}

	if err := o.subsystems.BeginAll(ctx); err != nil {
		o.fail("subsystem begin failed: " + err.Error())
		return err
	}

	return o.transition(StageReady, "startup complete")
}

// Stop runs the shutdown sequence: Stopping, subsystem End, shutdown hooks,
// Stopped.
//
// Subsystem End failures do not stop the sequence; they are returned after
// the node reaches Stopped. A failing shutdown hook moves the node to Failed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cur := o.register.Current(); !cur.Serving() {
		return fmt.Errorf("%w: Stop called in stage %s", ErrInvalidTransition, cur)
	}

	if err := o.transition(StageStopping, "Stop() called"); err != nil {
		return err
	}

	endErr := o.subsystems.EndAll(ctx)
	if endErr != nil {
		o.logger.Warn("subsystem teardown reported errors", log.Err(endErr))
	}

	if err := o.hooks.RunShutdown(ctx); err != nil {
		o.fail("shutdown hook failed: " + err.Error())
		if endErr == nil {
			return err
		}
		return multierror.Append(err, endErr)
	}

	if err := o.transition(StageStopped, "shutdown complete"); err != nil {
		return multierror.Append(err, endErr).ErrorOrNil()
	}
	return endErr
}

// transition applies next and records the change.
func (o *Orchestrator) transition(next Stage, reason string) error {
	prev, err := o.register.Apply(next, func(prev Stage) {
		o.emitter.OnStageChange(StageChange{
			Previous: prev,
			Current:  next,
			Reason:   reason,
			At:       o.now(),
		})
	})
	if err != nil {
		o.logger.Error("stage transition rejected",
			log.String("from", prev.String()),
			log.String("to", next.String()),
			log.Err(err),
		)
		return err
	}
	if prev != next {
		o.logger.Info("stage transition",
			log.String("from", prev.String()),
			log.String("to", next.String()),
			log.String("reason", reason),
		)
	}
	return nil
}

func (o *Orchestrator) fail(reason string) {
	if err := o.transition(StageFailed, reason); err != nil {
		o.logger.Error("could not mark node failed", log.Err(err))
	}
}
