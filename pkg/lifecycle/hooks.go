package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/nodecycle/pkg/log"
)

// Hook is a named, prioritized unit of startup or shutdown work.
//
// Lower priorities run first. Run receives the shared context of the whole
// Start or Stop call and should return promptly once it is cancelled.
type Hook interface {
	Name() string
	Priority() int
	Run(ctx context.Context) error
}

type funcHook struct {
	name     string
	priority int
	fn       func(ctx context.Context) error
}

// HookFunc adapts fn into a Hook.
func HookFunc(name string, priority int, fn func(ctx context.Context) error) Hook {
	return &funcHook{name: name, priority: priority, fn: fn}
}

func (h *funcHook) Name() string                  { return h.name }
func (h *funcHook) Priority() int                 { return h.priority }
func (h *funcHook) Run(ctx context.Context) error { return h.fn(ctx) }

// HookSet holds the startup and shutdown hook lists.
//
// Lists are populated before the orchestrator starts; Seal freezes them.
type HookSet struct {
	mu       sync.Mutex
	startup  []Hook
	shutdown []Hook
	sealed   bool

	logger  log.Logger
	emitter EventEmitter
}

// NewHookSet returns an empty, unsealed hook set.
func NewHookSet() *HookSet {
	return &HookSet{
		logger:  log.NoopLogger{},
		emitter: NoopEmitter{},
	}
}

// RegisterStartup adds a hook to the startup list.
func (s *HookSet) RegisterStartup(h Hook) error {
	return s.register(PhaseStartup, h)
}

// RegisterShutdown adds a hook to the shutdown list.
func (s *HookSet) RegisterShutdown(h Hook) error {
	return s.register(PhaseShutdown, h)
}

func (s *HookSet) register(phase Phase, h Hook) error {
	if h == nil {
		return fmt.Errorf("lifecycle: nil %s hook", phase)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("%w: %s hook %q", ErrRegistrationClosed, phase, h.Name())
	}
	if phase == PhaseStartup {
		s.startup = append(s.startup, h)
	} else {
		s.shutdown = append(s.shutdown, h)
	}
	return nil
}

// Seal rejects further registrations.
func (s *HookSet) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// StartupOrder returns startup hook names in execution order.
func (s *HookSet) StartupOrder() []string {
	return hookNames(s.ordered(PhaseStartup))
}

// ShutdownOrder returns shutdown hook names in execution order.
func (s *HookSet) ShutdownOrder() []string {
	return hookNames(s.ordered(PhaseShutdown))
}

// RunStartup executes the startup hooks.
func (s *HookSet) RunStartup(ctx context.Context) error {
	return s.run(ctx, PhaseStartup)
}

// RunShutdown executes the shutdown hooks.
func (s *HookSet) RunShutdown(ctx context.Context) error {
	return s.run(ctx, PhaseShutdown)
}

// run executes one list in priority order, one hook at a time.
//
// The context is checked before each hook. The first failure stops the list
// and is returned as a *HookError.
func (s *HookSet) run(ctx context.Context, phase Phase) error {
	hooks := s.ordered(phase)
	s.logger.Debug("running hooks",
		log.String("phase", string(phase)),
		log.Strings("order", hookNames(hooks)),
	)

	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("hooks cancelled",
				log.String("phase", string(phase)),
				log.String("next", h.Name()),
				log.Int("remaining", len(hooks)-i),
			)
			return fmt.Errorf("%w: %s hooks stopped before %q: %w", ErrCancelled, phase, h.Name(), err)
		}

		priority := h.Priority()
		start := time.Now()
		err := invokeHook(ctx, h)
		elapsed := time.Since(start)

		s.emitter.OnHookComplete(HookEvent{
			Phase:    phase,
			Hook:     h.Name(),
			Priority: priority,
			Duration: elapsed,
			Err:      err,
		})

		if err != nil {
			s.logger.Error("hook failed",
				log.String("phase", string(phase)),
				log.String("hook", h.Name()),
				log.Int("priority", priority),
				log.Duration("duration", elapsed),
				log.Err(err),
			)
			return &HookError{Phase: phase, Hook: h.Name(), Priority: priority, Err: err}
		}

		s.logger.Info("hook completed",
			log.String("phase", string(phase)),
			log.String("hook", h.Name()),
			log.Duration("duration", elapsed),
		)
	}
	return nil
}

// ordered returns a stable, priority-sorted copy of one list.
func (s *HookSet) ordered(phase Phase) []Hook {
	s.mu.Lock()
	src := s.startup
	if phase == PhaseShutdown {
		src = s.shutdown
	}
	hooks := make([]Hook, len(src))
	copy(hooks, src)
	s.mu.Unlock()

	type entry struct {
		hook     Hook
		priority int
	}
	entries := make([]entry, len(hooks))
	for i, h := range hooks {
		entries[i] = entry{hook: h, priority: h.Priority()}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	for i, e := range entries {
		hooks[i] = e.hook
	}
	return hooks
}

func (s *HookSet) observe(logger log.Logger, emitter EventEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log.OrNoop(logger)
	s.emitter = emitterOrNoop(emitter)
}

func invokeHook(ctx context.Context, h Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return h.Run(ctx)
}

func hookNames(hooks []Hook) []string {
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.Name()
	}
	return names
}

// IsHookFailure reports whether err came from a failing hook.
func IsHookFailure(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}
